package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-compose/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name       string
		executable string
		args       []string
		shouldErr  bool
	}{
		{"valid", "docker", []string{"compose", "ps"}, false},
		{"no args", "docker", nil, false},
		{"empty executable", "", nil, true},
		{"blank executable", "   ", nil, true},
		{"nul in argument", "docker", []string{"exec", "a\x00b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.executable, tt.args)
			if tt.shouldErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.NoError(t, ValidateWorkingDirectory(""))
	assert.NoError(t, ValidateWorkingDirectory(dir))
	assert.Error(t, ValidateWorkingDirectory(file))
	assert.Error(t, ValidateWorkingDirectory(filepath.Join(dir, "missing")))
}

func TestValidateEnvironment(t *testing.T) {
	assert.NoError(t, ValidateEnvironment([]string{"A=1", "EMPTY="}))
	assert.Error(t, ValidateEnvironment([]string{"BROKEN"}))
}

func TestLookupExecutable_NotFound(t *testing.T) {
	_, err := LookupExecutable("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

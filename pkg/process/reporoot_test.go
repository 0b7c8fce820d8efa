package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
}

func TestFindRepoRoot(t *testing.T) {
	tests := []struct {
		name   string
		marker string
	}{
		{"compose yml", "docker-compose.yml"},
		{"compose yaml", "compose.yaml"},
		{"solution file", "GatewayIDE.sln"},
		{"git directory", ".git"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.marker == ".git" {
				require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
			} else {
				touch(t, filepath.Join(root, tt.marker))
			}
			nested := filepath.Join(root, "bin", "debug", "net8.0")
			require.NoError(t, os.MkdirAll(nested, 0755))

			found, ok := FindRepoRoot(nested)
			require.True(t, ok)

			want, _ := filepath.EvalSymlinks(root)
			got, _ := filepath.EvalSymlinks(found)
			assert.Equal(t, want, got)
		})
	}
}

func TestFindRepoRoot_TriesStartsInOrder(t *testing.T) {
	withMarker := t.TempDir()
	touch(t, filepath.Join(withMarker, "compose.yml"))

	found, ok := FindRepoRoot("", withMarker)
	require.True(t, ok)
	assert.Equal(t, withMarker, found)
}

func TestRepoRoot_IsCachedAndExists(t *testing.T) {
	first := RepoRoot()
	second := RepoRoot()

	assert.Equal(t, first, second)
	info, err := os.Stat(first)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

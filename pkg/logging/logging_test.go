package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []string
}

func (r *recorder) funcs(level string) LogFunc {
	return func(format string, args ...interface{}) {
		r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
	}
}

func TestLogger_Prefix(t *testing.T) {
	rec := &recorder{}
	logger := NewLogger("compose: ", LogFuncs{
		Infof:  rec.funcs("I"),
		Errorf: rec.funcs("E"),
	})

	logger.Infof("up %s", "network")
	logger.Errorf("failed %d", 2)
	logger.Debugf("dropped, no debug func")

	assert.Equal(t, []string{"I compose: up network", "E compose: failed 2"}, rec.lines)
}

func TestLogger_LogLevelfOverrides(t *testing.T) {
	var gotLevel int
	logger := NewLogger("", LogFuncs{
		LogLevelf: func(level int, format string, args ...interface{}) { gotLevel = level },
		Infof:     func(format string, args ...interface{}) { t.Fatal("Infof must not be called") },
	})

	logger.Warnf("x")
	assert.Equal(t, LogLevelWarn, gotLevel)
}

func TestNewUnitLogger(t *testing.T) {
	rec := &recorder{}
	parent := NewLogger("srv: ", LogFuncs{Warnf: rec.funcs("W")})

	NewUnitLogger(parent, "network").Warnf("stale")

	assert.Equal(t, []string{"W srv: unit: network , stale"}, rec.lines)
}

func TestGetLevelFromString(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := getLevelFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewZapBackend(t *testing.T) {
	backend, err := NewZapBackend(DefaultZapConfig())
	require.NoError(t, err)

	funcs := backend.LogFuncs()
	assert.NotNil(t, funcs.Debugf)
	assert.NotNil(t, funcs.Errorf)

	_, err = NewZapBackend(ZapConfig{Level: "loud"})
	assert.Error(t, err)
}

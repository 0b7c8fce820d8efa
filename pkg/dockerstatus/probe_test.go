package dockerstatus

import (
	"context"
	"strings"
	"testing"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/process"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Simple test logger that implements logging.Logger interface
type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

func newTestProbe(goos string, respond func(call process.FakeCall) process.FakeResponse) (*CLIProbe, *process.FakeRunner) {
	runner := process.NewFakeRunner(respond)
	probe := NewCLIProbe(compose.NewInvoker(runner, &TestLogger{}), &TestLogger{})
	probe.goos = goos
	return probe, runner
}

func TestParseContainerState(t *testing.T) {
	tests := map[string]ContainerStatus{
		"running":    ContainerRunning,
		" Running\n": ContainerRunning,
		"exited":     ContainerExited,
		"created":    ContainerExited,
		"dead":       ContainerExited,
		"paused":     ContainerUnknown,
		"restarting": ContainerUnknown,
		"":           ContainerUnknown,
	}
	for state, want := range tests {
		assert.Equal(t, want, ParseContainerState(state), "state %q", state)
	}
}

func TestContainerStatus_UnitStatus(t *testing.T) {
	assert.Equal(t, units.StatusUp, ContainerRunning.UnitStatus())
	assert.Equal(t, units.StatusDown, ContainerExited.UnitStatus())
	assert.Equal(t, units.StatusDown, ContainerNotFound.UnitStatus())
	assert.Equal(t, units.StatusUnknown, ContainerUnknown.UnitStatus())
}

func TestTexts(t *testing.T) {
	assert.Equal(t, "Open", EngineOpen.Text())
	assert.Equal(t, "Not Installed", EngineNotInstalled.Text())
	assert.Equal(t, "Unknown", EngineStatus("").Text())
	assert.Equal(t, "Available", ImageText(true))
	assert.Equal(t, "None", ImageText(false))
}

func TestCLIProbe_EngineStatus(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		infoCode int
		scCode   int
		scOutput string
		want     EngineStatus
		wantSc   bool
	}{
		{"info ok", "linux", 0, 0, "", EngineOpen, false},
		{"info fails off windows", "linux", 1, 0, "", EngineUnknown, false},
		{"desktop running", "windows", 1, 0, "STATE : 4 RUNNING", EngineOpen, true},
		{"desktop stopped", "windows", 1, 0, "STATE : 1 STOPPED", EngineClosed, true},
		{"desktop missing", "windows", 1, 1060, "", EngineNotInstalled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, runner := newTestProbe(tt.goos, func(call process.FakeCall) process.FakeResponse {
				if call.Executable == "sc" {
					return process.FakeResponse{ExitCode: tt.scCode, Stdout: []string{tt.scOutput}}
				}
				return process.FakeResponse{ExitCode: tt.infoCode}
			})

			status, err := probe.EngineStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)

			lines := runner.Lines()
			assert.Equal(t, "docker info", lines[0])
			if tt.wantSc {
				require.Len(t, lines, 2)
				assert.Equal(t, "sc query com.docker.service", lines[1])
			} else {
				assert.Len(t, lines, 1)
			}
		})
	}
}

func TestCLIProbe_ImageAvailable(t *testing.T) {
	probe, runner := newTestProbe("linux", func(call process.FakeCall) process.FakeResponse {
		if call.Args[2] == "deploy-gateway:latest" {
			return process.FakeResponse{}
		}
		return process.FakeResponse{ExitCode: 1}
	})

	available, err := probe.ImageAvailable(context.Background(), "deploy-gateway:latest")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = probe.ImageAvailable(context.Background(), "missing:latest")
	require.NoError(t, err)
	assert.False(t, available)

	assert.Equal(t, "docker image inspect deploy-gateway:latest", runner.Lines()[0])
}

func TestCLIProbe_ContainerStatus(t *testing.T) {
	probe, runner := newTestProbe("linux", func(call process.FakeCall) process.FakeResponse {
		switch call.Args[len(call.Args)-1] {
		case "web":
			return process.FakeResponse{Stdout: []string{"running"}}
		case "job":
			return process.FakeResponse{Stdout: []string{"exited"}}
		default:
			return process.FakeResponse{ExitCode: 1, Stderr: []string{"No such object"}}
		}
	})

	status, err := probe.ContainerStatus(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, ContainerRunning, status)

	status, _ = probe.ContainerStatus(context.Background(), "job")
	assert.Equal(t, ContainerExited, status)

	status, _ = probe.ContainerStatus(context.Background(), "ghost")
	assert.Equal(t, ContainerNotFound, status)

	status, _ = probe.ContainerStatus(context.Background(), "")
	assert.Equal(t, ContainerNotFound, status)

	assert.Equal(t, "docker inspect -f {{.State.Status}} web", runner.Lines()[0])
	assert.Len(t, runner.Calls(), 3)
}

func TestCLIProbe_UnitStatus(t *testing.T) {
	respond := func(psOutput []string) func(call process.FakeCall) process.FakeResponse {
		return func(call process.FakeCall) process.FakeResponse {
			if call.Args[0] == "compose" {
				return process.FakeResponse{Stdout: psOutput}
			}
			return process.FakeResponse{Stdout: []string{"running"}}
		}
	}

	t.Run("explicit container name", func(t *testing.T) {
		probe, runner := newTestProbe("linux", respond(nil))
		status, err := probe.UnitStatus(context.Background(), units.EffectiveConfig{ServiceName: "api", ContainerName: "api-1"})
		require.NoError(t, err)
		assert.Equal(t, ContainerRunning, status)
		assert.Equal(t, []string{"docker inspect -f {{.State.Status}} api-1"}, runner.Lines())
	})

	t.Run("resolved through ps", func(t *testing.T) {
		probe, runner := newTestProbe("linux", respond([]string{"f00d"}))
		status, err := probe.UnitStatus(context.Background(), units.EffectiveConfig{ComposeFile: "c.yml", ServiceName: "api"})
		require.NoError(t, err)
		assert.Equal(t, ContainerRunning, status)
		lines := runner.Lines()
		require.Len(t, lines, 2)
		assert.True(t, strings.HasSuffix(lines[0], "ps -q api"))
		assert.True(t, strings.HasSuffix(lines[1], " f00d"))
	})

	t.Run("no container", func(t *testing.T) {
		probe, runner := newTestProbe("linux", respond(nil))
		status, err := probe.UnitStatus(context.Background(), units.EffectiveConfig{ComposeFile: "c.yml", ServiceName: "api"})
		require.NoError(t, err)
		assert.Equal(t, ContainerNotFound, status)
		assert.Len(t, runner.Calls(), 1)
	})
}

func TestAPIProbe_UnreachableEngine(t *testing.T) {
	t.Setenv("DOCKER_HOST", "tcp://127.0.0.1:1")

	probe, err := NewAPIProbe(&TestLogger{})
	require.NoError(t, err)
	defer probe.Close()

	status, err := probe.EngineStatus(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, EngineOpen, status)

	containerStatus, err := probe.ContainerStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ContainerNotFound, containerStatus)
}

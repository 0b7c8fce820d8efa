package domain

import (
	"context"
	"testing"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/controller"
	"github.com/core-tools/hsu-compose/pkg/dockerstatus"
	"github.com/core-tools/hsu-compose/pkg/errors"
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

// runningProbe reports an open engine and running containers
type runningProbe struct{}

func (runningProbe) EngineStatus(ctx context.Context) (dockerstatus.EngineStatus, error) {
	return dockerstatus.EngineOpen, nil
}

func (runningProbe) ImageAvailable(ctx context.Context, imageRef string) (bool, error) {
	return true, nil
}

func (runningProbe) ContainerStatus(ctx context.Context, containerRef string) (dockerstatus.ContainerStatus, error) {
	return dockerstatus.ContainerRunning, nil
}

func (runningProbe) UnitStatus(ctx context.Context, effective units.EffectiveConfig) (dockerstatus.ContainerStatus, error) {
	return dockerstatus.ContainerRunning, nil
}

func newTestHandler(t *testing.T) (Contract, *controller.UnitController, *process.FakeRunner) {
	registry := units.NewRegistry()
	registry.SetUnits(units.NewUnits([]units.UnitConfig{
		{ID: "network", DisplayName: "Network", ComposeFile: "docker-compose.yml", ServiceName: "network", ContainerName: "net-1"},
		{ID: "api", ComposeFile: "docker-compose.yml", ServiceName: "api", ContainerName: "api-1"},
	}))

	runner := process.NewFakeRunner(func(call process.FakeCall) process.FakeResponse {
		if call.Args[0] == "exec" {
			return process.FakeResponse{Stdout: []string{"hello"}}
		}
		return process.FakeResponse{}
	})
	c := controller.NewUnitController(registry, compose.NewInvoker(runner, &TestLogger{}), runningProbe{}, nil, controller.Options{}, &TestLogger{})
	t.Cleanup(c.Close)

	return NewUnitHandler(c, &TestLogger{}), c, runner
}

func TestUnitHandler_Status(t *testing.T) {
	handler, c, _ := newTestHandler(t)
	require.NoError(t, c.RefreshSystemStatus(context.Background()))

	info, err := handler.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Open", info.Engine)
	assert.Equal(t, "Available", info.Image)
	assert.Equal(t, "network", info.Selected)
	require.Len(t, info.Units, 2)
	assert.Equal(t, UnitInfo{ID: "network", DisplayName: "Network", Status: "up", StatusText: "UP", Mode: "prod", Selected: true}, info.Units[0])
	assert.Equal(t, "UNKNOWN", info.Units[1].StatusText)
}

func TestUnitHandler_OperationSelectsUnit(t *testing.T) {
	handler, c, runner := newTestHandler(t)

	require.NoError(t, handler.Start(context.Background(), "api"))
	c.WaitIdle()

	assert.Equal(t, "api", c.Registry().Selected().ID())
	assert.Contains(t, runner.Lines(), "docker compose -f docker-compose.yml up -d api")

	err := handler.Stop(context.Background(), "ghost")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestUnitHandler_ExecReturnsNewOutput(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	first, err := handler.Exec(context.Background(), "", "echo one")
	require.NoError(t, err)
	assert.Equal(t, "> echo one\nhello\n", first)

	second, err := handler.Exec(context.Background(), "", "echo two")
	require.NoError(t, err)
	assert.Equal(t, "> echo two\nhello\n", second)
}

func TestUnitHandler_LogsAndMode(t *testing.T) {
	handler, c, _ := newTestHandler(t)

	_, err := handler.Exec(context.Background(), "", "ls")
	require.NoError(t, err)

	text, err := handler.Logs(context.Background(), "network", "exec-io")
	require.NoError(t, err)
	assert.Equal(t, "> ls\nhello\n", text)

	_, err = handler.Logs(context.Background(), "network", "bogus")
	assert.True(t, errors.IsValidationError(err))

	require.NoError(t, handler.SetMode(context.Background(), "", "dev"))
	assert.Equal(t, units.ModeDev, c.Registry().Selected().Runtime().Mode())

	err = handler.SetMode(context.Background(), "", "staging")
	assert.True(t, errors.IsValidationError(err))
}

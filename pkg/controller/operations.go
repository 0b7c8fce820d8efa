package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/logsink"
	"github.com/core-tools/hsu-compose/pkg/metrics"
	"github.com/core-tools/hsu-compose/pkg/process"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/google/uuid"
)

// BuildCompleteBanner is appended to compose-stdout after a successful rebuild
const BuildCompleteBanner = "################################\n" +
	"######## Build Complete ########\n" +
	"# You can start the Server now #\n" +
	"################################\n"

type operation struct {
	name    string
	id      string
	unit    *units.ServiceUnit
	started time.Time
	release func()
	logger  logging.Logger
	// failed marks failures that were recorded on the unit instead of returned
	failed bool
}

// beginOperation takes the selected unit's operation lock
func (c *UnitController) beginOperation(name string) (*operation, error) {
	unit := c.registry.Selected()
	if unit == nil {
		return nil, errors.NewNotFoundError("no unit selected", nil).WithContext("operation", name)
	}

	release, ok := unit.TryBeginOperation()
	if !ok {
		c.metrics.ObserveOperation(name, metrics.ResultConflict, 0)
		return nil, errors.NewConflictError("another operation is running on this unit", nil).
			WithContext("operation", name).
			WithContext("unit", unit.ID())
	}

	op := &operation{
		name:    name,
		id:      uuid.NewString(),
		unit:    unit,
		started: time.Now(),
		release: release,
		logger:  logging.NewUnitLogger(c.logger, unit.ID()),
	}
	op.logger.Infof("Operation started, operation: %s, id: %s", name, op.id)
	return op, nil
}

func (c *UnitController) endOperation(op *operation, err error) {
	op.release()

	duration := time.Since(op.started)
	result := metrics.ResultOK
	if err != nil || op.failed {
		result = metrics.ResultFailed
		op.logger.Errorf("Operation failed, operation: %s, id: %s, duration: %v, error: %v", op.name, op.id, duration, err)
	} else {
		op.logger.Infof("Operation finished, operation: %s, id: %s, duration: %v", op.name, op.id, duration)
	}
	c.metrics.ObserveOperation(op.name, result, duration)
}

type composeCall func(ctx context.Context, effective units.EffectiveConfig, onStdout, onStderr process.LineHandler) (int, error)

// runCompose streams both outputs of a compose call into the unit's compose logs
func (c *UnitController) runCompose(ctx context.Context, op *operation, call composeCall) (int, error) {
	sink := op.unit.Logs()
	code, err := call(ctx, op.unit.Effective(), sink.Writer(logsink.ComposeStdout), sink.Writer(logsink.ComposeStderr))
	if err == nil && code != 0 {
		op.logger.Warnf("Compose exited with code %d, operation: %s, id: %s", code, op.name, op.id)
	}
	return code, err
}

// Start brings the selected unit up and tails its logs.
// A non-zero exit is not an error; the refresh reports the outcome.
func (c *UnitController) Start(ctx context.Context) (err error) {
	op, err := c.beginOperation("start")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	c.setStatus(op.unit, units.StatusStarting)
	if _, err = c.runCompose(ctx, op, c.invoker.Up); err != nil {
		return err
	}
	c.StartTailLogs()
	return c.RefreshSystemStatus(ctx)
}

// Stop stops the selected unit's service and its log tail
func (c *UnitController) Stop(ctx context.Context) (err error) {
	op, err := c.beginOperation("stop")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	c.setStatus(op.unit, units.StatusDown)
	c.StopTailLogs()
	if _, err = c.runCompose(ctx, op, c.invoker.Stop); err != nil {
		return err
	}
	return c.RefreshSystemStatus(ctx)
}

func (c *UnitController) Restart(ctx context.Context) (err error) {
	op, err := c.beginOperation("restart")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	c.setStatus(op.unit, units.StatusRestarting)
	if _, err = c.runCompose(ctx, op, c.invoker.Restart); err != nil {
		return err
	}
	c.StartTailLogs()
	return c.RefreshSystemStatus(ctx)
}

// Down takes the whole compose project of the selected unit down
func (c *UnitController) Down(ctx context.Context) (err error) {
	op, err := c.beginOperation("down")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	c.StopTailLogs()
	if _, err = c.runCompose(ctx, op, c.invoker.Down); err != nil {
		return err
	}
	return c.RefreshSystemStatus(ctx)
}

// Rebuild wipes the project including volumes and builds the service
// without cache. Failures end in StatusError with the message recorded in
// the unit's last error and compose-stderr; they are not returned.
func (c *UnitController) Rebuild(ctx context.Context) (err error) {
	op, err := c.beginOperation("rebuild")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	sink := op.unit.Logs()
	sink.ClearAll()
	op.unit.Runtime().ClearLastError()
	c.setStatus(op.unit, units.StatusBuilding)

	if buildErr := c.rebuildSteps(ctx, op); buildErr != nil {
		message := buildErr.Error()
		if errors.IsExitCodeError(buildErr) {
			op.logger.Warnf("Rebuild step exited with an error, id: %s, error: %v", op.id, buildErr)
		} else {
			op.logger.Errorf("Rebuild failed, id: %s, error: %v", op.id, buildErr)
		}
		c.fail(op.unit, message)
		sink.Append(logsink.ComposeStderr, "❌ "+message+"\n")
		op.failed = true
		return nil
	}

	sink.Append(logsink.ComposeStdout, BuildCompleteBanner)
	return c.RefreshSystemStatus(ctx)
}

func (c *UnitController) rebuildSteps(ctx context.Context, op *operation) error {
	sink := op.unit.Logs()
	effective := op.unit.Effective()

	sink.Append(logsink.ComposeStdout, fmt.Sprintf("🧹 [%s] compose down -v --remove-orphans\n", effective.DisplayName))
	code, err := c.runCompose(ctx, op, c.invoker.Wipe)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.NewExitCodeError("compose down -v --remove-orphans", code)
	}

	sink.Append(logsink.ComposeStdout, fmt.Sprintf("🏗️  [%s] build --no-cache %s\n", effective.DisplayName, effective.ServiceName))
	code, err = c.runCompose(ctx, op, c.invoker.BuildNoCache)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.NewExitCodeError("compose build --no-cache", code)
	}
	return nil
}

// RemoveContainer force-removes the selected unit's container. Failures end
// in StatusError and are not returned.
func (c *UnitController) RemoveContainer(ctx context.Context) (err error) {
	op, err := c.beginOperation("remove")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	sink := op.unit.Logs()
	sink.Append(logsink.ComposeStdout, fmt.Sprintf("[REMOVE] Removing container for %s ...\n", op.unit.Effective().DisplayName))

	code, removeErr := c.runCompose(ctx, op, c.invoker.RmForce)
	if removeErr == nil && code != 0 {
		removeErr = errors.NewExitCodeError("compose rm -f", code)
	}
	if removeErr != nil {
		message := removeErr.Error()
		op.logger.Errorf("Remove failed, id: %s, error: %v", op.id, removeErr)
		sink.Append(logsink.ComposeStderr, "❌ Remove failed: "+message+"\n")
		c.fail(op.unit, message)
		op.failed = true
		return nil
	}

	sink.Append(logsink.ComposeStdout, "[REMOVE] Done.\n")
	return c.RefreshSystemStatus(ctx)
}

// Execute runs command inside the selected unit's container. Multi-line
// input is joined first; blank input does nothing. Both output streams go
// to the exec-io log and the pending input is cleared afterwards.
func (c *UnitController) Execute(ctx context.Context, command string) (err error) {
	command = compose.NormalizeCommand(command)
	if command == "" {
		return nil
	}

	op, err := c.beginOperation("exec")
	if err != nil {
		return err
	}
	defer func() { c.endOperation(op, err) }()

	sink := op.unit.Logs()
	sink.Append(logsink.ExecIO, "> "+command+"\n")

	writer := sink.Writer(logsink.ExecIO)
	code, err := c.invoker.Exec(ctx, op.unit.Effective(), command, writer, writer)
	if err != nil {
		return err
	}
	op.logger.Debugf("Exec finished, id: %s, exit code: %d", op.id, code)

	c.SetCommandInput("")
	return nil
}

// ExecutePending executes the pending command input
func (c *UnitController) ExecutePending(ctx context.Context) error {
	return c.Execute(ctx, c.CommandInput())
}

// SetMode switches the selected unit between prod and dev. An active tail
// on that unit follows the new service.
func (c *UnitController) SetMode(ctx context.Context, mode units.Mode) error {
	unit := c.registry.Selected()
	if unit == nil {
		return errors.NewNotFoundError("no unit selected", nil).WithContext("operation", "mode")
	}
	if unit.Runtime().Mode() == mode {
		return nil
	}

	unit.Runtime().SetMode(mode)
	c.logger.Infof("Mode changed, unit: %s, mode: %s", unit.ID(), mode)

	if c.isTailing(unit) {
		c.StartTailLogs()
	}
	return c.RefreshSystemStatus(ctx)
}

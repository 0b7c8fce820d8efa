package controller

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/logsink"
	"github.com/core-tools/hsu-compose/pkg/units"
)

// StartTailLogs follows the selected unit's service logs into its tail
// buffer. A running tail is stopped first, so at most one is active.
func (c *UnitController) StartTailLogs() {
	c.tailMutex.Lock()
	defer c.tailMutex.Unlock()

	c.stopTailLocked()

	unit := c.registry.Selected()
	if unit == nil {
		return
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.tailCancel = cancel
	c.tailDone = done
	c.tailUnit = unit

	effective := unit.Effective()
	writer := unit.Logs().Writer(logsink.Tail)
	c.metrics.TailStarted()
	c.logger.Infof("Tail started, unit: %s, service: %s", unit.ID(), effective.ServiceName)

	go func() {
		defer close(done)
		defer c.metrics.TailStopped()

		code, err := c.invoker.LogsFollow(ctx, effective, writer, writer)
		if err != nil {
			c.logger.Warnf("Tail failed, unit: %s, error: %v", unit.ID(), err)
			return
		}
		c.logger.Debugf("Tail ended, unit: %s, exit code: %d", unit.ID(), code)
	}()
}

// StopTailLogs cancels the active tail and waits for its process to exit
func (c *UnitController) StopTailLogs() {
	c.tailMutex.Lock()
	defer c.tailMutex.Unlock()
	c.stopTailLocked()
}

// TailActive reports whether a tail has been started and not stopped
func (c *UnitController) TailActive() bool {
	c.tailMutex.Lock()
	defer c.tailMutex.Unlock()
	return c.tailCancel != nil
}

func (c *UnitController) isTailing(unit *units.ServiceUnit) bool {
	c.tailMutex.Lock()
	defer c.tailMutex.Unlock()
	return c.tailCancel != nil && c.tailUnit == unit
}

func (c *UnitController) stopTailLocked() {
	if c.tailCancel == nil {
		return
	}

	c.tailCancel()
	<-c.tailDone
	c.logger.Infof("Tail stopped, unit: %s", unitID(c.tailUnit))

	c.tailCancel = nil
	c.tailDone = nil
	c.tailUnit = nil
}

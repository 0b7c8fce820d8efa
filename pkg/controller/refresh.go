package controller

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/dockerstatus"
	"github.com/core-tools/hsu-compose/pkg/metrics"
	"github.com/core-tools/hsu-compose/pkg/units"
)

// RefreshSystemStatus probes the engine, the image and the selected unit's
// container under the current epoch. Results are dropped silently if the
// selection changes while a probe runs.
func (c *UnitController) RefreshSystemStatus(ctx context.Context) error {
	return c.refresh(ctx, c.epoch.Load(), c.registry.Selected())
}

func (c *UnitController) refresh(ctx context.Context, epoch uint64, unit *units.ServiceUnit) error {
	engine, err := c.probe.EngineStatus(ctx)
	if err != nil {
		return c.refreshFailed(epoch, unit, err)
	}

	if engine != dockerstatus.EngineOpen {
		applied := c.applyIfCurrent(epoch, func() {
			c.setSystemState(func(state *SystemState) {
				state.Engine = engine.Text()
				state.Image = dockerstatus.ImageText(false)
			})
			if unit != nil {
				c.setStatus(unit, units.StatusUnknown)
			}
		})
		return c.refreshDone(epoch, applied)
	}

	if !c.applyIfCurrent(epoch, func() {
		c.setSystemState(func(state *SystemState) { state.Engine = engine.Text() })
	}) {
		return c.refreshDone(epoch, false)
	}

	available, err := c.probe.ImageAvailable(ctx, c.imageFor(unit))
	if err != nil {
		return c.refreshFailed(epoch, unit, err)
	}
	if !c.applyIfCurrent(epoch, func() {
		c.setSystemState(func(state *SystemState) { state.Image = dockerstatus.ImageText(available) })
	}) {
		return c.refreshDone(epoch, false)
	}

	if unit == nil {
		return c.refreshDone(epoch, true)
	}

	containerStatus, err := c.probe.UnitStatus(ctx, unit.Effective())
	if err != nil {
		return c.refreshFailed(epoch, unit, err)
	}
	applied := c.applyIfCurrent(epoch, func() {
		c.setStatus(unit, containerStatus.UnitStatus())
	})
	return c.refreshDone(epoch, applied)
}

// refreshFailed records a probe failure when the epoch is still current
func (c *UnitController) refreshFailed(epoch uint64, unit *units.ServiceUnit, cause error) error {
	applied := c.applyIfCurrent(epoch, func() {
		c.setSystemState(func(state *SystemState) {
			state.Engine = dockerstatus.EngineUnknown.Text()
			state.Image = "Unknown"
		})
		if unit != nil {
			unit.Runtime().SetLastError(cause.Error())
			c.setStatus(unit, units.StatusUnknown)
		}
	})
	if !applied {
		c.metrics.ObserveRefresh(metrics.ResultStale)
		return nil
	}
	c.metrics.ObserveRefresh(metrics.ResultFailed)
	c.logger.Warnf("Status refresh failed, unit: %s, error: %v", unitID(unit), cause)
	return cause
}

func (c *UnitController) refreshDone(epoch uint64, applied bool) error {
	if applied {
		c.metrics.ObserveRefresh(metrics.ResultOK)
	} else {
		c.logger.Debugf("Discarding stale refresh, epoch: %d, current: %d", epoch, c.epoch.Load())
		c.metrics.ObserveRefresh(metrics.ResultStale)
	}
	return nil
}

// applyIfCurrent runs apply only if epoch is still the current epoch
func (c *UnitController) applyIfCurrent(epoch uint64, apply func()) bool {
	c.applyMutex.Lock()
	defer c.applyMutex.Unlock()
	if c.epoch.Load() != epoch {
		return false
	}
	apply()
	return true
}

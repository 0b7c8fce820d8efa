package controller

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/units"
)

// SelectParameter selects param when it is a *units.ServiceUnit.
// Any other value, nil included, is ignored.
func (c *UnitController) SelectParameter(param any) error {
	unit, ok := param.(*units.ServiceUnit)
	if !ok || unit == nil {
		return nil
	}
	return c.registry.Select(unit)
}

// OpenUnit selects param if given, then refreshes and tails the selection
func (c *UnitController) OpenUnit(ctx context.Context, param any) error {
	if err := c.SelectParameter(param); err != nil {
		return err
	}
	if err := c.RefreshSystemStatus(ctx); err != nil {
		return err
	}
	c.StartTailLogs()
	return nil
}

// ClearAllLogs empties the log buffers of every registered unit
func (c *UnitController) ClearAllLogs() {
	for _, unit := range c.registry.Units() {
		unit.Logs().ClearAll()
	}
}

// ClearSelectedLogs selects param if given and empties the selection's logs
func (c *UnitController) ClearSelectedLogs(param any) error {
	if err := c.SelectParameter(param); err != nil {
		return err
	}
	if unit := c.registry.Selected(); unit != nil {
		unit.Logs().ClearAll()
	}
	return nil
}

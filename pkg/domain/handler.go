package domain

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/controller"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/logsink"
	"github.com/core-tools/hsu-compose/pkg/units"
)

func NewUnitHandler(unitController *controller.UnitController, logger logging.Logger) Contract {
	return &unitHandler{
		controller: unitController,
		logger:     logger,
	}
}

type unitHandler struct {
	controller *controller.UnitController
	logger     logging.Logger
}

func (h *unitHandler) Status(ctx context.Context) (StatusInfo, error) {
	registry := h.controller.Registry()
	selected := registry.Selected()
	system := h.controller.SystemState()

	info := StatusInfo{
		Engine:     system.Engine,
		Image:      system.Image,
		Epoch:      h.controller.Epoch(),
		TailActive: h.controller.TailActive(),
	}
	if selected != nil {
		info.Selected = selected.ID()
	}

	for _, unit := range registry.Units() {
		snapshot := unit.Runtime().Snapshot()
		info.Units = append(info.Units, UnitInfo{
			ID:          unit.ID(),
			DisplayName: unit.Config().Name(),
			Status:      string(snapshot.Status),
			StatusText:  snapshot.Status.Text(),
			Mode:        string(snapshot.Mode),
			LastError:   snapshot.LastError,
			HasError:    snapshot.HasError,
			Selected:    unit == selected,
		})
	}
	return info, nil
}

func (h *unitHandler) Select(ctx context.Context, unitID string) error {
	return h.controller.Registry().SelectByID(unitID)
}

func (h *unitHandler) Refresh(ctx context.Context) error {
	return h.controller.RefreshSystemStatus(ctx)
}

func (h *unitHandler) Start(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.Start(ctx) })
}

func (h *unitHandler) Stop(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.Stop(ctx) })
}

func (h *unitHandler) Restart(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.Restart(ctx) })
}

func (h *unitHandler) Down(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.Down(ctx) })
}

func (h *unitHandler) Rebuild(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.Rebuild(ctx) })
}

func (h *unitHandler) Remove(ctx context.Context, unitID string) error {
	return h.onUnit(unitID, func() error { return h.controller.RemoveContainer(ctx) })
}

func (h *unitHandler) Exec(ctx context.Context, unitID string, command string) (string, error) {
	if err := h.selectIfGiven(unitID); err != nil {
		return "", err
	}

	unit := h.controller.Registry().Selected()
	if unit == nil {
		return "", h.controller.Execute(ctx, command)
	}

	caret := unit.Logs().Caret(logsink.ExecIO)
	err := h.controller.Execute(ctx, command)
	output, _ := unit.Logs().Since(logsink.ExecIO, caret)
	return output, err
}

func (h *unitHandler) Logs(ctx context.Context, unitID string, stream string) (string, error) {
	parsed, err := logsink.ParseStream(stream)
	if err != nil {
		return "", err
	}

	unit, err := h.unit(unitID)
	if err != nil {
		return "", err
	}
	return unit.Logs().Text(parsed), nil
}

func (h *unitHandler) SetMode(ctx context.Context, unitID string, mode string) error {
	parsed, err := units.ParseMode(mode)
	if err != nil {
		return err
	}
	return h.onUnit(unitID, func() error { return h.controller.SetMode(ctx, parsed) })
}

func (h *unitHandler) onUnit(unitID string, operation func() error) error {
	if err := h.selectIfGiven(unitID); err != nil {
		return err
	}
	return operation()
}

func (h *unitHandler) selectIfGiven(unitID string) error {
	if unitID == "" {
		return nil
	}
	return h.controller.Registry().SelectByID(unitID)
}

// unit looks a unit up without changing the selection
func (h *unitHandler) unit(unitID string) (*units.ServiceUnit, error) {
	registry := h.controller.Registry()
	if unitID == "" {
		if selected := registry.Selected(); selected != nil {
			return selected, nil
		}
		return nil, errors.NewNotFoundError("no unit selected", nil)
	}

	unit, ok := registry.Get(unitID)
	if !ok {
		return nil, errors.NewNotFoundError("unit not found", nil).WithContext("unit", unitID)
	}
	return unit, nil
}

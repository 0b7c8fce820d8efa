package domain

import (
	"context"
)

// UnitInfo describes one registered unit
type UnitInfo struct {
	ID          string
	DisplayName string
	Status      string
	StatusText  string
	Mode        string
	LastError   string
	HasError    bool
	Selected    bool
}

// StatusInfo is a snapshot of the gateway
type StatusInfo struct {
	Engine     string
	Image      string
	Epoch      uint64
	Selected   string
	TailActive bool
	Units      []UnitInfo
}

// Contract is the remote control surface of the gateway.
// An empty unitID means the current selection; any other value selects that
// unit first.
type Contract interface {
	Status(ctx context.Context) (StatusInfo, error)
	Select(ctx context.Context, unitID string) error
	Refresh(ctx context.Context) error
	Start(ctx context.Context, unitID string) error
	Stop(ctx context.Context, unitID string) error
	Restart(ctx context.Context, unitID string) error
	Down(ctx context.Context, unitID string) error
	Rebuild(ctx context.Context, unitID string) error
	Remove(ctx context.Context, unitID string) error
	// Exec returns what the command wrote to the exec-io log
	Exec(ctx context.Context, unitID string, command string) (string, error)
	Logs(ctx context.Context, unitID string, stream string) (string, error)
	SetMode(ctx context.Context, unitID string, mode string) error
}

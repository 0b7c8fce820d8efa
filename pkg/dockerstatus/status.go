package dockerstatus

import (
	"context"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/units"
)

// EngineStatus is the state of the local Docker engine
type EngineStatus string

const (
	EngineOpen         EngineStatus = "open"
	EngineClosed       EngineStatus = "closed"
	EngineNotInstalled EngineStatus = "not_installed"
	EngineUnknown      EngineStatus = "unknown"
)

// Text is the label shown to operators
func (s EngineStatus) Text() string {
	switch s {
	case EngineOpen:
		return "Open"
	case EngineClosed:
		return "Closed"
	case EngineNotInstalled:
		return "Not Installed"
	default:
		return "Unknown"
	}
}

// ContainerStatus is the coarse state of one container
type ContainerStatus string

const (
	ContainerNotFound ContainerStatus = "not_found"
	ContainerRunning  ContainerStatus = "running"
	ContainerExited   ContainerStatus = "exited"
	ContainerUnknown  ContainerStatus = "unknown"
)

// ParseContainerState maps a docker State.Status value
func ParseContainerState(state string) ContainerStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "running":
		return ContainerRunning
	case "exited", "created", "dead":
		return ContainerExited
	default:
		return ContainerUnknown
	}
}

// UnitStatus maps a container status onto the unit lifecycle
func (s ContainerStatus) UnitStatus() units.Status {
	switch s {
	case ContainerRunning:
		return units.StatusUp
	case ContainerExited, ContainerNotFound:
		return units.StatusDown
	default:
		return units.StatusUnknown
	}
}

// ImageText is the label for an image availability result
func ImageText(available bool) string {
	if available {
		return "Available"
	}
	return "None"
}

// Probe answers status questions about the engine, images and containers.
// Errors are returned only when the probe itself could not run.
type Probe interface {
	EngineStatus(ctx context.Context) (EngineStatus, error)
	ImageAvailable(ctx context.Context, imageRef string) (bool, error)
	ContainerStatus(ctx context.Context, containerRef string) (ContainerStatus, error)
	// UnitStatus probes the explicit container name when set, else the
	// container compose reports for the effective service
	UnitStatus(ctx context.Context, effective units.EffectiveConfig) (ContainerStatus, error)
}

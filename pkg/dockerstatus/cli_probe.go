package dockerstatus

import (
	"context"
	"runtime"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/units"
)

// DesktopServiceName is the Windows service that backs Docker Desktop
const DesktopServiceName = "com.docker.service"

// CLIProbe answers status questions by running the docker CLI
type CLIProbe struct {
	invoker *compose.Invoker
	logger  logging.Logger
	goos    string
}

func NewCLIProbe(invoker *compose.Invoker, logger logging.Logger) *CLIProbe {
	return &CLIProbe{
		invoker: invoker,
		logger:  logger,
		goos:    runtime.GOOS,
	}
}

// EngineStatus runs docker info; on Windows a failing engine is looked up in
// the service manager to tell a stopped Docker Desktop from a missing one
func (p *CLIProbe) EngineStatus(ctx context.Context) (EngineStatus, error) {
	code, err := p.invoker.Runner().Run(ctx, compose.DockerExecutable, []string{"info"}, nil, nil)
	if err != nil {
		return EngineUnknown, err
	}
	if code == 0 {
		return EngineOpen, nil
	}

	if p.goos != "windows" {
		return EngineUnknown, nil
	}

	var output strings.Builder
	code, err = p.invoker.Runner().Run(ctx, "sc", []string{"query", DesktopServiceName}, func(line string) {
		output.WriteString(line)
	}, nil)
	if err != nil || code != 0 {
		p.logger.Debugf("Service query failed, service: %s, exit code: %d, error: %v", DesktopServiceName, code, err)
		return EngineNotInstalled, nil
	}
	if strings.Contains(output.String(), "RUNNING") {
		return EngineOpen, nil
	}
	return EngineClosed, nil
}

func (p *CLIProbe) ImageAvailable(ctx context.Context, imageRef string) (bool, error) {
	if imageRef == "" {
		return false, nil
	}
	code, err := p.invoker.Runner().Run(ctx, compose.DockerExecutable, []string{"image", "inspect", imageRef}, nil, nil)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func (p *CLIProbe) ContainerStatus(ctx context.Context, containerRef string) (ContainerStatus, error) {
	if containerRef == "" {
		return ContainerNotFound, nil
	}

	var state string
	code, err := p.invoker.Runner().Run(ctx, compose.DockerExecutable,
		[]string{"inspect", "-f", "{{.State.Status}}", containerRef},
		func(line string) {
			if state == "" {
				state = strings.TrimSpace(line)
			}
		}, nil)
	if err != nil {
		return ContainerUnknown, err
	}
	if code != 0 {
		return ContainerNotFound, nil
	}
	return ParseContainerState(state), nil
}

func (p *CLIProbe) UnitStatus(ctx context.Context, effective units.EffectiveConfig) (ContainerStatus, error) {
	if effective.ContainerName != "" {
		return p.ContainerStatus(ctx, effective.ContainerName)
	}

	id, err := p.invoker.PsQuiet(ctx, effective)
	if err != nil {
		return ContainerUnknown, err
	}
	if id == "" {
		return ContainerNotFound, nil
	}
	return p.ContainerStatus(ctx, id)
}

var _ Probe = (*CLIProbe)(nil)

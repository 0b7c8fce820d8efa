package dockerstatus

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// Labels set by docker compose on the containers it creates
const (
	ComposeServiceLabel = "com.docker.compose.service"
	ComposeProjectLabel = "com.docker.compose.project"
)

// APIProbe answers status questions through the Docker Engine API instead of
// spawning the CLI
type APIProbe struct {
	client *client.Client
	logger logging.Logger
}

// NewAPIProbe connects using the DOCKER_* environment with API version negotiation
func NewAPIProbe(logger logging.Logger) (*APIProbe, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.NewNetworkError("failed to create Docker client", err)
	}
	return &APIProbe{
		client: cli,
		logger: logger,
	}, nil
}

func (p *APIProbe) Close() error {
	return p.client.Close()
}

func (p *APIProbe) EngineStatus(ctx context.Context) (EngineStatus, error) {
	if _, err := p.client.Ping(ctx); err != nil {
		p.logger.Debugf("Docker ping failed: %v", err)
		if client.IsErrConnectionFailed(err) {
			return EngineClosed, nil
		}
		return EngineUnknown, nil
	}
	return EngineOpen, nil
}

func (p *APIProbe) ImageAvailable(ctx context.Context, imageRef string) (bool, error) {
	if imageRef == "" {
		return false, nil
	}
	_, _, err := p.client.ImageInspectWithRaw(ctx, imageRef)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, errors.NewNetworkError("failed to inspect image", err).WithContext("image", imageRef)
}

func (p *APIProbe) ContainerStatus(ctx context.Context, containerRef string) (ContainerStatus, error) {
	if containerRef == "" {
		return ContainerNotFound, nil
	}
	resp, err := p.client.ContainerInspect(ctx, containerRef)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			p.logger.Debugf("Container inspect failed, container: %s, error: %v", containerRef, err)
		}
		return ContainerNotFound, nil
	}
	if resp.State == nil {
		return ContainerUnknown, nil
	}
	return ParseContainerState(resp.State.Status), nil
}

// UnitStatus finds the compose container by its service and project labels
// when no explicit container name is configured
func (p *APIProbe) UnitStatus(ctx context.Context, effective units.EffectiveConfig) (ContainerStatus, error) {
	if effective.ContainerName != "" {
		return p.ContainerStatus(ctx, effective.ContainerName)
	}

	args := filters.NewArgs(filters.Arg("label", ComposeServiceLabel+"="+effective.ServiceName))
	if effective.ProjectName != "" {
		args.Add("label", ComposeProjectLabel+"="+effective.ProjectName)
	}

	containers, err := p.client.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return ContainerUnknown, errors.NewNetworkError("failed to list containers", err).WithContext("unit", effective.UnitID)
	}
	if len(containers) == 0 {
		return ContainerNotFound, nil
	}
	return ParseContainerState(containers[0].State), nil
}

var _ Probe = (*APIProbe)(nil)

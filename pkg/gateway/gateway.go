package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/control"
	"github.com/core-tools/hsu-compose/pkg/controller"
	"github.com/core-tools/hsu-compose/pkg/dockerstatus"
	"github.com/core-tools/hsu-compose/pkg/domain"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/logsink"
	"github.com/core-tools/hsu-compose/pkg/metrics"
	"github.com/core-tools/hsu-compose/pkg/process"
	"github.com/core-tools/hsu-compose/pkg/units"

	corecontrol "github.com/core-tools/hsu-core/pkg/control"
	coredomain "github.com/core-tools/hsu-core/pkg/domain"
	corelogging "github.com/core-tools/hsu-core/pkg/logging"
)

// DefaultForceShutdownTimeout bounds the graceful shutdown
const DefaultForceShutdownTimeout = 30 * time.Second

type Gateway struct {
	config     *GatewayConfig
	server     corecontrol.Server
	controller *controller.UnitController
	metrics    *metrics.Metrics
	closers    []func() error
	logger     logging.Logger

	mutex   sync.Mutex
	mirrors map[string]*logsink.FileMirror

	metricsCancel context.CancelFunc
	metricsDone   chan struct{}
}

func NewGateway(config *GatewayConfig, coreLogger corelogging.Logger, logger logging.Logger) (*Gateway, error) {
	if config == nil {
		return nil, errors.NewValidationError("configuration cannot be nil", nil)
	}

	g := &Gateway{
		config:  config,
		metrics: metrics.New(),
		logger:  logger,
		mirrors: make(map[string]*logsink.FileMirror),
	}

	runner := process.NewRunner(process.RunnerOptions{}, logger)
	invoker := compose.NewInvoker(runner, logger)

	probe, err := g.newProbe(invoker)
	if err != nil {
		return nil, err
	}

	registry := units.NewRegistry()
	g.controller = controller.NewUnitController(registry, invoker, probe, g.metrics,
		controller.Options{DefaultImage: config.Server.Image}, logger)

	// Create gRPC server
	serverOptions := corecontrol.ServerOptions{
		Port: config.Server.Port,
	}
	server, err := corecontrol.NewServer(serverOptions, coreLogger)
	if err != nil {
		return nil, errors.NewInternalError("failed to create server", err)
	}
	g.server = server

	// Register core services
	coreHandler := coredomain.NewDefaultHandler(coreLogger)
	corecontrol.RegisterGRPCServerHandler(server.GRPC(), coreHandler, coreLogger)

	// Register unit services
	unitHandler := domain.NewUnitHandler(g.controller, logger)
	control.RegisterGRPCServerHandler(server.GRPC(), unitHandler, logger)

	// Selecting the first unit triggers the initial status refresh
	registry.SetUnits(g.newUnits(config.Units))

	return g, nil
}

func (g *Gateway) newProbe(invoker *compose.Invoker) (dockerstatus.Probe, error) {
	switch g.config.Server.Probe {
	case ProbeAPI:
		probe, err := dockerstatus.NewAPIProbe(g.logger)
		if err != nil {
			return nil, err
		}
		g.closers = append(g.closers, probe.Close)
		return probe, nil
	case ProbeCLI, "":
		return dockerstatus.NewCLIProbe(invoker, g.logger), nil
	default:
		return nil, errors.NewValidationError("unknown probe: "+g.config.Server.Probe, nil)
	}
}

func (g *Gateway) Controller() *controller.UnitController {
	return g.controller
}

func (g *Gateway) Metrics() *metrics.Metrics {
	return g.metrics
}

func (g *Gateway) Start(ctx context.Context) {
	g.logger.Infof("Starting gateway...")

	g.server.Start(ctx)

	if g.config.Server.MetricsPort > 0 {
		metricsCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		g.metricsCancel = cancel
		g.metricsDone = done

		addr := fmt.Sprintf(":%d", g.config.Server.MetricsPort)
		go func() {
			defer close(done)
			if err := g.metrics.Serve(metricsCtx, addr, g.logger); err != nil {
				g.logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	g.logger.Infof("Gateway started, port: %d, units: %d", g.config.Server.Port, len(g.controller.Registry().Units()))
}

func (g *Gateway) Stop(ctx context.Context) {
	g.logger.Infof("Stopping gateway...")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultForceShutdownTimeout)
	defer cancel()

	g.server.Shutdown(ctx)

	// Stops the tail and waits for background refreshes
	g.controller.Close()

	if g.metricsCancel != nil {
		g.metricsCancel()
		<-g.metricsDone
	}

	errorCollection := errors.NewErrorCollection()
	for _, closer := range g.closers {
		errorCollection.Add(closer())
	}
	g.mutex.Lock()
	for id, mirror := range g.mirrors {
		if err := mirror.Close(); err != nil {
			errorCollection.Add(errors.NewIOError("failed to close log mirror", err).WithContext("unit", id))
		}
	}
	g.mutex.Unlock()
	if errorCollection.HasErrors() {
		g.logger.Errorf("Some resources failed to close: %v", errorCollection.Error())
	}

	g.logger.Infof("Gateway stopped")
}

// ReloadUnits replaces the registered units with configs. Units whose
// config did not change are kept together with their logs and runtime.
func (g *Gateway) ReloadUnits(configs []units.UnitConfig) {
	registry := g.controller.Registry()
	next, kept := reconcileUnits(registry.Units(), configs, g.newUnit)

	g.logger.Infof("Reloading units, total: %d, kept: %d", len(next), kept)
	registry.ReplaceUnits(next)
}

// reconcileUnits builds the unit list for configs, reusing every existing
// unit whose config is unchanged
func reconcileUnits(existing []*units.ServiceUnit, configs []units.UnitConfig, create func(units.UnitConfig) *units.ServiceUnit) ([]*units.ServiceUnit, int) {
	byID := make(map[string]*units.ServiceUnit, len(existing))
	for _, unit := range existing {
		byID[unit.ID()] = unit
	}

	next := make([]*units.ServiceUnit, 0, len(configs))
	kept := 0
	for _, config := range configs {
		if unit, ok := byID[config.ID]; ok && unit.Config() == config {
			next = append(next, unit)
			kept++
			continue
		}
		next = append(next, create(config))
	}
	return next, kept
}

// observeUnit exports log growth as metrics and logs status transitions
func (g *Gateway) observeUnit(unit *units.ServiceUnit) {
	id := unit.ID()
	unitLogger := logging.NewUnitLogger(g.logger, id)

	unit.Logs().Subscribe(func(stream logsink.Stream, caret int64) {
		g.metrics.SetLogCaret(id, string(stream), caret)
	})

	var mutex sync.Mutex
	last := unit.Runtime().Snapshot()
	unit.Runtime().Observe(func(snapshot units.RuntimeSnapshot) {
		mutex.Lock()
		previous := last
		last = snapshot
		mutex.Unlock()

		if snapshot.Status == previous.Status && snapshot.Mode == previous.Mode {
			return
		}
		if snapshot.Status.IsTransitional() {
			unitLogger.Infof("Status: %s (in progress), mode: %s", snapshot.Status.Text(), snapshot.Mode)
			return
		}
		unitLogger.Infof("Status: %s, mode: %s", snapshot.Status.Text(), snapshot.Mode)
	})
}

func (g *Gateway) newUnits(configs []units.UnitConfig) []*units.ServiceUnit {
	result := make([]*units.ServiceUnit, 0, len(configs))
	for _, config := range configs {
		result = append(result, g.newUnit(config))
	}
	return result
}

func (g *Gateway) newUnit(config units.UnitConfig) *units.ServiceUnit {
	unit := units.NewServiceUnit(config)
	g.observeUnit(unit)
	if g.config.Server.LogDir == "" {
		return unit
	}

	g.mutex.Lock()
	mirror, ok := g.mirrors[config.ID]
	if !ok {
		mirror = logsink.NewFileMirror(g.config.Server.LogDir, config.ID)
		g.mirrors[config.ID] = mirror
	}
	g.mutex.Unlock()

	unit.Logs().SetMirror(mirror)
	return unit
}

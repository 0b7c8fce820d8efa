package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/dockerstatus"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/metrics"
	"github.com/core-tools/hsu-compose/pkg/units"
)

// DefaultImage is probed when a unit does not name its own image
const DefaultImage = "deploy-gateway:latest"

type Options struct {
	DefaultImage string
}

// SystemState is the engine and image status shown next to the unit list
type SystemState struct {
	Engine string
	Image  string
}

// SystemStateObserver is notified after the system state changed
type SystemStateObserver func(state SystemState)

// UnitController drives the lifecycle of the selected unit.
//
// Every asynchronous status refresh captures the selection epoch when it
// starts and drops its results once the epoch has moved on.
type UnitController struct {
	registry *units.Registry
	invoker  *compose.Invoker
	probe    dockerstatus.Probe
	metrics  *metrics.Metrics
	options  Options
	logger   logging.Logger

	// applyMutex makes "epoch still current" checks atomic with the write they guard
	applyMutex sync.Mutex
	epoch      atomic.Uint64

	stateMutex   sync.Mutex
	system       SystemState
	commandInput string
	observers    []SystemStateObserver

	tailMutex  sync.Mutex
	tailCancel context.CancelFunc
	tailDone   chan struct{}
	tailUnit   *units.ServiceUnit

	baseCtx    context.Context
	baseCancel context.CancelFunc
	background sync.WaitGroup
}

func NewUnitController(registry *units.Registry, invoker *compose.Invoker, probe dockerstatus.Probe,
	m *metrics.Metrics, options Options, logger logging.Logger) *UnitController {
	if options.DefaultImage == "" {
		options.DefaultImage = DefaultImage
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	c := &UnitController{
		registry: registry,
		invoker:  invoker,
		probe:    probe,
		metrics:  m,
		options:  options,
		logger:   logger,
		system: SystemState{
			Engine: dockerstatus.EngineUnknown.Text(),
			Image:  "Unknown",
		},
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	registry.OnSelectionChanged(c.onSelectionChanged)
	return c
}

func (c *UnitController) Registry() *units.Registry {
	return c.registry
}

// Epoch returns the current selection epoch
func (c *UnitController) Epoch() uint64 {
	return c.epoch.Load()
}

func (c *UnitController) SystemState() SystemState {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.system
}

// OnSystemStateChanged registers an observer for engine/image status changes
func (c *UnitController) OnSystemStateChanged(observer SystemStateObserver) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.observers = append(c.observers, observer)
}

// CommandInput returns the pending exec command
func (c *UnitController) CommandInput() string {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.commandInput
}

func (c *UnitController) SetCommandInput(command string) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.commandInput = command
}

// WaitIdle blocks until background refreshes have finished
func (c *UnitController) WaitIdle() {
	c.background.Wait()
}

// Close stops the tail and waits for background work
func (c *UnitController) Close() {
	c.StopTailLogs()
	c.baseCancel()
	c.background.Wait()
}

// onSelectionChanged runs synchronously inside Registry.Select
func (c *UnitController) onSelectionChanged(previous, current *units.ServiceUnit) {
	c.StopTailLogs()
	c.SetCommandInput("")

	c.applyMutex.Lock()
	epoch := c.epoch.Add(1)
	c.applyMutex.Unlock()
	c.metrics.SetSelectionEpoch(epoch)

	c.logger.Infof("Selection changed, from: %s, to: %s, epoch: %d", unitID(previous), unitID(current), epoch)

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if err := c.refresh(c.baseCtx, epoch, current); err != nil {
			c.logger.Debugf("Background refresh failed, epoch: %d, error: %v", epoch, err)
		}
	}()
}

func (c *UnitController) setSystemState(update func(state *SystemState)) {
	c.stateMutex.Lock()
	update(&c.system)
	state := c.system
	observers := append([]SystemStateObserver(nil), c.observers...)
	c.stateMutex.Unlock()

	for _, observer := range observers {
		observer(state)
	}
}

func (c *UnitController) setStatus(unit *units.ServiceUnit, status units.Status) {
	unit.Runtime().SetStatus(status)
	c.recordStatus(unit)
}

func (c *UnitController) fail(unit *units.ServiceUnit, message string) {
	unit.Runtime().Fail(message)
	c.recordStatus(unit)
}

func (c *UnitController) recordStatus(unit *units.ServiceUnit) {
	c.metrics.SetUnitStatus(unit.ID(), string(unit.Runtime().Status()), allStatuses)
}

func (c *UnitController) imageFor(unit *units.ServiceUnit) string {
	if unit != nil && unit.Config().Image != "" {
		return unit.Config().Image
	}
	return c.options.DefaultImage
}

var allStatuses = []string{
	string(units.StatusUnknown),
	string(units.StatusStarting),
	string(units.StatusUp),
	string(units.StatusDown),
	string(units.StatusRestarting),
	string(units.StatusBuilding),
	string(units.StatusError),
}

func unitID(unit *units.ServiceUnit) string {
	if unit == nil {
		return "<none>"
	}
	return unit.ID()
}

package units

import (
	"sync"

	"github.com/core-tools/hsu-compose/pkg/logsink"
)

// ServiceUnit combines the immutable config, the runtime state and the log
// buffers of one unit. It lives for the whole process.
type ServiceUnit struct {
	config  UnitConfig
	runtime *UnitRuntime
	sink    *logsink.Sink

	// opMutex serializes mutating operations on this unit
	opMutex sync.Mutex
}

func NewServiceUnit(config UnitConfig) *ServiceUnit {
	return &ServiceUnit{
		config:  config,
		runtime: NewUnitRuntime(),
		sink:    logsink.NewSink(),
	}
}

func (u *ServiceUnit) ID() string {
	return u.config.ID
}

func (u *ServiceUnit) Config() UnitConfig {
	return u.config
}

func (u *ServiceUnit) Runtime() *UnitRuntime {
	return u.runtime
}

func (u *ServiceUnit) Logs() *logsink.Sink {
	return u.sink
}

// Effective derives the effective config from the current mode.
// It is recomputed on every call since the mode can change at any time.
func (u *ServiceUnit) Effective() EffectiveConfig {
	return u.config.Effective(u.runtime.Mode())
}

// TryBeginOperation acquires the unit's operation lock without blocking.
// The returned func releases it.
func (u *ServiceUnit) TryBeginOperation() (func(), bool) {
	if !u.opMutex.TryLock() {
		return nil, false
	}
	return u.opMutex.Unlock, true
}

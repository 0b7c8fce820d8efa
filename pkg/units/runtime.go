package units

import (
	"sync"

	"github.com/core-tools/hsu-compose/pkg/errors"
)

// Status is the live lifecycle status of a unit
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusStarting   Status = "starting"
	StatusUp         Status = "up"
	StatusDown       Status = "down"
	StatusRestarting Status = "restarting"
	StatusBuilding   Status = "building"
	StatusError      Status = "error"
)

// Text is the upper-case label shown to operators
func (s Status) Text() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	case StatusStarting:
		return "STARTING"
	case StatusRestarting:
		return "RESTARTING"
	case StatusBuilding:
		return "BUILDING"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsTransitional reports statuses set optimistically while an operation runs
func (s Status) IsTransitional() bool {
	return s == StatusStarting || s == StatusRestarting || s == StatusBuilding
}

// Mode selects which service/container pair is active
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeProd, ModeDev:
		return Mode(value), nil
	default:
		return "", errors.NewValidationError("unknown mode: "+value, nil).WithContext("mode", value)
	}
}

// RuntimeSnapshot is a consistent copy of a unit's runtime state
type RuntimeSnapshot struct {
	Status    Status
	Mode      Mode
	LastError string
	HasError  bool
}

// RuntimeObserver is notified after every runtime change, outside the lock
type RuntimeObserver func(snapshot RuntimeSnapshot)

// UnitRuntime is the mutable state of a unit. Writes come from the controller.
type UnitRuntime struct {
	mutex     sync.Mutex
	status    Status
	mode      Mode
	lastError *string
	observers []RuntimeObserver
}

func NewUnitRuntime() *UnitRuntime {
	return &UnitRuntime{
		status: StatusUnknown,
		mode:   ModeProd,
	}
}

func (r *UnitRuntime) Snapshot() RuntimeSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshotLocked()
}

func (r *UnitRuntime) Status() Status {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.status
}

func (r *UnitRuntime) Mode() Mode {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.mode
}

// LastError returns the recorded error message, if any
func (r *UnitRuntime) LastError() (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.lastError == nil {
		return "", false
	}
	return *r.lastError, true
}

func (r *UnitRuntime) SetStatus(status Status) {
	r.update(func() { r.status = status })
}

func (r *UnitRuntime) SetMode(mode Mode) {
	r.update(func() { r.mode = mode })
}

func (r *UnitRuntime) SetLastError(message string) {
	r.update(func() { r.lastError = &message })
}

func (r *UnitRuntime) ClearLastError() {
	r.update(func() { r.lastError = nil })
}

// Fail records message and moves the unit to StatusError in one change
func (r *UnitRuntime) Fail(message string) {
	r.update(func() {
		r.lastError = &message
		r.status = StatusError
	})
}

// Observe registers an observer for runtime changes
func (r *UnitRuntime) Observe(observer RuntimeObserver) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.observers = append(r.observers, observer)
}

func (r *UnitRuntime) update(mutate func()) {
	r.mutex.Lock()
	mutate()
	snapshot := r.snapshotLocked()
	observers := append([]RuntimeObserver(nil), r.observers...)
	r.mutex.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}

func (r *UnitRuntime) snapshotLocked() RuntimeSnapshot {
	snapshot := RuntimeSnapshot{
		Status: r.status,
		Mode:   r.mode,
	}
	if r.lastError != nil {
		snapshot.LastError = *r.lastError
		snapshot.HasError = true
	}
	return snapshot
}

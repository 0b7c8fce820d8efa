package units

import (
	"sync"

	"github.com/core-tools/hsu-compose/pkg/errors"
)

// SelectionListener is called synchronously when the selected unit changes.
// previous or current may be nil.
type SelectionListener func(previous, current *ServiceUnit)

// Registry is the ordered catalog of units plus the current selection.
// If the catalog is non-empty a member is always selected.
type Registry struct {
	mutex     sync.Mutex
	units     []*ServiceUnit
	selected  *ServiceUnit
	listeners []SelectionListener
}

func NewRegistry() *Registry {
	return &Registry{}
}

// NewUnits builds a ServiceUnit per config
func NewUnits(configs []UnitConfig) []*ServiceUnit {
	units := make([]*ServiceUnit, 0, len(configs))
	for _, config := range configs {
		units = append(units, NewServiceUnit(config))
	}
	return units
}

// OnSelectionChanged registers a listener for selection changes
func (r *Registry) OnSelectionChanged(listener SelectionListener) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.listeners = append(r.listeners, listener)
}

// SetUnits replaces the catalog and selects the first unit, or none
func (r *Registry) SetUnits(units []*ServiceUnit) {
	var first *ServiceUnit
	if len(units) > 0 {
		first = units[0]
	}
	r.replace(units, first)
}

// ReplaceUnits replaces the catalog but keeps the selection when a unit with
// the same id is still present
func (r *Registry) ReplaceUnits(units []*ServiceUnit) {
	r.mutex.Lock()
	selectedID := ""
	if r.selected != nil {
		selectedID = r.selected.ID()
	}
	r.mutex.Unlock()

	var next *ServiceUnit
	for _, unit := range units {
		if unit.ID() == selectedID {
			next = unit
			break
		}
	}
	if next == nil && len(units) > 0 {
		next = units[0]
	}
	r.replace(units, next)
}

func (r *Registry) replace(units []*ServiceUnit, next *ServiceUnit) {
	r.mutex.Lock()
	r.units = append([]*ServiceUnit(nil), units...)
	previous := r.selected
	r.selected = next
	listeners := r.listenersForChange(previous, next)
	r.mutex.Unlock()

	for _, listener := range listeners {
		listener(previous, next)
	}
}

// Select makes unit the current selection. Listeners run before Select
// returns, and only when the selection actually changed.
func (r *Registry) Select(unit *ServiceUnit) error {
	if unit == nil {
		return errors.NewValidationError("unit cannot be nil", nil)
	}

	r.mutex.Lock()
	if !r.containsLocked(unit) {
		r.mutex.Unlock()
		return errors.NewValidationError("unit is not registered", nil).WithContext("unit", unit.ID())
	}
	previous := r.selected
	r.selected = unit
	listeners := r.listenersForChange(previous, unit)
	r.mutex.Unlock()

	for _, listener := range listeners {
		listener(previous, unit)
	}
	return nil
}

// SelectByID selects the registered unit with the given id
func (r *Registry) SelectByID(id string) error {
	unit, ok := r.Get(id)
	if !ok {
		return errors.NewNotFoundError("unit not found", nil).WithContext("unit", id)
	}
	return r.Select(unit)
}

func (r *Registry) Selected() *ServiceUnit {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.selected
}

func (r *Registry) Units() []*ServiceUnit {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]*ServiceUnit(nil), r.units...)
}

func (r *Registry) Get(id string) (*ServiceUnit, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, unit := range r.units {
		if unit.ID() == id {
			return unit, true
		}
	}
	return nil, false
}

func (r *Registry) Contains(unit *ServiceUnit) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.containsLocked(unit)
}

func (r *Registry) containsLocked(unit *ServiceUnit) bool {
	for _, member := range r.units {
		if member == unit {
			return true
		}
	}
	return false
}

// Must be called with the lock held
func (r *Registry) listenersForChange(previous, next *ServiceUnit) []SelectionListener {
	if previous == next {
		return nil
	}
	return append([]SelectionListener(nil), r.listeners...)
}

// Package registry owns the set of tracked devices and their current status.
package registry

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/google/uuid"

	"devicemonitor/internal/models"
)

type entry struct {
	device   models.Device
	inFlight bool
}

// Registry keeps devices in insertion order. It is safe for concurrent use;
// every reader receives copies.
type Registry struct {
	mu      sync.RWMutex
	devices *orderedmap.OrderedMap[string, *entry]
	now     func() time.Time

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextW    int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices:  orderedmap.NewOrderedMap[string, *entry](),
		now:      time.Now,
		watchers: make(map[int]chan struct{}),
	}
}

// Add validates and stores a new device in the checking state.
func (r *Registry) Add(name, address string) (models.Device, error) {
	name, address, err := Validate(name, address)
	if err != nil {
		return models.Device{}, err
	}

	now := r.now().UTC()
	device := models.Device{
		ID:          uuid.NewString(),
		Name:        name,
		Address:     address,
		Status:      models.StatusChecking,
		LastChecked: now,
		AddedAt:     now,
	}

	r.mu.Lock()
	r.devices.Set(device.ID, &entry{device: device})
	r.mu.Unlock()

	r.notify()
	return device, nil
}

// Remove deletes the device with the given id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	removed := r.devices.Delete(id)
	r.mu.Unlock()

	if removed {
		r.notify()
	}
	return removed
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.devices.Get(id)
	if !ok {
		return models.Device{}, false
	}
	return e.device, true
}

// List returns all devices in insertion order.
func (r *Registry) List() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Device, 0, r.devices.Len())
	for el := r.devices.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.device)
	}
	return out
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices.Len()
}

// BeginCheck marks a probe in flight for the device and moves it to checking.
// It returns the device and its status prior to the call. ok is false when
// the device is absent or already has a probe in flight.
func (r *Registry) BeginCheck(id string) (device models.Device, previous models.Status, ok bool) {
	r.mu.Lock()
	e, found := r.devices.Get(id)
	if !found || e.inFlight {
		r.mu.Unlock()
		return models.Device{}, "", false
	}
	previous = e.device.Status
	e.inFlight = true
	e.device.Status = models.StatusChecking
	device = e.device
	r.mu.Unlock()

	r.notify()
	return device, previous, true
}

// InFlight reports whether the device currently has a probe in flight.
func (r *Registry) InFlight(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.devices.Get(id)
	return ok && e.inFlight
}

// UpdateStatus writes a probe outcome. Writes for absent ids are dropped and
// reported as false. A settled status releases the in-flight mark. LastChecked
// never moves backwards.
func (r *Registry) UpdateStatus(id string, status models.Status, checkedAt time.Time) bool {
	r.mu.Lock()
	e, ok := r.devices.Get(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	e.device.Status = status
	if status.Settled() {
		e.inFlight = false
		checkedAt = checkedAt.UTC()
		if checkedAt.After(e.device.LastChecked) {
			e.device.LastChecked = checkedAt
		}
	}
	r.mu.Unlock()

	r.notify()
	return true
}

// Subscribe returns a channel that receives a signal after registry changes.
// Signals coalesce: a slow reader sees at most one pending notification.
// The returned func releases the subscription.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	r.watchMu.Lock()
	id := r.nextW
	r.nextW++
	r.watchers[id] = ch
	r.watchMu.Unlock()

	return ch, func() {
		r.watchMu.Lock()
		delete(r.watchers, id)
		r.watchMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()

	for _, ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

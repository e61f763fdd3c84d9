package booking

import (
	"context"
	"errors"
	"sync"

	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

// memAvailability is a mutex-guarded compare-and-swap, standing in for the
// conditional upsert of availability.Store.
type memAvailability struct {
	mu      sync.Mutex
	rows    map[types.ID]availability.Availability
	lockErr error
	// beforeLock runs inside TrySetUnavailable before the swap; used to
	// simulate another booking winning between read and lock.
	beforeLock func()
}

func newMemAvailability() *memAvailability {
	return &memAvailability{rows: map[types.ID]availability.Availability{}}
}

func (m *memAvailability) Get(_ context.Context, driverID types.ID) (availability.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[driverID]; ok {
		return a, nil
	}
	return availability.Default(driverID), nil
}

func (m *memAvailability) TrySetUnavailable(_ context.Context, driverID, rideID types.ID) (bool, error) {
	if m.beforeLock != nil {
		m.beforeLock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return false, m.lockErr
	}
	if a, ok := m.rows[driverID]; ok && !a.IsAvailable {
		return false, nil
	}
	id := rideID
	m.rows[driverID] = availability.Availability{DriverID: driverID, IsAvailable: false, CurrentRideID: &id}
	return true, nil
}

func (m *memAvailability) SetAvailable(_ context.Context, driverID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[driverID] = availability.Default(driverID)
	return nil
}

func (m *memAvailability) forceLock(driverID types.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	other := types.ID("someone-else")
	m.rows[driverID] = availability.Availability{DriverID: driverID, IsAvailable: false, CurrentRideID: &other}
}

// memRideStore is a minimal ride.RideStore with optimistic updates.
type memRideStore struct {
	mu        sync.Mutex
	rides     map[types.ID]ride.Ride
	deleteErr error
	deletes   int
}

func newMemRideStore() *memRideStore {
	return &memRideStore{rides: map[types.ID]ride.Ride{}}
}

func (m *memRideStore) Create(_ context.Context, r *ride.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *memRideStore) DeletePending(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	r, ok := m.rides[id]
	if !ok || r.Status != ride.StatusPending {
		return false, nil
	}
	delete(m.rides, id)
	return true, nil
}

func (m *memRideStore) Get(_ context.Context, id types.ID) (*ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	return &r, nil
}

func (m *memRideStore) ListByPassenger(context.Context, types.ID, int) ([]*ride.Ride, error) {
	return nil, nil
}

func (m *memRideStore) ListByDriver(_ context.Context, driverID types.ID, _ int) ([]*ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ride.Ride
	for _, r := range m.rides {
		if r.DriverID == driverID {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m *memRideStore) UpdateStatus(_ context.Context, t ride.Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[t.RideID]
	if !ok || r.Status != t.From || r.StatusVersion != t.Version {
		return false, nil
	}
	r.Status = t.To
	r.StatusVersion++
	if t.FinalCost != nil {
		r.FinalCost = t.FinalCost
	}
	m.rides[t.RideID] = r
	return true, nil
}

func (m *memRideStore) ListEvents(context.Context, types.ID) ([]ride.Event, error) {
	return nil, nil
}

func (m *memRideStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rides)
}

var errStoreDown = errors.New("store down")

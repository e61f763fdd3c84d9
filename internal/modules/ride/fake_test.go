package ride

import (
	"context"
	"errors"
	"sync"

	"ridebook/internal/types"
)

// memStore mimics the optimistic UPDATE of *Store.
type memStore struct {
	mu     sync.Mutex
	rides  map[types.ID]Ride
	events []Event
}

func newMemStore() *memStore {
	return &memStore{rides: map[types.ID]Ride{}}
}

func (m *memStore) Create(_ context.Context, r *Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	m.events = append(m.events, Event{RideID: r.ID, FromStatus: StatusNone, ToStatus: r.Status})
	return nil
}

func (m *memStore) DeletePending(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != StatusPending {
		return false, nil
	}
	delete(m.rides, id)
	return true, nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListByPassenger(_ context.Context, id types.ID, limit int) ([]*Ride, error) {
	return m.filter(func(r Ride) bool { return r.PassengerID == id }, limit), nil
}

func (m *memStore) ListByDriver(_ context.Context, id types.ID, limit int) ([]*Ride, error) {
	return m.filter(func(r Ride) bool { return r.DriverID == id }, limit), nil
}

func (m *memStore) filter(keep func(Ride) bool, limit int) []*Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if keep(r) && len(out) < limit {
			r := r
			out = append(out, &r)
		}
	}
	return out
}

func (m *memStore) UpdateStatus(_ context.Context, t Transition) (bool, error) {
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
	stamp(&r, t.To, t.At)
	m.rides[t.RideID] = r
	actor := t.ActorID
	m.events = append(m.events, Event{RideID: t.RideID, FromStatus: t.From, ToStatus: t.To, ActorType: t.ActorType, ActorID: &actor})
	return true, nil
}

func (m *memStore) ListEvents(_ context.Context, id types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.RideID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// memReleaser records releases; set fail to simulate a store outage.
type memReleaser struct {
	mu       sync.Mutex
	released []types.ID
	fail     bool
}

func (m *memReleaser) SetAvailable(_ context.Context, driverID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("availability store down")
	}
	m.released = append(m.released, driverID)
	return nil
}

func (m *memReleaser) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.released)
}

type memPublisher struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (p *memPublisher) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.keys = append(p.keys, key)
	return nil
}

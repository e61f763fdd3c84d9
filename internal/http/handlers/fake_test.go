package handlers_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ridebook/internal/infra"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

// tokenVerifier treats the bearer token as a key into a fixed set of identities.
type tokenVerifier map[string]*infra.Identity

func (v tokenVerifier) VerifyIDToken(_ context.Context, token string) (*infra.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return id, nil
}

type memPricing struct {
	mu       sync.Mutex
	versions []pricing.Config
}

func (m *memPricing) Latest(context.Context) (pricing.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.versions) == 0 {
		return pricing.Config{}, pricing.ErrConfigNotFound
	}
	return m.versions[len(m.versions)-1], nil
}

func (m *memPricing) Insert(_ context.Context, c pricing.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now()
	m.versions = append(m.versions, c)
	return nil
}

func (m *memPricing) List(_ context.Context, limit int) ([]pricing.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pricing.Config
	for i := len(m.versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.versions[i])
	}
	return out, nil
}

type memRides struct {
	mu    sync.Mutex
	rides map[types.ID]ride.Ride
}

func newMemRides() *memRides { return &memRides{rides: map[types.ID]ride.Ride{}} }

func (m *memRides) Create(_ context.Context, r *ride.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *memRides) DeletePending(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rides[id]; !ok || r.Status != ride.StatusPending {
		return false, nil
	}
	delete(m.rides, id)
	return true, nil
}

func (m *memRides) Get(_ context.Context, id types.ID) (*ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	return &r, nil
}

func (m *memRides) ListByPassenger(_ context.Context, id types.ID, limit int) ([]*ride.Ride, error) {
	return m.filter(func(r ride.Ride) bool { return r.PassengerID == id }, limit), nil
}

func (m *memRides) ListByDriver(_ context.Context, id types.ID, limit int) ([]*ride.Ride, error) {
	return m.filter(func(r ride.Ride) bool { return r.DriverID == id }, limit), nil
}

func (m *memRides) filter(keep func(ride.Ride) bool, limit int) []*ride.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*ride.Ride{}
	for _, r := range m.rides {
		if keep(r) && len(out) < limit {
			r := r
			out = append(out, &r)
		}
	}
	return out
}

func (m *memRides) UpdateStatus(_ context.Context, t ride.Transition) (bool, error) {
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

func (m *memRides) ListEvents(context.Context, types.ID) ([]ride.Event, error) {
	return nil, nil
}

// memAvailability serves booking, ride release and the bookable list.
type memAvailability struct {
	mu    sync.Mutex
	state map[types.ID]availability.Availability
}

func newMemAvailability() *memAvailability {
	return &memAvailability{state: map[types.ID]availability.Availability{}}
}

func (m *memAvailability) Get(_ context.Context, id types.ID) (availability.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.state[id]; ok {
		return a, nil
	}
	return availability.Default(id), nil
}

func (m *memAvailability) TrySetUnavailable(_ context.Context, driverID, rideID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.state[driverID]; ok && !a.IsAvailable {
		return false, nil
	}
	rid := rideID
	m.state[driverID] = availability.Availability{DriverID: driverID, CurrentRideID: &rid}
	return true, nil
}

func (m *memAvailability) SetAvailable(_ context.Context, driverID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[driverID] = availability.Availability{DriverID: driverID, IsAvailable: true}
	return nil
}

func (m *memAvailability) ListByDrivers(ctx context.Context, ids []types.ID) ([]availability.Availability, error) {
	out := make([]availability.Availability, 0, len(ids))
	for _, id := range ids {
		a, _ := m.Get(ctx, id)
		out = append(out, a)
	}
	return out, nil
}

type memProfiles struct {
	mu       sync.Mutex
	profiles map[types.ID]*driver.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: map[types.ID]*driver.Profile{}}
}

func (m *memProfiles) Get(_ context.Context, id types.ID) (*driver.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Upsert(_ context.Context, id types.ID, email, phone, gender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		p = &driver.Profile{UserID: id, Documents: map[driver.DocumentType]driver.Document{}}
		m.profiles[id] = p
	}
	p.Email, p.Phone, p.Gender = email, phone, gender
	return nil
}

func (m *memProfiles) SetDocument(_ context.Context, id types.ID, doc driver.DocumentType, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return driver.ErrNotFound
	}
	d := p.Documents[doc]
	d.Paths = append(d.Paths, path)
	p.Documents[doc] = d
	return nil
}

func (m *memProfiles) ClearDocument(_ context.Context, id types.ID, doc driver.DocumentType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	paths := p.Documents[doc].Paths
	delete(p.Documents, doc)
	return paths, nil
}

func (m *memProfiles) List(_ context.Context, verifiedOnly bool) ([]*driver.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*driver.Profile{}
	for _, p := range m.profiles {
		if !verifiedOnly || p.ProfileVerified {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memProfiles) SetVerified(_ context.Context, id types.ID, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return driver.ErrNotFound
	}
	p.ProfileVerified = verified
	return nil
}

type stubSigner struct{}

func (stubSigner) SignedGetURL(_ context.Context, path string) (string, error) {
	return "https://signed.example/get/" + path, nil
}

func (stubSigner) SignedPutURL(_ context.Context, path, _ string) (string, error) {
	return "https://signed.example/put/" + path, nil
}

func (stubSigner) Delete(context.Context, string) error { return nil }

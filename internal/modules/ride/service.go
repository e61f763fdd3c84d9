// README: Ride service owns creation and every status transition, releasing the driver on terminal ones.
package ride

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"ridebook/internal/logging"
	"ridebook/internal/metrics"
	"ridebook/internal/types"
)

var (
	ErrNotFound          = errors.New("ride not found")
	ErrInvalidTransition = errors.New("invalid ride transition")
	// ErrWrongActor is an InvalidTransition caused by a caller who does not own the ride.
	ErrWrongActor       = fmt.Errorf("%w: ride belongs to another user", ErrInvalidTransition)
	ErrInvalidFinalCost = errors.New("final cost must be greater than zero")
	ErrBadRequest       = errors.New("bad request")
)

// RideStore is implemented by *Store.
type RideStore interface {
	Create(ctx context.Context, r *Ride) error
	DeletePending(ctx context.Context, id types.ID) (bool, error)
	Get(ctx context.Context, id types.ID) (*Ride, error)
	ListByPassenger(ctx context.Context, passengerID types.ID, limit int) ([]*Ride, error)
	ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]*Ride, error)
	UpdateStatus(ctx context.Context, t Transition) (bool, error)
	ListEvents(ctx context.Context, rideID types.ID) ([]Event, error)
}

// Releaser frees a driver once their ride reaches a terminal status.
type Releaser interface {
	SetAvailable(ctx context.Context, driverID types.ID) error
}

// EventPublisher is implemented by *infra.AMQPPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }

type Service struct {
	store    RideStore
	releaser Releaser
	pub      EventPublisher
	log      *logging.Logger
	now      func() time.Time
}

func NewService(store RideStore, releaser Releaser, pub EventPublisher, log *logging.Logger) *Service {
	if pub == nil {
		pub = noopPublisher{}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Service{store: store, releaser: releaser, pub: pub, log: log, now: time.Now}
}

type CreateCommand struct {
	PassengerID        types.ID
	DriverID           types.ID
	Pickup             Location
	Dropoff            Location
	DistanceKm         float64
	EstimatedCost      float64
	OfficeHoursApplied bool
	IsScheduled        bool
	ScheduledDate      *string
	ScheduledTime      *string
}

// ActorCommand names a ride and the user asking to move it.
type ActorCommand struct {
	RideID  types.ID
	ActorID types.ID
}

type CompleteCommand struct {
	RideID    types.ID
	DriverID  types.ID
	FinalCost float64
}

// Create inserts a pending ride. It does not touch availability; the booking
// flow locks the driver afterwards.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.PassengerID == "" || cmd.DriverID == "" || cmd.DistanceKm < 0 || cmd.EstimatedCost < 0 {
		return nil, ErrBadRequest
	}
	r := &Ride{
		ID:                 types.NewID(),
		PassengerID:        cmd.PassengerID,
		DriverID:           cmd.DriverID,
		Status:             StatusPending,
		Pickup:             cmd.Pickup,
		Dropoff:            cmd.Dropoff,
		DistanceKm:         cmd.DistanceKm,
		EstimatedCost:      types.Round2(cmd.EstimatedCost),
		OfficeHoursApplied: cmd.OfficeHoursApplied,
		IsScheduled:        cmd.IsScheduled,
		ScheduledDate:      cmd.ScheduledDate,
		ScheduledTime:      cmd.ScheduledTime,
		RequestedAt:        s.now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Discard removes a pending ride created by a booking that did not complete.
func (s *Service) Discard(ctx context.Context, rideID types.ID) error {
	_, err := s.store.DeletePending(ctx, rideID)
	return err
}

// Announce publishes ride.requested for a ride whose booking succeeded.
func (s *Service) Announce(ctx context.Context, r *Ride) {
	s.publish(ctx, r, StatusNone, ActorPassenger, r.PassengerID)
}

// Get loads a ride. Ids that could never have been issued are ErrNotFound
// without a store round trip.
func (s *Service) Get(ctx context.Context, rideID types.ID) (*Ride, error) {
	if !rideID.IsUUID() {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, rideID)
}

// GetFor returns the ride only to its passenger or its driver.
func (s *Service) GetFor(ctx context.Context, rideID, userID types.ID) (*Ride, error) {
	r, err := s.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.PassengerID != userID && r.DriverID != userID {
		return nil, ErrWrongActor
	}
	return r, nil
}

func (s *Service) ListByPassenger(ctx context.Context, passengerID types.ID, limit int) ([]*Ride, error) {
	return s.store.ListByPassenger(ctx, passengerID, clampLimit(limit))
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]*Ride, error) {
	return s.store.ListByDriver(ctx, driverID, clampLimit(limit))
}

// Events returns the audit trail of a ride to its passenger or driver.
func (s *Service) Events(ctx context.Context, rideID, userID types.ID) ([]Event, error) {
	if _, err := s.GetFor(ctx, rideID, userID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, rideID)
}

// step describes one lifecycle operation: who may run it, from which
// statuses, and where it leads.
type step struct {
	to    Status
	from  []Status
	actor ActorType
}

var (
	stepAccept         = step{to: StatusAccepted, from: []Status{StatusPending}, actor: ActorDriver}
	stepReject         = step{to: StatusCancelled, from: []Status{StatusPending}, actor: ActorDriver}
	stepCancel         = step{to: StatusCancelled, from: []Status{StatusPending}, actor: ActorPassenger}
	stepCancelAccepted = step{to: StatusCancelled, from: []Status{StatusAccepted, StatusInProgress}, actor: ActorDriver}
	stepStart          = step{to: StatusInProgress, from: []Status{StatusAccepted}, actor: ActorDriver}
	stepComplete       = step{to: StatusCompleted, from: []Status{StatusAccepted, StatusInProgress}, actor: ActorDriver}
)

// Accept keeps the driver locked: the ride moves on, the driver stays busy.
func (s *Service) Accept(ctx context.Context, cmd ActorCommand) (*Ride, error) {
	return s.apply(ctx, cmd.RideID, cmd.ActorID, stepAccept, nil)
}

func (s *Service) Reject(ctx context.Context, cmd ActorCommand) (*Ride, error) {
	return s.apply(ctx, cmd.RideID, cmd.ActorID, stepReject, nil)
}

// Cancel is the passenger withdrawing a ride no driver has accepted yet.
func (s *Service) Cancel(ctx context.Context, cmd ActorCommand) (*Ride, error) {
	return s.apply(ctx, cmd.RideID, cmd.ActorID, stepCancel, nil)
}

// CancelAccepted is the driver aborting a ride already accepted or underway.
func (s *Service) CancelAccepted(ctx context.Context, cmd ActorCommand) (*Ride, error) {
	return s.apply(ctx, cmd.RideID, cmd.ActorID, stepCancelAccepted, nil)
}

func (s *Service) Start(ctx context.Context, cmd ActorCommand) (*Ride, error) {
	return s.apply(ctx, cmd.RideID, cmd.ActorID, stepStart, nil)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Ride, error) {
	if math.IsNaN(cmd.FinalCost) || math.IsInf(cmd.FinalCost, 0) {
		return nil, ErrInvalidFinalCost
	}
	// Checked after rounding so nothing below a cent completes as free.
	cost := types.Round2(cmd.FinalCost)
	if cost <= 0 {
		return nil, ErrInvalidFinalCost
	}
	return s.apply(ctx, cmd.RideID, cmd.DriverID, stepComplete, &cost)
}

func (s *Service) apply(ctx context.Context, rideID, actorID types.ID, st step, finalCost *float64) (*Ride, error) {
	r, err := s.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}

	owner := r.DriverID
	if st.actor == ActorPassenger {
		owner = r.PassengerID
	}
	if actorID == "" || actorID != owner {
		return nil, ErrWrongActor
	}
	if !allowedFrom(r.Status, st) {
		return nil, fmt.Errorf("%w: ride %s is %s, cannot move to %s", ErrInvalidTransition, r.ID, r.Status, st.to)
	}

	from := r.Status
	at := s.now()
	ok, err := s.store.UpdateStatus(ctx, Transition{
		RideID:    r.ID,
		From:      from,
		To:        st.to,
		Version:   r.StatusVersion,
		FinalCost: finalCost,
		ActorType: st.actor,
		ActorID:   actorID,
		At:        at,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride %s changed concurrently", ErrInvalidTransition, r.ID)
	}
	metrics.Transitions.WithLabelValues(string(st.to)).Inc()

	r.Status = st.to
	r.StatusVersion++
	stamp(r, st.to, at)
	if finalCost != nil {
		r.FinalCost = finalCost
	}

	log := s.log.WithRide(r.ID).WithDriver(r.DriverID).WithFields(map[string]any{
		"from": string(from),
		"to":   string(st.to),
	})
	log.Info("ride transitioned")

	if IsTerminal(st.to) {
		// The ride has already moved; release even if the caller went away.
		if err := s.releaser.SetAvailable(context.WithoutCancel(ctx), r.DriverID); err != nil {
			metrics.ReleaseFailures.Inc()
			log.WithError(err).WithField("reconcile", true).Error("driver release failed after terminal transition")
			return r, fmt.Errorf("%w: ride %s is %s but driver %s was not released: %w",
				types.ErrPersistence, r.ID, r.Status, r.DriverID, err)
		}
	}

	s.publish(ctx, r, from, st.actor, actorID)
	return r, nil
}

func allowedFrom(current Status, st step) bool {
	for _, f := range st.from {
		if f == current {
			return CanTransition(current, st.to)
		}
	}
	return false
}

func stamp(r *Ride, to Status, at time.Time) {
	t := at
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &t
	case StatusInProgress:
		r.StartedAt = &t
	case StatusCompleted:
		r.CompletedAt = &t
	case StatusCancelled:
		r.CancelledAt = &t
	}
}

// RideEvent is the integration message published on every lifecycle change.
type RideEvent struct {
	RideID      types.ID  `json:"ride_id"`
	PassengerID types.ID  `json:"passenger_id"`
	DriverID    types.ID  `json:"driver_id"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	ActorType   ActorType `json:"actor_type"`
	ActorID     types.ID  `json:"actor_id"`
	FinalCost   *float64  `json:"final_cost,omitempty"`
	At          time.Time `json:"at"`
}

func routingKey(to Status) string {
	if to == StatusPending {
		return "ride.requested"
	}
	return "ride." + string(to)
}

// publish is best effort: the state change is already committed.
func (s *Service) publish(ctx context.Context, r *Ride, from Status, actor ActorType, actorID types.ID) {
	body, err := json.Marshal(RideEvent{
		RideID:      r.ID,
		PassengerID: r.PassengerID,
		DriverID:    r.DriverID,
		From:        from,
		To:          r.Status,
		ActorType:   actor,
		ActorID:     actorID,
		FinalCost:   r.FinalCost,
		At:          s.now(),
	})
	if err != nil {
		s.log.WithRide(r.ID).WithError(err).Warn("marshal ride event failed")
		return
	}
	if err := s.pub.Publish(ctx, routingKey(r.Status), body); err != nil {
		s.log.WithRide(r.ID).WithError(err).Warn("publish ride event failed")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

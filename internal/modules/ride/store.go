// README: Ride store backed by PostgreSQL; transitions and their audit events share a transaction.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Transition is one optimistic status change. It applies only while the row
// still has status From and version Version.
type Transition struct {
	RideID    types.ID
	From      Status
	To        Status
	Version   int
	FinalCost *float64
	ActorType ActorType
	ActorID   types.ID
	At        time.Time
}

const selectRide = `
	SELECT id::text, passenger_id, driver_id, status, status_version,
	       pickup_address, pickup_lat, pickup_lng,
	       dropoff_address, dropoff_lat, dropoff_lng,
	       distance_km, estimated_cost, final_cost, office_hours_applied,
	       is_scheduled, scheduled_date, scheduled_time,
	       requested_at, accepted_at, started_at, completed_at, cancelled_at
	FROM rides`

func (s *Store) Create(ctx context.Context, r *Ride) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin create ride: %w", types.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO rides (
			id, passenger_id, driver_id, status, status_version,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			distance_km, estimated_cost, office_hours_applied,
			is_scheduled, scheduled_date, scheduled_time, requested_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18
		)`,
		string(r.ID),
		string(r.PassengerID),
		string(r.DriverID),
		string(r.Status),
		r.StatusVersion,
		r.Pickup.Address, r.Pickup.Lat, r.Pickup.Lng,
		r.Dropoff.Address, r.Dropoff.Lat, r.Dropoff.Lng,
		r.DistanceKm,
		r.EstimatedCost,
		r.OfficeHoursApplied,
		r.IsScheduled,
		r.ScheduledDate,
		r.ScheduledTime,
		r.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert ride: %w", types.ErrPersistence, err)
	}
	if err := appendEvent(ctx, tx, r.ID, StatusNone, r.Status, ActorPassenger, r.PassengerID, r.RequestedAt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit create ride: %w", types.ErrPersistence, err)
	}
	return nil
}

// DeletePending physically removes a ride that is still pending, with its
// events. A missing ride is not an error, so repeating it is safe.
func (s *Store) DeletePending(ctx context.Context, id types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: begin delete ride: %w", types.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM rides WHERE id = $1 AND status = 'pending'`, string(id))
	if err != nil {
		return false, fmt.Errorf("%w: delete ride: %w", types.ErrPersistence, err)
	}
	deleted := tag.RowsAffected() == 1
	if deleted {
		if _, err := tx.Exec(ctx, `DELETE FROM ride_state_events WHERE ride_id = $1`, string(id)); err != nil {
			return false, fmt.Errorf("%w: delete ride events: %w", types.ErrPersistence, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: commit delete ride: %w", types.ErrPersistence, err)
	}
	return deleted, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, selectRide+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get ride: %w", types.ErrPersistence, err)
	}
	return r, nil
}

func (s *Store) ListByPassenger(ctx context.Context, passengerID types.ID, limit int) ([]*Ride, error) {
	return s.list(ctx, selectRide+` WHERE passenger_id = $1 ORDER BY requested_at DESC LIMIT $2`, string(passengerID), limit)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]*Ride, error) {
	return s.list(ctx, selectRide+` WHERE driver_id = $1 ORDER BY requested_at DESC LIMIT $2`, string(driverID), limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list rides: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan ride: %w", types.ErrPersistence, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rides: %w", types.ErrPersistence, err)
	}
	return out, nil
}

// UpdateStatus reports false when the row no longer matches the expected
// status and version.
func (s *Store) UpdateStatus(ctx context.Context, t Transition) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: begin transition: %w", types.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    final_cost = COALESCE($2, final_cost),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN $3 ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN $3 ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN $3 ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN $3 ELSE cancelled_at END,
		    updated_at = $3
		WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(t.To),
		t.FinalCost,
		t.At,
		string(t.RideID),
		string(t.From),
		t.Version,
	)
	if err != nil {
		return false, fmt.Errorf("%w: update ride status: %w", types.ErrPersistence, err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := appendEvent(ctx, tx, t.RideID, t.From, t.To, t.ActorType, t.ActorID, t.At); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: commit transition: %w", types.ErrPersistence, err)
	}
	return true, nil
}

func (s *Store) ListEvents(ctx context.Context, rideID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id::text, from_status, to_status, actor_type, actor_id, created_at
		FROM ride_state_events
		WHERE ride_id = $1
		ORDER BY id`, string(rideID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list ride events: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var rid string
		var actorID *string
		if err := rows.Scan(&e.ID, &rid, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ride event: %w", types.ErrPersistence, err)
		}
		e.RideID = types.ID(rid)
		if actorID != nil {
			a := types.ID(*actorID)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list ride events: %w", types.ErrPersistence, err)
	}
	return out, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, rideID types.ID, from, to Status, actor ActorType, actorID types.ID, at time.Time) error {
	var actorRef *string
	if actorID != "" {
		v := string(actorID)
		actorRef = &v
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ride_state_events (ride_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(rideID), string(from), string(to), string(actor), actorRef, at,
	)
	if err != nil {
		return fmt.Errorf("%w: append ride event: %w", types.ErrPersistence, err)
	}
	return nil
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var id, passengerID, driverID string
	err := row.Scan(
		&id, &passengerID, &driverID, &r.Status, &r.StatusVersion,
		&r.Pickup.Address, &r.Pickup.Lat, &r.Pickup.Lng,
		&r.Dropoff.Address, &r.Dropoff.Lat, &r.Dropoff.Lng,
		&r.DistanceKm, &r.EstimatedCost, &r.FinalCost, &r.OfficeHoursApplied,
		&r.IsScheduled, &r.ScheduledDate, &r.ScheduledTime,
		&r.RequestedAt, &r.AcceptedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.PassengerID = types.ID(passengerID)
	r.DriverID = types.ID(driverID)
	return &r, nil
}

// README: Availability store backed by PostgreSQL; the lock is a single conditional upsert.
package availability

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

// Get returns the driver's availability, defaulting to available when the
// driver has never been locked.
func (s *Store) Get(ctx context.Context, driverID types.ID) (Availability, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, is_available, current_ride_id::text, last_updated
		FROM driver_availability
		WHERE driver_id = $1`, string(driverID),
	)
	a, err := scanAvailability(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Default(driverID), nil
	}
	if err != nil {
		return Availability{}, fmt.Errorf("%w: get availability: %w", types.ErrPersistence, err)
	}
	return a, nil
}

// TrySetUnavailable locks the driver for rideID if and only if the driver is
// currently available (or has no row). It is one statement: the WHERE on the
// conflict branch makes the read and the write a single atomic step, so of N
// concurrent callers exactly one sees a row affected.
func (s *Store) TrySetUnavailable(ctx context.Context, driverID, rideID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO driver_availability (driver_id, is_available, current_ride_id, last_updated)
		VALUES ($1, false, $2, NOW())
		ON CONFLICT (driver_id) DO UPDATE
		SET is_available = false,
		    current_ride_id = EXCLUDED.current_ride_id,
		    last_updated = NOW()
		WHERE driver_availability.is_available = true`,
		string(driverID), string(rideID),
	)
	if err != nil {
		return false, fmt.Errorf("%w: lock driver: %w", types.ErrPersistence, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetAvailable releases the driver unconditionally. Calling it twice is harmless.
func (s *Store) SetAvailable(ctx context.Context, driverID types.ID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_availability (driver_id, is_available, current_ride_id, last_updated)
		VALUES ($1, true, NULL, NOW())
		ON CONFLICT (driver_id) DO UPDATE
		SET is_available = true,
		    current_ride_id = NULL,
		    last_updated = NOW()`,
		string(driverID),
	)
	if err != nil {
		return fmt.Errorf("%w: release driver: %w", types.ErrPersistence, err)
	}
	return nil
}

// ListByDrivers returns availability for each id, defaulted when absent,
// in the order given.
func (s *Store) ListByDrivers(ctx context.Context, driverIDs []types.ID) ([]Availability, error) {
	if len(driverIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		ids[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT driver_id, is_available, current_ride_id::text, last_updated
		FROM driver_availability
		WHERE driver_id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list availability: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	found := make(map[types.ID]Availability, len(driverIDs))
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan availability: %w", types.ErrPersistence, err)
		}
		found[a.DriverID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list availability: %w", types.ErrPersistence, err)
	}

	out := make([]Availability, 0, len(driverIDs))
	for _, id := range driverIDs {
		if a, ok := found[id]; ok {
			out = append(out, a)
			continue
		}
		out = append(out, Default(id))
	}
	return out, nil
}

func scanAvailability(row pgx.Row) (Availability, error) {
	var (
		driverID string
		rideID   *string
		updated  time.Time
		a        Availability
	)
	if err := row.Scan(&driverID, &a.IsAvailable, &rideID, &updated); err != nil {
		return Availability{}, err
	}
	a.DriverID = types.ID(driverID)
	a.LastUpdated = &updated
	if rideID != nil {
		r := types.ID(*rideID)
		a.CurrentRideID = &r
	}
	return a, nil
}

// README: Pricing store backed by PostgreSQL (append-only versions, newest wins).
package pricing

import (
	"context"
	"errors"
	"fmt"

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

const selectConfig = `
	SELECT id, price_per_km, driver_cost_per_ride, petrol_price_per_liter,
	       office_hours_multiplier, updated_by, created_at
	FROM pricing_config`

func (s *Store) Latest(ctx context.Context) (Config, error) {
	row := s.db.QueryRow(ctx, selectConfig+` ORDER BY created_at DESC LIMIT 1`)
	c, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, ErrConfigNotFound
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: latest pricing: %w", types.ErrPersistence, err)
	}
	return c, nil
}

func (s *Store) Insert(ctx context.Context, c Config) error {
	var updatedBy *string
	if c.UpdatedBy != nil {
		v := string(*c.UpdatedBy)
		updatedBy = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_config (
			id, price_per_km, driver_cost_per_ride, petrol_price_per_liter,
			office_hours_multiplier, updated_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(c.ID),
		c.PricePerKm,
		c.DriverCostPerRide,
		c.PetrolPricePerLiter,
		c.OfficeHoursMultiplier,
		updatedBy,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert pricing: %w", types.ErrPersistence, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]Config, error) {
	rows, err := s.db.Query(ctx, selectConfig+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list pricing: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	var out []Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan pricing: %w", types.ErrPersistence, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list pricing: %w", types.ErrPersistence, err)
	}
	return out, nil
}

func scanConfig(row pgx.Row) (Config, error) {
	var c Config
	var id string
	var updatedBy *string
	err := row.Scan(
		&id, &c.PricePerKm, &c.DriverCostPerRide, &c.PetrolPricePerLiter,
		&c.OfficeHoursMultiplier, &updatedBy, &c.CreatedAt,
	)
	if err != nil {
		return Config{}, err
	}
	c.ID = types.ID(id)
	if updatedBy != nil {
		u := types.ID(*updatedBy)
		c.UpdatedBy = &u
	}
	return c, nil
}

// README: Pricing service reads the current version, quotes rides and records new versions.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"ridebook/internal/logging"
	"ridebook/internal/types"
)

var (
	ErrConfigNotFound  = errors.New("pricing configuration not found")
	ErrInvalidDistance = errors.New("distance must be zero or positive")
	ErrInvalidConfig   = errors.New("invalid pricing configuration")
)

// ConfigStore owns "fetch latest": versions are append-only.
type ConfigStore interface {
	Latest(ctx context.Context) (Config, error)
	Insert(ctx context.Context, c Config) error
	List(ctx context.Context, limit int) ([]Config, error)
}

// ConfigCache holds the latest version between requests. It is optional.
// Set must keep whichever version has the later CreatedAt.
type ConfigCache interface {
	Get(ctx context.Context) (Config, bool, error)
	Set(ctx context.Context, c Config) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	store    ConfigStore
	cache    ConfigCache
	loc      *time.Location
	now      func() time.Time
	validate *validator.Validate
	log      *logging.Logger
}

func NewService(store ConfigStore, cache ConfigCache, loc *time.Location, log *logging.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		store:    store,
		cache:    cache,
		loc:      loc,
		now:      time.Now,
		validate: validator.New(),
		log:      log,
	}
}

type UpdateCommand struct {
	AdminID               types.ID
	PricePerKm            *float64
	DriverCostPerRide     *float64
	PetrolPricePerLiter   *float64
	OfficeHoursMultiplier *float64
}

// Current returns the latest version, fetched once per call. Cache failures
// are logged and fall through to the store.
func (s *Service) Current(ctx context.Context) (Config, error) {
	if s.cache != nil {
		c, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.WithError(err).Warn("pricing cache read failed")
		} else if ok {
			return c, nil
		}
	}

	c, err := s.store.Latest(ctx)
	if err != nil {
		return Config{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			s.log.WithError(err).Warn("pricing cache write failed")
		}
	}
	return c, nil
}

// Quote prices a ride of distanceKm against the current version at the
// current time in the office-hours timezone.
func (s *Service) Quote(ctx context.Context, distanceKm float64) (Calculation, error) {
	if distanceKm < 0 {
		return Calculation{}, ErrInvalidDistance
	}
	c, err := s.Current(ctx)
	if err != nil {
		return Calculation{}, err
	}
	return CalculateRideCost(distanceKm, c, s.now().In(s.loc))
}

// Update merges the given fields onto the current version and stores the
// result as a new version. Without a current version every field is required.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (Config, error) {
	base, err := s.store.Latest(ctx)
	switch {
	case errors.Is(err, ErrConfigNotFound):
		if cmd.PricePerKm == nil || cmd.DriverCostPerRide == nil ||
			cmd.PetrolPricePerLiter == nil || cmd.OfficeHoursMultiplier == nil {
			return Config{}, err
		}
	case err != nil:
		return Config{}, err
	}

	next := Config{
		ID:                    types.NewID(),
		PricePerKm:            pick(cmd.PricePerKm, base.PricePerKm),
		DriverCostPerRide:     pick(cmd.DriverCostPerRide, base.DriverCostPerRide),
		PetrolPricePerLiter:   pick(cmd.PetrolPricePerLiter, base.PetrolPricePerLiter),
		OfficeHoursMultiplier: pick(cmd.OfficeHoursMultiplier, base.OfficeHoursMultiplier),
		CreatedAt:             s.now().Truncate(time.Microsecond),
	}
	if cmd.AdminID != "" {
		admin := cmd.AdminID
		next.UpdatedBy = &admin
	}
	if err := s.validate.Struct(next); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := s.store.Insert(ctx, next); err != nil {
		return Config{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, next); err != nil {
			s.log.WithError(err).Warn("pricing cache write failed")
			if err := s.cache.Invalidate(ctx); err != nil {
				s.log.WithError(err).Warn("pricing cache invalidate failed")
			}
		}
	}
	s.log.WithFields(map[string]any{
		"pricing_id": string(next.ID),
		"admin_id":   string(cmd.AdminID),
	}).Info("pricing configuration updated")
	return next, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]Config, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.List(ctx, limit)
}

func pick(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

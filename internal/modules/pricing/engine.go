// README: Pure ride cost calculation (distance, pricing version, timestamp).
package pricing

import (
	"time"

	"ridebook/internal/types"
)

// IsOfficeHours reports whether t, in its own location, falls on a weekday
// between 09:00 inclusive and 18:00 exclusive.
func IsOfficeHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= officeHoursStart && h < officeHoursEnd
}

// CalculateRideCost has no side effects; callers fix now (already converted to
// the office-hours timezone) to get reproducible results.
func CalculateRideCost(distanceKm float64, cfg Config, now time.Time) (Calculation, error) {
	if distanceKm < 0 {
		return Calculation{}, ErrInvalidDistance
	}

	applied := IsOfficeHours(now)
	multiplier := 1.0
	if applied {
		multiplier = cfg.OfficeHoursMultiplier
	}

	base := distanceKm * cfg.PricePerKm
	driver := cfg.DriverCostPerRide
	return Calculation{
		DistanceKm:            distanceKm,
		BaseCost:              base,
		DriverCost:            driver,
		OfficeHoursMultiplier: multiplier,
		OfficeHoursApplied:    applied,
		TotalCost:             types.Round2((base + driver) * multiplier),
	}, nil
}

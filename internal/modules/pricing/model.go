// README: Pricing configuration versions and the derived ride calculation.
package pricing

import (
	"time"

	"ridebook/internal/types"
)

// Config is one immutable version of the pricing settings. PetrolPricePerLiter
// is informational and does not take part in the cost formula.
type Config struct {
	ID                    types.ID  `json:"id"`
	PricePerKm            float64   `json:"price_per_km" validate:"gte=0"`
	DriverCostPerRide     float64   `json:"driver_cost_per_ride" validate:"gte=0"`
	PetrolPricePerLiter   float64   `json:"petrol_price_per_liter" validate:"gte=0"`
	OfficeHoursMultiplier float64   `json:"office_hours_multiplier" validate:"gte=1"`
	UpdatedBy             *types.ID `json:"updated_by,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// Calculation is derived per request and never persisted.
// OfficeHoursMultiplier holds the multiplier actually applied (1 outside office hours).
type Calculation struct {
	DistanceKm            float64 `json:"distance_km"`
	BaseCost              float64 `json:"base_cost"`
	DriverCost            float64 `json:"driver_cost"`
	OfficeHoursMultiplier float64 `json:"office_hours_multiplier"`
	OfficeHoursApplied    bool    `json:"office_hours_applied"`
	TotalCost             float64 `json:"total_cost"`
}

// Office hours: Monday to Friday, [09:00, 18:00) local time. Not configurable.
const (
	officeHoursStart = 9
	officeHoursEnd   = 18
)

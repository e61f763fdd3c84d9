// README: Per-driver availability flag plus the ride currently holding it.
package availability

import (
	"time"

	"ridebook/internal/types"
)

// Availability rows are created on first lock or release and never deleted.
// IsAvailable is false exactly when CurrentRideID is set.
type Availability struct {
	DriverID      types.ID   `json:"driver_id"`
	IsAvailable   bool       `json:"is_available"`
	CurrentRideID *types.ID  `json:"current_ride_id,omitempty"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}

// Default is what Get returns for a driver with no row yet.
func Default(driverID types.ID) Availability {
	return Availability{DriverID: driverID, IsAvailable: true}
}

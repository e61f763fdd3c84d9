// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"time"

	"ridebook/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type ActorType string

const (
	ActorPassenger ActorType = "passenger"
	ActorDriver    ActorType = "driver"
)

type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (l Location) Point() types.Point {
	return types.Point{Lat: l.Lat, Lng: l.Lng}
}

type Ride struct {
	ID                 types.ID   `json:"id"`
	PassengerID        types.ID   `json:"passenger_id"`
	DriverID           types.ID   `json:"driver_id"`
	Status             Status     `json:"status"`
	StatusVersion      int        `json:"-"`
	Pickup             Location   `json:"pickup"`
	Dropoff            Location   `json:"dropoff"`
	DistanceKm         float64    `json:"distance_km"`
	EstimatedCost      float64    `json:"estimated_cost"`
	FinalCost          *float64   `json:"final_cost,omitempty"`
	OfficeHoursApplied bool       `json:"office_hours_applied"`
	IsScheduled        bool       `json:"is_scheduled"`
	ScheduledDate      *string    `json:"scheduled_date,omitempty"`
	ScheduledTime      *string    `json:"scheduled_time,omitempty"`
	RequestedAt        time.Time  `json:"requested_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

type Event struct {
	ID         int64     `json:"id"`
	RideID     types.ID  `json:"ride_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ActorType  ActorType `json:"actor_type"`
	ActorID    *types.ID `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

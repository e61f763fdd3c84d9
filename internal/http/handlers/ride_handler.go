// README: Ride handlers: passenger booking/cancel, driver lifecycle actions and ride queries.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/maps"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type RideHandler struct {
	rides     *ride.Service
	booking   *booking.Service
	drivers   *driver.Service
	distances maps.Distancer
	log       *logging.Logger
}

func NewRideHandler(rides *ride.Service, booking *booking.Service, drivers *driver.Service, distances maps.Distancer, log *logging.Logger) *RideHandler {
	return &RideHandler{rides: rides, booking: booking, drivers: drivers, distances: distances, log: log}
}

type locationReq struct {
	Address string  `json:"address" binding:"required"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (l locationReq) location() ride.Location {
	return ride.Location{Address: l.Address, Lat: l.Lat, Lng: l.Lng}
}

type bookReq struct {
	DriverID      string      `json:"driver_id" binding:"required"`
	Pickup        locationReq `json:"pickup" binding:"required"`
	Dropoff       locationReq `json:"dropoff" binding:"required"`
	DistanceKm    *float64    `json:"distance_km"`
	IsScheduled   bool        `json:"is_scheduled"`
	ScheduledDate *string     `json:"scheduled_date"`
	ScheduledTime *string     `json:"scheduled_time"`
}

// Book quotes the ride server-side and books it for the calling passenger.
// Only drivers an admin has verified can be booked.
func (h *RideHandler) Book(c *gin.Context) {
	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid booking request")
		return
	}
	if req.IsScheduled && (req.ScheduledDate == nil || req.ScheduledTime == nil) {
		writeError(c, http.StatusBadRequest, "scheduled rides need scheduled_date and scheduled_time")
		return
	}
	pickup, dropoff := req.Pickup.location(), req.Dropoff.location()
	from, to := pickup.Point(), dropoff.Point()
	distance, ok := resolveDistance(c, h.distances, req.DistanceKm, &from, &to)
	if !ok {
		return
	}

	driverID := types.ID(req.DriverID)
	if err := h.drivers.EnsureVerified(c.Request.Context(), driverID); err != nil {
		writeServiceError(c, h.log, err)
		return
	}

	r, calc, err := h.booking.QuoteAndBook(c.Request.Context(), booking.QuoteAndBookCommand{
		PassengerID:   middleware.CallerUID(c),
		DriverID:      driverID,
		Pickup:        pickup,
		Dropoff:       dropoff,
		DistanceKm:    distance,
		IsScheduled:   req.IsScheduled,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ride": r, "calculation": calc})
}

// Get shows a ride to its passenger or driver; admins see every ride.
func (h *RideHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	var (
		r   *ride.Ride
		err error
	)
	if middleware.CallerRole(c) == infra.RoleAdmin {
		r, err = h.rides.Get(c.Request.Context(), id)
	} else {
		r, err = h.rides.GetFor(c.Request.Context(), id, middleware.CallerUID(c))
	}
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Events(c *gin.Context) {
	events, err := h.rides.Events(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

func (h *RideHandler) ListMineAsPassenger(c *gin.Context) {
	list, err := h.rides.ListByPassenger(c.Request.Context(), middleware.CallerUID(c), queryLimit(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": list})
}

func (h *RideHandler) ListMineAsDriver(c *gin.Context) {
	list, err := h.rides.ListByDriver(c.Request.Context(), middleware.CallerUID(c), queryLimit(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": list})
}

type actorAction func(ctx context.Context, cmd ride.ActorCommand) (*ride.Ride, error)

func (h *RideHandler) act(c *gin.Context, action actorAction) {
	r, err := action(c.Request.Context(), ride.ActorCommand{
		RideID:  types.ID(c.Param("id")),
		ActorID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Cancel(c *gin.Context) { h.act(c, h.rides.Cancel) }
func (h *RideHandler) Accept(c *gin.Context) { h.act(c, h.rides.Accept) }
func (h *RideHandler) Reject(c *gin.Context) { h.act(c, h.rides.Reject) }
func (h *RideHandler) Start(c *gin.Context)  { h.act(c, h.rides.Start) }
func (h *RideHandler) Abort(c *gin.Context)  { h.act(c, h.rides.CancelAccepted) }

type completeReq struct {
	FinalCost float64 `json:"final_cost"`
}

func (h *RideHandler) Complete(c *gin.Context) {
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:    types.ID(c.Param("id")),
		DriverID:  middleware.CallerUID(c),
		FinalCost: req.FinalCost,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

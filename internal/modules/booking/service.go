// README: Booking service checks the driver, creates the ride, locks the driver and undoes the ride on failure.
package booking

import (
	"context"
	"errors"
	"fmt"

	"ridebook/internal/logging"
	"ridebook/internal/metrics"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

var (
	ErrDriverUnavailable = errors.New("driver is not available")
	ErrBookingFailed     = errors.New("booking failed")
)

type Availability interface {
	Get(ctx context.Context, driverID types.ID) (availability.Availability, error)
	TrySetUnavailable(ctx context.Context, driverID, rideID types.ID) (bool, error)
}

// Rides is implemented by *ride.Service.
type Rides interface {
	Create(ctx context.Context, cmd ride.CreateCommand) (*ride.Ride, error)
	Discard(ctx context.Context, rideID types.ID) error
	Announce(ctx context.Context, r *ride.Ride)
}

// Quoter is implemented by *pricing.Service.
type Quoter interface {
	Quote(ctx context.Context, distanceKm float64) (pricing.Calculation, error)
}

type Service struct {
	avail  Availability
	rides  Rides
	quoter Quoter
	log    *logging.Logger
}

func NewService(avail Availability, rides Rides, quoter Quoter, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{avail: avail, rides: rides, quoter: quoter, log: log}
}

type BookCommand struct {
	PassengerID        types.ID
	DriverID           types.ID
	Pickup             ride.Location
	Dropoff            ride.Location
	DistanceKm         float64
	EstimatedCost      float64
	OfficeHoursApplied bool
	IsScheduled        bool
	ScheduledDate      *string
	ScheduledTime      *string
}

type QuoteAndBookCommand struct {
	PassengerID   types.ID
	DriverID      types.ID
	Pickup        ride.Location
	Dropoff       ride.Location
	DistanceKm    float64
	IsScheduled   bool
	ScheduledDate *string
	ScheduledTime *string
}

// QuoteAndBook prices the ride with the current configuration, then books it.
func (s *Service) QuoteAndBook(ctx context.Context, cmd QuoteAndBookCommand) (*ride.Ride, pricing.Calculation, error) {
	calc, err := s.quoter.Quote(ctx, cmd.DistanceKm)
	if err != nil {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return nil, pricing.Calculation{}, err
	}
	r, err := s.Book(ctx, BookCommand{
		PassengerID:        cmd.PassengerID,
		DriverID:           cmd.DriverID,
		Pickup:             cmd.Pickup,
		Dropoff:            cmd.Dropoff,
		DistanceKm:         cmd.DistanceKm,
		EstimatedCost:      calc.TotalCost,
		OfficeHoursApplied: calc.OfficeHoursApplied,
		IsScheduled:        cmd.IsScheduled,
		ScheduledDate:      cmd.ScheduledDate,
		ScheduledTime:      cmd.ScheduledTime,
	})
	if err != nil {
		return nil, pricing.Calculation{}, err
	}
	return r, calc, nil
}

// Book creates a pending ride and locks its driver. Either both happen or
// neither is visible: when the lock fails the ride is deleted again.
func (s *Service) Book(ctx context.Context, cmd BookCommand) (*ride.Ride, error) {
	log := s.log.WithDriver(cmd.DriverID).WithField("passenger_id", string(cmd.PassengerID))

	// Fast path; the lock below is what actually decides.
	a, err := s.avail.Get(ctx, cmd.DriverID)
	if err != nil {
		metrics.Bookings.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: read availability: %w", ErrBookingFailed, err)
	}
	if !a.IsAvailable {
		metrics.Bookings.WithLabelValues("driver_unavailable").Inc()
		return nil, ErrDriverUnavailable
	}

	r, err := s.rides.Create(ctx, ride.CreateCommand{
		PassengerID:        cmd.PassengerID,
		DriverID:           cmd.DriverID,
		Pickup:             cmd.Pickup,
		Dropoff:            cmd.Dropoff,
		DistanceKm:         cmd.DistanceKm,
		EstimatedCost:      cmd.EstimatedCost,
		OfficeHoursApplied: cmd.OfficeHoursApplied,
		IsScheduled:        cmd.IsScheduled,
		ScheduledDate:      cmd.ScheduledDate,
		ScheduledTime:      cmd.ScheduledTime,
	})
	if errors.Is(err, ride.ErrBadRequest) {
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err != nil {
		metrics.Bookings.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: create ride: %w", ErrBookingFailed, err)
	}
	log = log.WithRide(r.ID)

	locked, lockErr := s.avail.TrySetUnavailable(ctx, cmd.DriverID, r.ID)
	if lockErr == nil && locked {
		metrics.Bookings.WithLabelValues("success").Inc()
		log.Info("ride booked")
		s.rides.Announce(ctx, r)
		return r, nil
	}

	if err := s.compensate(ctx, r.ID, log); err != nil {
		metrics.Bookings.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: rollback of ride %s failed: %w", ErrBookingFailed, r.ID, err)
	}
	if lockErr != nil {
		metrics.Bookings.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: lock driver: %w", ErrBookingFailed, lockErr)
	}
	metrics.Bookings.WithLabelValues("driver_unavailable").Inc()
	log.Info("driver taken by a concurrent booking")
	return nil, ErrDriverUnavailable
}

// compensate deletes the pending ride. It runs even if the request context is
// already cancelled. A failure leaves an orphaned pending ride that must be
// reconciled out of band.
func (s *Service) compensate(ctx context.Context, rideID types.ID, log *logging.Logger) error {
	if err := s.rides.Discard(context.WithoutCancel(ctx), rideID); err != nil {
		metrics.Compensations.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("reconcile", true).Error("compensating ride delete failed")
		return err
	}
	metrics.Compensations.WithLabelValues("succeeded").Inc()
	return nil
}

package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"ridebook/internal/logging"
	"ridebook/internal/types"
)

// Distancer returns the ride distance between two points in kilometres.
type Distancer interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// DistanceKm returns the driving distance of the first route found.
func (s *RouteService) DistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

// Haversine is the great-circle Distancer used when no API key is configured.
type Haversine struct{}

func (Haversine) DistanceKm(_ context.Context, from, to types.Point) (float64, error) {
	return HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng), nil
}

// Fallback asks Primary first and uses the great-circle distance when it fails.
type Fallback struct {
	Primary Distancer
	Log     *logging.Logger
}

func (f Fallback) DistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	if f.Primary != nil {
		km, err := f.Primary.DistanceKm(ctx, from, to)
		if err == nil {
			return km, nil
		}
		if f.Log != nil {
			f.Log.WithError(err).Warn("route distance unavailable, using great-circle distance")
		}
	}
	return Haversine{}.DistanceKm(ctx, from, to)
}

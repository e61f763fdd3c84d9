// README: Pricing handlers: current configuration, quotes and admin updates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/logging"
	"ridebook/internal/maps"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type PricingHandler struct {
	pricing   *pricing.Service
	distances maps.Distancer
	log       *logging.Logger
}

func NewPricingHandler(svc *pricing.Service, distances maps.Distancer, log *logging.Logger) *PricingHandler {
	return &PricingHandler{pricing: svc, distances: distances, log: log}
}

type pointReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p *pointReq) point() *types.Point {
	if p == nil {
		return nil
	}
	return &types.Point{Lat: p.Lat, Lng: p.Lng}
}

type quoteReq struct {
	DistanceKm *float64  `json:"distance_km"`
	Pickup     *pointReq `json:"pickup"`
	Dropoff    *pointReq `json:"dropoff"`
}

func (h *PricingHandler) Current(c *gin.Context) {
	cfg, err := h.pricing.Current(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	distance, ok := resolveDistance(c, h.distances, req.DistanceKm, req.Pickup.point(), req.Dropoff.point())
	if !ok {
		return
	}
	calc, err := h.pricing.Quote(c.Request.Context(), distance)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, calc)
}

type updatePricingReq struct {
	PricePerKm            *float64 `json:"price_per_km"`
	DriverCostPerRide     *float64 `json:"driver_cost_per_ride"`
	PetrolPricePerLiter   *float64 `json:"petrol_price_per_liter"`
	OfficeHoursMultiplier *float64 `json:"office_hours_multiplier"`
}

func (h *PricingHandler) Update(c *gin.Context) {
	var req updatePricingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PricePerKm == nil && req.DriverCostPerRide == nil && req.PetrolPricePerLiter == nil && req.OfficeHoursMultiplier == nil {
		writeError(c, http.StatusBadRequest, "no fields to update")
		return
	}
	cfg, err := h.pricing.Update(c.Request.Context(), pricing.UpdateCommand{
		AdminID:               middleware.CallerUID(c),
		PricePerKm:            req.PricePerKm,
		DriverCostPerRide:     req.DriverCostPerRide,
		PetrolPricePerLiter:   req.PetrolPricePerLiter,
		OfficeHoursMultiplier: req.OfficeHoursMultiplier,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, cfg)
}

func (h *PricingHandler) History(c *gin.Context) {
	list, err := h.pricing.History(c.Request.Context(), queryLimit(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"versions": list})
}

// resolveDistance prefers an explicit distance and otherwise asks the
// distance provider. It writes the 400 itself when neither is usable.
func resolveDistance(c *gin.Context, distances maps.Distancer, km *float64, from, to *types.Point) (float64, bool) {
	for _, p := range []*types.Point{from, to} {
		if p != nil && !maps.ValidPoint(p.Lat, p.Lng) {
			writeError(c, http.StatusBadRequest, "coordinates out of range")
			return 0, false
		}
	}
	if km != nil {
		if *km < 0 {
			writeError(c, http.StatusBadRequest, pricing.ErrInvalidDistance.Error())
			return 0, false
		}
		return *km, true
	}
	if from == nil || to == nil || distances == nil {
		writeError(c, http.StatusBadRequest, "distance_km or pickup and dropoff coordinates are required")
		return 0, false
	}
	d, err := distances.DistanceKm(c.Request.Context(), *from, *to)
	if err != nil {
		writeError(c, http.StatusBadGateway, "distance lookup failed")
		return 0, false
	}
	return types.Round2(d), true
}

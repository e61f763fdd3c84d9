// README: API gateway; builds the gin engine, middleware chain and role-scoped route groups.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridebook/internal/http/handlers"
	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/maps"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

type ServerDeps struct {
	Pricing      *pricing.Service
	Rides        *ride.Service
	Booking      *booking.Service
	Drivers      *driver.Service
	Availability handlers.AvailabilityReader
	Distancer    maps.Distancer
	Verifier     infra.TokenVerifier
	Log          *logging.Logger
	CORSOrigins  []string
}

type Server struct {
	pricing  *handlers.PricingHandler
	rides    *handlers.RideHandler
	drivers  *handlers.DriverHandler
	verifier infra.TokenVerifier
	log      *logging.Logger
	origins  []string
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		pricing:  handlers.NewPricingHandler(deps.Pricing, deps.Distancer, log),
		rides:    handlers.NewRideHandler(deps.Rides, deps.Booking, deps.Drivers, deps.Distancer, log),
		drivers:  handlers.NewDriverHandler(deps.Drivers, deps.Availability, log),
		verifier: deps.Verifier,
		log:      log,
		origins:  deps.CORSOrigins,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(s.log),
		middleware.Logging(s.log),
		middleware.Prometheus(),
	)
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(s.verifier))
	api.GET("/pricing/current", s.pricing.Current)
	api.POST("/pricing/quote", s.pricing.Quote)
	api.GET("/drivers/bookable", s.drivers.Bookable)
	api.GET("/rides/:id", s.rides.Get)
	api.GET("/rides/:id/events", s.rides.Events)

	passenger := api.Group("", middleware.RequireRole(infra.RolePassenger))
	passenger.POST("/rides", s.rides.Book)
	passenger.POST("/rides/:id/cancel", s.rides.Cancel)
	passenger.GET("/passengers/me/rides", s.rides.ListMineAsPassenger)

	drv := api.Group("", middleware.RequireRole(infra.RoleDriver))
	drv.POST("/rides/:id/accept", s.rides.Accept)
	drv.POST("/rides/:id/reject", s.rides.Reject)
	drv.POST("/rides/:id/start", s.rides.Start)
	drv.POST("/rides/:id/complete", s.rides.Complete)
	drv.POST("/rides/:id/abort", s.rides.Abort)
	drv.GET("/drivers/me/rides", s.rides.ListMineAsDriver)
	drv.GET("/drivers/me/availability", s.drivers.MyAvailability)
	drv.GET("/drivers/me/profile", s.drivers.MyProfile)
	drv.PUT("/drivers/me/profile", s.drivers.UpsertProfile)
	drv.POST("/drivers/me/documents/:type/upload-url", s.drivers.UploadURL)
	drv.PUT("/drivers/me/documents/:type", s.drivers.RecordDocument)
	drv.DELETE("/drivers/me/documents/:type", s.drivers.RemoveDocument)
	drv.GET("/drivers/me/documents/:type", s.drivers.ViewDocument)

	admin := api.Group("/admin", middleware.RequireRole(infra.RoleAdmin))
	admin.PUT("/pricing", s.pricing.Update)
	admin.GET("/pricing/history", s.pricing.History)
	admin.GET("/drivers", s.drivers.List)
	admin.GET("/drivers/:id", s.drivers.Get)
	admin.POST("/drivers/:id/approve", s.drivers.Approve)
	admin.POST("/drivers/:id/reject", s.drivers.Reject)
	admin.GET("/drivers/:id/documents/:type", s.drivers.ViewDocument)

	return r
}

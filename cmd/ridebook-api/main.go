// README: Entry point; loads config, wires infrastructure and services, serves HTTP until signalled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ridebook/internal/config"
	httptransport "ridebook/internal/http"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/maps"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{}).WithError(err).Fatal("load config")
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("RIDEBOOK_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("firebase init")
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := infra.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
	}

	loc, err := cfg.Pricing.Location()
	if err != nil {
		log.WithError(err).WithField("timezone", cfg.Pricing.Timezone).Fatal("load timezone")
	}

	var cache pricing.ConfigCache
	if rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
		log.WithError(err).Warn("redis unavailable, pricing cache disabled")
	} else {
		defer rdb.Close()
		cache = pricing.NewRedisCache(rdb, cfg.Pricing.CacheTTL)
	}

	signer, err := infra.NewGCSSigner(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile, cfg.Storage.SignedURLTTL)
	if err != nil {
		log.WithError(err).Fatal("storage init")
	}
	defer signer.Close()

	distances := maps.Fallback{Log: log}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.WithError(err).Warn("maps client init failed, using great-circle distances")
		} else {
			distances.Primary = routes
		}
	}

	var pub ride.EventPublisher
	if cfg.AMQP.URL != "" {
		p, err := infra.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.WithError(err).Warn("amqp unavailable, ride events disabled")
		} else {
			defer p.Close()
			pub = p
		}
	}

	availStore := availability.NewStore(db)
	pricingSvc := pricing.NewService(pricing.NewStore(db), cache, loc, log)
	rideSvc := ride.NewService(ride.NewStore(db), availStore, pub, log)
	bookingSvc := booking.NewService(availStore, rideSvc, pricingSvc, log)
	driverSvc := driver.NewService(driver.NewStore(db), signer, availStore, cfg.Storage.SignedURLTTL, log)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Pricing:      pricingSvc,
		Rides:        rideSvc,
		Booking:      bookingSvc,
		Drivers:      driverSvc,
		Availability: availStore,
		Distancer:    distances,
		Verifier:     verifier,
		Log:          log,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("ridebook api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}
	log.Info("ridebook api stopped")
}

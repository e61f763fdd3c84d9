// README: Booking probe; fires concurrent bookings at one driver against a running API and checks that exactly one wins.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()
	if cfg.Token == "" || cfg.DriverID == "" {
		fmt.Fprintln(os.Stderr, "bookprobe: -token and -driver are required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	results := NewRunner(cfg).RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)
	if fail > 0 {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	Token       string
	DriverID    string
	DSN         string
	RedisAddr   string
	Concurrency int
	DistanceKm  float64
	Timeout     time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("RIDEBOOK_PROBE_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.Token, "token", os.Getenv("RIDEBOOK_PROBE_TOKEN"), "passenger ID token sent as Bearer")
	flag.StringVar(&cfg.DriverID, "driver", os.Getenv("RIDEBOOK_PROBE_DRIVER"), "driver to book; must be verified and available")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("RIDEBOOK_DB_DSN"), "Postgres DSN for the consistency check (optional)")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("RIDEBOOK_REDIS_ADDR"), "Redis address for the pricing cache check (optional)")
	flag.IntVar(&cfg.Concurrency, "n", envOrDefaultInt("RIDEBOOK_PROBE_CONCURRENCY", 20), "concurrent booking requests")
	flag.Float64Var(&cfg.DistanceKm, "km", 5, "ride distance sent with each booking")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "total timeout")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

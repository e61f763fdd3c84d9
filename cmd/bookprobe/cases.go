// README: Probe cases: reachability, the concurrent booking race and the stored state it leaves behind.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// winner is the ride created by the booking race, if any.
	winner string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type probeCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	cases := r.cases()
	results := make([]Result, 0, len(cases))
	for _, pc := range cases {
		res := pc.Run(ctx, r)
		res.Name = pc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, pc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []probeCase {
	return []probeCase{
		{Name: "API: health", Run: checkHealth},
		{Name: "API: driver available before race", Run: checkDriverBookable},
		{Name: "Booking: concurrent requests, one winner", Run: raceBookings},
		{Name: "DB: driver locked to the winning ride", Run: checkLockRow},
		{Name: "DB: no orphaned pending rides", Run: checkNoOrphans},
		{Name: "Redis: pricing cache populated", Run: checkPricingCache},
	}
}

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, time.Since(start), err
}

func checkHealth(ctx context.Context, r *Runner) Result {
	code, _, latency, err := r.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: statusPass, Latency: latency}
}

func checkDriverBookable(ctx context.Context, r *Runner) Result {
	code, body, latency, err := r.do(ctx, http.MethodGet, "/api/drivers/bookable", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	var list struct {
		Drivers []struct {
			UserID      string `json:"user_id"`
			IsAvailable bool   `json:"is_available"`
		} `json:"drivers"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, d := range list.Drivers {
		if d.UserID == r.cfg.DriverID {
			if !d.IsAvailable {
				return Result{Status: statusFail, Latency: latency, Note: "driver is busy; free them before probing"}
			}
			return Result{Status: statusPass, Latency: latency}
		}
	}
	return Result{Status: statusFail, Latency: latency, Note: "driver is not verified or unknown"}
}

func raceBookings(ctx context.Context, r *Runner) Result {
	payload := map[string]any{
		"driver_id":   r.cfg.DriverID,
		"pickup":      map[string]any{"address": "probe pickup", "lat": 12.9716, "lng": 77.5946},
		"dropoff":     map[string]any{"address": "probe dropoff", "lat": 12.9352, "lng": 77.6245},
		"distance_km": r.cfg.DistanceKm,
	}

	type outcome struct {
		code int
		body []byte
		err  error
	}
	outcomes := make([]outcome, r.cfg.Concurrency)
	start := time.Now()
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, body, _, err := r.do(ctx, http.MethodPost, "/api/rides", payload)
			outcomes[i] = outcome{code: code, body: body, err: err}
		}(i)
	}
	wg.Wait()
	latency := time.Since(start)

	created, conflicts, other := 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			other++
		case o.code == http.StatusCreated:
			created++
			var resp struct {
				Ride struct {
					ID string `json:"id"`
				} `json:"ride"`
			}
			if json.Unmarshal(o.body, &resp) == nil {
				r.winner = resp.Ride.ID
			}
		case o.code == http.StatusConflict:
			conflicts++
		default:
			other++
		}
	}
	note := fmt.Sprintf("created=%d conflict=%d other=%d", created, conflicts, other)
	if created != 1 || other != 0 {
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	return Result{Status: statusPass, Latency: latency, Note: note + " ride=" + r.winner}
}

func checkLockRow(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not set"}
	}
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "no winning ride"}
	}
	var (
		available bool
		current   *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT is_available, current_ride_id::text FROM driver_availability WHERE driver_id = $1`,
		r.cfg.DriverID,
	).Scan(&available, &current)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if available || current == nil || *current != r.winner {
		return Result{Status: statusFail, Note: fmt.Sprintf("is_available=%v current_ride_id=%v", available, current)}
	}
	return Result{Status: statusPass}
}

func checkNoOrphans(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not set"}
	}
	var pending int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rides WHERE driver_id = $1 AND status = 'pending' AND requested_at > now() - interval '5 minutes'`,
		r.cfg.DriverID,
	).Scan(&pending)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if pending != 1 {
		return Result{Status: statusFail, Note: fmt.Sprintf("pending rides=%d", pending)}
	}
	return Result{Status: statusPass}
}

func checkPricingCache(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not set"}
	}
	n, err := r.redis.Exists(ctx, "pricing:latest").Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if n == 0 {
		return Result{Status: statusFail, Note: "pricing:latest missing after quoted bookings"}
	}
	return Result{Status: statusPass}
}

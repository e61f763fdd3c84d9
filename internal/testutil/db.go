// README: Shared helpers for DB/Redis-backed tests; they skip when the env var is unset.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridebook/internal/infra"
)

// OpenDB connects to RIDEBOOK_TEST_DSN, applies migrations and truncates
// every table so each test starts empty.
func OpenDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("RIDEBOOK_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEBOOK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn, 30)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := infra.Migrate(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE ride_state_events, rides, driver_availability, driver_profiles, pricing_config`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// OpenRedis connects to RIDEBOOK_TEST_REDIS_ADDR and flushes the selected DB.
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("RIDEBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RIDEBOOK_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}

	ctx := context.Background()
	rdb, err := infra.NewRedis(ctx, addr)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return rdb
}

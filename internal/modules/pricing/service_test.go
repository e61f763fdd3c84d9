package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridebook/internal/testutil"
	"ridebook/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	versions []Config
	latests  int
	fail     error
	// afterRead runs once, after the first Latest has read its row but
	// before it returns.
	afterRead func()
}

func (m *memStore) Latest(context.Context) (Config, error) {
	m.mu.Lock()
	m.latests++
	var (
		c   Config
		err error
	)
	switch {
	case m.fail != nil:
		err = m.fail
	case len(m.versions) == 0:
		err = ErrConfigNotFound
	default:
		c = m.versions[len(m.versions)-1]
	}
	hook := m.afterRead
	m.afterRead = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return c, err
}

func (m *memStore) Insert(_ context.Context, c Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, c)
	return nil
}

func (m *memStore) List(_ context.Context, limit int) ([]Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Config
	for i := len(m.versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.versions[i])
	}
	return out, nil
}

// memCache keeps the newer version on Set, like RedisCache.
type memCache struct {
	cfg         *Config
	invalidated int
	getErr      error
	setErr      error
}

func (c *memCache) Get(context.Context) (Config, bool, error) {
	if c.getErr != nil {
		return Config{}, false, c.getErr
	}
	if c.cfg == nil {
		return Config{}, false, nil
	}
	return *c.cfg, true, nil
}

func (c *memCache) Set(_ context.Context, cfg Config) error {
	if c.setErr != nil {
		return c.setErr
	}
	if c.cfg != nil && !cfg.CreatedAt.After(c.cfg.CreatedAt) {
		return nil
	}
	c.cfg = &cfg
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.cfg = nil
	c.invalidated++
	return nil
}

func f64(v float64) *float64 { return &v }

func newTestService(store ConfigStore, cache ConfigCache, now time.Time) *Service {
	svc := NewService(store, cache, time.UTC, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestQuoteUsesLatestVersion(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	svc := newTestService(store, nil, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))

	calc, err := svc.Quote(context.Background(), 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if calc.TotalCost != 255 || !calc.OfficeHoursApplied {
		t.Fatalf("unexpected quote: %+v", calc)
	}
}

func TestQuoteWithoutConfig(t *testing.T) {
	svc := newTestService(&memStore{}, nil, time.Now())
	if _, err := svc.Quote(context.Background(), 5); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestQuoteRejectsNegativeDistanceBeforeLookup(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	svc := newTestService(store, nil, time.Now())
	if _, err := svc.Quote(context.Background(), -0.5); !errors.Is(err, ErrInvalidDistance) {
		t.Fatalf("expected ErrInvalidDistance, got %v", err)
	}
	if store.latests != 0 {
		t.Fatalf("store should not be read, got %d reads", store.latests)
	}
}

func TestQuoteConvertsToConfiguredZone(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	svc := NewService(store, nil, time.FixedZone("UTC+5:30", 5*3600+1800), nil)
	// 04:00 UTC Wednesday is 09:30 in the configured zone.
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 4, 0, 0, 0, time.UTC) }

	calc, err := svc.Quote(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !calc.OfficeHoursApplied {
		t.Fatal("expected office hours in configured zone")
	}
}

func TestCurrentReadsThroughCache(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	cache := &memCache{}
	svc := newTestService(store, cache, time.Now())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Current(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if store.latests != 1 {
		t.Fatalf("expected one store read, got %d", store.latests)
	}
}

func TestCurrentFallsBackWhenCacheFails(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	cache := &memCache{getErr: errors.New("redis down")}
	svc := newTestService(store, cache, time.Now())

	c, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if c.ID != testConfig.ID {
		t.Fatalf("got %s, want %s", c.ID, testConfig.ID)
	}
}

func TestUpdateAppendsVersionAndCachesIt(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	cache := &memCache{}
	svc := newTestService(store, cache, time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.Current(ctx); err != nil {
		t.Fatal(err)
	}

	next, err := svc.Update(ctx, UpdateCommand{AdminID: "admin-1", PricePerKm: f64(5)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next.ID == testConfig.ID || next.PricePerKm != 5 || next.DriverCostPerRide != 50 {
		t.Fatalf("unexpected new version: %+v", next)
	}
	if next.UpdatedBy == nil || *next.UpdatedBy != types.ID("admin-1") {
		t.Fatalf("updated_by not recorded: %+v", next.UpdatedBy)
	}
	if len(store.versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(store.versions))
	}
	if cache.cfg == nil || cache.cfg.ID != next.ID {
		t.Fatalf("expected the new version in the cache, got %+v", cache.cfg)
	}

	calc, err := svc.Quote(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if calc.TotalCost != 100 {
		t.Fatalf("quote after update = %v, want 100", calc.TotalCost)
	}
}

func TestSlowReadDoesNotOverwriteNewerVersion(t *testing.T) {
	store := &memStore{versions: []Config{testConfig}}
	cache := &memCache{}
	svc := newTestService(store, cache, time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var updated Config
	store.afterRead = func() {
		var err error
		updated, err = svc.Update(ctx, UpdateCommand{PricePerKm: f64(20)})
		if err != nil {
			t.Errorf("update: %v", err)
		}
	}

	stale, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stale.ID != testConfig.ID {
		t.Fatalf("first read should see the old row, got %s", stale.ID)
	}

	got, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != updated.ID || got.PricePerKm != 20 {
		t.Fatalf("current = %s price_per_km=%v, want %s price_per_km=20", got.ID, got.PricePerKm, updated.ID)
	}
}

func TestUpdateInvalidatesWhenCacheWriteFails(t *testing.T) {
	old := testConfig
	cache := &memCache{cfg: &old, setErr: errors.New("redis down")}
	svc := newTestService(&memStore{versions: []Config{testConfig}}, cache, time.Now())

	if _, err := svc.Update(context.Background(), UpdateCommand{PricePerKm: f64(9)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if cache.cfg != nil || cache.invalidated != 1 {
		t.Fatalf("expected the stale entry to be dropped, cfg=%+v invalidated=%d", cache.cfg, cache.invalidated)
	}
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&memStore{versions: []Config{testConfig}}, nil, time.Now())
	if _, err := svc.Update(ctx, UpdateCommand{OfficeHoursMultiplier: f64(0.9)}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("multiplier below 1: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := svc.Update(ctx, UpdateCommand{PricePerKm: f64(-1)}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("negative price: expected ErrInvalidConfig, got %v", err)
	}

	empty := newTestService(&memStore{}, nil, time.Now())
	if _, err := empty.Update(ctx, UpdateCommand{PricePerKm: f64(5)}); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("partial first version: expected ErrConfigNotFound, got %v", err)
	}
	first, err := empty.Update(ctx, UpdateCommand{
		PricePerKm:            f64(5),
		DriverCostPerRide:     f64(40),
		PetrolPricePerLiter:   f64(100),
		OfficeHoursMultiplier: f64(1.2),
	})
	if err != nil {
		t.Fatalf("full first version: %v", err)
	}
	if first.UpdatedBy != nil {
		t.Fatalf("updated_by should be nil without admin")
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 30; i++ {
		store.versions = append(store.versions, testConfig)
	}
	svc := newTestService(store, nil, time.Now())

	got, err := svc.History(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Fatalf("default history length = %d, want 20", len(got))
	}
}

func TestStoreLatestWins(t *testing.T) {
	store := NewStore(testutil.OpenDB(t))
	ctx := context.Background()

	if _, err := store.Latest(ctx); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("empty table: expected ErrConfigNotFound, got %v", err)
	}

	old := testConfig
	old.ID = types.NewID()
	old.CreatedAt = time.Now().Add(-time.Hour)
	admin := types.ID("admin-1")
	newer := testConfig
	newer.ID = types.NewID()
	newer.PricePerKm = 7.5
	newer.UpdatedBy = &admin
	newer.CreatedAt = time.Now()

	for _, c := range []Config{old, newer} {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != newer.ID || got.PricePerKm != 7.5 || got.UpdatedBy == nil || *got.UpdatedBy != admin {
		t.Fatalf("unexpected latest: %+v", got)
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("unexpected history: %+v", list)
	}
}

func TestRedisCacheKeepsNewestVersion(t *testing.T) {
	cache := NewRedisCache(testutil.OpenRedis(t), time.Minute)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	current := testConfig
	current.CreatedAt = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	if err := cache.Set(ctx, current); err != nil {
		t.Fatal(err)
	}
	got, ok, err := cache.Get(ctx)
	if err != nil || !ok || got.ID != testConfig.ID || got.OfficeHoursMultiplier != 1.5 {
		t.Fatalf("cached = %+v ok=%v err=%v", got, ok, err)
	}

	older := current
	older.ID = "cfg-0"
	older.CreatedAt = current.CreatedAt.Add(-time.Minute)
	if err := cache.Set(ctx, older); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := cache.Get(ctx); got.ID != testConfig.ID {
		t.Fatalf("older version replaced the cached one: %s", got.ID)
	}

	newer := current
	newer.ID = "cfg-2"
	newer.CreatedAt = current.CreatedAt.Add(time.Minute)
	if err := cache.Set(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := cache.Get(ctx); got.ID != newer.ID {
		t.Fatalf("newer version not cached: %s", got.ID)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatal("expected miss after invalidate")
	}
}

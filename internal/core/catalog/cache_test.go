package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

type fakeSource struct {
	calls atomic.Int32
	load  func(ctx context.Context) (*models.Catalog, error)
}

func (f *fakeSource) LoadCatalog(ctx context.Context) (*models.Catalog, error) {
	f.calls.Add(1)
	return f.load(ctx)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func catalogWithTopic(id string) *models.Catalog {
	return &models.Catalog{
		Topics:   []models.Topic{{ID: id, Name: id}},
		Products: []models.Product{{Code: "P-" + id, Name: id, Active: true}},
	}
}

var errUnavailable = errors.New("source unavailable")

func TestCacheFallbackWhenSourceAlwaysFails(t *testing.T) {
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) { return nil, errUnavailable }}
	c := NewCache(src, logger.NewNop(), Options{})

	snap := c.Snapshot(context.Background())
	if snap == nil || len(snap.Topics) == 0 || len(snap.Products) == 0 || len(snap.Questions) == 0 {
		t.Fatalf("want non-empty fallback catalog, got %+v", snap)
	}
	if !snap.Fallback {
		t.Fatalf("want fallback flag set")
	}
	if c.Loaded() {
		t.Fatalf("Loaded()=true after failed refresh")
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, errUnavailable) {
		t.Fatalf("Refresh err=%v, want %v", err, errUnavailable)
	}
}

func TestCacheServesStaleSnapshotOnFailure(t *testing.T) {
	clock := newFakeClock()
	var fail atomic.Bool
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) {
		if fail.Load() {
			return nil, errUnavailable
		}
		return catalogWithTopic("energy"), nil
	}}
	c := NewCache(src, logger.NewNop(), Options{TTL: time.Minute, Now: clock.Now})

	if got := c.Topics(context.Background()); len(got) != 1 || got[0].ID != "energy" {
		t.Fatalf("topics=%+v, want [energy]", got)
	}

	fail.Store(true)
	clock.Advance(2 * time.Minute)

	snap := c.Snapshot(context.Background())
	if snap.Fallback || len(snap.Topics) != 1 || snap.Topics[0].ID != "energy" {
		t.Fatalf("want stale energy snapshot, got %+v", snap)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls=%d, want 2", n)
	}
}

func TestCacheRefreshesOnlyAfterTTL(t *testing.T) {
	clock := newFakeClock()
	var version atomic.Int32
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) {
		v := version.Add(1)
		return catalogWithTopic(string(rune('a' + v - 1))), nil
	}}
	c := NewCache(src, logger.NewNop(), Options{TTL: 5 * time.Minute, Now: clock.Now})
	ctx := context.Background()

	if got := c.Topics(ctx)[0].ID; got != "a" {
		t.Fatalf("first topic=%s, want a", got)
	}
	clock.Advance(4 * time.Minute)
	if got := c.Topics(ctx)[0].ID; got != "a" {
		t.Fatalf("within TTL topic=%s, want a", got)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls=%d within TTL, want 1", n)
	}
	clock.Advance(2 * time.Minute)
	if got := c.Topics(ctx)[0].ID; got != "b" {
		t.Fatalf("after TTL topic=%s, want b", got)
	}
}

func TestCacheFailedRefreshWaitsForNextTTL(t *testing.T) {
	clock := newFakeClock()
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) { return nil, errUnavailable }}
	c := NewCache(src, logger.NewNop(), Options{TTL: time.Minute, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Products(ctx)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls=%d, want 1", n)
	}
	clock.Advance(61 * time.Second)
	c.Products(ctx)
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls=%d after TTL, want 2", n)
	}
}

func TestCacheSingleFlightRefresh(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) {
		once.Do(func() { close(started) })
		<-release
		return catalogWithTopic("energy"), nil
	}}
	c := NewCache(src, logger.NewNop(), Options{TTL: time.Hour, Timeout: 5 * time.Second})

	const readers = 16
	var wg sync.WaitGroup
	results := make(chan *models.Catalog, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Snapshot(context.Background())
		}()
	}

	<-started
	// Give the other readers time to pile onto the in-flight refresh.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls=%d, want 1", n)
	}
	for snap := range results {
		if snap.Fallback || snap.Topics[0].ID != "energy" {
			t.Fatalf("reader got %+v, want energy snapshot", snap)
		}
	}
}

func TestCacheRefreshTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	src := &fakeSource{load: func(ctx context.Context) (*models.Catalog, error) {
		select {
		case <-block:
		case <-time.After(time.Minute):
		}
		return catalogWithTopic("late"), nil
	}}
	c := NewCache(src, logger.NewNop(), Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	snap := c.Snapshot(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Snapshot took %v, want it bounded by the refresh timeout", elapsed)
	}
	if !snap.Fallback {
		t.Fatalf("want fallback after timeout, got %+v", snap)
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Refresh err=%v, want deadline exceeded", err)
	}
}

func TestCacheForcedRefreshIgnoresTTL(t *testing.T) {
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) { return catalogWithTopic("energy"), nil }}
	c := NewCache(src, logger.NewNop(), Options{TTL: time.Hour})
	ctx := context.Background()

	c.Snapshot(ctx)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls=%d, want 2", n)
	}
}

func TestCacheNilCatalogIsFailure(t *testing.T) {
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) { return nil, nil }}
	c := NewCache(src, logger.NewNop(), Options{})
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatalf("want error for nil catalog")
	}
	if !c.Snapshot(context.Background()).Fallback {
		t.Fatalf("want fallback")
	}
}

func TestCacheAccessors(t *testing.T) {
	src := FallbackSource{}
	c := NewCache(src, logger.NewNop(), Options{})
	ctx := context.Background()

	if len(c.Topics(ctx)) != 2 {
		t.Fatalf("topics=%d, want 2", len(c.Topics(ctx)))
	}
	if got := len(c.Questions(ctx, "energy")); got != 3 {
		t.Fatalf("energy questions=%d, want 3", got)
	}
	if len(c.ScoringRules(ctx)) == 0 || len(c.BaseScores(ctx)) == 0 || len(c.Products(ctx)) != 5 {
		t.Fatalf("unexpected fallback contents")
	}
	if !c.Loaded() {
		t.Fatalf("Loaded()=false after FallbackSource load")
	}
}

// gatedClock parks the second Now call made after arm until release is closed.
type gatedClock struct {
	*fakeClock
	armed   atomic.Bool
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedClock) Now() time.Time {
	if g.armed.Load() && g.calls.Add(1) == 2 {
		close(g.entered)
		<-g.release
	}
	return g.fakeClock.Now()
}

func TestCacheForcedRefreshJoiningSkippedFlightStillLoads(t *testing.T) {
	const ttl = time.Minute
	clock := &gatedClock{fakeClock: newFakeClock(), entered: make(chan struct{}), release: make(chan struct{})}
	src := &fakeSource{load: func(context.Context) (*models.Catalog, error) { return catalogWithTopic("energy"), nil }}
	c := NewCache(src, logger.NewNop(), Options{TTL: ttl, Now: clock.Now})
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}

	// The reader sees an expired TTL, then re-checks inside the flight and
	// finds it fresh again, as if another refresh had just finished.
	clock.Advance(ttl + time.Second)
	clock.armed.Store(true)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.Snapshot(ctx)
	}()
	<-clock.entered

	forced := make(chan error, 1)
	go func() { forced <- c.Refresh(ctx) }()
	time.Sleep(20 * time.Millisecond)

	clock.Advance(-(ttl + time.Second))
	close(clock.release)

	if err := <-forced; err != nil {
		t.Fatalf("forced Refresh: %v", err)
	}
	<-readerDone
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls=%d, want 2", n)
	}
}

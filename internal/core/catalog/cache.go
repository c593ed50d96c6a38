package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const (
	DefaultTTL            = 5 * time.Minute
	DefaultRefreshTimeout = 5 * time.Second
)

// Options tunes the cache.
//
// TTL:     minimum age of the last refresh attempt before a read triggers another one.
// Timeout: upper bound for one refresh; on expiry the stale snapshot keeps being served.
// Now:     clock, replaceable in tests.
type Options struct {
	TTL     time.Duration
	Timeout time.Duration
	Now     func() time.Time
}

// Cache serves catalog snapshots from memory and refreshes them from the
// source on a TTL basis. Reads never fail: a failed refresh keeps the
// previous snapshot, and the built-in fallback covers the never-loaded case.
type Cache struct {
	source  core.CatalogSource
	log     *logger.Logger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	snapshot    atomic.Pointer[models.Catalog]
	lastAttempt atomic.Int64 // unix nanos, 0 until the first attempt
	group       singleflight.Group
}

func NewCache(source core.CatalogSource, log *logger.Logger, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		source:  source,
		log:     log.With("service", "CatalogCache"),
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
}

// Snapshot returns the current catalog, refreshing it first when the TTL has elapsed.
// The returned value is shared and must not be modified.
func (c *Cache) Snapshot(ctx context.Context) *models.Catalog {
	if c.due() {
		_ = c.refresh(ctx, false)
	}
	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}
	return Fallback()
}

// Refresh forces a reload regardless of the TTL. A refresh already in flight
// is joined rather than restarted.
func (c *Cache) Refresh(ctx context.Context) error {
	return c.refresh(ctx, true)
}

// Loaded reports whether any refresh has ever succeeded.
func (c *Cache) Loaded() bool {
	return c.snapshot.Load() != nil
}

func (c *Cache) Topics(ctx context.Context) []models.Topic {
	return c.Snapshot(ctx).Topics
}

func (c *Cache) Questions(ctx context.Context, topic string) []models.Question {
	return c.Snapshot(ctx).TopicQuestions(topic)
}

func (c *Cache) ScoringRules(ctx context.Context) []models.ScoringRule {
	return c.Snapshot(ctx).Rules
}

func (c *Cache) BaseScores(ctx context.Context) []models.BaseScoreRule {
	return c.Snapshot(ctx).BaseScores
}

func (c *Cache) Products(ctx context.Context) []models.Product {
	return c.Snapshot(ctx).Products
}

func (c *Cache) due() bool {
	last := c.lastAttempt.Load()
	return last == 0 || c.now().Sub(time.Unix(0, last)) > c.ttl
}

// refresh runs or joins the single in-flight load. A flight that skipped the
// load because another refresh just finished does not satisfy a forced caller,
// which then starts a flight of its own.
func (c *Cache) refresh(ctx context.Context, force bool) error {
	for {
		ch := c.group.DoChan("catalog", func() (interface{}, error) {
			if !force && !c.due() {
				return false, nil
			}
			return true, c.load(ctx)
		})

		select {
		case res := <-ch:
			if loaded, _ := res.Val.(bool); force && !loaded {
				continue
			}
			return res.Err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type loadResult struct {
	catalog *models.Catalog
	err     error
}

// load runs one bounded refresh. It is detached from the caller's cancellation
// because other readers may be waiting on the same attempt.
func (c *Cache) load(parent context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.timeout)
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		cat, err := c.source.LoadCatalog(ctx)
		done <- loadResult{catalog: cat, err: err}
	}()

	var res loadResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	c.lastAttempt.Store(c.now().UnixNano())

	if res.err == nil && res.catalog == nil {
		res.err = errors.New("source returned no catalog")
	}
	if res.err != nil {
		if c.Loaded() {
			c.log.Warn("catalog refresh failed, serving stale snapshot", "error", res.err)
		} else {
			c.log.Warn("catalog refresh failed, serving built-in fallback", "error", res.err)
		}
		return fmt.Errorf("refresh catalog: %w", res.err)
	}

	if res.catalog.LoadedAt.IsZero() {
		res.catalog.LoadedAt = c.now()
	}
	c.snapshot.Store(res.catalog)
	c.log.Info("catalog refreshed",
		"topics", len(res.catalog.Topics),
		"questions", len(res.catalog.Questions),
		"rules", len(res.catalog.Rules),
		"products", len(res.catalog.Products),
	)
	return nil
}

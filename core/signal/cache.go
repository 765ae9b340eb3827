package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gridshift/carbonsched/core/logger"
	"github.com/gridshift/carbonsched/core/model"
)

// Config defines cache behaviour.
type Config struct {
	// TTLSeconds is how long a cached range stays fresh.
	TTLSeconds int `json:"ttl_seconds"`
	// GraceSeconds extends the lifetime of stale entries that may be
	// served when the provider is down.
	GraceSeconds int `json:"grace_seconds"`
	// BucketHours sets the coarse time bucket used as cache key span.
	BucketHours int `json:"bucket_hours"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 1800
	}
	if c.GraceSeconds == 0 {
		c.GraceSeconds = 7200
	}
	if c.BucketHours == 0 {
		c.BucketHours = 6
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TTLSeconds < 0 || c.GraceSeconds < 0 || c.BucketHours < 0 {
		return fmt.Errorf("cache: negative durations not allowed")
	}
	return nil
}

type entry struct {
	signals   []model.GridSignal
	fetchedAt time.Time
}

// Cache memoizes provider fetches per (region, coarse time bucket) with
// a TTL, bounding outbound call volume. Concurrent requests for the
// same bucket are coalesced into one outbound call. On provider
// failure a stale entry within the grace period is served; otherwise
// ErrUnavailable is returned.
type Cache struct {
	provider Provider
	ttl      time.Duration
	grace    time.Duration
	bucket   time.Duration
	log      logger.Logger

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	now func() time.Time
}

// NewCache creates a Cache in front of the given provider.
func NewCache(p Provider, cfg Config, log logger.Logger) (*Cache, error) {
	if p == nil {
		return nil, fmt.Errorf("signal: nil provider")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cache{
		provider: p,
		ttl:      time.Duration(cfg.TTLSeconds) * time.Second,
		grace:    time.Duration(cfg.GraceSeconds) * time.Second,
		bucket:   time.Duration(cfg.BucketHours) * time.Hour,
		log:      log,
		entries:  make(map[string]entry),
		now:      time.Now,
	}, nil
}

// Get returns the ordered signals covering [from, to) for the region.
// The request is widened to bucket boundaries so neighbouring passes
// share cache entries.
func (c *Cache) Get(ctx context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("signal: empty range %v..%v", from, to)
	}
	bucketFrom := from.UTC().Truncate(c.bucket)
	bucketTo := to.UTC().Truncate(c.bucket)
	if bucketTo.Before(to.UTC()) {
		bucketTo = bucketTo.Add(c.bucket)
	}
	key := fmt.Sprintf("%s|%d|%d", region, bucketFrom.Unix(), bucketTo.Unix())

	if sigs, ok := c.fresh(key); ok {
		return clip(sigs, from, to), nil
	}

	// The fetch runs outside any cache lock; identical concurrent
	// requests collapse into a single outbound call.
	v, err, _ := c.group.Do(key, func() (any, error) {
		if sigs, ok := c.fresh(key); ok {
			return sigs, nil
		}
		sigs, ferr := c.provider.Fetch(ctx, region, bucketFrom, bucketTo)
		if ferr != nil {
			if stale, ok := c.staleWithinGrace(key); ok {
				if c.log != nil {
					c.log.Warnf("provider failed for %s, serving stale cache: %v", region, ferr)
				}
				return stale, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, &ProviderError{Region: region, Err: ferr})
		}
		c.store(key, sigs)
		return sigs, nil
	})
	if err != nil {
		return nil, err
	}
	return clip(v.([]model.GridSignal), from, to), nil
}

func (c *Cache) fresh(key string) ([]model.GridSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.signals, true
}

func (c *Cache) staleWithinGrace(key string) ([]model.GridSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl+c.grace {
		return nil, false
	}
	return e.signals, true
}

func (c *Cache) store(key string, sigs []model.GridSignal) {
	c.mu.Lock()
	c.entries[key] = entry{signals: sigs, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Sweep drops entries older than TTL plus grace. It is intended to be
// called periodically; correctness does not depend on it.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	cutoff := c.now().Add(-(c.ttl + c.grace))
	for k, e := range c.entries {
		if e.fetchedAt.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func clip(sigs []model.GridSignal, from, to time.Time) []model.GridSignal {
	out := make([]model.GridSignal, 0, len(sigs))
	for _, s := range sigs {
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

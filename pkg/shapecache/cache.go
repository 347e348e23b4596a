// Package shapecache maps resolved fastener parameters to built shapes.
// A Cache is owned by the session that creates it and shared by every
// fastener instance recomputed in that session. For any key at most one
// successful build is performed; concurrent callers for the same key wait
// on a single in-flight build.
package shapecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/kernel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies one unique shape. Two instances with equal keys always
// need identical geometry.
type Key struct {
	Category catalog.Category
	Type     string
	Diameter string
	Length   string
	Thread   catalog.ThreadStyle
}

// String renders the key for logging and in-flight deduplication. Fields
// are quoted so distinct keys never collide.
func (k Key) String() string {
	return fmt.Sprintf("%s:%q:%q:%q:%s", k.Category, k.Type, k.Diameter, k.Length, k.Thread)
}

// BuildFunc produces the shape for a key on a cache miss.
type BuildFunc func(ctx context.Context) (kernel.Solid, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Builds   int64 `json:"builds"`
	Failures int64 `json:"failures"`
}

// Cache is a concurrency-safe, never-evicting shape cache.
type Cache struct {
	mu     sync.RWMutex
	shapes map[Key]kernel.Solid
	flight singleflight.Group
	log    *zap.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	builds   atomic.Int64
	failures atomic.Int64
}

// New returns an empty cache. A nil logger discards output.
func New(log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		shapes: make(map[Key]kernel.Solid),
		log:    log,
	}
}

// Get returns the cached shape for key without building.
func (c *Cache) Get(key Key) (kernel.Solid, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shapes[key]
	return s, ok
}

// GetOrBuild returns the shape cached under key, calling build on a miss.
// Build errors and cancelled builds leave no entry, so the next call for the
// same key retries. When the caller that started an in-flight build is
// cancelled, waiters whose own context is still live start a new build.
func (c *Cache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (kernel.Solid, error) {
	if s, ok := c.Get(key); ok {
		c.hits.Add(1)
		c.log.Debug("Using cached shape", zap.Stringer("key", key))
		return s, nil
	}
	c.misses.Add(1)

	for {
		ch := c.flight.DoChan(key.String(), func() (any, error) {
			return c.build(ctx, key, build)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if res.Shared && isCancellation(res.Err) && ctx.Err() == nil {
					c.log.Debug("Shared build cancelled, retrying", zap.Stringer("key", key))
					continue
				}
				return nil, res.Err
			}
			return res.Val.(kernel.Solid), nil
		}
	}
}

func (c *Cache) build(ctx context.Context, key Key, build BuildFunc) (kernel.Solid, error) {
	// Another flight may have stored the shape between the miss and now.
	if s, ok := c.Get(key); ok {
		return s, nil
	}

	c.builds.Add(1)
	c.log.Debug("Building shape", zap.Stringer("key", key))
	s, err := build(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && s == nil {
		err = fmt.Errorf("build %s: %w", key, kernel.ErrBuildFailure)
	}
	if err != nil {
		c.failures.Add(1)
		c.log.Debug("Shape build failed", zap.Stringer("key", key), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.shapes[key] = s
	c.mu.Unlock()
	return s, nil
}

// Len returns the number of cached shapes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Builds:   c.builds.Load(),
		Failures: c.failures.Load(),
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

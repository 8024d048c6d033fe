// Package query is the server-state cache. Reads are keyed by Key, issued at
// most once concurrently per key, and served from memory until the resource
// they belong to is invalidated by a mutation.
package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
)

const (
	DefaultSize          = 256
	DefaultRetries       = 1
	DefaultRetryInterval = 300 * time.Millisecond
)

type stamp struct {
	epoch      uint64
	generation uint64
}

type entry struct {
	resource string
	stamp    stamp
	value    any
}

// Cache de-duplicates and memoizes reads. Safe for concurrent use.
type Cache struct {
	group         singleflight.Group
	metrics       *Metrics
	retries       uint64
	retryInterval time.Duration
	log           logr.Logger

	mu          sync.Mutex
	entries     *lru.Cache[string, entry]
	generations map[string]uint64
	epoch       uint64
}

// Option configures a Cache
type Option func(*cacheOptions)

type cacheOptions struct {
	size          int
	metrics       *Metrics
	retries       uint64
	retryInterval time.Duration
	log           logr.Logger
}

// WithSize bounds the number of cached entries
func WithSize(n int) Option {
	return func(o *cacheOptions) { o.size = n }
}

// WithMetrics records cache activity in m
func WithMetrics(m *Metrics) Option {
	return func(o *cacheOptions) { o.metrics = m }
}

// WithRetries sets how many times a failed read is retried
func WithRetries(n uint64, interval time.Duration) Option {
	return func(o *cacheOptions) {
		o.retries = n
		o.retryInterval = interval
	}
}

// WithLogger sets the logger
func WithLogger(log logr.Logger) Option {
	return func(o *cacheOptions) { o.log = log }
}

// New creates an empty Cache
func New(opts ...Option) *Cache {
	o := cacheOptions{
		size:          DefaultSize,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		log:           logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size <= 0 {
		o.size = DefaultSize
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	entries, _ := lru.New[string, entry](o.size)
	return &Cache{
		metrics:       o.metrics,
		retries:       o.retries,
		retryInterval: o.retryInterval,
		log:           o.log.WithName("query"),
		entries:       entries,
		generations:   make(map[string]uint64),
	}
}

// Fetch returns the cached value for key, or runs fn to produce it. Concurrent
// calls for the same key share a single fn call. A caller whose ctx ends stops
// waiting; the fetch itself carries on for the remaining callers.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: value cached for %s has type %T", key, v)
	}
	return t, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := key.String()

	c.mu.Lock()
	st := c.stampLocked(key.Resource)
	if e, ok := c.entries.Get(id); ok && e.stamp == st {
		c.mu.Unlock()
		c.metrics.Hits.WithLabelValues(key.Resource).Inc()
		return e.value, nil
	}
	c.mu.Unlock()
	c.metrics.Misses.WithLabelValues(key.Resource).Inc()

	// A new stamp means a new flight, so reads issued after an invalidation
	// never join a fetch that started before it.
	flight := fmt.Sprintf("%s#%d.%d", id, st.epoch, st.generation)
	ch := c.group.DoChan(flight, func() (any, error) {
		v, err := c.withRetry(context.WithoutCancel(ctx), fn)
		if err != nil {
			c.metrics.Fetches.WithLabelValues(key.Resource, "error").Inc()
			return nil, err
		}
		c.metrics.Fetches.WithLabelValues(key.Resource, "ok").Inc()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stampLocked(key.Resource) != st {
			c.log.V(1).Info("discarding result fetched before invalidation", "key", id)
			return v, nil
		}
		c.entries.Add(id, entry{resource: key.Resource, stamp: st, value: v})
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cache) stampLocked(resource string) stamp {
	return stamp{epoch: c.epoch, generation: c.generations[resource]}
}

// Invalidate drops every entry of resource, whatever its filters and page.
// Reads issued after Invalidate returns always fetch.
func (c *Cache) Invalidate(resource string) {
	c.mu.Lock()
	c.generations[resource]++
	dropped := 0
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok && e.resource == resource {
			c.entries.Remove(id)
			dropped++
		}
	}
	c.mu.Unlock()

	c.metrics.Invalidations.WithLabelValues(resource).Inc()
	c.log.V(1).Info("invalidated", "resource", resource, "entries", dropped)
}

// Reset drops everything, e.g. when the signed-in user changes
func (c *Cache) Reset() {
	c.mu.Lock()
	c.epoch++
	c.entries.Purge()
	c.mu.Unlock()
}

// Cached reports whether a current entry exists for key
func (c *Cache) Cached(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key.String())
	return ok && e.stamp == c.stampLocked(key.Resource)
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) withRetry(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if c.retries == 0 {
		return fn(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	var v any
	err := backoff.Retry(func() error {
		var err error
		v, err = fn(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
	return v, err
}

// retryable reports whether a failed read may succeed when sent again.
// Client errors and malformed responses will not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeDecode, apperrors.ErrCodeInvalidResponse, apperrors.ErrCodeValidation:
		return false
	}
	return appErr.Status < http.StatusBadRequest || appErr.Status >= http.StatusInternalServerError
}

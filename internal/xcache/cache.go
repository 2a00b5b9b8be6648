// Package xcache is a generic, process-wide cache façade, adapted from the
// teacher's internal/pkg/xcache. The teacher chains an in-memory store with
// a Redis store for cross-process sharing; this engine's caches (token trie,
// special-token index) are read-mostly, single-process, content-addressed
// lookups, so only the in-memory backend is wired here — see DESIGN.md for
// why the Redis tier was dropped rather than adapted.
package xcache

import (
	"context"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

// Cache is an alias to the gocache CacheInterface, matching the teacher's
// xcache.Cache[T] alias.
type Cache[T any] = cachelib.CacheInterface[T]

// Option re-exports store.Option so callers never import eko/gocache directly.
type Option = store.Option

func WithExpiration(expiration time.Duration) Option {
	return store.WithExpiration(expiration)
}

// NewMemory builds an in-memory cache with the given default expiration and
// cleanup interval. A zero expiration means entries never expire by TTL,
// which is the right default for the trie/special-token caches: they are
// content-addressed, so a cached entry is never stale (§9 of the spec).
func NewMemory[T any](defaultExpiration, cleanupInterval time.Duration) Cache[T] {
	client := gocache.New(defaultExpiration, cleanupInterval)
	backing := gocache_store.NewGoCache(client)

	return cachelib.New[T](backing)
}

// NewNoop returns a cache that always misses, useful for tests that want to
// exercise the builder path on every call.
func NewNoop[T any]() Cache[T] {
	return &noopCache[T]{}
}

type noopCache[T any] struct{}

func (n *noopCache[T]) Get(ctx context.Context, key any) (T, error) {
	var zero T
	return zero, store.NotFoundWithCause(ErrMiss)
}

func (n *noopCache[T]) Set(ctx context.Context, key any, object T, options ...Option) error {
	return nil
}

func (n *noopCache[T]) Delete(ctx context.Context, key any) error { return nil }

func (n *noopCache[T]) Invalidate(ctx context.Context, options ...store.InvalidateOption) error {
	return nil
}

func (n *noopCache[T]) Clear(ctx context.Context) error { return nil }

func (n *noopCache[T]) GetType() string { return "noop" }

// ErrMiss is returned by the noop cache's Get.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "xcache: not configured" }

package trie

import (
	"context"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/loopforge/jsonguard/internal/xcache"
	"github.com/loopforge/jsonguard/specialtokens"
	"github.com/loopforge/jsonguard/tokenizer"
)

// Cache is the process-wide, content-addressed trie cache described in
// spec §4.3 and §5: keyed by (sorted keys, tokenizer fingerprint), never
// returns stale entries, and collapses concurrent builds of the same key
// into one Build call via singleflight — the same shape the teacher's
// xcache.Cache[T] is paired with singleflight for elsewhere in the corpus.
type Cache struct {
	store xcache.Cache[*Trie]
	group singleflight.Group
}

// NewCache wraps an xcache.Cache[*Trie] store (an in-memory one from
// xcache.NewMemory, or xcache.NewNoop to disable caching entirely).
func NewCache(store xcache.Cache[*Trie]) *Cache {
	return &Cache{store: store}
}

// GetOrBuild returns the cached trie for (keys, tk.Fingerprint()), building
// it exactly once even under concurrent callers for the same key.
func (c *Cache) GetOrBuild(ctx context.Context, keys []string, tk tokenizer.Tokenizer) (*Trie, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	key := specialtokens.CacheKey(sorted, tk.Fingerprint())

	if cached, err := c.store.Get(ctx, key); err == nil {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, err := c.store.Get(ctx, key); err == nil {
			return cached, nil
		}

		built, err := Build(sorted, tk)
		if err != nil {
			return nil, err
		}

		_ = c.store.Set(ctx, key, built)

		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Trie), nil
}

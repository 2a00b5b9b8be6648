package specialtokens

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/loopforge/jsonguard/internal/xcache"
	"github.com/loopforge/jsonguard/tokenizer"
)

// Cache is the process-wide special-token cache named in spec §4 component
// 3 ("computed once per tokenizer fingerprint") and §5 ("process-wide,
// concurrent-safe" alongside the trie cache). It mirrors trie.Cache: an
// xcache.Cache[Index] store keyed by tokenizer fingerprint, with concurrent
// builds for the same fingerprint collapsed into one Build call via
// singleflight.
type Cache struct {
	store xcache.Cache[Index]
	group singleflight.Group
}

// NewCache wraps an xcache.Cache[Index] store (an in-memory one from
// xcache.NewMemory, or xcache.NewNoop to disable caching entirely).
func NewCache(store xcache.Cache[Index]) *Cache {
	return &Cache{store: store}
}

// GetOrBuild returns the cached Index for tk.Fingerprint(), building it
// exactly once even under concurrent callers for the same fingerprint.
func (c *Cache) GetOrBuild(ctx context.Context, tk tokenizer.Tokenizer) (Index, error) {
	key := FingerprintKey(tk)

	if cached, err := c.store.Get(ctx, key); err == nil {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, err := c.store.Get(ctx, key); err == nil {
			return cached, nil
		}

		built, err := Build(tk)
		if err != nil {
			return Index{}, err
		}

		_ = c.store.Set(ctx, key, built)

		return built, nil
	})
	if err != nil {
		return Index{}, err
	}

	return v.(Index), nil
}

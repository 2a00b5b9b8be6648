package specialtokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopforge/jsonguard/internal/xcache"
	"github.com/loopforge/jsonguard/tokenizer"
)

func TestCache_GetOrBuildHitsCacheOnSecondCall(t *testing.T) {
	tk := tokenizer.NewFake()
	cache := NewCache(xcache.NewMemory[Index](0, 0))

	idx1, err := cache.GetOrBuild(context.Background(), tk)
	require.NoError(t, err)

	idx2, err := cache.GetOrBuild(context.Background(), tk)
	require.NoError(t, err)

	assert.Equal(t, idx1, idx2, "same tokenizer fingerprint should hit the cache and return the same index")
}

func TestCache_NoopStoreStillBuildsEachTime(t *testing.T) {
	tk := tokenizer.NewFake()
	cache := NewCache(xcache.NewNoop[Index]())

	idx1, err := cache.GetOrBuild(context.Background(), tk)
	require.NoError(t, err)

	idx2, err := cache.GetOrBuild(context.Background(), tk)
	require.NoError(t, err)

	openBrace, err := tk.Encode("{")
	require.NoError(t, err)

	_, ok1 := idx1.IDs(RoleOpenBrace)[openBrace[0]]
	_, ok2 := idx2.IDs(RoleOpenBrace)[openBrace[0]]
	assert.True(t, ok1)
	assert.True(t, ok2)
}

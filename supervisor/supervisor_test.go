package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopforge/jsonguard/extractor"
	"github.com/loopforge/jsonguard/generr"
	"github.com/loopforge/jsonguard/internal/streams"
	"github.com/loopforge/jsonguard/internal/xcache"
	"github.com/loopforge/jsonguard/processor"
	"github.com/loopforge/jsonguard/schema"
	"github.com/loopforge/jsonguard/specialtokens"
	"github.com/loopforge/jsonguard/tokenizer"
	"github.com/loopforge/jsonguard/trie"
)

func newTestProcessor(t *testing.T, tk tokenizer.Tokenizer, root *schema.Node) *processor.Processor {
	t.Helper()

	special, err := specialtokens.Build(tk)
	require.NoError(t, err)

	cache := trie.NewCache(xcache.NewMemory[*trie.Trie](0, 0))
	p := processor.New(tk, special, cache)

	require.NoError(t, p.OnPrompt(context.Background(), root))

	return p
}

func tokensOf(t *testing.T, tk tokenizer.Tokenizer, text string) []tokenizer.ID {
	t.Helper()

	ids, err := tk.Encode(text)
	require.NoError(t, err)

	return ids
}

func TestSupervisor_HappyPathEmitsExtractedBytes(t *testing.T) {
	tk := tokenizer.NewFake()
	root, err := schema.Build(nil)
	require.NoError(t, err)

	p := newTestProcessor(t, tk, root)
	ext := extractor.New()
	s := New(tk, p, ext)

	text := `prose {"a":1} more prose`
	upstream := streams.SliceStream(tokensOf(t, tk, text))

	out := s.Run(context.Background(), upstream)

	var got []byte
	for out.Next() {
		got = append(got, out.Current()...)
	}

	require.NoError(t, out.Err())
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestSupervisor_BufferLimitExceeded(t *testing.T) {
	tk := tokenizer.NewFake()
	root, err := schema.Build(nil)
	require.NoError(t, err)

	p := newTestProcessor(t, tk, root)
	ext := extractor.New()
	s := New(tk, p, ext, WithBufferCap(4))

	text := `[1,2,3,4,5,6,7,8,9,10,11,12]`
	upstream := streams.SliceStream(tokensOf(t, tk, text))

	out := s.Run(context.Background(), upstream)

	for out.Next() {
	}

	err = out.Err()
	require.Error(t, err)

	var kindErr *generr.Error
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, generr.KindBufferLimitExceeded, kindErr.Kind)
}

func TestSupervisor_AbortsOnInvalidKey(t *testing.T) {
	// spec §8 E6.
	tk := tokenizer.NewFake()

	raw := []byte(`{"type":"object","properties":{"firstName":{"type":"string"},"lastName":{"type":"string"}},"required":["firstName"]}`)
	root, err := schema.Build(raw)
	require.NoError(t, err)

	p := newTestProcessor(t, tk, root)
	ext := extractor.New()
	s := New(tk, p, ext)

	text := `{"xyz"`
	upstream := streams.SliceStream(tokensOf(t, tk, text))

	out := s.Run(context.Background(), upstream)

	for out.Next() {
	}

	err = out.Err()
	require.Error(t, err)

	var kindErr *generr.Error
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, generr.KindAbortedDueToError, kindErr.Kind)
}

func TestSupervisor_CancellationStopsUpstream(t *testing.T) {
	tk := tokenizer.NewFake()
	root, err := schema.Build(nil)
	require.NoError(t, err)

	p := newTestProcessor(t, tk, root)
	ext := extractor.New()
	s := New(tk, p, ext)

	text := `{"a":1} more prose that keeps going for a while`
	upstream := streams.SliceStream(tokensOf(t, tk, text))

	ctx, cancel := context.WithCancel(context.Background())
	out := s.Run(ctx, upstream)

	require.True(t, out.Next())
	cancel()

	assert.NoError(t, out.Close())
}

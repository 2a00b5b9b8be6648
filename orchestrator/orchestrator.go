// Package orchestrator implements the top-level entry points of spec §4.8:
// generate and stream, with schema-aware constraint wiring (response-format
// negotiation, spec §4.10), post-generation validation, and a bounded
// exponential-temperature retry loop grounded on the teacher's
// llm/pipeline.pipeline.Process attempt/classify/retry loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/loopforge/jsonguard/extractor"
	"github.com/loopforge/jsonguard/generr"
	"github.com/loopforge/jsonguard/internal/log"
	"github.com/loopforge/jsonguard/internal/streams"
	"github.com/loopforge/jsonguard/processor"
	"github.com/loopforge/jsonguard/schema"
	"github.com/loopforge/jsonguard/specialtokens"
	"github.com/loopforge/jsonguard/supervisor"
	"github.com/loopforge/jsonguard/tokenizer"
	"github.com/loopforge/jsonguard/trie"
	"github.com/tidwall/gjson"
)

// Result is the outcome of a completed (non-streaming) generation.
type Result struct {
	// Text is the full decoded model output (response_format=text only).
	Text string

	// JSON is the extracted JSON document (response_format=jsonSchema
	// only), already validated (possibly after a snap-key/repair salvage
	// pass — see Validated).
	JSON json.RawMessage

	// Validated reports whether JSON passed structural validation as-is;
	// false with a nil error means it only validated after SnapObjectKeys
	// and/or Repair salvage (spec §4.9: "used as a salvage step, not as
	// primary acceptance").
	Validated bool

	// DetectedKeys is the processor's key-detection log (spec §4.5 #4),
	// in the order each key's closing quote was observed.
	DetectedKeys []string

	// Attempts is the number of generation attempts the retry loop used,
	// 1 when the first attempt succeeded.
	Attempts int
}

// Orchestrator wires the engine's components together and drives the two
// spec §4.8 entry points.
type Orchestrator struct {
	tk        tokenizer.Tokenizer
	decoder   Decoder
	trieCache *trie.Cache
	special   specialtokens.Index
}

// New builds an Orchestrator. trieCache and special are normally shared,
// process-wide instances (spec §5): build trieCache via
// trie.NewCache(xcache.NewMemory[...]) and special via
// specialtokens.NewCache(xcache.NewMemory[...]).GetOrBuild(ctx, tk) — both
// caches are keyed by tokenizer fingerprint and collapse concurrent builds
// via singleflight, so a single process-wide pair is safe to share across
// every Orchestrator built against the same tokenizer.
func New(tk tokenizer.Tokenizer, decoder Decoder, trieCache *trie.Cache, special specialtokens.Index) *Orchestrator {
	return &Orchestrator{tk: tk, decoder: decoder, trieCache: trieCache, special: special}
}

// Generate runs generation to completion, retrying on recoverable
// validation failure per spec §4.8/§7. "No model loaded" is never retried.
func (o *Orchestrator) Generate(ctx context.Context, params DecodeParams) (*Result, error) {
	if o.decoder == nil {
		return nil, generr.New(generr.KindNoModelSet)
	}

	maxRetries := params.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	bump := params.TempBumpFactor
	if bump <= 0 {
		bump = DefaultTempBumpFactor
	}

	temp := params.Temperature

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptParams := params
		attemptParams.Temperature = temp

		result, err := o.runOnce(ctx, attemptParams)
		if err == nil {
			result.Attempts = attempt + 1
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, generr.New(generr.KindCancelled)
		}

		var kindErr *generr.Error
		if !errors.As(err, &kindErr) || !kindErr.Kind.Retryable() {
			return nil, err
		}

		if attempt == maxRetries {
			break
		}

		temp = clampTemperature(temp * bump)

		if params.RetryDelay > 0 {
			select {
			case <-time.After(params.RetryDelay):
			case <-ctx.Done():
				return nil, generr.New(generr.KindCancelled)
			}
		}

		log.Warn(ctx, "jsonguard: retrying generation after validation failure",
			log.Int("attempt", attempt+1),
			log.Cause(lastErr),
		)
	}

	return nil, &generr.Error{Kind: generr.KindMaxRetriesExceeded, Cause: lastErr}
}

// Stream runs one generation attempt and returns a live byte-chunk stream
// (spec §4.8's stream entry point). Unlike Generate, it never retries: a
// stream that has already yielded bytes downstream cannot be retroactively
// replayed, so post-generation validation failure is the caller's concern
// when consuming a stream directly (spec §7: a streaming consumer always
// sees a terminal completion, a terminal error, or a cancellation).
func (o *Orchestrator) Stream(ctx context.Context, params DecodeParams) (streams.Stream[[]byte], error) {
	if o.decoder == nil {
		return nil, generr.New(generr.KindNoModelSet)
	}

	if params.ResponseFormat != ResponseFormatJSONSchema {
		return o.streamText(ctx, params)
	}

	root, err := schema.Build(params.Schema)
	if err != nil {
		return nil, err
	}

	proc, err := o.newProcessor(ctx, params, root)
	if err != nil {
		return nil, err
	}

	promptTokens, err := o.tk.Encode(params.Prompt)
	if err != nil {
		return nil, err
	}

	upstream, err := o.decoder.Decode(ctx, promptTokens, params, proc)
	if err != nil {
		return nil, err
	}

	sup := supervisor.New(o.tk, proc, extractor.New(), supervisor.WithBufferCap(bufferCapOf(params)))

	return sup.Run(ctx, upstream), nil
}

// streamText wraps the decoder's plain (unconstrained) token stream into a
// decoded-text byte-chunk stream, for response_format=text (spec §4.10: "no
// constraint wiring at all").
func (o *Orchestrator) streamText(ctx context.Context, params DecodeParams) (streams.Stream[[]byte], error) {
	promptTokens, err := o.tk.Encode(params.Prompt)
	if err != nil {
		return nil, err
	}

	upstream, err := o.decoder.Decode(ctx, promptTokens, params, nil)
	if err != nil {
		return nil, err
	}

	return streams.Map(upstream, func(id tokenizer.ID) []byte {
		text, decErr := o.tk.Decode([]tokenizer.ID{id})
		if decErr != nil {
			return nil
		}

		return []byte(text)
	}), nil
}

// runOnce drives one full generation attempt (prompt to completion) and,
// for jsonSchema requests, validates the result — applying the snap-key and
// Repair salvage passes before giving up (spec §4.9).
func (o *Orchestrator) runOnce(ctx context.Context, params DecodeParams) (*Result, error) {
	if params.ResponseFormat != ResponseFormatJSONSchema {
		return o.runOnceText(ctx, params)
	}

	root, err := schema.Build(params.Schema)
	if err != nil {
		return nil, err
	}

	proc, err := o.newProcessor(ctx, params, root)
	if err != nil {
		return nil, err
	}

	promptTokens, err := o.tk.Encode(params.Prompt)
	if err != nil {
		return nil, err
	}

	upstream, err := o.decoder.Decode(ctx, promptTokens, params, proc)
	if err != nil {
		return nil, err
	}

	sup := supervisor.New(o.tk, proc, extractor.New(), supervisor.WithBufferCap(bufferCapOf(params)))

	out := sup.Run(ctx, upstream)
	defer out.Close()

	var raw []byte
	for out.Next() {
		raw = append(raw, out.Current()...)
	}

	if err := out.Err(); err != nil {
		return nil, err
	}

	return o.validateResult(raw, root, proc)
}

func (o *Orchestrator) runOnceText(ctx context.Context, params DecodeParams) (*Result, error) {
	promptTokens, err := o.tk.Encode(params.Prompt)
	if err != nil {
		return nil, err
	}

	upstream, err := o.decoder.Decode(ctx, promptTokens, params, nil)
	if err != nil {
		return nil, err
	}
	defer upstream.Close()

	var ids []tokenizer.ID
	for upstream.Next() {
		ids = append(ids, upstream.Current())
	}

	if err := upstream.Err(); err != nil {
		return nil, err
	}

	text, err := o.tk.Decode(ids)
	if err != nil {
		return nil, err
	}

	return &Result{Text: text}, nil
}

func (o *Orchestrator) validateResult(raw []byte, root *schema.Node, proc *processor.Processor) (*Result, error) {
	valid, err := schema.ValidateJSON(raw, root)
	if err == nil && valid {
		return &Result{JSON: raw, Validated: true, DetectedKeys: proc.AllDetectedKeys()}, nil
	}

	repaired, ok := schema.Repair(string(raw))
	if !ok {
		return nil, generr.New(generr.KindValidationFailed)
	}

	salvaged := []byte(repaired)
	if gjson.ParseBytes(salvaged).IsObject() {
		salvaged = schema.SnapObjectKeys(salvaged, root)
	}

	if valid, err := schema.ValidateJSON(salvaged, root); err == nil && valid {
		return &Result{JSON: json.RawMessage(salvaged), Validated: false, DetectedKeys: proc.AllDetectedKeys()}, nil
	}

	return nil, generr.New(generr.KindValidationFailed)
}

func (o *Orchestrator) newProcessor(ctx context.Context, params DecodeParams, root *schema.Node) (*processor.Processor, error) {
	opts := []processor.Option{}

	if params.SoftBias != 0 {
		opts = append(opts, processor.WithSoftBias(params.SoftBias))
	}

	if params.IncludeWhitespace {
		opts = append(opts, processor.WithIncludeWhitespace(true))
	}

	proc := processor.New(o.tk, o.special, o.trieCache, opts...)

	if err := proc.OnPrompt(ctx, root); err != nil {
		return nil, err
	}

	return proc, nil
}

func bufferCapOf(params DecodeParams) int {
	if params.BufferCap > 0 {
		return params.BufferCap
	}

	return supervisor.DefaultBufferCap
}

// Package processor implements the key-detection logit processor of spec
// §4.5: it wires the JSON state machine, the context tracker and the token
// trie together, applying mask hints to logits before sampling and
// updating all three after a token is sampled.
package processor

import (
	"context"
	"math"

	"github.com/loopforge/jsonguard/generr"
	"github.com/loopforge/jsonguard/jsonfsm"
	"github.com/loopforge/jsonguard/mask"
	"github.com/loopforge/jsonguard/schema"
	"github.com/loopforge/jsonguard/schemacontext"
	"github.com/loopforge/jsonguard/specialtokens"
	"github.com/loopforge/jsonguard/tokenizer"
	"github.com/loopforge/jsonguard/trie"
)

// Logits is the abstract decoder-facing logit vector: index by token id.
// The orchestrator's concrete decoder binding owns the real tensor type;
// this engine only ever reads/writes through this narrow view (spec §6
// "Decoder contract").
type Logits []float32

const negInf = float32(math.Inf(-1))

func (l Logits) applyHard(allow map[tokenizer.ID]struct{}) {
	for id := range l {
		if _, ok := allow[tokenizer.ID(id)]; !ok {
			l[id] = negInf
		}
	}
}

func (l Logits) applySoft(allow map[tokenizer.ID]struct{}, bias float32) {
	for id := range allow {
		if int(id) < len(l) {
			l[id] += bias
		}
	}
}

// Processor is per-generation, owned exclusively by the orchestrator task
// (spec §3 lifecycles, §9 "no cyclic ownership").
type Processor struct {
	tk         tokenizer.Tokenizer
	trieCache  *trie.Cache
	maskGen    *mask.Generator
	specialIdx specialtokens.Index
	softBias   float32

	machine *jsonfsm.Machine
	tracker *schemacontext.Tracker

	currentTrie *trie.Trie
	path        trie.Path

	position     int
	detectedKeys []string

	fatal    bool
	fatalErr *generr.Error
	lastErr  *generr.Error

	// hadHardConstraint records whether the mask hint in effect for the
	// token just sampled was a non-empty hard allow-set, so DidSample can
	// tell a hard-mask escape (sampler picked a token outside a real
	// constraint: invalidTokenSelected) apart from a position where no
	// token was ever valid (noValidTokens).
	hadHardConstraint bool
}

// Option configures a Processor at construction.
type Option func(*Processor)

// WithSoftBias overrides the default +2 soft-mask bias (spec §4.4).
func WithSoftBias(bias float32) Option {
	return func(p *Processor) { p.softBias = bias }
}

// WithIncludeWhitespace controls whether whitespace tokens are unioned into
// non-terminal allow sets (spec §4.4).
func WithIncludeWhitespace(include bool) Option {
	return func(p *Processor) {
		p.maskGen = mask.New(p.special(), include)
	}
}

func New(tk tokenizer.Tokenizer, special specialtokens.Index, trieCache *trie.Cache, opts ...Option) *Processor {
	p := &Processor{
		tk:        tk,
		trieCache: trieCache,
		softBias:  2,
		machine:   jsonfsm.New(),
	}
	p.maskGen = mask.New(special, false)
	p.specialIdx = special

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// specialIdx backs the special() accessor used by options that need to
// rebuild maskGen after construction.
func (p *Processor) special() specialtokens.Index { return p.specialIdx }

// OnPrompt resets the state machine and tracker for a fresh generation
// against root (spec §4.5 #1).
func (p *Processor) OnPrompt(ctx context.Context, root *schema.Node) error {
	p.machine.Reset()
	p.tracker = schemacontext.New(root)
	p.position = 0
	p.detectedKeys = nil
	p.fatal = false
	p.fatalErr = nil
	p.lastErr = nil

	return p.rebuildTrie(ctx)
}

func (p *Processor) rebuildTrie(ctx context.Context) error {
	keys := p.tracker.AllowedKeys()

	t, err := p.trieCache.GetOrBuild(ctx, keys, p.tk)
	if err != nil {
		return err
	}

	p.currentTrie = t
	p.path = t.Root()

	return nil
}

// Process computes the current mask hint and applies it to logits in
// place, returning the fatal flag and, if fatal, the error to surface
// (spec §4.5 #2). When fatal, logits are rewritten to permit only EOS.
func (p *Processor) Process(logits Logits) (bool, *generr.Error) {
	if p.fatal || p.machine.HasError() {
		p.fatal = true
		if p.fatalErr == nil {
			p.fatalErr = generr.NoValidTokens(p.machine.CurrentKey(), p.position)
		}

		p.permitOnlyEOS(logits)

		return true, p.fatalErr
	}

	hint := p.maskGen.Generate(p.machine, p.path)
	if hint == nil {
		p.hadHardConstraint = false
		return false, nil
	}

	switch hint.Mode {
	case mask.ModeHard:
		p.hadHardConstraint = len(hint.Allow) > 0

		if len(hint.Allow) == 0 && !p.machine.Done() {
			p.lastErr = generr.New(generr.KindEmptyConstraints)
		}

		logits.applyHard(hint.Allow)
	case mask.ModeSoft:
		p.hadHardConstraint = false
		logits.applySoft(hint.Allow, p.softBias)
	}

	return false, nil
}

func (p *Processor) permitOnlyEOS(logits Logits) {
	eos, ok := p.tk.EOS()
	if !ok {
		return
	}

	for id := range logits {
		if tokenizer.ID(id) != eos {
			logits[id] = negInf
		}
	}
}

// DidSample advances all per-generation state after a token is sampled
// (spec §4.5 #3). ctx is used only for trie-cache lookups triggered by a
// container transition.
func (p *Processor) DidSample(ctx context.Context, id tokenizer.ID) error {
	p.position++

	wasInKeyBody := p.inKeyBody()

	text, err := p.tk.Decode([]tokenizer.ID{id})
	if err != nil {
		return err
	}

	for _, r := range text {
		ev := p.machine.Step(r)

		if ev.KeyClosedOK {
			p.tracker.KeyClosed(ev.KeyClosed)
			p.detectedKeys = append(p.detectedKeys, ev.KeyClosed)
		}

		if ev.ObjectOpened {
			p.tracker.EnterObject()

			if err := p.rebuildTrie(ctx); err != nil {
				return err
			}
		}

		if ev.ArrayOpened {
			p.tracker.EnterArray()
		}

		if ev.ObjectClosed || ev.ArrayClosed {
			p.tracker.ExitScope()

			if err := p.rebuildTrie(ctx); err != nil {
				return err
			}
		}
	}

	if wasInKeyBody && p.inKeyBody() {
		next, ok := p.path.Advance(id)
		if !ok {
			p.fatal = true
			p.fatalErr = generr.InvalidTokenSelected(uint32(id), p.machine.CurrentKey(), "trie-permitted key continuation")
		} else {
			p.path = next
		}
	}

	if p.awaitingNewKey() {
		p.path = p.currentTrie.Root()
	}

	if p.machine.HasError() && p.fatalErr == nil {
		p.fatal = true

		if p.hadHardConstraint {
			p.fatalErr = generr.InvalidTokenSelected(uint32(id), p.machine.CurrentKey(), "hard-masked structural token")
		} else {
			p.fatalErr = generr.NoValidTokens(p.machine.CurrentKey(), p.position)
		}
	}

	return nil
}

func (p *Processor) inKeyBody() bool {
	if p.machine.Phase() != jsonfsm.PhaseInString {
		return false
	}

	top, ok := p.machine.Top()

	return ok && top.Kind == jsonfsm.FrameString && top.StringKind == jsonfsm.StringKey
}

func (p *Processor) awaitingNewKey() bool {
	if p.machine.Phase() != jsonfsm.PhaseInObject {
		return false
	}

	top, ok := p.machine.Top()
	if !ok {
		return false
	}

	return top.ObjectSub == jsonfsm.ObjectExpectKeyFirstQuote || top.ObjectSub == jsonfsm.ObjectExpectKeyOrEnd
}

func (p *Processor) HasError() bool            { return p.machine.HasError() || p.lastErr != nil }
func (p *Processor) HasFatalError() bool       { return p.fatal }
func (p *Processor) FatalError() *generr.Error { return p.fatalErr }

// ClearError clears the non-fatal last-error flag (spec §4.5 #4). Fatal
// errors are not clearable; a fatal generation is over.
func (p *Processor) ClearError() { p.lastErr = nil }

func (p *Processor) AllDetectedKeys() []string {
	out := make([]string, len(p.detectedKeys))
	copy(out, p.detectedKeys)

	return out
}

func (p *Processor) Position() int { return p.position }

// CurrentPhase reports the state machine's outer phase, for the
// supervisor's diagnostic trail (spec §4.7).
func (p *Processor) CurrentPhase() jsonfsm.Phase { return p.machine.Phase() }

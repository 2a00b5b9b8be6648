// Package mask implements the logit-mask-hint generator described in spec
// §3 (MaskHint) and §4.4: a pure function of (state machine phase, trie
// path, special-token index) that tells the decoder which tokens may be
// sampled next, and how strongly to enforce that.
package mask

import (
	"github.com/loopforge/jsonguard/jsonfsm"
	"github.com/loopforge/jsonguard/specialtokens"
	"github.com/loopforge/jsonguard/tokenizer"
	"github.com/loopforge/jsonguard/trie"
)

// Mode is hard (the consumer zeroes every logit outside Allow) or soft (the
// consumer adds a positive bias to logits inside Allow and leaves the rest
// untouched).
type Mode int

const (
	ModeHard Mode = iota
	ModeSoft
)

// Hint is spec §3's MaskHint. A nil *Hint from Generate means "no
// constraint" (inString(body{value}) in the table of spec §4.4).
type Hint struct {
	Allow map[tokenizer.ID]struct{}
	Mode  Mode
}

func newHint(mode Mode, sets ...map[tokenizer.ID]struct{}) *Hint {
	allow := make(map[tokenizer.ID]struct{})
	for _, s := range sets {
		for id := range s {
			allow[id] = struct{}{}
		}
	}

	return &Hint{Allow: allow, Mode: mode}
}

// Generator produces a Hint for the current decoding step from the state
// machine's phase, an optional trie path (used only in inString(key)), and
// the tokenizer's special-token index. It is stateless and reentrant —
// spec §4.4 calls it a pure function of state, never of model weights.
type Generator struct {
	special           specialtokens.Index
	includeWhitespace bool
}

// New builds a Generator bound to a tokenizer's special-token index.
// includeWhitespace, when true, unions the whitespace role into every
// non-error, non-done, non-inString(key) allow set (spec §4.4).
func New(special specialtokens.Index, includeWhitespace bool) *Generator {
	return &Generator{special: special, includeWhitespace: includeWhitespace}
}

// valueStartSet is the allow-set shared by root, inObject(expectValue) and
// inArray(expectValueOrEnd): quotes, '{' and '['. Leading digit/minus/
// true-false-null first characters are intentionally not modeled here —
// spec §4.4 marks that part of the table "ideally", soft-only, and §9
// explicitly downgrades soft-mode completeness to best-effort, not a
// correctness constraint.
func (g *Generator) valueStartSet() map[tokenizer.ID]struct{} {
	return g.special.Union(specialtokens.RoleQuote, specialtokens.RoleOpenBrace, specialtokens.RoleOpenBracket)
}

func (g *Generator) withWhitespace(allow map[tokenizer.ID]struct{}) map[tokenizer.ID]struct{} {
	if !g.includeWhitespace {
		return allow
	}

	for id := range g.special.IDs(specialtokens.RoleWhitespace) {
		allow[id] = struct{}{}
	}

	return allow
}

// Generate computes the Hint for the machine's current phase. path is only
// consulted while the machine is in inString(key); it may be the zero
// Path when unused.
func (g *Generator) Generate(m *jsonfsm.Machine, path trie.Path) *Hint {
	if m.HasError() || m.Done() {
		return &Hint{Allow: map[tokenizer.ID]struct{}{}, Mode: ModeHard}
	}

	switch m.Phase() {
	case jsonfsm.PhaseRoot:
		return newHint(ModeSoft, g.withWhitespace(g.valueStartSet()))

	case jsonfsm.PhaseInObject:
		top, ok := m.Top()
		if !ok {
			return nil
		}

		switch top.ObjectSub {
		case jsonfsm.ObjectExpectKeyFirstQuote, jsonfsm.ObjectExpectKeyOrEnd:
			return newHint(ModeHard, g.withWhitespace(g.special.Union(specialtokens.RoleQuote, specialtokens.RoleCloseBrace)))
		case jsonfsm.ObjectExpectColon:
			return newHint(ModeHard, g.withWhitespace(g.special.Union(specialtokens.RoleColon)))
		case jsonfsm.ObjectExpectValue:
			return newHint(ModeSoft, g.withWhitespace(g.valueStartSet()))
		case jsonfsm.ObjectExpectCommaOrEnd:
			return newHint(ModeHard, g.withWhitespace(g.special.Union(specialtokens.RoleComma, specialtokens.RoleCloseBrace)))
		}

		return nil

	case jsonfsm.PhaseInArray:
		top, ok := m.Top()
		if !ok {
			return nil
		}

		switch top.ArraySub {
		case jsonfsm.ArrayExpectValueOrEnd:
			allow := g.valueStartSet()
			for id := range g.special.IDs(specialtokens.RoleCloseBracket) {
				allow[id] = struct{}{}
			}

			return newHint(ModeSoft, g.withWhitespace(allow))
		case jsonfsm.ArrayExpectCommaOrEnd:
			return newHint(ModeHard, g.withWhitespace(g.special.Union(specialtokens.RoleComma, specialtokens.RoleCloseBracket)))
		}

		return nil

	case jsonfsm.PhaseInString:
		top, ok := m.Top()
		if !ok || top.Kind != jsonfsm.FrameString {
			return nil
		}

		if top.StringKind == jsonfsm.StringValue {
			return nil
		}

		allowed, atTerminal := path.AllowedNext()
		allow := make(map[tokenizer.ID]struct{}, len(allowed))

		for _, id := range allowed {
			allow[id] = struct{}{}
		}

		if atTerminal {
			for id := range g.special.IDs(specialtokens.RoleQuote) {
				allow[id] = struct{}{}
			}
		}

		return &Hint{Allow: allow, Mode: ModeHard}

	default:
		return nil
	}
}

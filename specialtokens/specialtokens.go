// Package specialtokens maps the JSON structural glyphs to the sets of
// tokenizer IDs that decode to exactly that glyph, computed once per
// tokenizer fingerprint (spec §3, §4 component 3).
package specialtokens

import (
	"strings"
	"unicode"

	"github.com/loopforge/jsonguard/tokenizer"
)

// Role names one structural glyph category.
type Role int

const (
	RoleOpenBrace Role = iota
	RoleCloseBrace
	RoleOpenBracket
	RoleCloseBracket
	RoleQuote
	RoleColon
	RoleComma
	RoleBackslash
	RoleWhitespace
)

// Index is the disjoint-by-construction mapping described in spec §3: the
// union of all role sets is a subset of the vocabulary, and every id in a
// role set decodes to exactly that role's glyph.
type Index struct {
	roles map[Role]map[tokenizer.ID]struct{}
}

// Build scans every id in [0, vocabSize) that the tokenizer reports and
// classifies each by what it decodes to. Tokenizers that do not report a
// finite vocab size (VocabSize returns ok=false) fall back to scanning
// ids 0..65535, which is sufficient for every tokenizer in this corpus
// (byte-level and BPE vocabularies alike stay well under that ceiling for
// their single-glyph special tokens).
func Build(tk tokenizer.Tokenizer) (Index, error) {
	idx := Index{roles: make(map[Role]map[tokenizer.ID]struct{})}

	limit := 65536
	if n, ok := tk.VocabSize(); ok && n > 0 {
		limit = n
	}

	for i := 0; i < limit; i++ {
		id := tokenizer.ID(i)

		text, err := tk.Decode([]tokenizer.ID{id})
		if err != nil {
			continue
		}

		role, ok := classify(text)
		if !ok {
			continue
		}

		if idx.roles[role] == nil {
			idx.roles[role] = make(map[tokenizer.ID]struct{})
		}

		idx.roles[role][id] = struct{}{}
	}

	return idx, nil
}

func classify(text string) (Role, bool) {
	switch text {
	case "{":
		return RoleOpenBrace, true
	case "}":
		return RoleCloseBrace, true
	case "[":
		return RoleOpenBracket, true
	case "]":
		return RoleCloseBracket, true
	case `"`:
		return RoleQuote, true
	case ":":
		return RoleColon, true
	case ",":
		return RoleComma, true
	case `\`:
		return RoleBackslash, true
	}

	if text != "" && isAllWhitespace(text) {
		return RoleWhitespace, true
	}

	return 0, false
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IDs returns the token set for a role, or nil if the tokenizer has no
// single-token representation of that glyph.
func (idx Index) IDs(role Role) map[tokenizer.ID]struct{} {
	return idx.roles[role]
}

// Union returns the set union of the given roles, allocating a fresh map.
func (idx Index) Union(roles ...Role) map[tokenizer.ID]struct{} {
	out := make(map[tokenizer.ID]struct{})

	for _, role := range roles {
		for id := range idx.roles[role] {
			out[id] = struct{}{}
		}
	}

	return out
}

// FingerprintKey builds the cache key component contributed by the
// tokenizer side of (keys, fingerprint) cache keys used throughout
// this module (spec §4.3, §5).
func FingerprintKey(tk tokenizer.Tokenizer) string {
	return tk.Fingerprint()
}

// CacheKey joins sorted permitted keys and a tokenizer fingerprint into the
// content-addressed cache key spec §4.3 requires for the trie cache.
func CacheKey(sortedKeys []string, fingerprint string) string {
	var b strings.Builder

	b.WriteString(fingerprint)
	b.WriteByte('|')

	for i, k := range sortedKeys {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(k)
	}

	return b.String()
}

package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// normalize lower-cases k and strips underscores/hyphens, per spec §4.9.
func normalize(k string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(k) {
		if r == '_' || r == '-' {
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// SnapKey maps an approximate key k onto the closest member of schemaKeys,
// per spec §4.9 / E7: normalize both sides, accept an exact normalized
// match, otherwise accept a single edit-distance-1 correction. On a tie
// among edit-distance-1 candidates, prefer a key in required, then the
// shortest key, then the lexicographically first. Returns "", false when
// no candidate is within distance 1.
func SnapKey(k string, schemaKeys []string, required map[string]struct{}) (string, bool) {
	if len(schemaKeys) == 0 {
		return "", false
	}

	nk := normalize(k)

	for _, candidate := range schemaKeys {
		if normalize(candidate) == nk {
			return candidate, true
		}
	}

	var best []string

	for _, candidate := range schemaKeys {
		if levenshtein.ComputeDistance(nk, normalize(candidate)) == 1 {
			best = append(best, candidate)
		}
	}

	if len(best) == 0 {
		return "", false
	}

	sort.Slice(best, func(i, j int) bool {
		_, iReq := required[best[i]]
		_, jReq := required[best[j]]

		if iReq != jReq {
			return iReq
		}

		if len(best[i]) != len(best[j]) {
			return len(best[i]) < len(best[j])
		}

		return best[i] < best[j]
	})

	return best[0], true
}

// SnapObjectKeys rewrites the top-level keys of a raw JSON object using
// SnapKey against node's declared keys, leaving keys with no snap match
// untouched. Used as a salvage step before Validate, never as primary
// acceptance (spec §4.9). Grounded on the teacher's raw-JSON field
// read/rewrite idiom (`gjson.GetBytes` / `sjson.SetBytes`/`DeleteBytes`,
// used throughout `llm/transformer/...`): a renamed key's raw value is
// moved with `sjson.SetRawBytes` and the old key dropped with
// `sjson.DeleteBytes`, rather than round-tripping through `map[string]any`.
// raw that is not a JSON object, or has no matching schema keys, is
// returned unchanged.
func SnapObjectKeys(raw []byte, node *Node) []byte {
	keys := node.ObjectKeys()

	parsed := gjson.ParseBytes(raw)
	if len(keys) == 0 || !parsed.IsObject() {
		return raw
	}

	required := make(map[string]struct{})
	for _, k := range node.RequiredKeys() {
		required[k] = struct{}{}
	}

	out := raw

	parsed.ForEach(func(key, value gjson.Result) bool {
		k := key.String()

		snapped, ok := SnapKey(k, keys, required)
		if !ok || snapped == k {
			return true
		}

		rewritten, err := sjson.SetRawBytes(out, snapped, []byte(value.Raw))
		if err != nil {
			return true
		}

		rewritten, err = sjson.DeleteBytes(rewritten, k)
		if err != nil {
			return true
		}

		out = rewritten

		return true
	})

	return out
}

// Repair attempts to turn a syntactically broken JSON fragment (e.g. one
// truncated mid-stream by a maxTokens cutoff) into valid JSON, grounded on
// the teacher's xjson.SafeJSONRawMessage: accept as-is if already valid,
// otherwise run jsonrepair, otherwise report failure. Returns ok=false
// rather than ever fabricating a fallback document — callers decide what
// "no salvage possible" means for their GenerationErrorKind.
func Repair(raw string) (json.RawMessage, bool) {
	if len(strings.TrimSpace(raw)) == 0 {
		return nil, false
	}

	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), true
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil || !json.Valid([]byte(repaired)) {
		return nil, false
	}

	return json.RawMessage(repaired), true
}

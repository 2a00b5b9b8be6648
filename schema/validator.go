package schema

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Validate performs the structural check described in spec §4.9: required
// keys present, primitive kinds matching, array items validated
// recursively, enum membership by exact string equality. Extra object keys
// are accepted. This is not a full JSON-Schema validator — it does not
// enforce any keyword beyond type/properties/required/items/enum/nullable
// (spec §1 non-goals).
//
// It walks a parsed gjson.Result rather than an unmarshaled map[string]any
// tree, grounded on the teacher's raw-JSON field-read idiom (`gjson.GetBytes`
// / `Result.ForEach`, used throughout `llm/transformer/...`) rather than a
// decode-then-type-switch pass.
func Validate(value gjson.Result, node *Node) bool {
	if node.Kind() == KindAny {
		return true
	}

	if value.Type == gjson.Null {
		return node.Nullable()
	}

	switch node.Kind() {
	case KindObject:
		if !value.IsObject() {
			return false
		}

		for _, key := range node.RequiredKeys() {
			if !value.Get(gjson.Escape(key)).Exists() {
				return false
			}
		}

		ok := true

		value.ForEach(func(key, v gjson.Result) bool {
			if !Validate(v, node.Property(key.String())) {
				ok = false
				return false
			}

			return true
		})

		return ok

	case KindArray:
		if !value.IsArray() {
			return false
		}

		ok := true

		value.ForEach(func(_, v gjson.Result) bool {
			if !Validate(v, node.Items()) {
				ok = false
				return false
			}

			return true
		})

		return ok

	case KindString:
		if value.Type != gjson.String {
			return false
		}

		if node.HasEnum() && !node.EnumContains(value.String()) {
			return false
		}

		return true

	case KindNumber:
		return value.Type == gjson.Number

	case KindInteger:
		if value.Type != gjson.Number {
			return false
		}

		f := value.Float()

		return f == float64(int64(f))

	case KindBoolean:
		return value.Type == gjson.True || value.Type == gjson.False

	case KindNull:
		return false // value.Type == gjson.Null already handled above

	default:
		return true
	}
}

// ValidateJSON parses raw with gjson and validates it against node.
func ValidateJSON(raw []byte, node *Node) (bool, error) {
	if !gjson.ValidBytes(raw) {
		return false, fmt.Errorf("schema: invalid JSON: %q", raw)
	}

	return Validate(gjson.ParseBytes(raw), node), nil
}

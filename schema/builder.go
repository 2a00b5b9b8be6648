package schema

import (
	"encoding/json"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/samber/lo"
)

// Build decodes raw as a JSON-Schema document and narrows it into a Node
// tree. Unknown keywords are ignored. A malformed raw document (not valid
// JSON, or a shape jsonschema-go rejects) is reported as an error. That
// includes a malformed subschema (properties not a mapping, items not a
// schema/boolean): the whole document fails to decode and no partial tree
// is returned. Only a subschema written as JSON null narrows to nil, which
// is treated as the "any" schema.
func Build(raw json.RawMessage) (*Node, error) {
	if len(raw) == 0 {
		return AnyNode(), nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}

	return narrow(&s), nil
}

// narrow converts one jsonschema.Schema into a Node, recursing into
// Properties/Items exactly the way the teacher's xjson.transformSchemaRecursive
// walks sub-schema fields, but collapsing into Node's narrow shape instead
// of preserving the full JSON-Schema object graph.
func narrow(s *jsonschema.Schema) *Node {
	if s == nil {
		return nil
	}

	n := &Node{kind: kindOf(s)}

	if isNullableUnion(s) {
		n.nullable = true
	}

	if n.kind == KindObject {
		if s.Properties != nil {
			n.properties = make(map[string]*Node, len(s.Properties))

			for key, sub := range s.Properties {
				child := narrow(sub)
				if child == nil {
					child = AnyNode()
				}

				n.properties[key] = child
			}

			n.objectKeys = lo.Keys(n.properties)
			sort.Strings(n.objectKeys)
		}

		if len(s.Required) > 0 {
			n.required = make(map[string]struct{}, len(s.Required))
			for _, key := range lo.Uniq(s.Required) {
				n.required[key] = struct{}{}
			}
		}
	}

	if n.kind == KindArray && s.Items != nil {
		n.items = narrow(s.Items)
	}

	if enum := stringEnum(s.Enum); len(enum) > 0 {
		n.hasEnum = true
		n.enumValues = make(map[string]struct{}, len(enum))

		for _, v := range enum {
			n.enumValues[v] = struct{}{}
		}
	}

	return n
}

// kindOf maps the JSON-Schema "type"/"types" keywords to Kind. A type list
// containing exactly one non-null type plus "null" narrows to that type
// with Nullable() reporting true (see isNullableUnion); any other multi-type
// combination narrows to Any, since this engine does not support unions
// beyond the nullable special case (spec §1 non-goals).
func kindOf(s *jsonschema.Schema) Kind {
	if s.Type != "" {
		return kindFromString(s.Type)
	}

	types := nonNullTypes(s)
	if len(types) == 1 {
		return kindFromString(types[0])
	}

	return KindAny
}

func kindFromString(t string) Kind {
	switch t {
	case "object":
		return KindObject
	case "array":
		return KindArray
	case "string":
		return KindString
	case "number":
		return KindNumber
	case "integer":
		return KindInteger
	case "boolean":
		return KindBoolean
	case "null":
		return KindNull
	default:
		return KindAny
	}
}

func isNullableUnion(s *jsonschema.Schema) bool {
	if s.Type != "" {
		return false
	}

	hasNull := false

	for _, t := range s.Types {
		if t == "null" {
			hasNull = true
		}
	}

	return hasNull && len(nonNullTypes(s)) == 1
}

func nonNullTypes(s *jsonschema.Schema) []string {
	out := make([]string, 0, len(s.Types))

	for _, t := range s.Types {
		if t != "null" {
			out = append(out, t)
		}
	}

	return out
}

// stringEnum extracts the string members of a JSON-Schema enum, ignoring
// non-string members — this engine only matches/validates string enums
// (spec §4.9: "enum membership checked with exact string equality").
func stringEnum(values []any) []string {
	out := make([]string, 0, len(values))

	for _, v := range values {
		if sv, ok := v.(string); ok {
			out = append(out, sv)
		}
	}

	return out
}

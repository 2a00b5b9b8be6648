// Package schema implements the minimal, immutable schema tree the
// constrained-decoding engine reasons about (spec §3, §4.1), built from a
// JSON-Schema subset. The wire document is decoded with
// github.com/google/jsonschema-go — already depended on elsewhere in this
// corpus (see DESIGN.md) — and then narrowed into the small Node type
// below; the engine never walks the full JSON-Schema object graph at
// decode time.
package schema

// Kind enumerates the value shapes this engine understands.
type Kind int

const (
	KindAny Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	default:
		return "any"
	}
}

// Node is an immutable schema subtree. Zero value is the "any" schema.
type Node struct {
	kind       Kind
	nullable   bool
	properties map[string]*Node
	objectKeys []string // sorted
	required   map[string]struct{}
	items      *Node
	enumValues map[string]struct{}
	hasEnum    bool
}

func (n *Node) Kind() Kind {
	if n == nil {
		return KindAny
	}

	return n.kind
}

// Nullable reports whether null is an acceptable value for this node, in
// addition to its primary Kind — derived from a JSON-Schema "type" array
// that includes "null" alongside another type.
func (n *Node) Nullable() bool {
	if n == nil {
		return true
	}

	return n.nullable || n.kind == KindAny
}

// ObjectKeys returns the sorted property names, or nil if this is not an
// object schema (or is the "any" schema).
func (n *Node) ObjectKeys() []string {
	if n == nil {
		return nil
	}

	return n.objectKeys
}

// Property returns the subschema for key, or the "any" schema if key is not
// declared (additional properties are always permitted per spec §4.1/§1
// non-goals — this engine does not enforce additionalProperties).
func (n *Node) Property(key string) *Node {
	if n == nil || n.properties == nil {
		return AnyNode()
	}

	if sub, ok := n.properties[key]; ok {
		return sub
	}

	return AnyNode()
}

// Required reports whether key is in this object's required set.
func (n *Node) Required(key string) bool {
	if n == nil || n.required == nil {
		return false
	}

	_, ok := n.required[key]

	return ok
}

// RequiredKeys returns all required property names, order unspecified.
func (n *Node) RequiredKeys() []string {
	if n == nil {
		return nil
	}

	out := make([]string, 0, len(n.required))
	for k := range n.required {
		out = append(out, k)
	}

	return out
}

// Items returns the array element schema, or the "any" schema if this is
// not an array schema or has no declared items.
func (n *Node) Items() *Node {
	if n == nil || n.items == nil {
		return AnyNode()
	}

	return n.items
}

// HasEnum reports whether this node restricts its value to an enumerated
// set of strings.
func (n *Node) HasEnum() bool {
	return n != nil && n.hasEnum
}

// EnumContains reports whether value is a member of the enum set. Only
// meaningful when HasEnum is true.
func (n *Node) EnumContains(value string) bool {
	if n == nil || n.enumValues == nil {
		return false
	}

	_, ok := n.enumValues[value]

	return ok
}

// EnumValues returns the enumerated strings, order unspecified.
func (n *Node) EnumValues() []string {
	if n == nil {
		return nil
	}

	out := make([]string, 0, len(n.enumValues))
	for v := range n.enumValues {
		out = append(out, v)
	}

	return out
}

var anySingleton = &Node{kind: KindAny}

// AnyNode returns the shared immutable "any" schema node.
func AnyNode() *Node { return anySingleton }

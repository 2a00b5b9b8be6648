// Package schemacontext maintains the schema subtree corresponding to the
// current JSON cursor position, including array-element scopes (spec §3
// ContextTracker, §4 component 6).
package schemacontext

import "github.com/loopforge/jsonguard/schema"

// Tracker mirrors spec §3's ContextTracker: a stack of schema nodes, the
// most recently closed object key, and a parallel stack recording whether
// each open scope is an array element scope. It holds only an immutable
// reference to the schema tree it was built with (spec §9: no cyclic
// ownership with the processor or state machine).
type Tracker struct {
	schemaPath   []*schema.Node
	lastKey      string
	inArrayStack []bool
}

// New starts a tracker at root, with root positioned at the schema's top
// level (Any if root is nil).
func New(root *schema.Node) *Tracker {
	if root == nil {
		root = schema.AnyNode()
	}

	return &Tracker{schemaPath: []*schema.Node{root}}
}

// CurrentSchema is the top of schemaPath.
func (t *Tracker) CurrentSchema() *schema.Node {
	return t.schemaPath[len(t.schemaPath)-1]
}

// Reset returns the tracker to its initial state at root.
func (t *Tracker) Reset(root *schema.Node) {
	if root == nil {
		root = schema.AnyNode()
	}

	t.schemaPath = t.schemaPath[:0]
	t.schemaPath = append(t.schemaPath, root)
	t.lastKey = ""
	t.inArrayStack = t.inArrayStack[:0]
}

// KeyClosed records the most recently closed object key so the next
// EnterObject call knows which property schema to descend into.
func (t *Tracker) KeyClosed(key string) {
	t.lastKey = key
}

// EnterObject descends into the schema for the object that just opened: if
// it was preceded by a key (lastKey set), descend into that property's
// schema; if it is the element of an array currently being walked, descend
// into the array's items schema instead.
func (t *Tracker) EnterObject() {
	next := t.nextScopeSchema()
	t.schemaPath = append(t.schemaPath, next)
	t.inArrayStack = append(t.inArrayStack, false)
	t.lastKey = ""
}

// EnterArray descends the same way EnterObject does, but marks the new
// scope as an array scope, so that InArray and the items descent of
// nextScopeSchema apply until the matching ExitScope.
func (t *Tracker) EnterArray() {
	next := t.nextScopeSchema()
	t.schemaPath = append(t.schemaPath, next)
	t.inArrayStack = append(t.inArrayStack, true)
	t.lastKey = ""
}

// nextScopeSchema decides which schema node a newly opened container
// enters: properties[lastKey] when following a key, items when inside an
// array element position, the schema tree's own root when this is the
// document's own top-level container (no key closed yet, no enclosing
// array — schemaPath still holds only the initial sentinel pushed by New),
// or Any otherwise (spec §3).
func (t *Tracker) nextScopeSchema() *schema.Node {
	if t.lastKey != "" {
		return t.CurrentSchema().Property(t.lastKey)
	}

	if len(t.inArrayStack) > 0 && t.inArrayStack[len(t.inArrayStack)-1] {
		return t.CurrentSchema().Items()
	}

	if len(t.schemaPath) == 1 {
		return t.CurrentSchema()
	}

	return schema.AnyNode()
}

// ExitScope pops the current container scope, returning to the enclosing
// schema context (spec E3: currentSchema().objectKeys reverts after `}`).
func (t *Tracker) ExitScope() {
	if len(t.schemaPath) > 1 {
		t.schemaPath = t.schemaPath[:len(t.schemaPath)-1]
	}

	if len(t.inArrayStack) > 0 {
		t.inArrayStack = t.inArrayStack[:len(t.inArrayStack)-1]
	}

	t.lastKey = ""
}

// InArray reports whether the current scope is an array element scope.
func (t *Tracker) InArray() bool {
	if len(t.inArrayStack) == 0 {
		return false
	}

	return t.inArrayStack[len(t.inArrayStack)-1]
}

// AllowedKeys returns the sorted property keys of the current schema, or
// nil if the current schema is not an object (or is Any).
func (t *Tracker) AllowedKeys() []string {
	return t.CurrentSchema().ObjectKeys()
}

// RequiredKeys returns the required-key set of the current schema.
func (t *Tracker) RequiredKeys() []string {
	return t.CurrentSchema().RequiredKeys()
}

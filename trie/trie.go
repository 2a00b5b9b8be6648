// Package trie implements the token-level prefix tree over schema-permitted
// keys described in spec §3/§4.3: given a set of permitted key strings and a
// tokenizer, it builds a trie over their tokenizations so the mask-hint
// generator can restrict sampling, one token at a time, to exactly the
// tokens that can still complete some permitted key.
package trie

import (
	"sort"

	"github.com/loopforge/jsonguard/tokenizer"
)

// Node is one trie node (spec §3 TokenTrie.Node).
type Node struct {
	children map[tokenizer.ID]*Node
	terminal bool
	keyName  string
}

// Trie is an immutable, read-only-after-construction token trie.
type Trie struct {
	root *Node
}

// Path is a cursor into a Trie, advanced one token at a time.
type Path struct {
	trie *Trie
	node *Node
}

func newNode() *Node {
	return &Node{children: make(map[tokenizer.ID]*Node)}
}

// New returns an empty trie (no permitted keys).
func New() *Trie {
	return &Trie{root: newNode()}
}

// Insert descends the trie along tokens, creating nodes as needed, and
// marks the final node terminal with keyName. Inserting an empty token
// sequence is a no-op (spec §4.3).
func (t *Trie) Insert(tokens []tokenizer.ID, keyName string) {
	if len(tokens) == 0 {
		return
	}

	n := t.root

	for _, id := range tokens {
		child, ok := n.children[id]
		if !ok {
			child = newNode()
			n.children[id] = child
		}

		n = child
	}

	n.terminal = true
	n.keyName = keyName
}

// Root returns a cursor at the trie's root.
func (t *Trie) Root() Path {
	return Path{trie: t, node: t.root}
}

// AllowedNext returns the set of token ids that continue some permitted key
// from the current position, and whether the current position is itself a
// complete key (spec §3 allowedNext/atTerminal).
func (p Path) AllowedNext() ([]tokenizer.ID, bool) {
	ids := make([]tokenizer.ID, 0, len(p.node.children))
	for id := range p.node.children {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, p.node.terminal
}

// AtTerminal reports whether the current node completes a permitted key.
func (p Path) AtTerminal() bool { return p.node.terminal }

// KeyName returns the key name at a terminal node, or "" if not terminal.
func (p Path) KeyName() string { return p.node.keyName }

// Advance moves the cursor by one token. ok is false if id has no child at
// the current node, in which case the cursor is left unchanged.
func (p Path) Advance(id tokenizer.ID) (Path, bool) {
	child, ok := p.node.children[id]
	if !ok {
		return p, false
	}

	return Path{trie: p.trie, node: child}, true
}

// Build tokenizes every key in keys with tk and inserts the resulting
// sequences, producing a trie pure in its inputs (spec invariant 6): equal
// (keys, tokenizer fingerprint) always yields a structurally equal trie,
// since insertion order does not affect the resulting node/edge set.
func Build(keys []string, tk tokenizer.Tokenizer) (*Trie, error) {
	t := New()

	for _, key := range keys {
		ids, err := tk.Encode(key)
		if err != nil {
			return nil, err
		}

		t.Insert(ids, key)
	}

	return t, nil
}

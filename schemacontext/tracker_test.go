package schemacontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopforge/jsonguard/schema"
)

func buildSchema(t *testing.T, raw string) *schema.Node {
	t.Helper()

	n, err := schema.Build([]byte(raw))
	require.NoError(t, err)

	return n
}

func TestTracker_RootStartsAtTopLevelKeys(t *testing.T) {
	root := buildSchema(t, `{"type":"object","properties":{"name":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}}}`)
	tr := New(root)

	assert.Equal(t, []string{"name", "tags"}, tr.AllowedKeys())
}

func TestTracker_EnterObjectDescendsIntoProperty(t *testing.T) {
	root := buildSchema(t, `{
		"type":"object",
		"properties":{
			"address":{"type":"object","properties":{"city":{"type":"string"}}}
		}
	}`)
	tr := New(root)

	tr.KeyClosed("address")
	tr.EnterObject()

	assert.Equal(t, []string{"city"}, tr.AllowedKeys())
}

func TestTracker_ExitScopeRevertsToParent(t *testing.T) {
	root := buildSchema(t, `{
		"type":"object",
		"properties":{
			"address":{"type":"object","properties":{"city":{"type":"string"}}},
			"name":{"type":"string"}
		}
	}`)
	tr := New(root)

	tr.KeyClosed("address")
	tr.EnterObject()
	assert.Equal(t, []string{"city"}, tr.AllowedKeys())

	tr.ExitScope()
	assert.Equal(t, []string{"address", "name"}, tr.AllowedKeys())
}

func TestTracker_ArrayElementsDescendIntoItems(t *testing.T) {
	root := buildSchema(t, `{
		"type":"object",
		"properties":{
			"people":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"}}}}
		}
	}`)
	tr := New(root)

	tr.KeyClosed("people")
	tr.EnterArray()
	assert.True(t, tr.InArray())

	tr.EnterObject() // first array element, descends via items
	assert.Equal(t, []string{"name"}, tr.AllowedKeys())

	tr.ExitScope() // back to the array scope
	assert.True(t, tr.InArray())

	tr.EnterObject() // second array element, still descends via items
	assert.Equal(t, []string{"name"}, tr.AllowedKeys())
}

func TestTracker_RequiredKeysReflectsCurrentScope(t *testing.T) {
	root := buildSchema(t, `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	tr := New(root)

	assert.ElementsMatch(t, []string{"name"}, tr.RequiredKeys())
}

func TestTracker_EnterObjectAtRootKeepsRootProperties(t *testing.T) {
	// Regression: the very first container opened (the document's own
	// top-level "{") must not descend to Any — it has no preceding key and
	// is not an array element, but it is still root's own scope.
	root := buildSchema(t, `{"type":"object","properties":{"firstName":{"type":"string"},"lastName":{"type":"string"}},"required":["firstName"]}`)
	tr := New(root)

	tr.EnterObject()
	assert.Equal(t, []string{"firstName", "lastName"}, tr.AllowedKeys())
	assert.ElementsMatch(t, []string{"firstName"}, tr.RequiredKeys())
}

func TestTracker_EnterArrayAtRootKeepsItemsReachable(t *testing.T) {
	root := buildSchema(t, `{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"}}}}`)
	tr := New(root)

	tr.EnterArray()
	assert.True(t, tr.InArray())

	tr.EnterObject() // first array element
	assert.Equal(t, []string{"name"}, tr.AllowedKeys())
}

func TestTracker_ResetReturnsToRoot(t *testing.T) {
	root := buildSchema(t, `{"type":"object","properties":{"a":{"type":"string"}}}`)
	tr := New(root)

	tr.KeyClosed("a")
	tr.EnterObject()
	assert.NotEqual(t, []string{"a"}, tr.AllowedKeys())

	tr.Reset(root)
	assert.Equal(t, []string{"a"}, tr.AllowedKeys())
}

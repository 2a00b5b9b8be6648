package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiredKeyMissingFails(t *testing.T) {
	raw := []byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	n, err := Build(raw)
	require.NoError(t, err)

	ok, err := ValidateJSON([]byte(`{"other":1}`), n)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_ExtraKeysAccepted(t *testing.T) {
	raw := []byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	n, err := Build(raw)
	require.NoError(t, err)

	ok, err := ValidateJSON([]byte(`{"name":"Jo","extra":true}`), n)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_ArrayItemsRecursive(t *testing.T) {
	raw := []byte(`{"type":"array","items":{"type":"integer"}}`)
	n, err := Build(raw)
	require.NoError(t, err)

	ok, err := ValidateJSON([]byte(`[1,2,3]`), n)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateJSON([]byte(`[1,"two",3]`), n)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_EnumMembership(t *testing.T) {
	raw := []byte(`{"type":"string","enum":["red","green"]}`)
	n, err := Build(raw)
	require.NoError(t, err)

	ok, err := ValidateJSON([]byte(`"red"`), n)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateJSON([]byte(`"purple"`), n)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_NullableAcceptsNull(t *testing.T) {
	raw := []byte(`{"type":["string","null"]}`)
	n, err := Build(raw)
	require.NoError(t, err)

	ok, err := ValidateJSON([]byte(`null`), n)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_AnySchemaAcceptsAnything(t *testing.T) {
	ok, err := ValidateJSON([]byte(`{"whatever":[1,2,"x"]}`), AnyNode())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapKey_ExactNormalizedMatch(t *testing.T) {
	got, ok := SnapKey("First_Name", []string{"firstName", "lastName"}, nil)
	require.True(t, ok)
	assert.Equal(t, "firstName", got)
}

func TestSnapKey_EditDistanceOneCorrection(t *testing.T) {
	got, ok := SnapKey("frstName", []string{"firstName", "lastName"}, nil)
	require.True(t, ok)
	assert.Equal(t, "firstName", got)
}

func TestSnapKey_NoCandidateWithinDistance(t *testing.T) {
	_, ok := SnapKey("completelyUnrelated", []string{"firstName", "lastName"}, nil)
	assert.False(t, ok)
}

func TestSnapKey_TieBreaksTowardRequired(t *testing.T) {
	// "name" is edit-distance 1 from both "same" and "bame" (one
	// substitution each), a genuine tie between two schema keys of equal
	// length where only one is required.
	required := map[string]struct{}{"bame": {}}
	got, ok := SnapKey("name", []string{"same", "bame"}, required)
	require.True(t, ok)
	assert.Equal(t, "bame", got)
}

func TestRepair_ValidJSONPassesThrough(t *testing.T) {
	out, ok := Repair(`{"a":1}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestRepair_TruncatedJSONIsFixed(t *testing.T) {
	out, ok := Repair(`{"a":1,"b":"hi`)
	require.True(t, ok)
	assert.True(t, json.Valid(out))
}

func TestRepair_EmptyInputFails(t *testing.T) {
	_, ok := Repair("   ")
	assert.False(t, ok)
}

package jsonfsm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed runs every rune of s through m, finalizes any number left pending at
// end of input via AtEOF, and reports whether the machine ever entered the
// error phase.
func feed(m *Machine, s string) bool {
	for _, r := range s {
		m.Step(r)
		if m.HasError() {
			return true
		}
	}

	m.AtEOF()

	return m.HasError()
}

func TestMachine_AcceptsValidDocuments(t *testing.T) {
	docs := []string{
		`{}`,
		`[]`,
		`null`,
		`true`,
		`false`,
		`0`,
		`-12`,
		`12.5`,
		`1e10`,
		`1.5E-3`,
		`"hello"`,
		`"with \"escape\" and é"`,
		`{"a":1,"b":[1,2,3],"c":{"d":null},"e":"x"}`,
		`  {"a" : 1}  `,
	}

	for _, doc := range docs {
		m := New()

		errored := feed(m, doc)

		assert.Falsef(t, errored, "doc %q unexpectedly errored", doc)
		assert.Truef(t, m.Done(), "doc %q did not reach done, phase=%v", doc, m.Phase())

		var v any
		require.NoErrorf(t, json.Unmarshal([]byte(doc), &v), "doc %q should itself be valid JSON", doc)
	}
}

func TestMachine_RejectsInvalidDocuments(t *testing.T) {
	docs := []string{
		`{`,
		`]`,
		`{"a":}`,
		`{"a" 1}`,
		`[1,]`,
		`01`,
		`1.`,
		`1e`,
		`tru`,
		`truex`,
		`"unterminated`,
		`"bad\escape"`,
		`nul`,
	}

	for _, doc := range docs {
		m := New()

		errored := feed(m, doc)
		if !errored {
			// Some invalid docs only reveal themselves as invalid once EOF
			// is reached without ever closing — done must not be true either.
			assert.Falsef(t, m.Done(), "doc %q should not validate as complete JSON", doc)
		}

		var v any
		assert.Errorf(t, json.Unmarshal([]byte(doc), &v), "doc %q should itself be invalid JSON", doc)
	}
}

func TestMachine_GrammarAgreesWithStandardParser(t *testing.T) {
	// Invariant 1: for every prefix of a realistic document, the machine's
	// "is this prefix still a possible valid-JSON prefix" state (not error)
	// must agree with whether a standard decoder would still want more
	// input versus reject outright.
	doc := `{"name":"Ada","tags":["x","y"],"score":3.5,"ok":true,"meta":null}`

	m := New()
	for i, r := range doc {
		m.Step(r)
		require.Falsef(t, m.HasError(), "unexpected error at offset %d (%q)", i, doc[:i+1])
	}

	assert.True(t, m.Done())
}

func TestMachine_KeyDetectionEvents(t *testing.T) {
	m := New()

	var keys []string

	for _, r := range `{"alpha":1,"beta":{"gamma":2}}` {
		ev := m.Step(r)
		if ev.KeyClosedOK {
			keys = append(keys, ev.KeyClosed)
		}
	}

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, keys)
	assert.True(t, m.Done())
}

func TestMachine_ContainerEvents(t *testing.T) {
	m := New()

	var opens, closes int

	for _, r := range `{"a":[1,2]}` {
		ev := m.Step(r)
		if ev.ObjectOpened || ev.ArrayOpened {
			opens++
		}

		if ev.ObjectClosed || ev.ArrayClosed {
			closes++
		}
	}

	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes)
}

func TestMachine_Reset(t *testing.T) {
	m := New()

	feed(m, `{"a":1}`)
	assert.True(t, m.Done())

	m.Reset()

	assert.Equal(t, PhaseRoot, m.Phase())
	assert.Equal(t, 0, m.Depth())
	assert.False(t, m.Done())
	assert.False(t, m.HasError())

	errored := feed(m, `[1,2,3]`)
	assert.False(t, errored)
	assert.True(t, m.Done())
}

func TestMachine_TrailingContentAfterDoneIsError(t *testing.T) {
	m := New()

	feed(m, `{}`)
	require.True(t, m.Done())

	m.Step('x')

	assert.True(t, m.HasError())
}

func TestMachine_WhitespaceAfterDoneIsTolerated(t *testing.T) {
	m := New()

	feed(m, `{}   `)

	assert.True(t, m.Done())
	assert.False(t, m.HasError())
}

func TestMachine_ZeroValueInObjectDoesNotError(t *testing.T) {
	m := New()

	errored := feed(m, `{"a":0}`)

	assert.False(t, errored)
	assert.True(t, m.Done())
}

func TestMachine_ZeroValueInArrayDoesNotError(t *testing.T) {
	m := New()

	errored := feed(m, `[0,0,1]`)

	assert.False(t, errored)
	assert.True(t, m.Done())
}

func TestMachine_WhitespaceAfterBareRootNumberIsTolerated(t *testing.T) {
	m := New()

	for _, r := range "30 " {
		ev := m.Step(r)
		require.Falsef(t, m.HasError(), "unexpected error after %q (event %+v)", r, ev)
	}

	assert.True(t, m.Done())
}

func TestMachine_ErrorIsSticky(t *testing.T) {
	m := New()

	m.Step('}')
	require.True(t, m.HasError())

	ev := m.Step('{')

	assert.True(t, m.HasError())
	assert.Equal(t, Event{}, ev)
}

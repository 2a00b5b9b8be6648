package jsonfsm

import "strings"

// Event reports what happened during one Step call, so a caller (the
// context tracker, the key-detection processor) can react without
// re-deriving it from phase transitions itself.
type Event struct {
	KeyClosed    string
	KeyClosedOK  bool
	ObjectOpened bool
	ObjectClosed bool
	ArrayOpened  bool
	ArrayClosed  bool
	ValueClosed  bool
}

// Machine is the JSON grammar pushdown automaton described in spec §4.2.
// It operates on Unicode code points (runes) one at a time via Step and is
// restartable via Reset. It is not safe for concurrent use — each
// generation owns one instance (spec §3, §5).
type Machine struct {
	phase Phase
	stack []Frame

	// arrayAfterComma is set by ',' inside an array and cleared once the
	// next element starts, so a ']' right after a comma is rejected.
	arrayAfterComma bool

	// inString
	stringSub    StringSub
	escaped      bool
	unicodeLeft  int
	keyBuf       strings.Builder
	lastClosed   string
	lastClosedOK bool

	// inNumber
	numberSub   NumberSub
	numberDigit bool // has the current section (int/frac/exp) seen >=1 digit

	// inLiteral
	literalSub   LiteralSub
	literalWhich byte
}

// New creates a Machine at the root state.
func New() *Machine {
	m := &Machine{}
	m.Reset()

	return m
}

// Reset returns the machine to the exact root state (spec invariant 5).
func (m *Machine) Reset() {
	m.phase = PhaseRoot
	m.stack = m.stack[:0]
	m.arrayAfterComma = false
	m.stringSub = StringBody
	m.escaped = false
	m.unicodeLeft = 0
	m.keyBuf.Reset()
	m.lastClosed = ""
	m.lastClosedOK = false
	m.numberSub = NumberIntZero
	m.numberDigit = false
	m.literalSub = LiteralTrue1
	m.literalWhich = 0
}

// AtEOF finalizes a number value that was still awaiting a terminator
// character when the input stream ran out — the only value kind whose
// completion (spec §4.2 "numbers terminate on any non-number character")
// can be pending with no more input left to observe it. Callers that feed
// a bounded character sequence (rather than a live stream that always ends
// in whitespace or a container close) must call AtEOF once after the last
// Step to learn whether a trailing bare number value is actually complete.
// A no-op in every other phase.
func (m *Machine) AtEOF() {
	if m.phase != PhaseInNumber {
		return
	}

	if !m.numberComplete() {
		m.phase = PhaseError
		return
	}

	m.completeValue()
}

func (m *Machine) numberComplete() bool {
	switch m.numberSub {
	case NumberIntZero, NumberIntNonZero, NumberFrac:
		return m.numberDigit
	case NumberExpDigits:
		return true
	default:
		return false
	}
}

func (m *Machine) Phase() Phase   { return m.phase }
func (m *Machine) Done() bool     { return m.phase == PhaseDone }
func (m *Machine) HasError() bool { return m.phase == PhaseError }
func (m *Machine) Depth() int     { return len(m.stack) }

// CurrentKey is meaningful only while the head of the stack is
// string(key), or immediately after closing a key (spec §3).
func (m *Machine) CurrentKey() string { return m.keyBuf.String() }

// Top returns the container frame currently open, or ok=false at root
// with an empty stack.
func (m *Machine) Top() (Frame, bool) {
	if len(m.stack) == 0 {
		return Frame{}, false
	}

	return m.stack[len(m.stack)-1], true
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Step feeds one code point through the automaton and returns the events
// it produced. Once in error or done, further input either stays absorbed
// (error) or is checked to be trailing whitespace only (done); in error,
// no further transitions ever produce ok, matching spec §3's invariant.
func (m *Machine) Step(r rune) Event {
	if m.phase == PhaseError {
		return Event{}
	}

	if m.phase == PhaseDone {
		if !isWhitespace(r) {
			m.phase = PhaseError
		}

		return Event{}
	}

	return m.dispatch(r)
}

func (m *Machine) dispatch(r rune) Event {
	switch m.phase {
	case PhaseRoot:
		return m.stepStartValue(r, nil)
	case PhaseInObject:
		return m.stepInObject(r)
	case PhaseInArray:
		return m.stepInArray(r)
	case PhaseInString:
		return m.stepInString(r)
	case PhaseInNumber:
		return m.stepInNumber(r)
	case PhaseInLiteral:
		return m.stepInLiteral(r)
	default:
		m.phase = PhaseError
		return Event{}
	}
}

// stepStartValue handles the productions common to root, inObject(expectValue)
// and inArray(expectValueOrEnd): the first character of any JSON value.
// frame, if non-nil, is the container frame awaiting this value (used only
// so array's ']' short-circuit is handled by the caller beforehand).
func (m *Machine) stepStartValue(r rune, _ *Frame) Event {
	switch {
	case r == '{':
		m.stack = append(m.stack, Frame{Kind: FrameObject, ObjectSub: ObjectExpectKeyFirstQuote})
		m.phase = PhaseInObject

		return Event{ObjectOpened: true}
	case r == '[':
		m.stack = append(m.stack, Frame{Kind: FrameArray, ArraySub: ArrayExpectValueOrEnd})
		m.phase = PhaseInArray

		return Event{ArrayOpened: true}
	case r == '"':
		m.stack = append(m.stack, Frame{Kind: FrameString, StringKind: StringValue})
		m.phase = PhaseInString
		m.stringSub = StringBody
		m.escaped = false

		return Event{}
	case r == '-' || isDigit(r):
		m.phase = PhaseInNumber
		m.numberDigit = false

		if r == '-' {
			m.numberSub = NumberIntZero // awaiting first digit; reuse IntZero as "no digit yet"
			m.numberDigit = false

			return Event{}
		}

		m.numberDigit = true

		if r == '0' {
			m.numberSub = NumberIntZero
		} else {
			m.numberSub = NumberIntNonZero
		}

		return Event{}
	case r == 't':
		m.phase = PhaseInLiteral
		m.literalWhich = 't'
		m.literalSub = LiteralTrue1

		return Event{}
	case r == 'f':
		m.phase = PhaseInLiteral
		m.literalWhich = 'f'
		m.literalSub = LiteralFalse1

		return Event{}
	case r == 'n':
		m.phase = PhaseInLiteral
		m.literalWhich = 'n'
		m.literalSub = LiteralNull1

		return Event{}
	case isWhitespace(r):
		return Event{}
	default:
		m.phase = PhaseError
		return Event{}
	}
}

// completeValue is called whenever a value (of any kind) finishes. It pops
// nothing itself: if the value was a container or a string, the caller has
// already popped its frame. It advances the new top of stack to its
// post-value phase, or transitions to Done if the stack is empty.
func (m *Machine) completeValue() {
	if len(m.stack) == 0 {
		m.phase = PhaseDone
		return
	}

	top := &m.stack[len(m.stack)-1]

	switch top.Kind {
	case FrameObject:
		top.ObjectSub = ObjectExpectCommaOrEnd
		m.phase = PhaseInObject
	case FrameArray:
		top.ArraySub = ArrayExpectCommaOrEnd
		m.phase = PhaseInArray
	default:
		// A string frame can never be "current top" here: closing a string
		// pops it before completeValue runs.
		m.phase = PhaseError
	}
}

func (m *Machine) stepInObject(r rune) Event {
	top := &m.stack[len(m.stack)-1]

	switch top.ObjectSub {
	case ObjectExpectKeyFirstQuote:
		if r == '"' {
			m.stack = append(m.stack, Frame{Kind: FrameString, StringKind: StringKey})
			m.phase = PhaseInString
			m.stringSub = StringBody
			m.escaped = false
			m.keyBuf.Reset()

			return Event{}
		}

		if r == '}' {
			m.stack = m.stack[:len(m.stack)-1]
			m.completeValue()

			return m.closedObjectEvent()
		}

		if isWhitespace(r) {
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	case ObjectExpectKeyOrEnd:
		if r == '"' {
			m.stack = append(m.stack, Frame{Kind: FrameString, StringKind: StringKey})
			m.phase = PhaseInString
			m.stringSub = StringBody
			m.escaped = false
			m.keyBuf.Reset()

			return Event{}
		}

		if isWhitespace(r) {
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	case ObjectExpectColon:
		if r == ':' {
			top.ObjectSub = ObjectExpectValue
			return Event{}
		}

		if isWhitespace(r) {
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	case ObjectExpectValue:
		return m.stepStartValue(r, top)

	case ObjectExpectCommaOrEnd:
		if r == ',' {
			top.ObjectSub = ObjectExpectKeyOrEnd
			return Event{}
		}

		if r == '}' {
			m.stack = m.stack[:len(m.stack)-1]
			m.completeValue()

			return m.closedObjectEvent()
		}

		if isWhitespace(r) {
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	default:
		m.phase = PhaseError
		return Event{}
	}
}

func (m *Machine) closedObjectEvent() Event {
	return Event{ObjectClosed: true, ValueClosed: true}
}

func (m *Machine) closedArrayEvent() Event {
	return Event{ArrayClosed: true, ValueClosed: true}
}

func (m *Machine) stepInArray(r rune) Event {
	top := &m.stack[len(m.stack)-1]

	switch top.ArraySub {
	case ArrayExpectValueOrEnd:
		if r == ']' {
			if m.arrayAfterComma {
				m.phase = PhaseError
				return Event{}
			}

			m.stack = m.stack[:len(m.stack)-1]
			m.completeValue()

			return m.closedArrayEvent()
		}

		if !isWhitespace(r) {
			m.arrayAfterComma = false
		}

		return m.stepStartValue(r, top)

	case ArrayExpectCommaOrEnd:
		if r == ',' {
			top.ArraySub = ArrayExpectValueOrEnd
			m.arrayAfterComma = true

			return Event{}
		}

		if r == ']' {
			m.stack = m.stack[:len(m.stack)-1]
			m.completeValue()

			return m.closedArrayEvent()
		}

		if isWhitespace(r) {
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	default:
		m.phase = PhaseError
		return Event{}
	}
}

var validEscapes = map[rune]bool{
	'"': true, '\\': true, '/': true, 'b': true, 'f': true,
	'n': true, 'r': true, 't': true, 'u': true,
}

func (m *Machine) stepInString(r rune) Event {
	top := &m.stack[len(m.stack)-1]

	if m.stringSub == StringUnicodeEscape {
		if !isHexDigit(r) {
			m.phase = PhaseError
			return Event{}
		}

		m.unicodeLeft--
		if m.unicodeLeft == 0 {
			m.stringSub = StringBody
		}

		return Event{}
	}

	// StringBody.
	if m.escaped {
		m.escaped = false

		if !validEscapes[r] {
			m.phase = PhaseError
			return Event{}
		}

		if r == 'u' {
			m.stringSub = StringUnicodeEscape
			m.unicodeLeft = 4

			return Event{}
		}

		if top.StringKind == StringKey {
			m.keyBuf.WriteRune(unescapeShorthand(r))
		}

		return Event{}
	}

	switch {
	case r == '\\':
		m.escaped = true
		return Event{}
	case r == '"':
		kind := top.StringKind
		m.stack = m.stack[:len(m.stack)-1]

		if kind == StringKey {
			newTop := &m.stack[len(m.stack)-1]
			newTop.ObjectSub = ObjectExpectColon
			m.phase = PhaseInObject
			m.lastClosed = m.keyBuf.String()
			m.lastClosedOK = true

			return Event{KeyClosed: m.lastClosed, KeyClosedOK: true}
		}

		m.completeValue()

		return Event{ValueClosed: true}
	case r < 0x20:
		m.phase = PhaseError
		return Event{}
	default:
		if top.StringKind == StringKey {
			m.keyBuf.WriteRune(r)
		}

		return Event{}
	}
}

func unescapeShorthand(r rune) rune {
	switch r {
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return r
	}
}

func (m *Machine) stepInNumber(r rune) Event {
	switch m.numberSub {
	case NumberIntZero:
		if !m.numberDigit {
			// awaiting the first digit, possibly after a leading '-'.
			if isDigit(r) {
				m.numberDigit = true
				if r == '0' {
					m.numberSub = NumberIntZero
				} else {
					m.numberSub = NumberIntNonZero
				}

				return Event{}
			}

			m.phase = PhaseError

			return Event{}
		}

		// We already hold a leading zero: another digit directly after is
		// invalid JSON ("01"), not a terminator to reprocess.
		if isDigit(r) {
			m.phase = PhaseError
			return Event{}
		}

		return m.numberTerminatorOrDotExp(r)

	case NumberIntNonZero:
		if isDigit(r) {
			return Event{}
		}

		return m.numberTerminatorOrDotExp(r)

	case NumberFrac:
		if isDigit(r) {
			m.numberDigit = true
			return Event{}
		}

		if !m.numberDigit {
			m.phase = PhaseError
			return Event{}
		}

		return m.numberTerminatorOrExp(r)

	case NumberExp:
		if r == '+' || r == '-' {
			m.numberSub = NumberExpSign
			return Event{}
		}

		if isDigit(r) {
			m.numberSub = NumberExpDigits
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	case NumberExpSign:
		if isDigit(r) {
			m.numberSub = NumberExpDigits
			return Event{}
		}

		m.phase = PhaseError

		return Event{}

	case NumberExpDigits:
		if isDigit(r) {
			return Event{}
		}

		m.completeValue()

		return m.redispatchTerminator(r)

	default:
		m.phase = PhaseError
		return Event{}
	}
}

// numberTerminatorOrDotExp handles the character right after an integer
// part: '.' moves into the fraction, 'e'/'E' moves into the exponent,
// anything else terminates the number and is reprocessed in the now-current
// (popped back to) context.
func (m *Machine) numberTerminatorOrDotExp(r rune) Event {
	if r == '.' {
		m.numberSub = NumberFrac
		m.numberDigit = false

		return Event{}
	}

	if r == 'e' || r == 'E' {
		m.numberSub = NumberExp
		return Event{}
	}

	m.completeValue()

	return m.redispatchTerminator(r)
}

// numberTerminatorOrExp handles the character right after a fraction part
// that has at least one digit: 'e'/'E' moves into the exponent, anything
// else terminates the number.
func (m *Machine) numberTerminatorOrExp(r rune) Event {
	if r == 'e' || r == 'E' {
		m.numberSub = NumberExp
		return Event{}
	}

	m.completeValue()

	return m.redispatchTerminator(r)
}

// redispatchTerminator re-processes a character that turned out to
// terminate a number value, once completeValue has already run. If the
// document just reached Done (the number was the root value), it must be
// handled the same way Step would handle any further input: trailing
// whitespace is absorbed, anything else is an error. Every other
// post-completeValue phase is a live container phase and is dispatched
// normally.
func (m *Machine) redispatchTerminator(r rune) Event {
	if m.phase == PhaseDone {
		if !isWhitespace(r) {
			m.phase = PhaseError
		}

		return Event{}
	}

	return m.dispatch(r)
}

var literalTables = map[byte]string{
	't': "true",
	'f': "false",
	'n': "null",
}

func (m *Machine) stepInLiteral(r rune) Event {
	word := literalTables[m.literalWhich]
	idx := m.literalIndex()

	if idx >= len(word) || byte(r) != word[idx] {
		m.phase = PhaseError
		return Event{}
	}

	if idx == len(word)-1 {
		m.completeValue()
		return Event{}
	}

	m.advanceLiteral()

	return Event{}
}

// literalIndex returns how many characters of the current literal word have
// already been consumed (the index the next character must match).
func (m *Machine) literalIndex() int {
	switch m.literalSub {
	case LiteralTrue1, LiteralFalse1, LiteralNull1:
		return 1
	case LiteralTrue2, LiteralFalse2, LiteralNull2:
		return 2
	case LiteralTrue3, LiteralFalse3, LiteralNull3:
		return 3
	case LiteralFalse4:
		return 4
	default:
		return 0
	}
}

func (m *Machine) advanceLiteral() {
	switch m.literalWhich {
	case 't':
		switch m.literalSub {
		case LiteralTrue1:
			m.literalSub = LiteralTrue2
		case LiteralTrue2:
			m.literalSub = LiteralTrue3
		}
	case 'f':
		switch m.literalSub {
		case LiteralFalse1:
			m.literalSub = LiteralFalse2
		case LiteralFalse2:
			m.literalSub = LiteralFalse3
		case LiteralFalse3:
			m.literalSub = LiteralFalse4
		}
	case 'n':
		switch m.literalSub {
		case LiteralNull1:
			m.literalSub = LiteralNull2
		case LiteralNull2:
			m.literalSub = LiteralNull3
		}
	}
}

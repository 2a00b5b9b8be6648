package tokenizer

import (
	"fmt"
	"strings"
)

// Byte-level IDs: one token per raw byte, plus three reserved control IDs.
const (
	eosID ID = 256 + iota
	bosID
	unkID
)

// Fake is a deterministic byte-level tokenizer: Encode emits one ID per
// UTF-8 byte of the input (ID == byte value), Decode is the exact inverse.
// It exists purely so the rest of this module can be exercised without a
// real model vocabulary; its fingerprint is constant, since the "vocabulary"
// (all 256 byte values plus the three control IDs) never varies.
type Fake struct{}

// NewFake constructs the byte-level fake tokenizer.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) Encode(text string) ([]ID, error) {
	ids := make([]ID, 0, len(text))
	for i := 0; i < len(text); i++ {
		ids = append(ids, ID(text[i]))
	}

	return ids, nil
}

func (f *Fake) Decode(ids []ID) (string, error) {
	var b strings.Builder

	for _, id := range ids {
		if id < 256 {
			b.WriteByte(byte(id))
		}
		// IDs >= 256 (EOS/BOS/unknown or out-of-range) decode to nothing.
	}

	return b.String(), nil
}

func (f *Fake) EOS() (ID, bool)     { return eosID, true }
func (f *Fake) BOS() (ID, bool)     { return bosID, true }
func (f *Fake) Unknown() (ID, bool) { return unkID, true }

func (f *Fake) Fingerprint() string { return "fake-byte-v1" }

func (f *Fake) VocabSize() (int, bool) { return 256 + 3, true }

// String is a debug helper not part of the Tokenizer interface.
func (f *Fake) String() string { return fmt.Sprintf("fake-byte-tokenizer(%s)", f.Fingerprint()) }

package reconcile

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies an element collection. Elements are hashed as the
// raw bytes they arrived with, so two encodings of the same scene may differ.
type Fingerprint uint64

var elementSeparator = []byte{0x1e}

func fingerprintOf(elements []json.RawMessage) Fingerprint {
	d := xxhash.New()
	for _, el := range elements {
		d.Write(el)
		d.Write(elementSeparator)
	}
	return Fingerprint(d.Sum64())
}

func cloneElements(elements []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(elements))
	for i, el := range elements {
		out[i] = append(json.RawMessage(nil), el...)
	}
	return out
}

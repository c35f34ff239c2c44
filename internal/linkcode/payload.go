package linkcode

import "strings"

const (
	verifyPrefix = "verify_"
	batchPrefix  = "batch_"
)

type PayloadKind int

const (
	// Home: empty payload, show the start menu.
	Home PayloadKind = iota
	// Content: a plain token, first contact with a link.
	Content
	// Verify: the post-shortener round-trip for the same token.
	Verify
	// Batch: a persisted multi-item collection.
	Batch
	// Invalid: anything that failed to decode.
	Invalid
)

// Payload is the parsed form of a /start deep-link argument. The request
// state machine is reconstructed entirely from the prefix; nothing is
// persisted between the two phases of a verification round-trip.
type Payload struct {
	Kind    PayloadKind
	ID      int    // content id for Content and Verify
	BatchID string // batch id for Batch
	Raw     string // original payload, for retry links
}

// ParsePayload classifies a /start payload. Prefix matching is exact and
// case-sensitive; unrecognized prefixes fall through to plain-token decoding
// and come back Invalid when the decode yields the zero sentinel.
func ParsePayload(s string) Payload {
	if s == "" {
		return Payload{Kind: Home}
	}
	if rest, ok := strings.CutPrefix(s, verifyPrefix); ok {
		if id := Decode(rest); id != 0 {
			return Payload{Kind: Verify, ID: id, Raw: s}
		}
		return Payload{Kind: Invalid, Raw: s}
	}
	if rest, ok := strings.CutPrefix(s, batchPrefix); ok {
		if rest == "" {
			return Payload{Kind: Invalid, Raw: s}
		}
		return Payload{Kind: Batch, BatchID: rest, Raw: s}
	}
	if id := Decode(s); id != 0 {
		return Payload{Kind: Content, ID: id, Raw: s}
	}
	return Payload{Kind: Invalid, Raw: s}
}

// RetryPayload returns the payload a blocked user should re-dispatch after
// joining the required channels: the original one with any verify_ prefix
// stripped, so the verification round-trip starts over cleanly.
func (p Payload) RetryPayload() string {
	return strings.TrimPrefix(p.Raw, verifyPrefix)
}

// VerifyPayload wraps a plain token for the post-shortener phase.
func VerifyPayload(tok string) string { return verifyPrefix + tok }

// BatchPayload names a batch in a deep link.
func BatchPayload(batchID string) string { return batchPrefix + batchID }

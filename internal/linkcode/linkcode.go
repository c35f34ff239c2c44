// Package linkcode implements the stateless mapping between storage-channel
// message ids and the opaque tokens embedded in public deep links. Encoding
// is pure; resolving a plain link never needs a database lookup.
package linkcode

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Encode returns the URL-safe token for a content id. Deterministic: the
// same id always yields the same token. Trailing base64 padding is stripped
// so tokens stay clean in URLs.
func Encode(id int) string {
	s := base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(id)))
	return strings.TrimRight(s, "=")
}

// Decode reverses Encode. It is total: any malformed input (bad padding,
// non-numeric payload, characters outside the token alphabet) yields 0,
// which callers must treat as an invalid link.
func Decode(tok string) int {
	if tok == "" {
		return 0
	}
	if n := len(tok) % 4; n != 0 {
		tok += strings.Repeat("=", 4-n)
	}
	raw, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		return 0
	}
	id, err := strconv.Atoi(string(raw))
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

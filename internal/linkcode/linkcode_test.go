package linkcode

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	ids := []int{1, 7, 42, 999, 100000, 123456789, 1 << 30}
	for _, id := range ids {
		tok := Encode(id)
		if strings.ContainsAny(tok, "=+/") {
			t.Fatalf("Encode(%d) = %q contains non-URL-safe or padding chars", id, tok)
		}
		if got := Decode(tok); got != id {
			t.Fatalf("Decode(Encode(%d)) = %d", id, got)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()
	if Encode(12345) != Encode(12345) {
		t.Fatal("Encode is not deterministic")
	}
}

func TestDecodeTotality(t *testing.T) {
	t.Parallel()
	bad := []string{
		"",
		"!!!",
		"not a token",
		"AAAA====",
		"aGVsbG8",     // decodes to "hello", not numeric
		"LTU",         // decodes to "-5", out of range
		"MA",          // decodes to "0", sentinel itself
		"%%%",
		strings.Repeat("A", 1000),
	}
	for _, s := range bad {
		if got := Decode(s); got != 0 {
			t.Fatalf("Decode(%q) = %d, want 0", s, got)
		}
	}
}

func TestParsePayloadVariants(t *testing.T) {
	t.Parallel()
	tok := Encode(77)
	tests := []struct {
		name string
		raw  string
		kind PayloadKind
		id   int
		bid  string
	}{
		{name: "home", raw: "", kind: Home},
		{name: "content", raw: tok, kind: Content, id: 77},
		{name: "verify", raw: "verify_" + tok, kind: Verify, id: 77},
		{name: "batch", raw: "batch_a1B2c3D4", kind: Batch, bid: "a1B2c3D4"},
		{name: "garbage", raw: "???", kind: Invalid},
		{name: "verify garbage", raw: "verify_???", kind: Invalid},
		{name: "empty batch", raw: "batch_", kind: Invalid},
		{name: "case sensitive prefix", raw: "VERIFY_" + tok, kind: Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePayload(tt.raw)
			if p.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", p.Kind, tt.kind)
			}
			if p.ID != tt.id {
				t.Fatalf("ID = %d, want %d", p.ID, tt.id)
			}
			if p.BatchID != tt.bid {
				t.Fatalf("BatchID = %q, want %q", p.BatchID, tt.bid)
			}
		})
	}
}

func TestRetryPayloadStripsVerify(t *testing.T) {
	t.Parallel()
	tok := Encode(9)
	p := ParsePayload("verify_" + tok)
	if got := p.RetryPayload(); got != tok {
		t.Fatalf("RetryPayload() = %q, want %q", got, tok)
	}
	p = ParsePayload(tok)
	if got := p.RetryPayload(); got != tok {
		t.Fatalf("RetryPayload() = %q, want %q", got, tok)
	}
}

func TestLinks(t *testing.T) {
	t.Parallel()
	l := Links{Username: "vault_bot"}
	if got := l.Content(5); got != "https://t.me/vault_bot?start="+Encode(5) {
		t.Fatalf("Content link = %q", got)
	}
	if got := l.Batch("abc"); got != "https://t.me/vault_bot?start=batch_abc" {
		t.Fatalf("Batch link = %q", got)
	}
	if !strings.HasPrefix(l.Share("https://t.me/x"), "https://t.me/share/url?url=") {
		t.Fatalf("Share link = %q", l.Share("https://t.me/x"))
	}
}

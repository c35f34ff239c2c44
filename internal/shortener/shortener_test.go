package shortener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	logx "vaultbot/pkg/logx"
)

func TestShortenSuccess(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"shortenedUrl", "url", "short_url"} {
		key := key
		t.Run(key, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"` + key + `": "https://sho.rt/abc"}`))
			}))
			defer srv.Close()

			p := New([]string{srv.URL + "/api?api=KEY&url=" + placeholder}, time.Second, logx.Nop())
			got := p.Shorten(context.Background(), "https://t.me/bot?start=tok")
			if got != "https://sho.rt/abc" {
				t.Fatalf("Shorten = %q", got)
			}
		})
	}
}

func TestShortenSubstitutesEncodedTarget(t *testing.T) {
	t.Parallel()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"url": "https://sho.rt/x"}`))
	}))
	defer srv.Close()

	p := New([]string{srv.URL + "/api?url=" + placeholder}, time.Second, logx.Nop())
	target := "https://t.me/bot?start=verify_abc"
	p.Shorten(context.Background(), target)

	if !strings.Contains(gotQuery, url.QueryEscape(target)) {
		t.Fatalf("target not percent-encoded into request: %q", gotQuery)
	}
}

func TestShortenFallbackIdentity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-json body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>down for maintenance</html>"))
		}},
		{"keyless json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status": "error"}`))
		}},
		{"empty value", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"url": ""}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			fallbacks := 0
			p := New([]string{srv.URL + "?u=" + placeholder}, time.Second, logx.Nop(),
				WithFallbackHook(func() { fallbacks++ }))
			orig := "https://t.me/bot?start=tok"
			if got := p.Shorten(context.Background(), orig); got != orig {
				t.Fatalf("Shorten = %q, want identity fallback", got)
			}
			if fallbacks != 1 {
				t.Fatalf("fallback hook fired %d times", fallbacks)
			}
		})
	}
}

func TestShortenNetworkErrorFallback(t *testing.T) {
	t.Parallel()
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	p := New([]string{addr + "?u=" + placeholder}, 500*time.Millisecond, logx.Nop())
	orig := "https://example.com/x"
	if got := p.Shorten(context.Background(), orig); got != orig {
		t.Fatalf("Shorten = %q, want identity fallback", got)
	}
}

func TestShortenUnconfigured(t *testing.T) {
	t.Parallel()
	p := New(nil, time.Second, logx.Nop())
	if p.Configured() {
		t.Fatal("empty pool reports configured")
	}
	orig := "https://example.com/y"
	if got := p.Shorten(context.Background(), orig); got != orig {
		t.Fatalf("Shorten = %q, want input", got)
	}
}

func TestShortenRotation(t *testing.T) {
	t.Parallel()
	hits := make([]int, 2)
	mk := func(i int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[i]++
			_, _ = w.Write([]byte(`{"url": "https://sho.rt/z"}`))
		}))
	}
	s0, s1 := mk(0), mk(1)
	defer s0.Close()
	defer s1.Close()

	pick := 0
	p := New([]string{s0.URL + "?u=" + placeholder, s1.URL + "?u=" + placeholder},
		time.Second, logx.Nop(),
		WithPick(func(n int) int { pick++; return pick % n }))

	p.Shorten(context.Background(), "https://a")
	p.Shorten(context.Background(), "https://b")
	if hits[0] != 1 || hits[1] != 1 {
		t.Fatalf("rotation hits = %v, want one each", hits)
	}
}

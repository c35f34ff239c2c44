// Package shortener calls monetized URL-shortener providers. A broken
// provider must never be a hard outage: every failure path degrades to the
// original URL so the user still gets a working link.
package shortener

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	logx "vaultbot/pkg/logx"
)

const placeholder = "{link}"

// DefaultTimeout bounds the provider round-trip when none is configured.
const DefaultTimeout = 8 * time.Second

// acceptedKeys are the response fields providers use for the short URL,
// tried in order.
var acceptedKeys = []string{"shortenedUrl", "url", "short_url"}

type Pool struct {
	mu        sync.RWMutex
	endpoints []string

	client *http.Client
	log    logx.Logger
	rnd    func(n int) int

	// onFallback is invoked whenever Shorten degrades to the input URL.
	onFallback func()
}

type Option func(*Pool)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pool) { p.client = c }
}

// WithPick overrides endpoint selection (tests).
func WithPick(fn func(n int) int) Option {
	return func(p *Pool) { p.rnd = fn }
}

// WithFallbackHook registers a counter callback for identity fallbacks.
func WithFallbackHook(fn func()) Option {
	return func(p *Pool) { p.onFallback = fn }
}

// New builds a pool over endpoint templates, each containing a {link}
// placeholder. Blank entries are dropped.
func New(endpoints []string, timeout time.Duration, log logx.Logger, opts ...Option) *Pool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	eps := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e != "" {
			eps = append(eps, e)
		}
	}
	p := &Pool{
		endpoints: eps,
		client:    &http.Client{Timeout: timeout},
		log:       log,
		rnd:       rand.Intn,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Configured reports whether at least one provider endpoint is set.
// With none, verification gating is off and delivery goes direct.
func (p *Pool) Configured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints) > 0
}

// SetEndpoints swaps the provider pool (config hot-reload).
func (p *Pool) SetEndpoints(endpoints []string) {
	eps := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e != "" {
			eps = append(eps, e)
		}
	}
	p.mu.Lock()
	p.endpoints = eps
	p.mu.Unlock()
}

// Shorten resolves longURL through one provider chosen uniformly at random.
// On any failure (no providers, network error, non-JSON body, no accepted
// key) it returns longURL unchanged.
func (p *Pool) Shorten(ctx context.Context, longURL string) string {
	p.mu.RLock()
	n := len(p.endpoints)
	if n == 0 {
		p.mu.RUnlock()
		return longURL
	}
	tmpl := p.endpoints[p.rnd(n)]
	p.mu.RUnlock()
	api := strings.ReplaceAll(tmpl, placeholder, url.QueryEscape(longURL))

	short, err := p.call(ctx, api)
	if err != nil {
		p.log.Warn("shortener unavailable, serving direct link", logx.Err(err))
		if p.onFallback != nil {
			p.onFallback()
		}
		return longURL
	}
	return short
}

func (p *Pool) call(ctx context.Context, api string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	for _, k := range acceptedKeys {
		if v, ok := body[k].(string); ok && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	return "", errNoShortURL
}

var errNoShortURL = &noKeyError{}

type noKeyError struct{}

func (*noKeyError) Error() string { return "response carries no recognized short-url key" }

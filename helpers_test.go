package tokenkeep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tokenkeep/tokenkeep/credstore"
)

// waitFor polls cond until it holds or the deadline passes. Used wherever an
// effect is produced by the checker or dispatcher goroutine.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	return signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})
}

/*
====================================
FAKE CLOCK
====================================
*/

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

// Tick fires the most recently armed ticker once.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	if len(c.tickers) == 0 {
		c.mu.Unlock()
		return
	}
	ticker := c.tickers[len(c.tickers)-1]
	now := c.now
	c.mu.Unlock()

	select {
	case ticker.ch <- now:
	case <-time.After(time.Second):
	}
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

/*
====================================
FAKE TRANSPORT
====================================
*/

type scripted struct {
	resp *Response
	err  error
}

type fakeTransport struct {
	mu       sync.Mutex
	requests []Request
	script   []scripted
	fallback scripted
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fallback: scripted{resp: &Response{Status: 200, Body: map[string]any{}}},
	}
}

func (f *fakeTransport) enqueue(resp *Response, err error) {
	f.mu.Lock()
	f.script = append(f.script, scripted{resp: resp, err: err})
	f.mu.Unlock()
}

func (f *fakeTransport) setFallback(resp *Response, err error) {
	f.mu.Lock()
	f.fallback = scripted{resp: resp, err: err}
	f.mu.Unlock()
}

func (f *fakeTransport) Send(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.script) > 0 {
		next := f.script[0]
		f.script = f.script[1:]
		return next.resp, next.err
	}
	return f.fallback.resp, f.fallback.err
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) lastRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

/*
====================================
RECORDING SINK
====================================
*/

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *recordingSink) Emit(_ context.Context, event AuditEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingSink) byType(eventType string) []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSink) countOf(eventType string) int {
	return len(r.byType(eventType))
}

/*
====================================
SESSION FIXTURE
====================================
*/

type fixture struct {
	clock     *fakeClock
	transport *fakeTransport
	sink      *recordingSink
	durable   *credstore.Memory
	memory    *credstore.Memory
	store     *credstore.Tiered
}

func newFixture() *fixture {
	durable := credstore.NewMemory()
	memory := credstore.NewMemory()
	return &fixture{
		clock:     newFakeClock(time.Unix(1_700_000_000, 0)),
		transport: newFakeTransport(),
		sink:      &recordingSink{},
		durable:   durable,
		memory:    memory,
		store:     credstore.NewTiered(durable, memory),
	}
}

func (f *fixture) config() Config {
	cfg := DefaultConfig()
	cfg.Renewal.BaseURL = "https://auth.example.com"
	cfg.Renewal.CheckPath = "/auth/check"
	cfg.Renewal.RefreshPath = "/auth/refresh"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func (f *fixture) build(t *testing.T, cfg Config, access, refresh string) *Session {
	t.Helper()
	s, err := New().
		WithConfig(cfg).
		WithStore(f.store).
		WithTransport(f.transport).
		WithClock(f.clock).
		WithEventSink(f.sink).
		WithTokens(access, refresh).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

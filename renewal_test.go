package tokenkeep

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRenewalWithoutRefreshPath(t *testing.T) {
	f := newFixture()
	cfg := f.config()
	cfg.Renewal.RefreshPath = ""
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))

	s := f.build(t, cfg, access, refresh)
	if _, err := s.requestNewAccessToken(context.Background()); !errors.Is(err, ErrRenewalNotConfigured) {
		t.Fatalf("expected ErrRenewalNotConfigured, got %v", err)
	}
}

func TestRenewalWithoutRefreshToken(t *testing.T) {
	f := newFixture()
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))

	s := f.build(t, f.config(), access, "")
	if _, err := s.requestNewAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if got := f.transport.requestCount(); got != 0 {
		t.Fatal("precondition failure must not hit the network")
	}
}

func TestRenewalMalformedResponse(t *testing.T) {
	f := newFixture()
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, f.config(), access, refresh)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing token field", body: map[string]any{"other": "x"}},
		{name: "non-string token", body: map[string]any{"accessToken": 42}},
		{name: "empty token", body: map[string]any{"accessToken": ""}},
		{name: "nil body", body: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.transport.enqueue(&Response{Status: 200, Body: tt.body}, nil)
			_, err := s.requestNewAccessToken(context.Background())
			if !errors.Is(err, ErrMalformedRenewalResponse) {
				t.Fatalf("expected ErrMalformedRenewalResponse, got %v", err)
			}
		})
	}
}

func TestRenewalTextResponseInstallsToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cfg := f.config()
	cfg.Renewal.ResponseFormat = FormatText
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, cfg, access, refresh)

	renewed := tokenExpiringAt(t, f.clock.Now().Add(2*time.Hour))
	f.transport.enqueue(&Response{Status: 200, Text: "  " + renewed + "\n"}, nil)

	got, err := s.requestNewAccessToken(ctx)
	if err != nil {
		t.Fatalf("requestNewAccessToken failed: %v", err)
	}
	if got != renewed {
		t.Fatal("text body must be used as the token, trimmed")
	}
	if s.Snapshot().Tokens.Access != renewed {
		t.Fatal("renewed token must be installed in memory")
	}

	f.transport.enqueue(&Response{Status: 200, Text: " \n"}, nil)
	if _, err := s.requestNewAccessToken(ctx); !errors.Is(err, ErrMalformedRenewalResponse) {
		t.Fatalf("expected ErrMalformedRenewalResponse for blank text body, got %v", err)
	}
}

func TestRenewalUnexpectedStatus(t *testing.T) {
	f := newFixture()
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, f.config(), access, refresh)

	f.transport.enqueue(&Response{Status: 500}, nil)
	_, err := s.requestNewAccessToken(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != 500 || statusErr.Expected != 200 {
		t.Fatalf("unexpected StatusError contents: %v", err)
	}
}

func TestRenewalConnectivityFailure(t *testing.T) {
	f := newFixture()
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, f.config(), access, refresh)

	f.transport.enqueue(nil, errors.New("dial tcp: connection refused"))
	_, err := s.requestNewAccessToken(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestRenewalSuccessInstallsToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cfg := f.config()
	cfg.Renewal.RefreshBody = map[string]any{"grant_type": "refresh_token"}
	cfg.Renewal.Headers = map[string]string{"X-Client": "tokenkeep-test", "Authorization": "ignored"}
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, cfg, access, refresh)

	renewed := tokenExpiringAt(t, f.clock.Now().Add(2*time.Hour))
	f.transport.enqueue(&Response{Status: 200, Body: map[string]any{"accessToken": renewed}}, nil)

	got, err := s.requestNewAccessToken(ctx)
	if err != nil {
		t.Fatalf("requestNewAccessToken failed: %v", err)
	}
	if got != renewed {
		t.Fatal("returned token does not match response")
	}

	req := f.transport.lastRequest()
	if req.Body["grant_type"] != "refresh_token" {
		t.Fatal("configured refresh body must be merged into the request")
	}
	if req.Headers["X-Client"] != "tokenkeep-test" {
		t.Fatal("configured headers must be carried")
	}
	if req.Headers["Authorization"] != "Bearer "+refresh {
		t.Fatal("caller-supplied Authorization must be overridden with the refresh token")
	}

	snapshot := s.Snapshot()
	if snapshot.Tokens.Access != renewed {
		t.Fatal("renewed token must be installed in memory")
	}
	if exp, ok := snapshot.Claims.Access.ExpiresAt(); !ok || !exp.After(f.clock.Now()) {
		t.Fatal("claims must be recomputed from the renewed token")
	}

	v, _, _ := f.store.Get(ctx, "tk_access")
	if v != renewed {
		t.Fatal("renewed token must be persisted")
	}

	waitFor(t, func() bool { return f.sink.countOf(EventTokenRenewed) == 1 },
		"exactly one renewed event")
	if got := s.metrics.Value(MetricRenewSuccess); got != 1 {
		t.Fatalf("expected one renew success, got %d", got)
	}
}

func TestRenewalDiscardedAfterTermination(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	access := tokenExpiringAt(t, f.clock.Now().Add(time.Hour))
	refresh := tokenExpiringAt(t, f.clock.Now().Add(24*time.Hour))
	s := f.build(t, f.config(), access, refresh)

	if _, err := s.requestNewAccessToken(ctx); err != nil {
		// Fallback transport answers 200 with an empty body.
		if !errors.Is(err, ErrMalformedRenewalResponse) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	s.SignOut(ctx)
	if _, err := s.requestNewAccessToken(ctx); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated after sign-out, got %v", err)
	}
}

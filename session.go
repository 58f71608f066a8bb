package tokenkeep

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

// Session is the controller owning one pair of bearer credentials. It is
// created through [Builder.Build], armed through [Session.Init], and from
// then on keeps the access token valid until the refresh token is exhausted
// or the caller signs out.
//
// All methods are safe for concurrent use. Token state is owned exclusively
// by the Session: external actors observe it through [Session.Snapshot] and
// lifecycle events, never by direct mutation.
type Session struct {
	id        string
	config    Config
	store     CredentialStore
	decoder   ClaimsDecoder
	transport Transport
	clock     Clock
	logger    logr.Logger
	audit     *auditDispatcher
	metrics   *Metrics
	location  *Location

	mu          sync.Mutex
	tokens      TokenPair
	claims      ClaimsPair
	tier        Tier
	checker     *checker
	initialized bool
	terminated  bool
}

// ID returns the unique identifier stamped on every event this session emits.
func (s *Session) ID() string {
	return s.id
}

// Init arms the session: resolves tokens (explicitly supplied ones win over
// persisted ones), picks the persistence tier, persists and decodes both
// tokens, emits one renewal notification, performs one validation round-trip
// against the check endpoint, and then starts the periodic expiration
// checker. When the check endpoint rejects the access token with the
// configured renew status and a refresh token exists, the renewal protocol
// runs immediately. The checker is armed only after that round-trip
// resolves, so at most one renewal attempt is ever in flight.
//
// Errors are returned as values together with a snapshot of whatever state
// was established; Init never panics on remote failures.
func (s *Session) Init(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil, ErrSessionTerminated
	}
	if s.initialized {
		s.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	s.initialized = true
	tokens := s.tokens
	s.mu.Unlock()

	storage := s.config.Storage

	// Resolve tokens and ask the durable tier for a prior entry.
	var storedTier Tier
	if tokens.Access == "" {
		v, tier, err := s.store.Get(ctx, storage.AccessKey)
		if err != nil {
			s.storeWarn("read", storage.AccessKey, err)
		}
		tokens.Access = v
		storedTier = tier

		r, _, err := s.store.Get(ctx, storage.RefreshKey)
		if err != nil {
			s.storeWarn("read", storage.RefreshKey, err)
		}
		tokens.Refresh = r
	} else {
		_, tier, err := s.store.Get(ctx, storage.AccessKey)
		if err != nil {
			s.storeWarn("read", storage.AccessKey, err)
		}
		storedTier = tier
	}

	tier := TierSession
	if storage.Remember || storedTier == TierDurable {
		tier = TierDurable
	}

	if tokens.Access == "" {
		s.metrics.Inc(MetricInitFailure)
		s.mu.Lock()
		s.initialized = false
		s.mu.Unlock()
		return nil, ErrNoAccessToken
	}

	// Purge stale entries from both tiers before persisting to the chosen one.
	s.purgeStorage(ctx)
	if err := s.store.Set(ctx, tier, storage.AccessKey, tokens.Access); err != nil {
		s.storeWarn("write", storage.AccessKey, err)
	}
	if tokens.Refresh != "" {
		if err := s.store.Set(ctx, tier, storage.RefreshKey, tokens.Refresh); err != nil {
			s.storeWarn("write", storage.RefreshKey, err)
		}
	}

	decoded := ClaimsPair{Access: s.decodeToken(TokenAccess, tokens.Access)}
	if tokens.Refresh != "" {
		decoded.Refresh = s.decodeToken(TokenRefresh, tokens.Refresh)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.claims = decoded
	s.tier = tier
	s.mu.Unlock()

	// Expired access with no refresh path is terminal before any network call.
	if s.CheckExpiration(TokenAccess) && tokens.Refresh == "" {
		s.metrics.Inc(MetricInitFailure)
		s.terminate(ctx, "access token expired with no refresh token")
		return s.snapshot(false), ErrSessionTerminated
	}

	// Renewal notification so integrators pick up the freshly-set token.
	s.emit(AuditEvent{EventType: EventSessionInit, Token: string(TokenAccess), Success: true})
	s.emit(AuditEvent{EventType: EventTokenRenewed, Token: string(TokenAccess), Success: true})

	renewal := s.config.Renewal
	resp, err := s.transport.Send(ctx, Request{
		Method:  renewal.CheckMethod,
		URL:     joinURL(renewal.BaseURL, renewal.CheckPath),
		Headers: s.bearerHeaders(tokens.Access),
		Body:    renewal.CheckBody,
		Format:  renewal.ResponseFormat,
	})
	if err != nil {
		s.metrics.Inc(MetricInitFailure)
		s.emit(AuditEvent{EventType: EventCheckFailed, Error: err.Error()})
		s.armChecker()
		return s.snapshot(false), fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	switch {
	case resp.Status == renewal.CheckRenewStatus && s.hasRefreshToken():
		if _, err := s.requestNewAccessToken(ctx); err != nil {
			s.metrics.Inc(MetricInitFailure)
			s.armChecker()
			return s.snapshot(false), err
		}
	case resp.Status >= 200 && resp.Status < 300:
		// Access token accepted as-is.
	default:
		s.metrics.Inc(MetricInitFailure)
		s.emit(AuditEvent{EventType: EventCheckFailed, Status: resp.Status})
		s.armChecker()
		return s.snapshot(false), &StatusError{Status: resp.Status, Expected: renewal.ExpectedStatus}
	}

	s.armChecker()
	s.metrics.Inc(MetricInitSuccess)
	return s.snapshot(true), nil
}

// armChecker starts the periodic checker once the Init round-trip has
// resolved. Arming after the round-trip keeps the single-renewal-in-flight
// invariant: no tick can race an Init-driven renewal. A session terminated
// while Init was on the wire is left unarmed.
func (s *Session) armChecker() {
	s.mu.Lock()
	if !s.terminated && s.checker == nil {
		s.checker = newChecker(s, s.config.Checker.Interval)
	}
	s.mu.Unlock()
}

// CheckExpiration reports whether the requested token is expired. Absent or
// undecodable claims count as expired, failing safe toward
// re-authentication. The check is pure: claims and wall clock only.
func (s *Session) CheckExpiration(kind TokenKind) bool {
	s.mu.Lock()
	var c Claims
	switch kind {
	case TokenRefresh:
		c = s.claims.Refresh
	default:
		c = s.claims.Access
	}
	s.mu.Unlock()

	exp, ok := c.ExpiresAt()
	if !ok {
		return true
	}
	return s.clock.Now().After(exp)
}

// SignOut is the explicit expire(): it stops the checker, purges both
// storage tiers, clears in-memory token state, and emits the signout and
// expired events. The expired event fires at most once per session no
// matter how termination is reached.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	already := s.terminated
	s.mu.Unlock()
	if already {
		return
	}

	s.metrics.Inc(MetricSignOut)
	s.emit(AuditEvent{EventType: EventSessionSignOut, Success: true})
	s.terminate(ctx, "signed out")
}

// Close signs out, waits for the checker goroutine to drain, and flushes the
// event dispatcher. Intended for defer at host shutdown.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	ck := s.checker
	s.mu.Unlock()

	s.SignOut(ctx)
	if ck != nil {
		ck.wait()
	}
	s.audit.Close()
}

// Snapshot returns a point-in-time copy of the session's token state. Valid
// means the session is not terminated and the access token is unexpired.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	terminated := s.terminated
	s.mu.Unlock()
	return s.snapshot(!terminated && !s.CheckExpiration(TokenAccess))
}

// MetricsSnapshot returns a deep copy of the session's metrics for export.
func (s *Session) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports lifecycle events discarded under dispatcher backpressure.
func (s *Session) AuditDropped() uint64 {
	return s.audit.Dropped()
}

/*
====================================
INTERNAL STATE MANAGEMENT
====================================
*/

func (s *Session) snapshot(valid bool) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{
		Valid:  valid,
		Tokens: s.tokens,
		Claims: ClaimsPair{
			Access:  cloneClaims(s.claims.Access),
			Refresh: cloneClaims(s.claims.Refresh),
		},
		Location: s.location,
	}
}

func (s *Session) hasRefreshToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Refresh != ""
}

func (s *Session) refreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Refresh
}

func (s *Session) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// terminate transitions the session to its terminal state exactly once:
// checker stopped, storage purged, token state cleared, expired event
// emitted. Subsequent calls are no-ops.
func (s *Session) terminate(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	ck := s.checker
	s.checker = nil
	s.tokens = TokenPair{}
	s.claims = ClaimsPair{}
	s.mu.Unlock()

	if ck != nil {
		ck.stop()
	}
	s.purgeStorage(ctx)
	s.metrics.Inc(MetricSessionTerminated)
	s.emit(AuditEvent{EventType: EventSessionExpired, Error: reason})
	s.logger.Info("session terminated", "reason", reason)
}

func (s *Session) purgeStorage(ctx context.Context) {
	if err := s.store.Remove(ctx, s.config.Storage.AccessKey); err != nil {
		s.storeWarn("remove", s.config.Storage.AccessKey, err)
	}
	if err := s.store.Remove(ctx, s.config.Storage.RefreshKey); err != nil {
		s.storeWarn("remove", s.config.Storage.RefreshKey, err)
	}
}

// decodeToken decodes a token into claims. Decode failures are demoted to
// empty claims: the checker then treats the token as expired, which is the
// safe direction.
func (s *Session) decodeToken(kind TokenKind, token string) Claims {
	decoded, err := s.decoder.Decode(token)
	if err != nil {
		s.metrics.Inc(MetricDecodeFailure)
		s.emit(AuditEvent{EventType: EventTokenDecodeFailed, Token: string(kind), Error: err.Error()})
		s.logger.Info("token decode failed, treating as expired", "token", string(kind), "error", err.Error())
		return Claims{}
	}
	return decoded
}

func (s *Session) storeWarn(op, key string, err error) {
	s.metrics.Inc(MetricStoreFailure)
	s.logger.Info("credential store operation failed", "op", op, "key", key, "error", err.Error())
}

func (s *Session) emit(event AuditEvent) {
	event.Timestamp = s.clock.Now()
	event.SessionID = s.id
	s.audit.Emit(context.Background(), event)
}

// bearerHeaders merges the configured extra headers, dropping any
// caller-supplied Authorization, then sets the bearer credential and content
// type.
func (s *Session) bearerHeaders(token string) map[string]string {
	cfg := s.config.Renewal
	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		if strings.EqualFold(k, "Authorization") {
			continue
		}
		headers[k] = v
	}
	headers["Authorization"] = cfg.AuthPrefix + " " + token
	headers["Content-Type"] = cfg.ContentType
	return headers
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func cloneClaims(c Claims) Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

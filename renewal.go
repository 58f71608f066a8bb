package tokenkeep

import (
	"context"
	"fmt"
	"strings"
)

// requestNewAccessToken runs the renewal protocol once: it posts the refresh
// token to the refresh endpoint, validates the response status, extracts the
// new access token, and installs it (memory, claims, storage). Exactly one
// renewed event is emitted per successful call.
//
// Error taxonomy: [ErrRenewalNotConfigured] and [ErrNoRefreshToken] are
// precondition failures with no network traffic, [ErrConnectivity] wraps
// transport failures, [*StatusError] reports an unexpected response status,
// and [ErrMalformedRenewalResponse] covers a success status without a usable
// token in the body.
func (s *Session) requestNewAccessToken(ctx context.Context) (string, error) {
	if s.isTerminated() {
		return "", ErrSessionTerminated
	}

	cfg := s.config.Renewal
	if cfg.RefreshPath == "" {
		return "", ErrRenewalNotConfigured
	}
	refresh := s.refreshToken()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	body := make(map[string]any, len(cfg.RefreshBody)+1)
	for k, v := range cfg.RefreshBody {
		body[k] = v
	}
	body[cfg.RefreshKey] = refresh

	start := s.clock.Now()
	resp, err := s.transport.Send(ctx, Request{
		Method:  cfg.RefreshMethod,
		URL:     joinURL(cfg.BaseURL, cfg.RefreshPath),
		Headers: s.bearerHeaders(refresh),
		Body:    body,
		Format:  cfg.ResponseFormat,
	})
	s.metrics.Observe(MetricRenewLatency, s.clock.Now().Sub(start))

	if err != nil {
		s.renewFailed(0, err)
		return "", fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.Status != cfg.ExpectedStatus {
		statusErr := &StatusError{Status: resp.Status, Expected: cfg.ExpectedStatus}
		s.renewFailed(resp.Status, statusErr)
		return "", statusErr
	}

	// JSON responses carry the token under AccessKey; text responses are the
	// token itself.
	var token string
	if cfg.ResponseFormat == FormatText {
		token = strings.TrimSpace(resp.Text)
	} else {
		token, _ = resp.Body[cfg.AccessKey].(string)
	}
	if token == "" {
		s.renewFailed(resp.Status, ErrMalformedRenewalResponse)
		return "", ErrMalformedRenewalResponse
	}

	if !s.applyAccessToken(ctx, token) {
		// Terminated while the request was in flight; discard the result.
		return "", ErrSessionTerminated
	}

	s.metrics.Inc(MetricRenewSuccess)
	s.emit(AuditEvent{
		EventType: EventTokenRenewed,
		Token:     string(TokenAccess),
		Status:    resp.Status,
		Success:   true,
	})
	return token, nil
}

// applyAccessToken installs a freshly renewed access token. It reports false
// when the session terminated while the renewal was in flight, in which case
// the token is discarded unused.
func (s *Session) applyAccessToken(ctx context.Context, token string) bool {
	decoded := s.decodeToken(TokenAccess, token)

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false
	}
	s.tokens.Access = token
	s.claims.Access = decoded
	tier := s.tier
	s.mu.Unlock()

	if err := s.store.Set(ctx, tier, s.config.Storage.AccessKey, token); err != nil {
		s.storeWarn("write", s.config.Storage.AccessKey, err)
	}
	return true
}

func (s *Session) renewFailed(status int, err error) {
	s.metrics.Inc(MetricRenewFailure)
	s.emit(AuditEvent{
		EventType: EventTokenRenewFailed,
		Token:     string(TokenAccess),
		Status:    status,
		Error:     err.Error(),
	})
}

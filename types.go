package tokenkeep

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/tokenkeep/tokenkeep/claims"
	"github.com/tokenkeep/tokenkeep/credstore"
	internalaudit "github.com/tokenkeep/tokenkeep/internal/audit"
)

// TokenKind selects one of the two managed bearer credentials.
type TokenKind string

const (
	// TokenAccess is an exported constant or variable used by the session controller.
	TokenAccess TokenKind = "access"
	// TokenRefresh is an exported constant or variable used by the session controller.
	TokenRefresh TokenKind = "refresh"
)

// TokenPair holds the raw bearer credentials. The access token, when
// present, must decode into claims carrying a numeric exp field. The pair is
// owned exclusively by its [Session]; the credential store only mirrors it.
type TokenPair struct {
	Access  string
	Refresh string
}

// Claims is the decoded payload of a bearer token.
//
//	See claims.Claims for the accessor set.
type Claims = claims.Claims

// ClaimsPair holds decoded claims for both tokens. Derived data: recomputed
// whenever the corresponding token is (re)set, never persisted.
type ClaimsPair struct {
	Access  Claims
	Refresh Claims
}

// Tier identifies a credential persistence tier.
type Tier = credstore.Tier

const (
	// TierNone is an exported constant or variable used by the session controller.
	TierNone = credstore.TierNone
	// TierSession is an exported constant or variable used by the session controller.
	TierSession = credstore.TierSession
	// TierDurable is an exported constant or variable used by the session controller.
	TierDurable = credstore.TierDurable
)

// Location decomposes the caller-supplied current URL: ordered path segments
// plus query and fragment parameters.
type Location struct {
	Path     string
	Segments []string
	Query    url.Values
	Fragment string
}

// Snapshot is the result of [Session.Init] and [Session.Snapshot]: a
// point-in-time copy of the controller's token state.
type Snapshot struct {
	Valid    bool
	Tokens   TokenPair
	Claims   ClaimsPair
	Location *Location
}

// CredentialStore is the persistence adapter consumed by the controller.
// Get reports the tier the value was found in (TierNone = absent); Remove
// clears the key from every tier.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, Tier, error)
	Set(ctx context.Context, tier Tier, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ClaimsDecoder is the claims-decoding adapter consumed by the controller.
type ClaimsDecoder interface {
	Decode(token string) (Claims, error)
}

// AuditEvent is a structured lifecycle event emitted by the session controller.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the session's event dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

const (
	// EventSessionInit is an exported constant or variable used by the session controller.
	EventSessionInit = internalaudit.EventSessionInit
	// EventTokenRenewed is an exported constant or variable used by the session controller.
	EventTokenRenewed = internalaudit.EventTokenRenewed
	// EventTokenRenewFailed is an exported constant or variable used by the session controller.
	EventTokenRenewFailed = internalaudit.EventTokenRenewFailed
	// EventTokenDecodeFailed is an exported constant or variable used by the session controller.
	EventTokenDecodeFailed = internalaudit.EventTokenDecodeFailed
	// EventCheckFailed is an exported constant or variable used by the session controller.
	EventCheckFailed = internalaudit.EventCheckFailed
	// EventSessionExpired is an exported constant or variable used by the session controller.
	EventSessionExpired = internalaudit.EventSessionExpired
	// EventSessionSignOut is an exported constant or variable used by the session controller.
	EventSessionSignOut = internalaudit.EventSessionSignOut
)

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func parseLocation(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	var segments []string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}

	return &Location{
		Path:     u.Path,
		Segments: segments,
		Query:    u.Query(),
		Fragment: u.Fragment,
	}, nil
}

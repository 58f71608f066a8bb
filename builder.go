package tokenkeep

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tokenkeep/tokenkeep/claims"
	"github.com/tokenkeep/tokenkeep/credstore"
)

// Builder assembles a [Session]. Obtain one from [New], chain the With*
// options, and call [Builder.Build] exactly once. A Builder is not safe for
// concurrent use and must not be reused after Build.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	redisTTL  time.Duration
	store     CredentialStore
	transport Transport
	decoder   ClaimsDecoder
	clock     Clock
	logger    logr.Logger
	sink      AuditSink
	tokens    TokenPair
	location  string
	built     bool
}

// New returns a [Builder] seeded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration. The config is deep-copied so
// later mutations by the caller do not leak into the session.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRenewal replaces only the renewal section of the configuration.
func (b *Builder) WithRenewal(cfg RenewalConfig) *Builder {
	b.config.Renewal = cfg
	return b
}

// WithRedis wires a Redis client as the durable credential tier. The session
// tier stays in process memory. ttl bounds how long persisted credentials
// outlive the process; zero means no expiry.
func (b *Builder) WithRedis(client redis.UniversalClient, ttl time.Duration) *Builder {
	b.redis = client
	b.redisTTL = ttl
	return b
}

// WithStore supplies a fully custom [CredentialStore], overriding WithRedis.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithTransport overrides the default net/http transport.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithDecoder overrides the default JWT claims decoder.
func (b *Builder) WithDecoder(d ClaimsDecoder) *Builder {
	b.decoder = d
	return b
}

// WithClock overrides the wall clock and ticker source. Intended for tests.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger attaches a logger. Without one the session logs nothing.
func (b *Builder) WithLogger(logger logr.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink attaches the sink that receives lifecycle events.
func (b *Builder) WithEventSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithTokens supplies explicit tokens. They take precedence over persisted
// ones during [Session.Init]. refresh may be empty.
func (b *Builder) WithTokens(access, refresh string) *Builder {
	b.tokens = TokenPair{Access: access, Refresh: refresh}
	return b
}

// WithRemember forces the durable persistence tier for this session.
func (b *Builder) WithRemember(remember bool) *Builder {
	b.config.Storage.Remember = remember
	return b
}

// WithLocation records the caller's current URL; it is decomposed into path
// segments, query and fragment and surfaced on every [Snapshot].
func (b *Builder) WithLocation(raw string) *Builder {
	b.location = raw
	return b
}

// WithMetricsEnabled turns on the session's internal counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms additionally records renewal latency distribution.
// Has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, fills unset dependencies with defaults,
// and returns the assembled [Session]. The session is inert until
// [Session.Init] is called.
func (b *Builder) Build() (*Session, error) {
	if b.built {
		return nil, errors.New("builder already used; create a new one with New()")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("a credential store is required: use WithRedis or WithStore")
		}
		store = credstore.NewTiered(
			credstore.NewRedis(b.redis, "tk", b.redisTTL),
			credstore.NewMemory(),
		)
	}

	transport := b.transport
	if transport == nil {
		transport = NewHTTPClient(nil)
	}
	decoder := b.decoder
	if decoder == nil {
		decoder = claims.NewDecoder()
	}
	clk := b.clock
	if clk == nil {
		clk = systemClock{}
	}

	var loc *Location
	if b.location != "" {
		parsed, err := parseLocation(b.location)
		if err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", b.location, err)
		}
		loc = parsed
	}

	s := &Session{
		id:        uuid.NewString(),
		config:    cfg,
		store:     store,
		decoder:   decoder,
		transport: transport,
		clock:     clk,
		logger:    resolveLogger(b.logger),
		location:  loc,
		tokens:    b.tokens,
	}
	s.audit = newAuditDispatcher(cfg.Audit, b.sink)
	s.metrics = NewMetrics(cfg.Metrics)

	b.built = true
	return s, nil
}

// resolveLogger returns a usable logger even when none was configured.
func resolveLogger(logger logr.Logger) logr.Logger {
	if logger.GetSink() == nil {
		return logr.Discard()
	}
	return logger
}

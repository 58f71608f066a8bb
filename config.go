package tokenkeep

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by tokenkeep APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Renewal RenewalConfig
	Storage StorageConfig
	Checker CheckerConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// ResponseFormat selects how the transport parses response bodies.
type ResponseFormat string

const (
	// FormatJSON is an exported constant or variable used by the session controller.
	FormatJSON ResponseFormat = "json"
	// FormatText is an exported constant or variable used by the session controller.
	FormatText ResponseFormat = "text"
)

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig defines a public type used by tokenkeep APIs.
//
// RenewalConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RenewalConfig struct {
	BaseURL     string
	CheckPath   string
	RefreshPath string

	CheckMethod   string // default GET
	RefreshMethod string // default POST

	// AccessKey names the response-body field that carries the new access
	// token; RefreshKey names the request-body field the refresh token is
	// merged under.
	AccessKey  string
	RefreshKey string

	// ExpectedStatus is the success status of the refresh endpoint.
	// CheckRenewStatus is the check-endpoint status that signals the access
	// token was rejected and a renewal should run immediately.
	// InvalidRefreshStatus is the refresh-endpoint status that declares the
	// refresh token itself invalid; it terminates the session without retry.
	ExpectedStatus       int
	CheckRenewStatus     int
	InvalidRefreshStatus int

	ContentType string
	AuthPrefix  string
	Headers     map[string]string

	CheckBody   map[string]any
	RefreshBody map[string]any

	// MaxAttempts bounds consecutive retryable renewal failures. Retries run
	// at the fixed checker cadence; there is no exponential backoff.
	MaxAttempts int

	ResponseFormat ResponseFormat
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig defines a public type used by tokenkeep APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	// AccessKey and RefreshKey are the storage key names the tokens are
	// persisted under.
	AccessKey  string
	RefreshKey string

	// Remember forces the durable tier. Without it the durable tier is still
	// chosen when a prior durable entry exists for AccessKey.
	Remember bool
}

// CheckerConfig defines a public type used by tokenkeep APIs.
//
// CheckerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CheckerConfig struct {
	Interval time.Duration
}

// AuditConfig defines a public type used by tokenkeep APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by tokenkeep APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration a fresh [Builder] starts from.
// Callers can take it, adjust the fields they care about, and pass the
// result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Renewal: RenewalConfig{
			CheckMethod:          http.MethodGet,
			RefreshMethod:        http.MethodPost,
			AccessKey:            "accessToken",
			RefreshKey:           "refreshToken",
			ExpectedStatus:       http.StatusOK,
			CheckRenewStatus:     http.StatusUnauthorized,
			InvalidRefreshStatus: http.StatusUnauthorized,
			ContentType:          "application/json",
			AuthPrefix:           "Bearer",
			MaxAttempts:          3,
			ResponseFormat:       FormatJSON,
		},
		Storage: StorageConfig{
			AccessKey:  "tk_access",
			RefreshKey: "tk_refresh",
			Remember:   false,
		},
		Checker: CheckerConfig{
			Interval: time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Renewal.Headers = cloneStringMap(cfg.Renewal.Headers)
	out.Renewal.CheckBody = cloneAnyMap(cfg.Renewal.CheckBody)
	out.Renewal.RefreshBody = cloneAnyMap(cfg.Renewal.RefreshBody)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Renewal
	if strings.TrimSpace(c.Renewal.BaseURL) == "" {
		return errors.New("Renewal BaseURL is required")
	}
	u, err := url.Parse(c.Renewal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Renewal BaseURL must be an absolute URL")
	}
	if strings.TrimSpace(c.Renewal.CheckPath) == "" {
		return errors.New("Renewal CheckPath is required")
	}

	if !validMethod(c.Renewal.CheckMethod) {
		return errors.New("Renewal CheckMethod is invalid")
	}
	if !validMethod(c.Renewal.RefreshMethod) {
		return errors.New("Renewal RefreshMethod is invalid")
	}

	if strings.TrimSpace(c.Renewal.AccessKey) == "" {
		return errors.New("Renewal AccessKey must not be empty")
	}
	if strings.TrimSpace(c.Renewal.RefreshKey) == "" {
		return errors.New("Renewal RefreshKey must not be empty")
	}

	if !validStatus(c.Renewal.ExpectedStatus) {
		return errors.New("Renewal ExpectedStatus must be a valid HTTP status")
	}
	if !validStatus(c.Renewal.CheckRenewStatus) {
		return errors.New("Renewal CheckRenewStatus must be a valid HTTP status")
	}
	if !validStatus(c.Renewal.InvalidRefreshStatus) {
		return errors.New("Renewal InvalidRefreshStatus must be a valid HTTP status")
	}

	if strings.TrimSpace(c.Renewal.AuthPrefix) == "" {
		return errors.New("Renewal AuthPrefix must not be empty")
	}
	if strings.TrimSpace(c.Renewal.ContentType) == "" {
		return errors.New("Renewal ContentType must not be empty")
	}

	if c.Renewal.MaxAttempts < 0 {
		return errors.New("Renewal MaxAttempts must be >= 0")
	}

	if c.Renewal.ResponseFormat != FormatJSON && c.Renewal.ResponseFormat != FormatText {
		return errors.New("Renewal ResponseFormat must be 'json' or 'text'")
	}

	// Storage
	if strings.TrimSpace(c.Storage.AccessKey) == "" {
		return errors.New("Storage AccessKey must not be empty")
	}
	if strings.TrimSpace(c.Storage.RefreshKey) == "" {
		return errors.New("Storage RefreshKey must not be empty")
	}
	if c.Storage.AccessKey == c.Storage.RefreshKey {
		return errors.New("Storage AccessKey and RefreshKey must differ")
	}

	// Checker
	if c.Checker.Interval <= 0 {
		return errors.New("Checker Interval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}

	return nil
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
		return true
	default:
		return false
	}
}

func validStatus(s int) bool {
	return s >= 100 && s <= 599
}

package internaldefs

import (
	tokenkeep "github.com/tokenkeep/tokenkeep"
)

// CounterDef defines a public type used by tokenkeep APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   tokenkeep.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by tokenkeep APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   tokenkeep.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session controller.
var CounterDefs = []CounterDef{
	{ID: tokenkeep.MetricInitSuccess, Name: "tokenkeep_init_success_total", Help: "Successful session initializations."},
	{ID: tokenkeep.MetricInitFailure, Name: "tokenkeep_init_failure_total", Help: "Failed session initializations."},
	{ID: tokenkeep.MetricCheckTick, Name: "tokenkeep_check_tick_total", Help: "Periodic expiration checker ticks."},
	{ID: tokenkeep.MetricRenewSuccess, Name: "tokenkeep_renew_success_total", Help: "Successful access token renewals."},
	{ID: tokenkeep.MetricRenewFailure, Name: "tokenkeep_renew_failure_total", Help: "Failed renewal attempts."},
	{ID: tokenkeep.MetricRenewRetry, Name: "tokenkeep_renew_retry_total", Help: "Renewal failures that consumed a retry attempt."},
	{ID: tokenkeep.MetricRenewRejected, Name: "tokenkeep_renew_rejected_total", Help: "Renewals rejected because the refresh token was declared invalid."},
	{ID: tokenkeep.MetricDecodeFailure, Name: "tokenkeep_decode_failure_total", Help: "Tokens that failed claims decoding."},
	{ID: tokenkeep.MetricStoreFailure, Name: "tokenkeep_store_failure_total", Help: "Credential store operations that failed."},
	{ID: tokenkeep.MetricSessionTerminated, Name: "tokenkeep_session_terminated_total", Help: "Sessions that reached the terminal state."},
	{ID: tokenkeep.MetricSignOut, Name: "tokenkeep_signout_total", Help: "Explicit sign-out operations."},
}

// HistogramDefs is an exported constant or variable used by the session controller.
var HistogramDefs = []HistogramDef{
	{ID: tokenkeep.MetricRenewLatency, Name: "tokenkeep_renew_latency_seconds", Help: "Renewal round-trip latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session controller.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session controller.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

package tokenkeep

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAccessToken is an exported constant or variable used by the session controller.
	ErrNoAccessToken = errors.New("no access token available")
	// ErrNoRefreshToken is an exported constant or variable used by the session controller.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRenewalNotConfigured is an exported constant or variable used by the session controller.
	ErrRenewalNotConfigured = errors.New("renewal endpoint not configured")
	// ErrSessionTerminated is an exported constant or variable used by the session controller.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrAlreadyInitialized is an exported constant or variable used by the session controller.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrMalformedRenewalResponse is an exported constant or variable used by the session controller.
	ErrMalformedRenewalResponse = errors.New("renewal response missing access token")
	// ErrConnectivity is the wrap target for transport-level failures. A
	// connectivity failure is retryable and counts against the attempt budget.
	ErrConnectivity = errors.New("endpoint unreachable")
	// ErrUnexpectedStatus is the errors.Is target for [StatusError].
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// StatusError reports a response status that did not match the configured
// expectation. It is retryable unless the status equals the configured
// invalid-refresh status, in which case the checker terminates the session.
type StatusError struct {
	Status   int
	Expected int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d (expected %d)", e.Status, e.Expected)
}

// Is describes the is operation and its observable behavior.
//
// Is does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

package credstore

import (
	"context"
	"errors"
)

// ErrNoDurableTier is returned when a durable write is requested from a
// Tiered store built without a durable backend.
var ErrNoDurableTier = errors.New("no durable tier configured")

// Tier identifies which persistence tier a credential lives in.
type Tier uint8

const (
	// TierNone is an exported constant or variable used by the session controller.
	TierNone Tier = iota
	// TierSession is an exported constant or variable used by the session controller.
	TierSession
	// TierDurable is an exported constant or variable used by the session controller.
	TierDurable
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t Tier) String() string {
	switch t {
	case TierSession:
		return "session"
	case TierDurable:
		return "durable"
	default:
		return "none"
	}
}

// Backend is a single persistence tier.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Tiered combines a durable backend (survives restarts) with a
// session-scoped backend (cleared with the process). Reads prefer the
// durable tier; removes always clear both.
type Tiered struct {
	durable Backend
	session Backend
}

// NewTiered describes the newtiered operation and its observable behavior.
//
// NewTiered does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewTiered(durable, session Backend) *Tiered {
	if session == nil {
		session = NewMemory()
	}
	return &Tiered{
		durable: durable,
		session: session,
	}
}

// Get returns the stored value for key and the tier it was found in.
// TierNone signals absence.
func (t *Tiered) Get(ctx context.Context, key string) (string, Tier, error) {
	if t.durable != nil {
		v, ok, err := t.durable.Get(ctx, key)
		if err != nil {
			return "", TierNone, err
		}
		if ok {
			return v, TierDurable, nil
		}
	}
	v, ok, err := t.session.Get(ctx, key)
	if err != nil {
		return "", TierNone, err
	}
	if ok {
		return v, TierSession, nil
	}
	return "", TierNone, nil
}

// Set writes value under key into the requested tier.
func (t *Tiered) Set(ctx context.Context, tier Tier, key, value string) error {
	switch tier {
	case TierDurable:
		if t.durable == nil {
			return ErrNoDurableTier
		}
		return t.durable.Set(ctx, key, value)
	default:
		return t.session.Set(ctx, key, value)
	}
}

// Remove clears key from every tier.
func (t *Tiered) Remove(ctx context.Context, key string) error {
	var firstErr error
	if t.durable != nil {
		if err := t.durable.Remove(ctx, key); err != nil {
			firstErr = err
		}
	}
	if err := t.session.Remove(ctx, key); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

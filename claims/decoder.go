package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is an exported constant or variable used by the session controller.
var ErrDecode = errors.New("token decode failed")

// Claims is the decoded payload of a bearer token.
type Claims map[string]any

// ExpiresAt returns the exp claim (seconds since epoch) as wall-clock time.
// The second return is false when the claim is absent or not numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	return c.numericTime("exp")
}

// IssuedAt returns the iat claim as wall-clock time.
func (c Claims) IssuedAt() (time.Time, bool) {
	return c.numericTime("iat")
}

// Subject returns the sub claim when present.
func (c Claims) Subject() (string, bool) {
	v, ok := c["sub"].(string)
	return v, ok
}

func (c Claims) numericTime(key string) (time.Time, bool) {
	raw, ok := c[key]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case float64:
		return secondsToTime(v), true
	case int64:
		return time.Unix(v, 0), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return secondsToTime(f), true
	default:
		return time.Time{}, false
	}
}

func secondsToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second)))
}

// Decoder defines a public type used by tokenkeep APIs.
//
// Decoder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Decoder struct {
	parser *jwt.Parser
}

// NewDecoder describes the newdecoder operation and its observable behavior.
//
// NewDecoder does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewDecoder() *Decoder {
	return &Decoder{
		parser: jwt.NewParser(),
	}
}

// Decode extracts the claims map from a compact JWT without verifying its
// signature. Verification is the renewal endpoint's job; the controller only
// needs the exp claim to schedule renewal.
func (d *Decoder) Decode(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Claims(mc), nil
}

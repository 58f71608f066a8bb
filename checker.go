package tokenkeep

import (
	"context"
	"errors"
	"sync"
	"time"
)

// checkerState tracks where the periodic checker is in its lifecycle.
//
// Armed means the interval timer is live and no renewal is in flight.
// Checking means the timer is stopped while one renewal attempt runs.
// Terminated is absorbing; a terminated checker never ticks again.
type checkerState uint8

const (
	checkerArmed checkerState = iota
	checkerChecking
	checkerTerminated
)

// checker is the periodic expiration watchdog owned by a [Session]. One
// goroutine serves the whole lifetime of the checker; the ticker is stopped
// while a renewal attempt is in flight so at most one attempt runs at a
// time, and re-armed at the same fixed interval afterward. Retry pacing is
// linear: attempt N+1 fires one interval after attempt N failed, never with
// a growing backoff.
type checker struct {
	session  *Session
	interval time.Duration

	mu       sync.Mutex
	state    checkerState
	attempts int

	ticker   Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newChecker(s *Session, interval time.Duration) *checker {
	c := &checker{
		session:  s,
		interval: interval,
		state:    checkerArmed,
		ticker:   s.clock.NewTicker(interval),
		done:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *checker) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			c.ticker.Stop()
			c.setState(checkerTerminated)
			return
		case <-c.ticker.C():
			if c.tick() {
				c.setState(checkerTerminated)
				return
			}
		}
	}
}

// tick runs one expiration check and reports whether the checker reached a
// terminal state. The ticker field is only touched from the run goroutine.
func (c *checker) tick() bool {
	s := c.session
	s.metrics.Inc(MetricCheckTick)

	if !s.CheckExpiration(TokenAccess) {
		return false
	}

	if !s.hasRefreshToken() {
		s.terminate(context.Background(), "access token expired with no refresh token")
		return true
	}

	// Stop the interval before the attempt so at most one renewal is in
	// flight per checker.
	c.setState(checkerChecking)
	c.ticker.Stop()

	_, err := s.requestNewAccessToken(context.Background())
	switch {
	case err == nil:
		c.mu.Lock()
		c.attempts = 0
		c.mu.Unlock()

	case errors.Is(err, ErrSessionTerminated):
		return true

	case errors.Is(err, ErrRenewalNotConfigured), errors.Is(err, ErrNoRefreshToken):
		s.terminate(context.Background(), "renewal unavailable: "+err.Error())
		return true

	case s.isTerminalRenewError(err):
		s.metrics.Inc(MetricRenewRejected)
		s.terminate(context.Background(), "refresh token rejected by the renewal endpoint")
		return true

	default:
		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		s.metrics.Inc(MetricRenewRetry)
		s.emit(AuditEvent{
			EventType: EventCheckFailed,
			Token:     string(TokenAccess),
			Attempt:   attempt,
			Error:     err.Error(),
		})
		s.logger.V(1).Info("renewal attempt failed",
			"attempt", attempt,
			"max", s.config.Renewal.MaxAttempts,
			"error", err.Error())

		if attempt > s.config.Renewal.MaxAttempts {
			s.terminate(context.Background(), "renewal attempt budget exhausted")
			return true
		}
	}

	if s.isTerminated() {
		return true
	}

	// Re-arm at the same fixed cadence.
	c.ticker = s.clock.NewTicker(c.interval)
	c.setState(checkerArmed)
	return false
}

func (c *checker) setState(state checkerState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *checker) currentState() checkerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *checker) attemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// stop requests shutdown. It never waits: the run goroutine may itself be
// the caller (through terminate), and waiting here would self-deadlock.
func (c *checker) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *checker) wait() {
	c.wg.Wait()
}

// isTerminalRenewError reports whether the renewal endpoint definitively
// rejected the refresh token, which ends the session instead of consuming a
// retry attempt.
func (s *Session) isTerminalRenewError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == s.config.Renewal.InvalidRefreshStatus
}

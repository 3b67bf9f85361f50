package client

import (
	"errors"
	"sync"
	"time"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	// StateDisconnected is the initial state and the state after a
	// drop, before a reconnect attempt is scheduled.
	StateDisconnected ConnState = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the connected event has been received.
	StateConnected

	// StateOffline is terminal: reconnect attempts are exhausted and
	// no further dials happen.
	StateOffline
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ReconnectPolicy controls reconnection backoff.
type ReconnectPolicy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the doubling backoff.
	MaxDelay time.Duration

	// MaxAttempts is the number of consecutive failed attempts before
	// giving up. Zero means never give up.
	MaxAttempts int
}

// DefaultReconnectPolicy returns the standard backoff: 1s doubling to
// a 30s cap, giving up after 10 attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay returns the backoff delay before the given attempt.
// Attempts are counted from zero.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether the given number of consecutive failures
// exceeds the policy.
func (p ReconnectPolicy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

// ErrExchangeInFlight is returned when a message is submitted while a
// response is still pending.
var ErrExchangeInFlight = errors.New("a query is already awaiting a response")

// Exchange tracks the request/response cycle. At most one query is in
// flight at a time; the request id guards against attributing a stale
// response to the wrong query.
type Exchange struct {
	mu        sync.Mutex
	requestID string
	startedAt time.Time
}

// Begin claims the exchange for a request. It fails if another request
// is still awaiting its response.
func (e *Exchange) Begin(requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.requestID != "" {
		return ErrExchangeInFlight
	}
	e.requestID = requestID
	e.startedAt = time.Now()
	return nil
}

// Finish releases the exchange if requestID matches the in-flight
// request. It reports whether the response was accepted; stale
// responses return false and leave the exchange untouched.
func (e *Exchange) Finish(requestID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.requestID == "" || e.requestID != requestID {
		return false
	}
	e.requestID = ""
	return true
}

// Abort releases the exchange unconditionally. Used when the
// connection drops while awaiting a response.
func (e *Exchange) Abort() (requestID string, wasPending bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	requestID = e.requestID
	e.requestID = ""
	return requestID, requestID != ""
}

// Pending returns the in-flight request id, or "" when idle.
func (e *Exchange) Pending() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestID
}

// Expired reports whether the in-flight request has been waiting
// longer than timeout.
func (e *Exchange) Expired(timeout time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestID != "" && time.Since(e.startedAt) > timeout
}

package provider

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CircuitState mirrors pkg/security/ratelimit.go's CircuitBreaker states.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker trips after maxFailures consecutive adapter failures and
// fails fast with UpstreamUnavailable until resetTimeout elapses, instead of
// exhausting the per-call retry budget against a dead vendor. Grounded on
// pkg/security/ratelimit.go's CircuitBreaker.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu              sync.Mutex
	failures        int
	lastFailureTime time.Time
	state           CircuitState
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive failures and attempts recovery after resetTimeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// once resetTimeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastFailureTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.failures = 0
	}
	return cb.state != CircuitOpen
}

// RecordResult updates breaker state after a call completes.
func (cb *CircuitBreaker) RecordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.state = CircuitClosed
		return
	}
	cb.failures++
	cb.lastFailureTime = time.Now()
	if cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// VendorLimiter rate-limits outbound calls to a single vendor's API before
// the HTTP round trip, grounded on pkg/security/ratelimit.go's RateLimiter.
type VendorLimiter struct {
	limiter *rate.Limiter
}

// NewVendorLimiter creates a limiter allowing requestsPerSecond sustained
// with the given burst.
func NewVendorLimiter(requestsPerSecond float64, burst int) *VendorLimiter {
	return &VendorLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow reports whether a call may proceed right now without blocking.
func (l *VendorLimiter) Allow() bool {
	return l.limiter.Allow()
}

// guardedCall wraps a vendor call with the circuit breaker and rate limiter
// shared by every adapter, translating a tripped breaker or exhausted limiter
// into the same UpstreamError shape a vendor outage would produce.
func guardedCall(providerName string, cb *CircuitBreaker, lim *VendorLimiter, call func() (*CompletionResponse, error)) (*CompletionResponse, error) {
	if cb != nil && !cb.Allow() {
		return nil, &UpstreamError{Provider: providerName, Kind: UpstreamUnavailable, Message: "circuit breaker open"}
	}
	if lim != nil && !lim.Allow() {
		return nil, &UpstreamError{Provider: providerName, Kind: UpstreamRateLimited, Message: "local rate limit exceeded", RetryAfterSeconds: 1}
	}

	resp, err := call()
	if cb != nil {
		cb.RecordResult(err)
	}
	return resp, err
}

func httpStatusToKind(status int) UpstreamErrorKind {
	switch {
	case status == 401 || status == 403:
		return UpstreamAuth
	case status == 429:
		return UpstreamRateLimited
	case status == 400 || status == 404 || status == 422:
		return UpstreamBadRequest
	case status >= 500:
		return UpstreamTransient
	default:
		return UpstreamTransient
	}
}

// circuitbreaker.go - Circuit breaker around the object mirror.
//
// When the S3/MinIO endpoint is down every upload would otherwise wait for a
// mirror timeout. After maxFailures consecutive failures the breaker opens and
// mirror copies are skipped until the cool-down has elapsed.
package server

import (
	"errors"
	"sync"
	"time"
)

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen // a single trial call is in flight
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling fn while the breaker is open or
// while its trial call is still running.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration
	now         func() time.Time

	mu          sync.Mutex
	state       CircuitState
	consecutive uint32
	openedAt    time.Time
	lastFailure time.Time

	calls    uint64
	failed   uint64
	rejected uint64
}

// NewCircuitBreaker opens after maxFailures consecutive failures and lets one
// trial call through once cooldown has passed. name labels its log lines.
func NewCircuitBreaker(name string, maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open. The lock is not held while fn runs.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.calls++
	switch cb.state {
	case StateHalfOpen:
		cb.rejected++
		return false
	case StateOpen:
		if cb.now().Sub(cb.openedAt) <= cb.cooldown {
			cb.rejected++
			return false
		}
		cb.state = StateHalfOpen
		Info("circuit_breaker_half_open", map[string]any{"breaker": cb.name})
	}
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.consecutive = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		Info("circuit_breaker_closed", map[string]any{"breaker": cb.name})
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failed++
	cb.consecutive++
	cb.lastFailure = cb.now()

	if cb.state != StateHalfOpen && cb.consecutive < cb.maxFailures {
		return
	}
	if cb.state != StateOpen {
		Warn("circuit_breaker_opened", map[string]any{
			"breaker":  cb.name,
			"failures": cb.consecutive,
			"cooldown": cb.cooldown.String(),
		})
	}
	cb.state = StateOpen
	cb.openedAt = cb.lastFailure
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerStats is reported under the mirror component of /health.
type BreakerStats struct {
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	Calls               uint64    `json:"calls"`
	Failed              uint64    `json:"failed"`
	Rejected            uint64    `json:"rejected"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
}

func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerStats{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutive,
		Calls:               cb.calls,
		Failed:              cb.failed,
		Rejected:            cb.rejected,
		LastFailure:         cb.lastFailure,
	}
}

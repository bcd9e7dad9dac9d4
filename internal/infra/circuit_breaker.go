package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Guards the kitchen broker. After FailureThreshold consecutive failures the
// breaker opens and calls fail fast with ErrCircuitOpen. Once OpenTimeout has
// passed it lets a single probe through (half-open); SuccessThreshold good
// probes close it again, one bad probe reopens it.

// CBState represents the current circuit breaker state.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling through while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open while another probe is running.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// KitchenCBConfig returns the breaker settings for the kitchen publisher.
func KitchenCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "kitchen",
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

// CBSnapshot is the breaker state reported by /health.
type CBSnapshot struct {
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Failures int        `json:"consecutive_failures"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
}

type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CBState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

func (cb *CircuitBreaker) Snapshot() CBSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := CBSnapshot{Name: cb.cfg.Name, State: cb.currentLocked().String(), Failures: cb.failures}
	if cb.state != CBClosed {
		at := cb.openedAt
		s.OpenedAt = &at
	}
	return s
}

// Execute runs fn unless the breaker rejects the call. An error caused by
// ctx ending is the caller giving up, not the broker failing, so it does
// not count against the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}
	switch {
	case err == nil:
		cb.succeededLocked()
	case ctx.Err() != nil:
	default:
		cb.failedLocked()
	}
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.currentLocked() {
	case CBOpen:
		return false, ErrCircuitOpen
	case CBHalfOpen:
		if cb.probing {
			return false, ErrProbeInFlight
		}
		cb.probing = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) currentLocked() CBState {
	if cb.state == CBOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.moveLocked(CBHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) failedLocked() {
	cb.failures++
	if cb.state == CBHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
		cb.moveLocked(CBOpen)
	}
}

func (cb *CircuitBreaker) succeededLocked() {
	cb.failures = 0
	if cb.state != CBHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.cfg.SuccessThreshold {
		cb.moveLocked(CBClosed)
	}
}

func (cb *CircuitBreaker) moveLocked(to CBState) {
	from := cb.state
	cb.state = to
	cb.successes = 0
	if to != CBOpen {
		cb.failures = 0
	}
	ev := log.Info()
	if to == CBOpen {
		ev = log.Warn()
	}
	ev.Str("breaker", cb.cfg.Name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
}

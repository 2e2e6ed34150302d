// Package resilience provides a circuit breaker for flaky remote calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the breaker rejects requests.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and probes again after resetTimeout.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	successes     int
	requests      int64
	failuresTotal int64
}

// NewBreaker returns a closed breaker.
func NewBreaker(name string, maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		now:          time.Now,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Call runs fn unless the breaker is open, and records its outcome.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.successes = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			return false
		}
		b.halfOpenCalls++
		return true
	}
	return false
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	if success {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.halfOpenMax {
				b.state = StateClosed
				b.failures = 0
				b.halfOpenCalls = 0
				b.successes = 0
			}
		}
		return
	}

	b.failuresTotal++
	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = StateOpen
		}
	case StateHalfOpen:
		// Any failure while probing reopens.
		b.state = StateOpen
		b.halfOpenCalls = 0
		b.successes = 0
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns request and failure totals.
func (b *Breaker) Stats() (requests, failures int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests, b.failuresTotal
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
	b.successes = 0
}

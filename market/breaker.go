package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops calling a failing Quoter for resetTimeout after threshold
// consecutive failures. Unknown symbols are answers, not failures.
type Breaker struct {
	next Quoter
	log  *zap.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
	// trial is set while the single half-open call is in flight.
	trial bool
}

func NewBreaker(next Quoter, threshold int, resetTimeout time.Duration, log *zap.Logger) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{
		next:         next,
		log:          log,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Lookup asks the wrapped Quoter unless the circuit is open. Errors caused by
// the caller's own context leave the breaker untouched.
func (b *Breaker) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) <= b.resetTimeout {
			b.mu.Unlock()
			return nil, errors.Join(ErrUnavailable, ErrCircuitOpen)
		}
		b.log.Info("quote circuit half-open")
		b.state = StateHalfOpen
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			b.mu.Unlock()
			return nil, errors.Join(ErrUnavailable, ErrCircuitOpen)
		}
		b.trial = true
	}
	b.mu.Unlock()

	q, err := b.next.Lookup(ctx, symbol)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false

	if err != nil && callerGone(ctx, err) {
		return nil, err
	}
	if err != nil && !errors.Is(err, ErrSymbolNotFound) {
		b.failureCount++
		b.lastFailure = time.Now()
		b.log.Warn("quote lookup failed",
			zap.String("symbol", symbol),
			zap.Int("failures", b.failureCount),
			zap.Int("threshold", b.threshold),
			zap.Error(err))
		if b.state == StateHalfOpen || b.failureCount >= b.threshold {
			b.log.Error("quote circuit open")
			b.state = StateOpen
		}
		return nil, err
	}

	if b.state == StateHalfOpen {
		b.log.Info("quote circuit closed")
	}
	b.state = StateClosed
	b.failureCount = 0
	return q, err
}

func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

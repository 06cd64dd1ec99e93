package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type flakyQuoter struct {
	err error
}

func (f *flakyQuoter) Lookup(_ context.Context, symbol string) (*Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Quote{Symbol: Normalize(symbol), Price: decimal.NewFromInt(10)}, nil
}

// Closed -> Open -> HalfOpen -> Closed
func TestBreakerStateTransitions(t *testing.T) {
	threshold := 2
	resetTimeout := 50 * time.Millisecond
	next := &flakyQuoter{err: errors.New("provider down")}
	b := NewBreaker(next, threshold, resetTimeout, zap.NewNop())
	ctx := context.Background()

	if b.State() != StateClosed {
		t.Fatalf("initial state = %v", b.State())
	}

	for i := 0; i < threshold; i++ {
		if _, err := b.Lookup(ctx, "AAPL"); err == nil {
			t.Fatal("expected provider error")
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	next.err = nil
	_, err := b.Lookup(ctx, "AAPL")
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want open circuit", err)
	}

	time.Sleep(resetTimeout * 2)

	q, err := b.Lookup(ctx, "AAPL")
	if err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("quote = %+v", q)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}

	next.err = errors.New("blip")
	b.Lookup(ctx, "AAPL")
	if b.State() == StateOpen {
		t.Error("a single failure after reset must not open the circuit")
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	b := NewBreaker(NewStatic(nil), 1, time.Minute, zap.NewNop())
	for i := 0; i < 3; i++ {
		if _, err := b.Lookup(context.Background(), "ZZZZ"); !errors.Is(err, ErrSymbolNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	next := &flakyQuoter{err: errors.New("down")}
	b := NewBreaker(next, 3, 10*time.Millisecond, zap.NewNop())
	for i := 0; i < 3; i++ {
		b.Lookup(context.Background(), "X")
	}
	time.Sleep(20 * time.Millisecond)
	b.Lookup(context.Background(), "X")
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", b.State())
	}
}

// ctxQuoter fails with the context error once the caller goes away.
type ctxQuoter struct {
	release chan struct{}
	calls   int32
}

func (c *ctxQuoter) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	atomic.AddInt32(&c.calls, 1)
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case <-c.release:
		return &Quote{Symbol: Normalize(symbol), Price: decimal.NewFromInt(10)}, nil
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	next := &ctxQuoter{release: make(chan struct{})}
	b := NewBreaker(next, 2, time.Minute, zap.NewNop())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		if _, err := b.Lookup(cancelled, "AAPL"); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	}

	// cancelled while the provider call is in flight
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		if _, err := b.Lookup(ctx, "AAPL"); err == nil {
			t.Fatal("expected deadline error")
		}
		cancel()
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}

	close(next.release)
	if _, err := b.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("healthy provider refused: %v", err)
	}
}

func TestBreakerHalfOpenAllowsSingleTrial(t *testing.T) {
	failing := &flakyQuoter{err: errors.New("down")}
	b := NewBreaker(failing, 1, 10*time.Millisecond, zap.NewNop())
	b.Lookup(context.Background(), "X")
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	time.Sleep(20 * time.Millisecond)

	slow := &ctxQuoter{release: make(chan struct{})}
	b.next = slow

	done := make(chan error, 1)
	go func() {
		_, err := b.Lookup(context.Background(), "X")
		done <- err
	}()
	for atomic.LoadInt32(&slow.calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Lookup(context.Background(), "X"); !errors.Is(err, ErrCircuitOpen) {
				t.Errorf("concurrent half-open call: err = %v, want open circuit", err)
			}
		}()
	}
	wg.Wait()

	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if n := atomic.LoadInt32(&slow.calls); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

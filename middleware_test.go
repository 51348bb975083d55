package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

func TestRateLimitMiddleware(t *testing.T) {
	bus := TestBus()
	defer bus.Close(context.Background())

	// one token, refilled far slower than the subscriber timeout
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	h := NewRecordingHandler(nil)
	bus.Subscribe("room_created", h.Handle,
		WithMiddleware(RateLimit(limiter)),
		WithSubscriberTimeout(50*time.Millisecond))

	bus.Publish(context.Background(), New("room_created", nil))
	bus.Publish(context.Background(), New("room_created", nil))

	if h.Count() != 1 {
		t.Errorf("handler invoked %d times, want 1", h.Count())
	}
	got, _ := bus.StatsFor("room_created")
	if got.HandlersExecuted != 1 || got.HandlersFailed != 1 {
		t.Errorf("stats = %+v, want one executed and one failed", got)
	}
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	var reported []error
	bus := TestBus(WithErrorHandler(func(herr *HandlerError) {
		reported = append(reported, herr.Err)
	}))
	defer bus.Close(context.Background())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "downstream",
		Timeout: time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	var calls atomic.Int64
	bus.Subscribe("command_executed", func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("downstream unavailable")
	}, WithMiddleware(CircuitBreaker(cb)))

	for i := 0; i < 4; i++ {
		bus.Publish(context.Background(), New("command_executed", nil))
	}

	if calls.Load() != 2 {
		t.Errorf("handler ran %d times, want 2 before the breaker opened", calls.Load())
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %s", cb.State())
	}
	if len(reported) != 4 {
		t.Fatalf("got %d reported failures, want 4", len(reported))
	}
	if !errors.Is(reported[3], gobreaker.ErrOpenState) {
		t.Errorf("last failure = %v, want open state", reported[3])
	}
	got, _ := bus.StatsFor("command_executed")
	if got.HandlersFailed != 4 {
		t.Errorf("failed = %d, want 4", got.HandlersFailed)
	}
}

func TestCircuitBreakerPassesSuccess(t *testing.T) {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "ok"})
	h := CircuitBreaker(cb)(okHandler)
	if err := h(context.Background(), New("room_created", nil)); err != nil {
		t.Fatal(err)
	}
	if cb.Counts().TotalSuccesses != 1 {
		t.Errorf("successes = %d", cb.Counts().TotalSuccesses)
	}
}

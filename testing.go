package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// TestBus creates a new bus configured for testing: tracing and metrics are
// disabled and logs are discarded unless a logger option is passed.
//
// Example:
//
//	bus := eventbus.TestBus()
//	defer bus.Close(context.Background())
func TestBus(opts ...Option) *Bus {
	base := []Option{
		WithName("test-bus"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTracing(false),
		WithMetrics(false),
	}
	return NewBus(append(base, opts...)...)
}

// RecordedCall is a single invocation seen by a RecordingHandler
type RecordedCall struct {
	Event          Event
	SubscriptionID string
	Time           time.Time
}

// RecordingHandler collects the events it receives for later assertions.
// An optional inner handler decides the outcome of each call.
type RecordingHandler struct {
	mu       sync.Mutex
	calls    []RecordedCall
	inner    Handler
	notifyCh chan struct{}
}

// NewRecordingHandler creates a recording handler. If inner is nil every
// call succeeds.
func NewRecordingHandler(inner Handler) *RecordingHandler {
	return &RecordingHandler{
		inner:    inner,
		notifyCh: make(chan struct{}, 1),
	}
}

// Handle records the call and delegates to the inner handler. Use it as the
// Handler passed to Subscribe.
func (h *RecordingHandler) Handle(ctx context.Context, ev Event) error {
	h.mu.Lock()
	h.calls = append(h.calls, RecordedCall{
		Event:          ev,
		SubscriptionID: ContextSubscriptionID(ctx),
		Time:           time.Now(),
	})
	h.mu.Unlock()

	select {
	case h.notifyCh <- struct{}{}:
	default:
	}

	if h.inner != nil {
		return h.inner(ctx, ev)
	}
	return nil
}

// Calls returns a copy of all recorded calls
func (h *RecordingHandler) Calls() []RecordedCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]RecordedCall, len(h.calls))
	copy(result, h.calls)
	return result
}

// Count returns the number of recorded calls
func (h *RecordingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// Reset clears recorded calls
func (h *RecordingHandler) Reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}

// WaitFor blocks until at least n calls were recorded or timeout elapses.
// Returns true if the count was reached.
func (h *RecordingHandler) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if h.Count() >= n {
			return true
		}
		select {
		case <-h.notifyCh:
		case <-deadline:
			return h.Count() >= n
		}
	}
}

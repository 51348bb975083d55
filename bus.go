package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	busRunning = 1
	busStopped = 0
)

// Bus dispatches published events to the handlers registered for their type.
//
// Every handler of an event runs in its own goroutine; Publish returns once
// all of them have completed, failed or timed out. A failing handler is
// counted, logged and reported to the error callback, but never affects its
// siblings or the publisher.
type Bus struct {
	status           int32
	id               string
	name             string
	registry         *Registry
	stats            statsTable
	logger           *slog.Logger
	handlerTimeout   time.Duration
	onError          func(*HandlerError)
	tracer           trace.Tracer
	metrics          *busMetrics
	failureThreshold float64

	// closeMu orders inflight.Add against Close so Wait never races an Add
	closeMu  sync.RWMutex
	inflight sync.WaitGroup
}

// NewBus creates a bus. Construct one per process and pass it to the
// components that publish or subscribe.
func NewBus(opts ...Option) *Bus {
	o := newOptions(opts...)

	b := &Bus{
		status:           busRunning,
		id:               NewID(),
		name:             o.name,
		registry:         NewRegistry(),
		logger:           o.logger.With("component", "bus>"+o.name),
		handlerTimeout:   o.handlerTimeout,
		onError:          o.onError,
		failureThreshold: o.failureThreshold,
	}
	if o.tracingEnabled {
		b.tracer = otel.Tracer(o.name)
	}
	if o.metricsEnabled {
		b.metrics = newBusMetrics(o.name)
	}
	return b
}

// ID returns the bus ID
func (b *Bus) ID() string {
	return b.id
}

// Name returns the bus name
func (b *Bus) Name() string {
	return b.name
}

// Running returns true if bus is running
func (b *Bus) Running() bool {
	return atomic.LoadInt32(&b.status) == busRunning
}

// Logger returns the bus logger
func (b *Bus) Logger() *slog.Logger {
	return b.logger
}

// Registry returns the handler registry backing the bus
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Subscribe registers h for events of eventType.
// The same handler may be subscribed several times, under the same or
// different event types; each registration is invoked once per publish.
func (b *Bus) Subscribe(eventType string, h Handler, opts ...SubscribeOption) (Subscription, error) {
	if !b.Running() {
		return Subscription{}, ErrBusClosed
	}
	sub, err := b.registry.Add(eventType, h, opts...)
	if err != nil {
		return Subscription{}, err
	}
	b.stats.counters(eventType)
	b.logger.Debug("handler subscribed",
		"event_type", eventType,
		"handler", sub.Name,
		"subscription_id", sub.ID,
		"handlers", b.registry.Count(eventType))
	return sub, nil
}

// Unsubscribe removes the subscription with the given ID.
// Unknown IDs are ignored and reported as false.
func (b *Bus) Unsubscribe(eventType, subscriptionID string) bool {
	if !b.registry.Remove(eventType, subscriptionID) {
		return false
	}
	b.logger.Debug("handler unsubscribed",
		"event_type", eventType,
		"subscription_id", subscriptionID)
	return true
}

// UnsubscribeAll removes every handler of eventType and returns how many were removed.
func (b *Bus) UnsubscribeAll(eventType string) int {
	n := b.registry.RemoveAll(eventType)
	if n > 0 {
		b.logger.Info("handlers cleared", "event_type", eventType, "removed", n)
	}
	return n
}

// Handlers returns the current subscriptions for eventType in registration order.
func (b *Bus) Handlers(eventType string) []Subscription {
	return b.registry.Handlers(eventType)
}

// Stats returns a copy of the statistics of every event type seen so far.
func (b *Bus) Stats() map[string]Stats {
	return b.stats.snapshot()
}

// StatsFor returns the statistics of one event type.
// The second result is false if the type was never published or subscribed.
func (b *Bus) StatsFor(eventType string) (Stats, bool) {
	return b.stats.get(eventType)
}

// Publish dispatches ev to every handler currently registered for its type
// and waits for all of them to finish.
//
// Publish returns an error only when the call itself is invalid: an event
// without a type (ErrEmptyEventType) or a closed bus (ErrBusClosed). Handler
// errors, panics and timeouts are recorded in Stats and never returned.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.closeMu.RLock()
	if !b.Running() {
		b.closeMu.RUnlock()
		return ErrBusClosed
	}
	b.inflight.Add(1)
	b.closeMu.RUnlock()
	defer b.inflight.Done()

	c := b.stats.counters(ev.Type())
	c.published.Add(1)
	b.metrics.recordPublished(ctx, ev.Type())

	regs := b.registry.snapshot(ev.Type())
	if len(regs) == 0 {
		b.logger.Debug("no handlers for event", "event_type", ev.Type(), "event_id", ev.ID())
		return nil
	}

	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, fmt.Sprintf("%s.publish", ev.Type()),
			trace.WithAttributes(
				attribute.String(spanKeyEventID, ev.ID()),
				attribute.String(spanKeyEventType, ev.Type()),
				attribute.String(spanKeyEventBus, b.name),
				attribute.Int("event.handlers", len(regs))),
			trace.WithSpanKind(trace.SpanKindProducer))
		defer span.End()
	}

	var failed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(len(regs))
	for _, reg := range regs {
		go func(reg *registration) {
			defer wg.Done()
			if !b.dispatch(ctx, ev, reg, c) {
				failed.Add(1)
			}
		}(reg)
	}
	wg.Wait()

	b.logger.Debug("event processed",
		"event_type", ev.Type(),
		"event_id", ev.ID(),
		"handlers", len(regs),
		"failed", failed.Load())
	return nil
}

// dispatch runs one handler and records its outcome. Returns true on success.
func (b *Bus) dispatch(ctx context.Context, ev Event, reg *registration, c *counters) bool {
	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, fmt.Sprintf("%s.handle", ev.Type()),
			trace.WithAttributes(
				attribute.String(spanKeyEventID, ev.ID()),
				attribute.String(spanKeyEventType, ev.Type()),
				attribute.String(spanKeyEventHandler, reg.name),
				attribute.String(spanKeyEventSubscriptionID, reg.id)),
			trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
	}

	start := time.Now()
	err := b.execute(ctx, ev, reg)
	duration := time.Since(start)
	b.metrics.recordHandled(ctx, ev.Type(), duration, err)

	if err == nil {
		c.executed.Add(1)
		return true
	}

	c.failed.Add(1)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	herr := &HandlerError{
		EventType:      ev.Type(),
		EventID:        ev.ID(),
		Handler:        reg.name,
		SubscriptionID: reg.id,
		Duration:       duration,
		Err:            err,
	}
	attrs := []any{
		"event_type", herr.EventType,
		"event_id", herr.EventID,
		"handler", herr.Handler,
		"subscription_id", herr.SubscriptionID,
		"duration", duration,
		"error", err,
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		attrs = append(attrs, "stack", string(panicErr.Stack))
	}
	b.logger.Error("handler failed", attrs...)
	b.reportError(herr)
	return false
}

// execute invokes the handler with panic recovery and the effective timeout.
// Caller cancellation reaches the handler through ctx, but only the timeout
// makes the barrier stop waiting; otherwise the handler's own result counts.
func (b *Bus) execute(ctx context.Context, ev Event, reg *registration) error {
	ctx = contextWithInfo(ctx, ev, reg, b)

	timeout := reg.timeout
	if timeout == 0 {
		timeout = b.handlerTimeout
	}
	if timeout <= 0 {
		return invoke(ctx, reg.handler, ev)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrHandlerTimeout)
	defer cancel()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// buffered so an abandoned handler can still deliver its result and exit
	done := make(chan error, 1)
	go func() {
		done <- invoke(ctx, reg.handler, ev)
	}()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		select {
		case err = <-done:
		default:
			return fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
		}
	}
	if err != nil && errors.Is(context.Cause(ctx), ErrHandlerTimeout) {
		return fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
	}
	return err
}

// invoke calls h, converting a panic into a *PanicError.
func invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h(ctx, ev)
}

func (b *Bus) reportError(herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("error handler panic recovered", "error", r)
		}
	}()
	b.onError(herr)
}

// Close stops accepting new publishes and waits for in-flight ones to
// finish or for ctx to end, whichever comes first.
func (b *Bus) Close(ctx context.Context) error {
	b.closeMu.Lock()
	stopped := atomic.CompareAndSwapInt32(&b.status, busRunning, busStopped)
	b.closeMu.Unlock()
	if !stopped {
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("bus closed")
		return nil
	case <-ctx.Done():
		b.logger.Warn("bus closed before in-flight publishes finished", "error", ctx.Err())
		return ctx.Err()
	}
}

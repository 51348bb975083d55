package eventbus

import (
	"context"
	"log/slog"
)

const (
	eventContextKey contextKey = iota
)

// contextKey
type contextKey int

type eventContextData struct {
	eventID   string
	eventType string
	subID     string
	handler   string
	logger    *slog.Logger
	bus       *Bus
}

func contextWithInfo(ctx context.Context, ev Event, reg *registration, b *Bus) context.Context {
	return context.WithValue(ctx, eventContextKey, &eventContextData{
		eventID:   ev.ID(),
		eventType: ev.Type(),
		subID:     reg.id,
		handler:   reg.name,
		logger: b.logger.With(
			"event_type", ev.Type(),
			"event_id", ev.ID(),
			"handler", reg.name),
		bus: b,
	})
}

func contextData(ctx context.Context) *eventContextData {
	s, _ := ctx.Value(eventContextKey).(*eventContextData)
	return s
}

// ContextEventID returns the ID of the event being handled
func ContextEventID(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.eventID
	}
	return ""
}

// ContextEventType returns the type of the event being handled
func ContextEventType(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.eventType
	}
	return ""
}

// ContextSubscriptionID returns the subscription ID of the running handler
func ContextSubscriptionID(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.subID
	}
	return ""
}

// ContextHandler returns the name of the running handler
func ContextHandler(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.handler
	}
	return ""
}

// ContextLogger returns a logger scoped to the event being handled.
// Outside a handler it returns slog.Default().
func ContextLogger(ctx context.Context) *slog.Logger {
	if s := contextData(ctx); s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// ContextBus returns the bus dispatching the current event, so handlers can
// publish follow-up events without holding a reference themselves.
func ContextBus(ctx context.Context) *Bus {
	if s := contextData(ctx); s != nil {
		return s.bus
	}
	return nil
}

// NewContext copies the event information of ctx into a fresh context that
// is not cancelled when ctx is. Use it for work that outlives the handler.
func NewContext(ctx context.Context) context.Context {
	if s := contextData(ctx); s != nil {
		return context.WithValue(context.Background(), eventContextKey, s)
	}
	return context.Background()
}

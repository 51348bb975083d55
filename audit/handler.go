package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/events"
)

// Handler returns a bus handler that writes every event it receives to w.
func Handler(w Writer) eventbus.Handler {
	return func(ctx context.Context, ev eventbus.Event) error {
		rec := FromEvent(ev)
		if err := w.Write(ctx, rec); err != nil {
			return fmt.Errorf("audit write: %w", err)
		}
		eventbus.ContextLogger(ctx).Debug("event audited",
			"event_type", ev.Type(),
			"event_id", ev.ID(),
			"record_id", rec.ID)
		return nil
	}
}

// Subscribe registers an audit handler for each of the given event types.
// With no types the whole events catalog is audited.
// On error the subscriptions made so far are removed again.
func Subscribe(bus *eventbus.Bus, w Writer, eventTypes ...string) ([]eventbus.Subscription, error) {
	if w == nil {
		return nil, errors.New("audit: nil writer")
	}
	if len(eventTypes) == 0 {
		eventTypes = events.All()
	}

	h := Handler(w)
	subs := make([]eventbus.Subscription, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		sub, err := bus.Subscribe(eventType, h, eventbus.WithHandlerName("audit"))
		if err != nil {
			for _, s := range subs {
				bus.Unsubscribe(s.EventType, s.ID)
			}
			return nil, fmt.Errorf("audit subscribe %q: %w", eventType, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

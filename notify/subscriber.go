package notify

import (
	"context"
	"fmt"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/events"
	"golang.org/x/time/rate"
)

// Subscriber builds notifications for room and membership events and hands
// them to a Notifier.
type Subscriber struct {
	notifier Notifier
	limiter  *rate.Limiter
}

// NewSubscriber creates a subscriber delivering to notifier
func NewSubscriber(notifier Notifier, opts ...Option) *Subscriber {
	o := newOptions(opts...)
	return &Subscriber{
		notifier: notifier,
		limiter:  o.limiter,
	}
}

// Register subscribes the notification handlers to their event types.
// On error the subscriptions made so far are removed again.
func (s *Subscriber) Register(bus *eventbus.Bus) ([]eventbus.Subscription, error) {
	var subOpts []eventbus.SubscribeOption
	if s.limiter != nil {
		subOpts = append(subOpts, eventbus.WithMiddleware(eventbus.RateLimit(s.limiter)))
	}

	handlers := []struct {
		eventType string
		name      string
		handler   eventbus.Handler
	}{
		{events.TempRoomCreated, "notify.room_created", s.OnRoomCreated},
		{events.TempRoomDeleted, "notify.room_deleted", s.OnRoomDeleted},
		{events.MemberJoinedGuild, "notify.member_joined", s.OnMemberJoined},
	}

	subs := make([]eventbus.Subscription, 0, len(handlers))
	for _, h := range handlers {
		opts := append([]eventbus.SubscribeOption{eventbus.WithHandlerName(h.name)}, subOpts...)
		sub, err := bus.Subscribe(h.eventType, h.handler, opts...)
		if err != nil {
			for _, prev := range subs {
				bus.Unsubscribe(prev.EventType, prev.ID)
			}
			return nil, fmt.Errorf("notify subscribe %q: %w", h.eventType, err)
		}
		subs = append(subs, sub)
	}
	bus.Logger().Info("notification subscriber registered", "handlers", len(subs))
	return subs, nil
}

// OnRoomCreated notifies about a new temporary room
func (s *Subscriber) OnRoomCreated(ctx context.Context, ev eventbus.Event) error {
	name := ev.GetString(events.KeyChannelName)
	if name == "" {
		name = "unknown"
	}
	ownerID, _ := ev.GetInt64(events.KeyOwnerID)
	return s.send(ctx, ev, KindRoomCreated,
		fmt.Sprintf("New temporary room created: %s", name),
		map[string]any{
			events.KeyChannelName: name,
			events.KeyOwnerID:     ownerID,
		})
}

// OnRoomDeleted notifies about a removed temporary room
func (s *Subscriber) OnRoomDeleted(ctx context.Context, ev eventbus.Event) error {
	channelID, _ := ev.GetInt64(events.KeyChannelID)
	duration, _ := ev.GetInt64(events.KeyDurationSeconds)
	return s.send(ctx, ev, KindRoomDeleted,
		fmt.Sprintf("Temporary room %d deleted after %ds", channelID, duration),
		map[string]any{
			events.KeyChannelID:       channelID,
			events.KeyDurationSeconds: duration,
		})
}

// OnMemberJoined notifies about a member joining the guild
func (s *Subscriber) OnMemberJoined(ctx context.Context, ev eventbus.Event) error {
	name := ev.GetString(events.KeyMemberName)
	if name == "" {
		name = "unknown"
	}
	memberID, _ := ev.GetInt64(events.KeyMemberID)
	return s.send(ctx, ev, KindMemberJoined,
		fmt.Sprintf("New member: %s", name),
		map[string]any{
			events.KeyMemberID:   memberID,
			events.KeyMemberName: name,
		})
}

func (s *Subscriber) send(ctx context.Context, ev eventbus.Event, kind, message string, fields map[string]any) error {
	guildID, _ := ev.GetInt64(events.KeyGuildID)
	n := &Notification{
		Kind:      kind,
		Message:   message,
		EventID:   ev.ID(),
		GuildID:   guildID,
		Fields:    fields,
		Timestamp: ev.Timestamp(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", kind, err)
	}
	eventbus.ContextLogger(ctx).Info("notification sent", "kind", kind, "event_id", ev.ID(), "message", message)
	return nil
}

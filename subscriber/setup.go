package subscriber

import (
	"fmt"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/audit"
	"github.com/rbaliyan/eventbus/events"
	"github.com/rbaliyan/eventbus/notify"
)

// Subscribers is the set of consumers Setup registered
type Subscribers struct {
	Analytics     *Analytics
	UserStats     *UserStats
	Notifications *notify.Subscriber
	Subscriptions []eventbus.Subscription
}

// options holds configuration for Setup (unexported)
type options struct {
	notifier      notify.Notifier
	notifyOptions []notify.Option
	auditWriter   audit.Writer
	auditTypes    []string
}

// Option configures Setup
type Option func(*options)

// WithNotifier sets where notifications are delivered.
// Default is an in-memory notifier.
func WithNotifier(n notify.Notifier, opts ...notify.Option) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
		o.notifyOptions = append(o.notifyOptions, opts...)
	}
}

// WithAudit audits the given event types to w. With no types the whole
// events catalog is audited. Auditing is off unless this option is set.
func WithAudit(w audit.Writer, eventTypes ...string) Option {
	return func(o *options) {
		o.auditWriter = w
		o.auditTypes = eventTypes
	}
}

// Setup registers the analytics, user statistics and notification
// subscribers, and the audit handler if configured, on bus.
// On error every subscription made so far is removed again.
func Setup(bus *eventbus.Bus, opts ...Option) (*Subscribers, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewMemoryNotifier()
	}

	set := &Subscribers{
		Analytics:     NewAnalytics(),
		UserStats:     NewUserStats(),
		Notifications: notify.NewSubscriber(o.notifier, o.notifyOptions...),
	}
	rollback := func() {
		for _, sub := range set.Subscriptions {
			bus.Unsubscribe(sub.EventType, sub.ID)
		}
	}

	handlers := []struct {
		eventType string
		name      string
		handler   eventbus.Handler
	}{
		{events.TempRoomCreated, "analytics.room_created", set.Analytics.OnRoomCreated},
		{events.TempRoomDeleted, "analytics.room_deleted", set.Analytics.OnRoomDeleted},
		{events.CommandExecuted, "analytics.command_executed", set.Analytics.OnCommandExecuted},
		{events.TempRoomCreated, "stats.room_created", set.UserStats.OnRoomCreated},
		{events.TempRoomDeleted, "stats.room_deleted", set.UserStats.OnRoomDeleted},
		{events.CommandExecuted, "stats.command_executed", set.UserStats.OnCommandExecuted},
	}
	for _, h := range handlers {
		sub, err := bus.Subscribe(h.eventType, h.handler, eventbus.WithHandlerName(h.name))
		if err != nil {
			rollback()
			return nil, fmt.Errorf("subscribe %s: %w", h.name, err)
		}
		set.Subscriptions = append(set.Subscriptions, sub)
	}

	subs, err := set.Notifications.Register(bus)
	if err != nil {
		rollback()
		return nil, err
	}
	set.Subscriptions = append(set.Subscriptions, subs...)

	if o.auditWriter != nil {
		subs, err := audit.Subscribe(bus, o.auditWriter, o.auditTypes...)
		if err != nil {
			rollback()
			return nil, err
		}
		set.Subscriptions = append(set.Subscriptions, subs...)
	}

	bus.Logger().Info("subscribers registered",
		"handlers", len(set.Subscriptions),
		"event_types", len(bus.Registry().EventTypes()))
	return set, nil
}

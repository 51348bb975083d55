// Package subscriber holds the application's standard event consumers and
// the Setup function that wires them, together with notifications and
// auditing, onto a bus.
package subscriber

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/events"
)

// TrackedEvent is one analytics data point
type TrackedEvent struct {
	EventType string         `json:"event_type"`
	EventID   string         `json:"event_id"`
	Fields    map[string]any `json:"fields"`
	Timestamp time.Time      `json:"timestamp"`
}

// Analytics records usage data points for room and command events
type Analytics struct {
	mu      sync.Mutex
	tracked []TrackedEvent
}

// NewAnalytics creates an empty analytics subscriber
func NewAnalytics() *Analytics {
	return &Analytics{}
}

// OnRoomCreated tracks a room creation
func (a *Analytics) OnRoomCreated(ctx context.Context, ev eventbus.Event) error {
	a.track(ev, events.KeyChannelID, events.KeyOwnerID, events.KeyGuildID, events.KeyChannelName)
	eventbus.ContextLogger(ctx).Info("analytics: room created",
		"channel_name", ev.GetString(events.KeyChannelName),
		"owner_id", ev.GetString(events.KeyOwnerID))
	return nil
}

// OnRoomDeleted tracks a room deletion
func (a *Analytics) OnRoomDeleted(ctx context.Context, ev eventbus.Event) error {
	a.track(ev, events.KeyChannelID, events.KeyOwnerID, events.KeyDurationSeconds)
	eventbus.ContextLogger(ctx).Info("analytics: room deleted",
		"channel_id", ev.GetString(events.KeyChannelID),
		"duration_seconds", ev.GetString(events.KeyDurationSeconds))
	return nil
}

// OnCommandExecuted tracks a command run. Success defaults to true when the
// event does not say.
func (a *Analytics) OnCommandExecuted(ctx context.Context, ev eventbus.Event) error {
	a.track(ev, events.KeyCommandName, events.KeyUserID, events.KeyGuildID, events.KeySuccess)
	eventbus.ContextLogger(ctx).Info("analytics: command executed",
		"command_name", ev.GetString(events.KeyCommandName),
		"user_id", ev.GetString(events.KeyUserID))
	return nil
}

// track stores the listed payload keys of ev; missing keys are stored as nil
// except success, which defaults to true.
func (a *Analytics) track(ev eventbus.Event, keys ...string) {
	te := TrackedEvent{
		EventType: ev.Type(),
		EventID:   ev.ID(),
		Fields:    make(map[string]any, len(keys)),
		Timestamp: ev.Timestamp(),
	}
	for _, k := range keys {
		if k == events.KeySuccess {
			te.Fields[k] = ev.GetBool(k, true)
			continue
		}
		v, _ := ev.Get(k)
		te.Fields[k] = v
	}

	a.mu.Lock()
	a.tracked = append(a.tracked, te)
	a.mu.Unlock()
}

// Tracked returns the recorded data points in order
func (a *Analytics) Tracked() []TrackedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.tracked)
}

// Package notify turns room and membership events into notifications and
// delivers them to a Notifier: in memory for tests, or to NATS or Kafka for
// services that fan notifications out to admins and webhooks.
package notify

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// Notification kinds
const (
	KindRoomCreated  = "temp_room_created"
	KindRoomDeleted  = "temp_room_deleted"
	KindMemberJoined = "member_joined"
)

// Notification is a human-readable message derived from an event.
type Notification struct {
	Kind      string         `json:"type" msgpack:"type"`
	Message   string         `json:"message" msgpack:"message"`
	EventID   string         `json:"event_id" msgpack:"event_id"`
	GuildID   int64          `json:"guild_id,omitempty" msgpack:"guild_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" msgpack:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
}

// Notifier delivers notifications.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n *Notification) error

// Notify calls f(ctx, n)
func (f NotifierFunc) Notify(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// Multi returns a notifier that delivers to every notifier in turn.
// All notifiers are attempted; their errors are joined.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n *Notification) error {
		var errs []error
		for _, notifier := range notifiers {
			if err := notifier.Notify(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// MemoryNotifier keeps notifications in memory
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []*Notification
}

// NewMemoryNotifier creates an empty in-memory notifier
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records n
func (m *MemoryNotifier) Notify(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

// Notifications returns the recorded notifications in delivery order
func (m *MemoryNotifier) Notifications() []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// Count returns the number of notifications of the given kind, or of all
// kinds when kind is empty.
func (m *MemoryNotifier) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == "" {
		return len(m.sent)
	}
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

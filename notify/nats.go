package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rbaliyan/eventbus/payload"
)

// Publisher is the part of *nats.Conn the notifier needs
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSNotifier publishes notifications to NATS core subjects
// (fire-and-forget, at-most-once).
type NATSNotifier struct {
	conn   Publisher
	prefix string
	codec  payload.Codec
}

// NewNATSNotifier creates a notifier publishing through conn
//
// Example:
//
//	conn, _ := nats.Connect(nats.DefaultURL)
//	notifier := notify.NewNATSNotifier(conn, notify.WithSubjectPrefix("rooms.notifications"))
func NewNATSNotifier(conn Publisher, opts ...Option) *NATSNotifier {
	o := newOptions(opts...)
	return &NATSNotifier{
		conn:   conn,
		prefix: o.subjectPrefix,
		codec:  o.codec,
	}
}

// Subject returns the subject notifications of kind are published to
func (n *NATSNotifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

// Notify publishes the encoded notification
func (n *NATSNotifier) Notify(ctx context.Context, notification *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := n.codec.Encode(notification)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	msg := nats.NewMsg(n.Subject(notification.Kind))
	msg.Data = data
	msg.Header.Set("Content-Type", n.codec.ContentType())
	msg.Header.Set("Event-Id", notification.EventID)

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Package audit records published events in a durable store.
//
// An audit Handler is an ordinary bus subscriber: it converts each event it
// receives into a Record and writes it to a Writer. Write failures surface
// as handler failures in the bus statistics and never reach the publisher.
//
// # Basic Usage
//
//	store := audit.NewPostgresStore(db)
//	subs, err := audit.Subscribe(bus, store, events.TempRoomCreated, events.TempRoomDeleted)
//
//	// Later: inspect what happened
//	records, err := store.List(ctx, audit.Filter{EventType: events.TempRoomCreated, Limit: 20})
//
// Implementations:
//   - PostgresStore: For PostgreSQL databases
//   - RedisStore: For Redis streams (see redis.go)
//   - MongoStore: For MongoDB (see mongodb.go)
//   - MemoryStore: For testing (see memory.go)
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/rbaliyan/eventbus"
)

// ErrNotFound is returned by Get when no record has the given ID.
var ErrNotFound = errors.New("audit record not found")

// Record is the persisted form of one published event.
type Record struct {
	ID         string         `json:"id" msgpack:"id"`
	EventID    string         `json:"event_id" msgpack:"event_id"`
	EventType  string         `json:"event_type" msgpack:"event_type"`
	Data       map[string]any `json:"data" msgpack:"data"`
	OccurredAt time.Time      `json:"occurred_at" msgpack:"occurred_at"`
	RecordedAt time.Time      `json:"recorded_at" msgpack:"recorded_at"`
}

// FromEvent builds a record for ev stamped with the current time.
func FromEvent(ev eventbus.Event) *Record {
	return &Record{
		ID:         eventbus.NewID(),
		EventID:    ev.ID(),
		EventType:  ev.Type(),
		Data:       ev.Data(),
		OccurredAt: ev.Timestamp(),
		RecordedAt: time.Now().UTC(),
	}
}

// Filter specifies criteria for listing records.
//
// All fields are optional. An empty filter returns every record, newest first.
type Filter struct {
	EventType string    // Filter by event type (empty = all types)
	Since     time.Time // Only records written at or after this time (zero = no minimum)
	Limit     int       // Maximum results (0 = no limit)
}

// Writer persists audit records.
type Writer interface {
	Write(ctx context.Context, rec *Record) error
}

// Reader queries audit records.
type Reader interface {
	// Get retrieves a single record by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Store is a Writer that can also be queried.
//
// Implementations must be safe for concurrent use; handlers of one event
// write in parallel.
type Store interface {
	Writer
	Reader
}

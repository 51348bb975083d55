package eventbus

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Event is an immutable value describing something that happened.
// The payload is an open property bag; its schema is a convention between
// producers and consumers and is not checked by the bus.
type Event struct {
	id        string
	eventType string
	data      map[string]any
	timestamp time.Time
}

// EventOption configures an event at construction.
type EventOption func(*Event)

// WithEventID sets the event ID instead of generating one.
func WithEventID(id string) EventOption {
	return func(e *Event) {
		if id != "" {
			e.id = id
		}
	}
}

// WithTimestamp sets the time the event occurred.
func WithTimestamp(t time.Time) EventOption {
	return func(e *Event) {
		if !t.IsZero() {
			e.timestamp = t.UTC()
		}
	}
}

// New creates an event of the given type. The data map is copied, later
// changes to it are not visible through the event.
func New(eventType string, data map[string]any, opts ...EventOption) Event {
	e := Event{
		id:        NewID(),
		eventType: eventType,
		data:      maps.Clone(data),
		timestamp: time.Now().UTC(),
	}
	if e.data == nil {
		e.data = map[string]any{}
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// ID returns the unique event ID
func (e Event) ID() string {
	return e.id
}

// Type returns the event type
func (e Event) Type() string {
	return e.eventType
}

// Timestamp returns when the event occurred (UTC)
func (e Event) Timestamp() time.Time {
	return e.timestamp
}

// Data returns a copy of the event payload.
func (e Event) Data() map[string]any {
	return maps.Clone(e.data)
}

// Len returns the number of payload keys
func (e Event) Len() int {
	return len(e.data)
}

// Get returns the payload value stored under key.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// GetString returns the payload value under key as a string.
// Non-string values are formatted with fmt; missing keys return "".
func (e Event) GetString(key string) string {
	v, ok := e.data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetInt64 returns the payload value under key as an int64.
// The second result is false when the key is missing, not numeric, out of
// the int64 range, or a float with a fractional part.
// Values decoded from JSON as json.Number are accepted.
func (e Event) GetInt64(key string) (int64, bool) {
	switch v := e.data[key].(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	default:
		return 0, false
	}
}

func uintToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// floatToInt64 accepts whole numbers in [-2^63, 2^63).
func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// GetBool returns the payload value under key as a bool, or def if the key is
// missing or not a bool.
func (e Event) GetBool(key string, def bool) bool {
	if v, ok := e.data[key].(bool); ok {
		return v
	}
	return def
}

// Validate checks the event satisfies the publish contract.
func (e Event) Validate() error {
	if e.eventType == "" {
		return ErrEmptyEventType
	}
	return nil
}

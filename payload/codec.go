// Package payload encodes the values the bus hands to external systems:
// notification bodies sent to NATS or Kafka and audit records kept in Redis.
//
// Usage:
//
//	// JSON bodies (default)
//	notifier := notify.NewKafkaNotifier(producer, "room-notifications")
//
//	// MessagePack bodies
//	notifier := notify.NewKafkaNotifier(producer, "room-notifications", notify.WithCodec(payload.MsgPack{}))
//
// Consumers pick the codec back from the content type sent alongside the
// body with MustGet.
package payload

// Codec encodes/decodes values for transport or storage.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into v, which must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}

package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rbaliyan/eventbus/payload"
	"github.com/redis/go-redis/v9"
)

/*
Redis Schema:

Uses Redis Streams and Strings for the audit log:
- Stream: audit:events - every record, in write order
- Stream: audit:type:{event_type} - records of one event type
- Hash: audit:record:{id} - content_type and encoded record (msgpack by default)
  for lookups by ID, optionally expiring

Stream entries carry the record and its content type, so List never touches the
hashes, and records written with an earlier codec stay readable.
*/

// RedisStore is a Redis-based audit store
type RedisStore struct {
	client       redis.Cmdable
	streamKey    string
	typePrefix   string
	recordPrefix string
	maxLen       int64
	ttl          time.Duration
	codec        payload.Codec
}

// NewRedisStore creates a new Redis audit store
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client:       client,
		streamKey:    "audit:events",
		typePrefix:   "audit:type:",
		recordPrefix: "audit:record:",
		codec:        payload.MsgPack{},
	}
}

// WithKeyPrefix sets a custom key prefix
func (s *RedisStore) WithKeyPrefix(prefix string) *RedisStore {
	s.streamKey = prefix + "events"
	s.typePrefix = prefix + "type:"
	s.recordPrefix = prefix + "record:"
	return s
}

// WithMaxLen caps each stream at roughly maxLen entries
func (s *RedisStore) WithMaxLen(maxLen int64) *RedisStore {
	s.maxLen = maxLen
	return s
}

// WithCodec sets the record encoding
func (s *RedisStore) WithCodec(codec payload.Codec) *RedisStore {
	if codec != nil {
		s.codec = codec
	}
	return s
}

// WithTTL expires the per-record lookup keys after ttl. Records stay in the
// streams until trimmed by MaxLen; Get falls back to the global stream once
// the lookup key is gone.
func (s *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	s.ttl = ttl
	return s
}

// Write appends rec to the global and per-type streams
func (s *RedisStore) Write(ctx context.Context, rec *Record) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	key := s.recordPrefix + rec.ID
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "content_type", s.codec.ContentType(), "record", data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.XAdd(ctx, s.xaddArgs(s.streamKey, rec, data))
		pipe.XAdd(ctx, s.xaddArgs(s.typePrefix+rec.EventType, rec, data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *RedisStore) xaddArgs(stream string, rec *Record, data []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"id":           rec.ID,
			"content_type": s.codec.ContentType(),
			"record":       data,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args
}

// Get retrieves a single record by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if raw, ok := fields["record"]; ok {
		return s.decode(fields["content_type"], []byte(raw))
	}
	if s.ttl <= 0 {
		return nil, ErrNotFound
	}
	return s.scan(ctx, id)
}

// scan looks for an expired lookup key's record in the global stream.
func (s *RedisStore) scan(ctx context.Context, id string) (*Record, error) {
	msgs, err := s.client.XRevRange(ctx, s.streamKey, "+", "-").Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}
	for _, msg := range msgs {
		if msg.Values["id"] == id {
			return s.decodeEntry(msg)
		}
	}
	return nil, ErrNotFound
}

// List returns records matching the filter, newest first
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	stream, start := s.rangeFor(filter)

	var msgs []redis.XMessage
	var err error
	if filter.Limit > 0 {
		msgs, err = s.client.XRevRangeN(ctx, stream, "+", start, int64(filter.Limit)).Result()
	} else {
		msgs, err = s.client.XRevRange(ctx, stream, "+", start).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}

	records := make([]*Record, 0, len(msgs))
	for _, msg := range msgs {
		if _, ok := msg.Values["record"].(string); !ok {
			continue
		}
		rec, err := s.decodeEntry(msg)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Count returns the number of records matching the filter
func (s *RedisStore) Count(ctx context.Context, filter Filter) (int64, error) {
	if filter.Since.IsZero() && filter.Limit == 0 {
		stream, _ := s.rangeFor(filter)
		n, err := s.client.XLen(ctx, stream).Result()
		if err != nil {
			return 0, fmt.Errorf("xlen: %w", err)
		}
		return n, nil
	}
	records, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// rangeFor picks the stream to read and the lowest entry ID to include.
// Stream IDs start with the insertion time in milliseconds.
func (s *RedisStore) rangeFor(filter Filter) (stream, start string) {
	stream = s.streamKey
	if filter.EventType != "" {
		stream = s.typePrefix + filter.EventType
	}
	start = "-"
	if !filter.Since.IsZero() {
		start = strconv.FormatInt(filter.Since.UnixMilli(), 10)
	}
	return stream, start
}

func (s *RedisStore) decodeEntry(msg redis.XMessage) (*Record, error) {
	raw, _ := msg.Values["record"].(string)
	contentType, _ := msg.Values["content_type"].(string)
	rec, err := s.decode(contentType, []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", msg.ID, err)
	}
	return rec, nil
}

// decode picks the codec the record was written with. Entries without a
// registered content type use the store's codec.
func (s *RedisStore) decode(contentType string, data []byte) (*Record, error) {
	codec, ok := payload.Get(contentType)
	if !ok {
		codec = s.codec
	}
	var rec Record
	if err := codec.Decode(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &rec, nil
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB Schema:

Collection: event_audit

Document structure:
{
    "_id": "uuid",
    "event_id": "uuid",
    "event_type": "temp_room_created",
    "data": {...},
    "occurred_at": ISODate,
    "recorded_at": ISODate
}

Indexes:
- { event_type: 1, recorded_at: -1 }
- { recorded_at: -1 }
*/

// mongoRecord is the MongoDB document representation
type mongoRecord struct {
	ID         string         `bson:"_id"`
	EventID    string         `bson:"event_id"`
	EventType  string         `bson:"event_type"`
	Data       map[string]any `bson:"data,omitempty"`
	OccurredAt time.Time      `bson:"occurred_at"`
	RecordedAt time.Time      `bson:"recorded_at"`
}

func toMongoRecord(rec *Record) *mongoRecord {
	return &mongoRecord{
		ID:         rec.ID,
		EventID:    rec.EventID,
		EventType:  rec.EventType,
		Data:       rec.Data,
		OccurredAt: rec.OccurredAt,
		RecordedAt: rec.RecordedAt,
	}
}

func (m *mongoRecord) record() *Record {
	return &Record{
		ID:         m.ID,
		EventID:    m.EventID,
		EventType:  m.EventType,
		Data:       m.Data,
		OccurredAt: m.OccurredAt.UTC(),
		RecordedAt: m.RecordedAt.UTC(),
	}
}

// MongoStore is a MongoDB-based audit store
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoDB audit store
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("event_audit"),
	}
}

// WithCollection sets a custom collection name
func (s *MongoStore) WithCollection(name string) *MongoStore {
	s.collection = s.collection.Database().Collection(name)
	return s
}

// Collection returns the underlying MongoDB collection
func (s *MongoStore) Collection() *mongo.Collection {
	return s.collection
}

// Indexes returns the indexes List and Count rely on.
func (s *MongoStore) Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "recorded_at", Value: -1}}},
	}
}

// EnsureIndexes creates the indexes for the audit collection
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, s.Indexes())
	return err
}

// Write inserts rec
func (s *MongoStore) Write(ctx context.Context, rec *Record) error {
	_, err := s.collection.InsertOne(ctx, toMongoRecord(rec))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("record already exists: %s", rec.ID)
		}
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Get retrieves a single record by ID
func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return doc.record(), nil
}

// List returns records matching the filter, newest first
func (s *MongoStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection.Find(ctx, buildMongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		records = append(records, doc.record())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching the filter
func (s *MongoStore) Count(ctx context.Context, filter Filter) (int64, error) {
	opts := options.Count()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	n, err := s.collection.CountDocuments(ctx, buildMongoFilter(filter), opts)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func buildMongoFilter(filter Filter) bson.M {
	query := bson.M{}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if !filter.Since.IsZero() {
		query["recorded_at"] = bson.M{"$gte": filter.Since}
	}
	return query
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

/*
PostgreSQL Schema:

CREATE TABLE event_audit (
    id          VARCHAR(36) PRIMARY KEY,
    event_id    VARCHAR(36) NOT NULL,
    event_type  VARCHAR(255) NOT NULL,
    data        JSONB NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_audit_type_recorded ON event_audit(event_type, recorded_at DESC);
CREATE INDEX idx_audit_recorded_at ON event_audit(recorded_at DESC);
*/

// PostgresStore is a PostgreSQL-based audit store
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore creates a new PostgreSQL audit store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: "event_audit",
	}
}

// WithTable sets a custom table name
func (s *PostgresStore) WithTable(table string) *PostgresStore {
	s.table = table
	return s
}

// Write inserts rec
func (s *PostgresStore) Write(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_id, event_type, data, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.EventID,
		rec.EventType,
		data,
		rec.OccurredAt,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Get retrieves a single record by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT id, event_id, event_type, data, occurred_at, recorded_at
		FROM %s
		WHERE id = $1
	`, s.table)

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records matching the filter, newest first
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query, args := s.buildListQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching the filter
func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int64, error) {
	query, args := s.buildListQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	if filter.Limit > 0 && count > int64(filter.Limit) {
		count = int64(filter.Limit)
	}
	return count, nil
}

// buildListQuery builds the SQL query for List and Count
func (s *PostgresStore) buildListQuery(filter Filter, count bool) (string, []any) {
	var conditions []string
	var args []any

	if filter.EventType != "" {
		args = append(args, filter.EventType)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}

	var b strings.Builder
	if count {
		fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", s.table)
	} else {
		fmt.Fprintf(&b, "SELECT id, event_id, event_type, data, occurred_at, recorded_at FROM %s", s.table)
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	if !count {
		b.WriteString(" ORDER BY recorded_at DESC")
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			fmt.Fprintf(&b, " LIMIT $%d", len(args))
		}
	}
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var data []byte
	err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.EventType,
		&data,
		&rec.OccurredAt,
		&rec.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return &rec, nil
}

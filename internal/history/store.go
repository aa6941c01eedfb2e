package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"uaspace/internal/ua"
)

//go:embed schema.sql
var schema string

// Sample is one recorded value of a historizing variable.
type Sample struct {
	NodeID    ua.NodeID  `json:"node_id"`
	Value     ua.Variant `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
	EventID   string     `json:"event_id,omitempty"`
}

// Query selects samples of one node. Zero From/To leave that side open.
// Results are ordered oldest first.
type Query struct {
	NodeID ua.NodeID
	From   time.Time
	To     time.Time
	Limit  int
}

// Store keeps samples in SQLite.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the history database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection also keeps ":memory:" shared
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Append stores one sample.
func (s *Store) Append(ctx context.Context, sample Sample) error {
	value, err := json.Marshal(sample.Value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO samples (node_id, type, value, source_ts, event_id) VALUES (?, ?, ?, ?, ?)`,
		sample.NodeID.String(), sample.Value.Type.String(), string(value), sample.Timestamp.UnixNano(), sample.EventID)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// Query returns the samples matching q.
func (s *Store) Query(ctx context.Context, q Query) ([]Sample, error) {
	stmt := `SELECT node_id, value, source_ts, event_id FROM samples WHERE node_id = ?`
	args := []any{q.NodeID.String()}
	if !q.From.IsZero() {
		stmt += ` AND source_ts >= ?`
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		stmt += ` AND source_ts <= ?`
		args = append(args, q.To.UnixNano())
	}
	stmt += ` ORDER BY source_ts, id`
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var id, value, eventID string
		var ts int64
		if err := rows.Scan(&id, &value, &ts, &eventID); err != nil {
			return nil, err
		}

		sample := Sample{Timestamp: time.Unix(0, ts).UTC(), EventID: eventID}
		if sample.NodeID, err = ua.ParseNodeID(id); err != nil {
			return nil, fmt.Errorf("corrupt node id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(value), &sample.Value); err != nil {
			return nil, fmt.Errorf("corrupt value for %s: %w", id, err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// Count returns the number of samples of id.
func (s *Store) Count(ctx context.Context, id ua.NodeID) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE node_id = ?`, id.String()).Scan(&n)
	return n, err
}

// Prune deletes samples older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM samples WHERE source_ts < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	return res.RowsAffected()
}

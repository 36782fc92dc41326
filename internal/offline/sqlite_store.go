package offline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-fundo-ops/internal/apperr"

	_ "github.com/mattn/go-sqlite3"
)

const createPendingTable = `
CREATE TABLE IF NOT EXISTS _pending_records (
	queue_id   TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	payload    BLOB    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (queue_id, seq)
)`

// SQLiteStore keeps the queue in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the queue database at path. Use
// ":memory:" in tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(createPendingTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create pending table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, queueID string, payload []byte, at time.Time) (*PendingRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Classify(err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM _pending_records WHERE queue_id = ?`, queueID,
	).Scan(&seq); err != nil {
		return nil, apperr.Classify(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _pending_records (queue_id, seq, payload, created_at) VALUES (?, ?, ?, ?)`,
		queueID, seq, payload, at.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, apperr.Classify(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Classify(err)
	}
	return &PendingRecord{QueueID: queueID, Seq: seq, Payload: append([]byte(nil), payload...), CreatedAt: at.UTC()}, nil
}

func (s *SQLiteStore) List(ctx context.Context, queueID string) ([]PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload, created_at FROM _pending_records WHERE queue_id = ? ORDER BY seq`, queueID)
	if err != nil {
		return nil, apperr.Classify(err)
	}
	defer rows.Close()

	var out []PendingRecord
	for rows.Next() {
		var (
			rec     = PendingRecord{QueueID: queueID}
			payload []byte
			created string
		)
		if err := rows.Scan(&rec.Seq, &payload, &created); err != nil {
			return nil, err
		}
		rec.Payload = payload
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("pending record %s/%d: %w", queueID, rec.Seq, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, queueID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _pending_records WHERE queue_id = ?`, queueID).Scan(&n)
	return n, apperr.Classify(err)
}

func (s *SQLiteStore) Remove(ctx context.Context, queueID string, upTo int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM _pending_records WHERE queue_id = ? AND seq <= ?`, queueID, upTo)
	return apperr.Classify(err)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

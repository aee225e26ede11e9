package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clawinfra/outclaw/internal/outbox"
)

// slotName keys the single row holding the operation document.
const slotName = "operations"

// SQLiteStore keeps the operation document in a one-row slots table. The
// driver is pure Go, so the daemon cross-compiles for edge targets without
// CGO.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite creates or opens a SQLite-backed store at the given path.
func NewSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		name       TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.With("store", "sqlite")}, nil
}

// Load reads the slot row. A missing row is an empty document. Corrupt
// contents are logged, deleted, and reported as empty.
func (s *SQLiteStore) Load() (outbox.Document, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM slots WHERE name = ?`, slotName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return outbox.Document{}, nil
	}
	if err != nil {
		return outbox.Document{}, fmt.Errorf("query slot: %w", err)
	}

	var doc outbox.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt operation slot, discarding", "error", err)
		if _, delErr := s.db.Exec(`DELETE FROM slots WHERE name = ?`, slotName); delErr != nil {
			s.logger.Warn("failed to delete corrupt slot", "error", delErr)
		}
		return outbox.Document{}, nil
	}
	return doc, nil
}

// Save upserts the whole slot row.
func (s *SQLiteStore) Save(doc outbox.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO slots (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		  data = excluded.data,
		  updated_at = excluded.updated_at`,
		slotName, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

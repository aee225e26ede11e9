// Package store provides the durable slot the outbox persists into: a file
// backend for simple deployments and a SQLite backend for devices that
// already carry a database. Both degrade to an empty document instead of
// failing when the stored bytes are corrupt.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/clawinfra/outclaw/internal/outbox"
)

// slotFile is the fixed name of the single persistence slot.
const slotFile = "operations.json"

// FileStore keeps the operation document in one JSON file in a data
// directory.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFile creates or opens a file-backed store in the given directory.
func NewFile(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.With("store", "file")}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, slotFile)
}

// Load reads the slot. A missing file is an empty document. Corrupt contents
// are logged, removed, and reported as empty — never as an error.
func (s *FileStore) Load() (outbox.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return outbox.Document{}, nil
		}
		return outbox.Document{}, fmt.Errorf("read slot: %w", err)
	}

	var doc outbox.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt operation slot, discarding", "error", err)
		if rmErr := os.Remove(s.path()); rmErr != nil {
			s.logger.Warn("failed to remove corrupt slot", "error", rmErr)
		}
		return outbox.Document{}, nil
	}
	return doc, nil
}

// Save re-writes the whole slot.
func (s *FileStore) Save(doc outbox.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0640); err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	return nil
}

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clawinfra/outclaw/internal/outbox"
)

func sampleDoc() outbox.Document {
	return outbox.Document{
		Version: outbox.DocumentVersion,
		Pending: []outbox.Operation{
			{
				ID:        "op-1",
				Type:      outbox.OpUpdateProfile,
				Payload:   json.RawMessage(`{"name":"A"}`),
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			},
			{
				ID:        "op-2",
				Type:      outbox.OpUpdateConsent,
				Payload:   json.RawMessage(`{"marketing":false}`),
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			},
		},
		Failed: []outbox.Operation{
			{
				ID:           "op-3",
				Type:         outbox.OpUpdateAvatar,
				Payload:      json.RawMessage(`{}`),
				CreatedAt:    time.Now().UTC().Truncate(time.Second),
				AttemptCount: 5,
				Error:        "remote unavailable",
			},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFile(dir, nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if err := s.Save(sampleDoc()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second instance over the same directory observes the same state.
	s2, err := NewFile(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	doc, err := s2.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pending) != 2 || len(doc.Failed) != 1 {
		t.Fatalf("expected 2 pending / 1 failed, got %d / %d", len(doc.Pending), len(doc.Failed))
	}
	if string(doc.Pending[0].Payload) != `{"name":"A"}` {
		t.Fatalf("payload mismatch: %s", doc.Pending[0].Payload)
	}
	if doc.Failed[0].AttemptCount != 5 {
		t.Fatalf("attempt count lost: %d", doc.Failed[0].AttemptCount)
	}
}

func TestFileStoreMissingSlotIsEmpty(t *testing.T) {
	s, err := NewFile(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pending) != 0 || len(doc.Failed) != 0 {
		t.Fatal("expected empty document")
	}
}

func TestFileStoreCorruptionSelfHeals(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, slotFile), []byte("not json {{{"), 0640); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load corrupt slot: %v", err)
	}
	if len(doc.Pending) != 0 || len(doc.Failed) != 0 {
		t.Fatal("expected corrupt slot to read as empty")
	}

	// The corrupt bytes are gone.
	if _, err := os.Stat(filepath.Join(dir, slotFile)); !os.IsNotExist(err) {
		t.Fatal("expected corrupt slot file removed")
	}
}

func TestFileStoreToleratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	// A newer daemon may write fields this build does not know about.
	future := `{"version":7,"pending":[{"id":"x","type":"update_profile","payload":{},"created_at":"2026-01-02T03:04:05Z","attempt_count":0,"shiny_new_field":true}],"failed":[],"extra":"ignored"}`
	if err := os.WriteFile(filepath.Join(dir, slotFile), []byte(future), 0640); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(doc.Pending))
	}
	if doc.Pending[0].Type != outbox.OpUpdateProfile {
		t.Fatalf("type mismatch: %s", doc.Pending[0].Type)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outclaw.db")

	s, err := NewSQLite(path, nil)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer s.Close()

	if err := s.Save(sampleDoc()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Full re-write replaces, not appends.
	if err := s.Save(sampleDoc()); err != nil {
		t.Fatalf("second save: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pending) != 2 || len(doc.Failed) != 1 {
		t.Fatalf("expected 2 pending / 1 failed, got %d / %d", len(doc.Pending), len(doc.Failed))
	}
}

func TestSQLiteStoreMissingSlotIsEmpty(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "outclaw.db"), nil)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer s.Close()

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Pending) != 0 || len(doc.Failed) != 0 {
		t.Fatal("expected empty document")
	}
}

func TestSQLiteStoreCorruptionSelfHeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outclaw.db")
	s, err := NewSQLite(path, nil)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer s.Close()

	if _, err := s.db.Exec(`INSERT INTO slots (name, data, updated_at) VALUES (?, ?, ?)`,
		slotName, []byte("\x00garbage"), 0); err != nil {
		t.Fatalf("insert garbage: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("load corrupt slot: %v", err)
	}
	if len(doc.Pending) != 0 || len(doc.Failed) != 0 {
		t.Fatal("expected corrupt slot to read as empty")
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM slots WHERE name = ?`, slotName).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatal("expected corrupt row deleted")
	}
}

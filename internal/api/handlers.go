package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/clawinfra/outclaw/internal/outbox"
)

// StateResponse is the queue snapshot returned by GET /api/state and
// streamed over /ws/state.
type StateResponse struct {
	Online       bool               `json:"online"`
	PendingCount int                `json:"pendingCount"`
	Syncing      bool               `json:"syncing"`
	Failed       []outbox.Operation `json:"failed"`
}

// EnqueueRequest is the body of POST /api/operations.
type EnqueueRequest struct {
	Type    outbox.OpType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) snapshot() StateResponse {
	state := s.queue.State()
	return StateResponse{
		Online:       s.isOnline(),
		PendingCount: state.PendingCount,
		Syncing:      state.Syncing,
		Failed:       state.Failed,
	}
}

// handleState returns the current queue snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

// handleEnqueue records a deferred operation.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	var req EnqueueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	switch err := s.queue.Enqueue(req.Type, req.Payload); {
	case errors.Is(err, outbox.ErrUnknownType):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, outbox.ErrQueueFull):
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, s.snapshot())
	}
}

// handleSync starts a sync pass in the background. Already-running passes
// make this a no-op, so the endpoint is always safe to hit.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	go s.queue.Sync(context.Background())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

// handleFailed lists operations that exhausted their retries.
func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"failed": s.queue.FailedOperations()})
}

// handleClearFailed empties the failed set.
func (s *Server) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.queue.ClearFailed()
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

// handleClearAll discards every queued operation, e.g. on logout.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.queue.ClearAll()
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

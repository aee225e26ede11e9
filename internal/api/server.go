// Package api exposes the daemon's local control surface: queue state,
// manual sync, and a websocket state feed for on-device UIs.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawinfra/outclaw/internal/outbox"
	"github.com/clawinfra/outclaw/internal/security"
)

// Server is the local HTTP API server.
type Server struct {
	addr       string
	queue      *outbox.Queue
	online     func() bool
	authSecret []byte
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the API server over the given queue. online reports the
// current connectivity verdict for the state endpoint; nil means unknown and
// is reported as offline. authSecret enables bearer-token auth on every
// endpoint; nil leaves the API open.
func NewServer(addr string, queue *outbox.Queue, online func() bool, authSecret []byte, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if authSecret == nil {
		logger.Warn("API authentication disabled, local API is open")
	}
	return &Server{
		addr:       addr,
		queue:      queue,
		online:     online,
		authSecret: authSecret,
		logger:     logger.With("component", "api"),
	}
}

// routes builds the handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/operations", s.handleEnqueue)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/failed", s.handleFailed)
	mux.HandleFunc("/api/failed/clear", s.handleClearFailed)
	mux.HandleFunc("/api/clear", s.handleClearAll)
	mux.HandleFunc("/ws/state", s.handleStateWS)

	return s.loggingMiddleware(security.AuthMiddleware(s.authSecret)(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the ws state feed writes for the connection's lifetime
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) isOnline() bool {
	return s.online != nil && s.online()
}

package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleStateWS upgrades to a WebSocket and streams queue snapshots: one
// frame on connect, then one per queue change until the client disconnects.
// The connection is write-only; incoming frames are discarded.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local control socket, any Origin is fine
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	s.logger.Info("state feed connected", "remote", r.RemoteAddr)

	// CloseRead discards client frames and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(r.Context())

	updates, cancel := s.queue.Watch()
	defer cancel()

	if err := wsjson.Write(ctx, conn, s.snapshot()); err != nil {
		s.logger.Debug("state feed write failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("state feed disconnected")
			return
		case state := <-updates:
			resp := StateResponse{
				Online:       s.isOnline(),
				PendingCount: state.PendingCount,
				Syncing:      state.Syncing,
				Failed:       state.Failed,
			}
			if err := wsjson.Write(ctx, conn, resp); err != nil {
				s.logger.Debug("state feed write failed", "error", err)
				return
			}
		}
	}
}

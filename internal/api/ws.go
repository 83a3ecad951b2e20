package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// handleWebSocket streams simulation events as JSON text frames. Browsers
// are held to the same origin list as CORS; non-browser clients send no
// Origin and are accepted.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	allowed := allowedOrigins(s.CORSOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, backlog, ch := s.Sim.Subscribe(catchUpEvents)
	defer s.Sim.Unsubscribe(subID)
	slog.Info("websocket client connected", "sub_id", subID)

	// The read loop only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range backlog {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				slog.Debug("websocket write failed", "sub_id", subID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("websocket client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

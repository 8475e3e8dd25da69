package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrGarbonzo/secretforge/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents streams wallet status events over a websocket. A client that
// stops reading falls behind and silently misses events; the feed is status
// display, not a durable queue.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("[server] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.opts.Hub.Subscribe()
	defer cancel()

	observability.EventSubscribers.Inc()
	defer observability.EventSubscribers.Dec()

	// Drain client frames so close and pong handling work.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

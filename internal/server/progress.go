package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zotseek/zotseek/internal/indexer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressEvent is the outgoing WebSocket message format.
type progressEvent struct {
	Stage string `json:"stage"`
	Done  int    `json:"done"`
	Total int    `json:"total,omitempty"`
}

// progressHub fans sync progress events out to connected WebSocket
// clients. A slow client drops events rather than stalling the sync.
type progressHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan progressEvent
	closed  bool
}

func newProgressHub() *progressHub {
	return &progressHub{clients: make(map[*websocket.Conn]chan progressEvent)}
}

func (h *progressHub) progressFunc() indexer.ProgressFunc {
	return func(stage indexer.State, done, total int) {
		h.broadcast(progressEvent{Stage: string(stage), Done: done, Total: total})
	}
}

func (h *progressHub) broadcast(ev progressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *progressHub) add(conn *websocket.Conn) chan progressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan progressEvent, 64)
	h.clients[conn] = ch
	return ch
}

func (h *progressHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
}

func (h *progressHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
}

// handleSyncSocket streams sync progress events to the client until it
// disconnects or the server shuts down.
func (s *Server) handleSyncSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch := s.hub.add(conn)
	if ch == nil {
		return
	}
	defer s.hub.remove(conn)

	// Drain client messages so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(conn)
				return
			}
		}
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket write: %v", err)
			}
			return
		}
	}
}

package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"warkrs/internal/logbus"
)

// Handler streams bus messages to a websocket client: the buffered history
// first, then live messages. The status server binds to localhost, so any
// origin is accepted.
type Handler struct {
	bus      *logbus.Bus
	upgrader websocket.Upgrader
}

func NewHandler(bus *logbus.Bus) *Handler {
	return &Handler{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	for _, msg := range h.bus.Snapshot() {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

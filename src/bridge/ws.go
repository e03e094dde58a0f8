package bridge

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what a UI may send over the socket.
type clientMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func (h *handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Bridge: WS upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// gorilla/websocket forbids concurrent writes.
	var writeMu sync.Mutex
	writeMsg := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	events := h.deps.Hub.Subscribe()
	defer h.deps.Hub.Unsubscribe(events)

	go func() {
		for e := range events {
			if err := writeMsg(e); err != nil {
				return
			}
		}
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "cancel":
			if msg.ID != "" {
				h.deps.Rewriter.Cancel(msg.ID)
			}
		case "ping":
			_ = writeMsg(clientMessage{Type: "pong"})
		}
	}
}

package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// RepsHandler pushes every session report to websocket clients as JSON.
type RepsHandler struct {
	pipeline Pipeline
}

// NewRepsHandler creates a new RepsHandler over p.
func NewRepsHandler(p Pipeline) *RepsHandler {
	return &RepsHandler{pipeline: p}
}

// ServeHTTP upgrades the request and streams reports until the client
// disconnects. The latest report is sent first.
func (h *RepsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	reports, cancel := h.pipeline.Subscribe()
	defer cancel()

	// Reading detects the close frame from the client.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(h.pipeline.Last()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case report, ok := <-reports:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "pipeline stopped"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(report); err != nil {
				return
			}
		}
	}
}

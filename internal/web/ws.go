package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/jodal/patsgw/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWS upgrades the connection and subscribes it to either the
// filter controller (if a "filter" query parameter is present, per
// the legacy client's comma-separated keyword list) or the sample
// controller otherwise. Events are forwarded as JSON until the socket
// errs or closes, at which point the subscription is released.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var (
		handle *stream.Handle
		err    error
	)

	if raw := r.URL.Query().Get("filter"); raw != "" {
		keywords := splitKeywords(raw)
		handle, err = s.filter.Subscribe(keywords)
	} else {
		handle, err = s.sample.Subscribe(nil)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		handle.Unsubscribe()
		return
	}
	defer conn.Close()
	defer handle.Unsubscribe()

	s.logger.Info("websocket connected", "filter", r.URL.Query().Get("filter"))

	// Detect client-initiated close without blocking the forwarding
	// loop: a reader goroutine that only ever returns on error.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Info("websocket disconnected by client")
			return
		case event, ok := <-handle.Queue:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("failed to marshal event for websocket", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Info("websocket write failed, closing", "error", err)
				return
			}
		}
	}
}

// splitKeywords parses the legacy "filter=cats,dogs" query parameter
// into a keyword list, trimming whitespace and dropping empty entries.
func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleSSE streams run events to the client as Server-Sent Events. An
// optional ?run=<id> query restricts the stream to one run.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	runFilter := r.URL.Query().Get("run")
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	s.logger.Info("sse client connected", "remote_addr", r.RemoteAddr, "run", runFilter)
	s.sendSSEEvent(w, flusher, "connected", map[string]string{"status": "connected"})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sse client disconnected", "remote_addr", r.RemoteAddr)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if runFilter != "" && event.RunID() != runFilter {
				continue
			}
			s.sendSSEEvent(w, flusher, event.EventType(), event)
		}
	}
}

// sendSSEEvent writes one event in SSE wire format.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshaling sse event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

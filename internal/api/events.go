package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/progress"
)

// keepaliveInterval is how long the stream may stay silent before a comment
// line is sent to keep proxies from closing it.
const keepaliveInterval = 5 * time.Second

// completePayload is the body of a terminal stream event: the run's final
// status plus the failure reason when there is one.
type completePayload struct {
	MemoID string `json:"memo_id"`
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// encodeEvent picks the SSE event name and body. Intermediate steps go out
// as progress events carrying the full step payload; completed and failed
// close the run with a complete event carrying the final status.
func encodeEvent(evt progress.Event) (string, []byte, error) {
	switch evt.Step {
	case progress.StepCompleted, progress.StepFailed:
		payload, err := json.Marshal(completePayload{
			MemoID: evt.MemoID,
			UserID: evt.UserID,
			Status: evt.Step,
			Error:  evt.Message,
		})
		return "complete", payload, err
	default:
		payload, err := json.Marshal(evt)
		return "progress", payload, err
	}
}

// handleEvents streams progress events over SSE. Each connection gets its
// own subscriber registration, removed as soon as the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	clientID := uuid.NewString()
	events := s.cfg.Hub.Subscribe(clientID)
	defer s.cfg.Hub.Unsubscribe(clientID)
	s.cfg.Metrics.SetSubscribers(s.cfg.Hub.SubscriberCount())
	defer func() { s.cfg.Metrics.SetSubscribers(s.cfg.Hub.SubscriberCount()) }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("event stream opened", zap.String("client_id", clientID))
	defer s.logger.Debug("event stream closed", zap.String("client_id", clientID))

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-events:
			if !open {
				return
			}
			name, payload, err := encodeEvent(evt)
			if err != nil {
				s.logger.Warn("encoding progress event failed", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
				return
			}
			flusher.Flush()
			keepalive.Reset(keepaliveInterval)
		}
	}
}

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"payconnect/internal/reconcile"
)

type notificationRequest struct {
	Provider   string    `json:"provider"`
	Reference  string    `json:"reference"`
	StatusCode string    `json:"status_code"`
	EventTime  time.Time `json:"event_time"`
}

// HandleNotification handles POST /v1/notifications. Every delivery the
// reconciler could classify is acknowledged with 200, including discards;
// anything else would make the provider redeliver forever.
func (s *Server) HandleNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	outcome, err := s.reconciler.Reconcile(r.Context(), reconcile.Notification{
		Provider:   req.Provider,
		Reference:  req.Reference,
		StatusCode: req.StatusCode,
		EventTime:  req.EventTime,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// Package web exposes the connector over HTTP: charge and refund
// operations, the normalized notification endpoint, and a healthcheck.
// Bodies are plain JSON; provider wire formats never reach this layer.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"payconnect/internal/domain"
	"payconnect/internal/reconcile"
	"payconnect/internal/service"
	"payconnect/internal/store"
)

// Server holds the handlers' dependencies.
type Server struct {
	charges    *service.Charges
	refunds    *service.Refunds
	reconciler *reconcile.Handler
	store      store.Store
	logger     *slog.Logger
}

// NewServer creates the HTTP server surface.
func NewServer(charges *service.Charges, refunds *service.Refunds, reconciler *reconcile.Handler, s store.Store, logger *slog.Logger) *Server {
	return &Server{
		charges:    charges,
		refunds:    refunds,
		reconciler: reconciler,
		store:      s,
		logger:     logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)

	r.HandleFunc("/v1/charges", s.CreateCharge).Methods(http.MethodPost)
	r.HandleFunc("/v1/charges/{externalID}", s.GetCharge).Methods(http.MethodGet)
	r.HandleFunc("/v1/charges/{externalID}/authorise", s.AuthoriseCharge).Methods(http.MethodPost)
	r.HandleFunc("/v1/charges/{externalID}/cancel", s.CancelCharge).Methods(http.MethodPost)
	r.HandleFunc("/v1/charges/{externalID}/events", s.GetChargeEvents).Methods(http.MethodGet)
	r.HandleFunc("/v1/refunds", s.CreateRefund).Methods(http.MethodPost)
	r.HandleFunc("/v1/refunds/{externalID}", s.GetRefund).Methods(http.MethodGet)
	r.HandleFunc("/v1/notifications", s.HandleNotification).Methods(http.MethodPost)
	r.HandleFunc("/healthcheck", s.Healthcheck).Methods(http.MethodGet)
	return r
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Healthcheck pings the store.
func (s *Server) Healthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("healthcheck store ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrChargeNotFound),
		errors.Is(err, domain.ErrRefundNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, domain.ErrRefundNotAvailable),
		errors.Is(err, domain.ErrRefundAmountAvailable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case domain.IsInvalidTransition(err):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

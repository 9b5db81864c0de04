package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"payconnect/internal/domain"
)

type createRefundRequest struct {
	ChargeID       string `json:"charge_id"`
	Amount         int64  `json:"amount"`
	UserExternalID string `json:"user_external_id"`
}

type refundResponse struct {
	RefundID       string    `json:"refund_id"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	ExternalStatus string    `json:"external_status"`
	CreatedDate    time.Time `json:"created_date"`
}

func toRefundResponse(r *domain.Refund) refundResponse {
	return refundResponse{
		RefundID:       r.ExternalID,
		Amount:         r.Amount,
		Status:         string(r.Status),
		ExternalStatus: string(r.Status.External()),
		CreatedDate:    r.CreatedDate,
	}
}

// CreateRefund handles POST /v1/refunds.
func (s *Server) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req createRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.ChargeID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "charge_id is required", Field: "charge_id"})
		return
	}

	refund, err := s.refunds.Create(r.Context(), req.ChargeID, req.Amount, req.UserExternalID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toRefundResponse(refund))
}

// GetRefund handles GET /v1/refunds/{externalID}.
func (s *Server) GetRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := s.refunds.Get(r.Context(), mux.Vars(r)["externalID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundResponse(refund))
}

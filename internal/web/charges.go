package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/service"
)

type createChargeRequest struct {
	GatewayAccountID int64  `json:"gateway_account_id"`
	Amount           int64  `json:"amount"`
	ReturnURL        string `json:"return_url"`
	Reference        string `json:"reference"`
	Description      string `json:"description"`
	Email            string `json:"email"`
}

type authoriseChargeRequest struct {
	CardNumber     string `json:"card_number"`
	CardholderName string `json:"cardholder_name"`
	ExpiryDate     string `json:"expiry_date"`
	CVC            string `json:"cvc"`
}

type chargeResponse struct {
	ChargeID             string    `json:"charge_id"`
	Amount               int64     `json:"amount"`
	Status               string    `json:"status"`
	ExternalStatus       string    `json:"external_status"`
	Reference            string    `json:"reference"`
	Description          string    `json:"description,omitempty"`
	Email                string    `json:"email,omitempty"`
	ReturnURL            string    `json:"return_url,omitempty"`
	CardBrand            string    `json:"card_brand,omitempty"`
	LastDigitsCardNumber string    `json:"last_digits_card_number,omitempty"`
	CreatedDate          time.Time `json:"created_date"`
}

func toChargeResponse(c *domain.Charge) chargeResponse {
	return chargeResponse{
		ChargeID:             c.ExternalID,
		Amount:               c.Amount,
		Status:               string(c.Status),
		ExternalStatus:       string(c.Status.External()),
		Reference:            c.Reference,
		Description:          c.Description,
		Email:                c.Email,
		ReturnURL:            c.ReturnURL,
		CardBrand:            c.CardBrand,
		LastDigitsCardNumber: c.LastFourDigits,
		CreatedDate:          c.CreatedDate,
	}
}

// CreateCharge handles POST /v1/charges.
func (s *Server) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	charge, err := s.charges.Create(r.Context(), service.CreateChargeRequest{
		GatewayAccountID: req.GatewayAccountID,
		Amount:           req.Amount,
		ReturnURL:        req.ReturnURL,
		Reference:        req.Reference,
		Description:      req.Description,
		Email:            req.Email,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChargeResponse(charge))
}

// GetCharge handles GET /v1/charges/{externalID}.
func (s *Server) GetCharge(w http.ResponseWriter, r *http.Request) {
	charge, err := s.charges.Get(r.Context(), mux.Vars(r)["externalID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

// AuthoriseCharge handles POST /v1/charges/{externalID}/authorise.
func (s *Server) AuthoriseCharge(w http.ResponseWriter, r *http.Request) {
	var req authoriseChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.CardNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "card_number is required", Field: "card_number"})
		return
	}

	charge, err := s.charges.Authorise(r.Context(), mux.Vars(r)["externalID"], gateway.CardDetails{
		CardNumber:     req.CardNumber,
		CardholderName: req.CardholderName,
		ExpiryDate:     req.ExpiryDate,
		CVC:            req.CVC,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

// CancelCharge handles POST /v1/charges/{externalID}/cancel.
func (s *Server) CancelCharge(w http.ResponseWriter, r *http.Request) {
	charge, err := s.charges.Cancel(r.Context(), mux.Vars(r)["externalID"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChargeResponse(charge))
}

type chargeEventResponse struct {
	Status           string     `json:"status"`
	ExternalStatus   string     `json:"external_status"`
	RecordedAt       time.Time  `json:"recorded_at"`
	GatewayEventTime *time.Time `json:"gateway_event_time,omitempty"`
}

// GetChargeEvents handles GET /v1/charges/{externalID}/events.
func (s *Server) GetChargeEvents(w http.ResponseWriter, r *http.Request) {
	externalID := mux.Vars(r)["externalID"]
	events, err := s.charges.Events(r.Context(), externalID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]chargeEventResponse, len(events))
	for i, e := range events {
		out[i] = chargeEventResponse{
			Status:           string(e.Status),
			ExternalStatus:   string(e.Status.External()),
			RecordedAt:       e.RecordedAt,
			GatewayEventTime: e.GatewayEventTime,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"charge_id": externalID,
		"events":    out,
	})
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/reconcile"
	"payconnect/internal/service"
	"payconnect/internal/store"
)

type testEnv struct {
	store   *store.MemoryStore
	account *domain.GatewayAccount
	router  http.Handler
}

func newTestEnv(t *testing.T, provider string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewMemoryStore()

	account := &domain.GatewayAccount{PaymentProvider: provider, Type: "test"}
	require.NoError(t, s.CreateAccount(context.Background(), account))

	clients := gateway.ClientRegistry{domain.ProviderSandbox: gateway.NewSandbox()}
	charges := service.NewCharges(s, clients, logger)
	refunds := service.NewRefunds(s, logger)
	reconciler := reconcile.NewHandler(s, logger)

	server := NewServer(charges, refunds, reconciler, s, logger)
	return &testEnv{store: s, account: account, router: server.Router()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCreateCharge(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)

	rec := env.do(t, http.MethodPost, "/v1/charges", map[string]any{
		"gateway_account_id": env.account.ID,
		"amount":             2500,
		"reference":          "order-1",
		"return_url":         "https://shop.example/return",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[chargeResponse](t, rec)
	require.NotEmpty(t, resp.ChargeID)
	require.Equal(t, int64(2500), resp.Amount)
	require.Equal(t, string(domain.StatusCreated), resp.Status)
	require.Equal(t, "created", resp.ExternalStatus)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateCharge_Validation(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)

	rec := env.do(t, http.MethodPost, "/v1/charges", map[string]any{
		"gateway_account_id": env.account.ID,
		"amount":             0,
		"reference":          "order-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Equal(t, "amount", resp.Field)
}

func TestChargeLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)

	rec := env.do(t, http.MethodPost, "/v1/charges", map[string]any{
		"gateway_account_id": env.account.ID,
		"amount":             1000,
		"reference":          "order-2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[chargeResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/v1/charges/"+created.ChargeID+"/authorise", map[string]any{
		"card_number":     gateway.SandboxGoodCard,
		"cardholder_name": "J Doe",
		"expiry_date":     "12/29",
		"cvc":             "123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	authorised := decode[chargeResponse](t, rec)
	require.Equal(t, string(domain.StatusCaptureApproved), authorised.Status)
	require.Equal(t, "4242", authorised.LastDigitsCardNumber)

	rec = env.do(t, http.MethodGet, "/v1/charges/"+created.ChargeID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/charges/"+created.ChargeID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[struct {
		ChargeID string                `json:"charge_id"`
		Events   []chargeEventResponse `json:"events"`
	}](t, rec)
	require.Equal(t, created.ChargeID, events.ChargeID)
	require.Len(t, events.Events, 3)
}

func TestGetCharge_NotFound(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)
	rec := env.do(t, http.MethodGet, "/v1/charges/no-such-charge", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelCharge_Conflict(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)
	ctx := context.Background()

	charge := domain.NewCharge(env.account.ID, 1000, "", "order-3", "", "")
	require.NoError(t, env.store.CreateCharge(ctx, charge))
	applied, err := env.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusCreated}, domain.StatusCaptured)
	require.NoError(t, err)
	require.True(t, applied)

	rec := env.do(t, http.MethodPost, "/v1/charges/"+charge.ExternalID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateRefundOverHTTP(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)
	ctx := context.Background()

	charge := domain.NewCharge(env.account.ID, 1000, "", "order-4", "", "")
	require.NoError(t, env.store.CreateCharge(ctx, charge))
	applied, err := env.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusCreated}, domain.StatusCaptured)
	require.NoError(t, err)
	require.True(t, applied)

	rec := env.do(t, http.MethodPost, "/v1/refunds", map[string]any{
		"charge_id":        charge.ExternalID,
		"amount":           400,
		"user_external_id": "user-1",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	refund := decode[refundResponse](t, rec)
	require.Equal(t, string(domain.RefundCreated), refund.Status)

	rec = env.do(t, http.MethodGet, "/v1/refunds/"+refund.RefundID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Over-refunding is a client error.
	rec = env.do(t, http.MethodPost, "/v1/refunds", map[string]any{
		"charge_id":        charge.ExternalID,
		"amount":           700,
		"user_external_id": "user-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNotification(t *testing.T) {
	env := newTestEnv(t, domain.ProviderWorldpay)
	ctx := context.Background()

	charge := domain.NewCharge(env.account.ID, 1000, "", "order-5", "", "")
	require.NoError(t, env.store.CreateCharge(ctx, charge))
	require.NoError(t, env.store.SetChargeGatewayReferences(ctx, charge.ID, "wp-txn-1", ""))
	applied, err := env.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusCreated}, domain.StatusCaptureSubmitted)
	require.NoError(t, err)
	require.True(t, applied)

	body := map[string]any{
		"provider":    domain.ProviderWorldpay,
		"reference":   "wp-txn-1",
		"status_code": "CAPTURED",
		"event_time":  time.Now().UTC().Format(time.RFC3339),
	}

	rec := env.do(t, http.MethodPost, "/v1/notifications", body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	require.Equal(t, string(reconcile.OutcomeApplied), resp["outcome"])

	// Redelivery is still acknowledged with 200.
	rec = env.do(t, http.MethodPost, "/v1/notifications", body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string]string](t, rec)
	require.Equal(t, string(reconcile.OutcomeDuplicate), resp["outcome"])

	// Unknown references are acknowledged too.
	rec = env.do(t, http.MethodPost, "/v1/notifications", map[string]any{
		"provider":    domain.ProviderWorldpay,
		"reference":   "unknown",
		"status_code": "CAPTURED",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)
	rec := env.do(t, http.MethodGet, "/healthcheck", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	require.Equal(t, "ok", resp["status"])
}

func TestMethodRouting(t *testing.T) {
	env := newTestEnv(t, domain.ProviderSandbox)
	rec := env.do(t, http.MethodGet, "/v1/notifications", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/charges/%s", "abc"), nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

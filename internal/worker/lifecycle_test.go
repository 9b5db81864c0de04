package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/reconcile"
	"payconnect/internal/service"
	"payconnect/internal/store"
)

// Walks a charge through the full asynchronous happy path: created via the
// API service, authorised synchronously, captured by the engine, and
// confirmed by a gateway notification. The event log ends up with exactly
// five entries in lifecycle order.
func TestAsyncChargeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	account := &domain.GatewayAccount{PaymentProvider: domain.ProviderWorldpay, Type: "test"}
	require.NoError(t, s.CreateAccount(ctx, account))

	client := new(MockClient)
	client.On("Authorise", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.AuthoriseResponse{
			ProviderStatus: "AUTHORISED",
			TransactionID:  "wp-txn-9",
			SessionID:      "wp-sess-9",
		}, nil)
	client.On("Capture", mock.Anything, mock.Anything, "wp-txn-9").
		Return(&gateway.CaptureResponse{ProviderStatus: "CAPTURED"}, nil)
	registry := gateway.ClientRegistry{domain.ProviderWorldpay: client}

	charges := service.NewCharges(s, registry, testLogger())
	charge, err := charges.Create(ctx, service.CreateChargeRequest{
		GatewayAccountID: account.ID,
		Amount:           2500,
		Reference:        "order-lifecycle",
	})
	require.NoError(t, err)

	authorised, err := charges.Authorise(ctx, charge.ExternalID, gateway.CardDetails{CardNumber: "4000123412341234"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCaptureApproved, authorised.Status)

	engine := NewCaptureEngine(s, registry, testConfig(), testLogger())
	require.NoError(t, engine.Capture(ctx, charge.ID))

	submitted, err := s.ChargeByID(ctx, charge.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCaptureSubmitted, submitted.Status)

	handler := reconcile.NewHandler(s, testLogger())
	outcome, err := handler.Reconcile(ctx, reconcile.Notification{
		Provider:   domain.ProviderWorldpay,
		Reference:  "wp-txn-9",
		StatusCode: "CAPTURED",
		EventTime:  time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, reconcile.OutcomeApplied, outcome)

	captured, err := s.ChargeByID(ctx, charge.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCaptured, captured.Status)

	events, err := s.ChargeEvents(ctx, charge.ID)
	require.NoError(t, err)
	var got []domain.ChargeStatus
	for _, event := range events {
		got = append(got, event.Status)
	}
	require.Equal(t, []domain.ChargeStatus{
		domain.StatusCreated,
		domain.StatusEnteringCardDetails,
		domain.StatusAuthorisationSuccess,
		domain.StatusCaptureSubmitted,
		domain.StatusCaptured,
	}, got)
	client.AssertExpectations(t)
}

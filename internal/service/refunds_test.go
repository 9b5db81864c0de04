package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"payconnect/internal/domain"
	"payconnect/internal/store"
)

func newCapturedCharge(t *testing.T, s store.Store, amount int64) *domain.Charge {
	t.Helper()
	account := newAccount(t, s, domain.ProviderWorldpay)
	charge := domain.NewCharge(account.ID, amount, "", "order-r", "", "")
	require.NoError(t, s.CreateCharge(context.Background(), charge))
	forceStatus(t, s, charge, domain.StatusCaptured)
	return charge
}

func TestRefunds_Create(t *testing.T) {
	s := store.NewMemoryStore()
	charge := newCapturedCharge(t, s, 1000)
	svc := NewRefunds(s, testLogger())
	ctx := context.Background()

	refund, err := svc.Create(ctx, charge.ExternalID, 400, "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.RefundCreated, refund.Status)
	require.Equal(t, int64(400), refund.Amount)

	events, err := s.RefundEvents(ctx, refund.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.RefundCreated, events[0].Status)
}

func TestRefunds_Create_EnforcesRefundableAmount(t *testing.T) {
	s := store.NewMemoryStore()
	charge := newCapturedCharge(t, s, 1000)
	svc := NewRefunds(s, testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, charge.ExternalID, 400, "user-1")
	require.NoError(t, err)

	// The first refund is still pending, but it reserves its amount.
	_, err = svc.Create(ctx, charge.ExternalID, 700, "user-1")
	require.ErrorIs(t, err, domain.ErrRefundAmountAvailable)

	_, err = svc.Create(ctx, charge.ExternalID, 600, "user-1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, charge.ExternalID, 1, "user-1")
	require.ErrorIs(t, err, domain.ErrRefundAmountAvailable)
}

func TestRefunds_Create_FailedRefundsFreeTheirAmount(t *testing.T) {
	s := store.NewMemoryStore()
	charge := newCapturedCharge(t, s, 1000)
	svc := NewRefunds(s, testLogger())
	ctx := context.Background()

	refund, err := svc.Create(ctx, charge.ExternalID, 1000, "user-1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, charge.ExternalID, 100, "user-1")
	require.ErrorIs(t, err, domain.ErrRefundAmountAvailable)

	applied, err := s.TransitionRefundStatus(ctx, refund.ID,
		[]domain.RefundStatus{domain.RefundCreated}, domain.RefundError)
	require.NoError(t, err)
	require.True(t, applied)

	_, err = svc.Create(ctx, charge.ExternalID, 100, "user-1")
	require.NoError(t, err)
}

func TestRefunds_Create_NotCaptured(t *testing.T) {
	s := store.NewMemoryStore()
	account := newAccount(t, s, domain.ProviderWorldpay)
	charge := domain.NewCharge(account.ID, 1000, "", "order-r2", "", "")
	require.NoError(t, s.CreateCharge(context.Background(), charge))
	forceStatus(t, s, charge, domain.StatusAuthorisationSuccess)

	svc := NewRefunds(s, testLogger())
	_, err := svc.Create(context.Background(), charge.ExternalID, 100, "user-1")
	require.ErrorIs(t, err, domain.ErrRefundNotAvailable)
}

func TestRefunds_Create_Validation(t *testing.T) {
	s := store.NewMemoryStore()
	charge := newCapturedCharge(t, s, 1000)
	svc := NewRefunds(s, testLogger())

	var verr *domain.ValidationError
	_, err := svc.Create(context.Background(), charge.ExternalID, 0, "user-1")
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(context.Background(), "missing", 100, "user-1")
	require.ErrorIs(t, err, domain.ErrChargeNotFound)
}

func TestRefunds_ForCharge(t *testing.T) {
	s := store.NewMemoryStore()
	charge := newCapturedCharge(t, s, 1000)
	svc := NewRefunds(s, testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, charge.ExternalID, 100, "user-1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, charge.ExternalID, 200, "user-2")
	require.NoError(t, err)

	refunds, err := svc.ForCharge(ctx, charge.ExternalID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
}

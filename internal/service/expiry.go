package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/store"
)

// expirableStatuses are the non-terminal pre-capture statuses a charge can
// sit in long enough to expire.
var expirableStatuses = []domain.ChargeStatus{
	domain.StatusCreated,
	domain.StatusEnteringCardDetails,
	domain.StatusAuthorisation3DSRequired,
	domain.StatusAuthorisationSuccess,
}

// Expiry sweeps abandoned charges past the configured age into EXPIRED.
// Charges that already hold a successful authorisation need the gateway to
// release the funds first; if that call fails the charge parks in
// EXPIRE_CANCEL_FAILED for manual follow-up.
type Expiry struct {
	store   store.Store
	clients gateway.ClientRegistry
	window  time.Duration
	logger  *slog.Logger
}

// NewExpiry creates the expiry sweeper. window is how old a charge must be
// before it expires.
func NewExpiry(s store.Store, clients gateway.ClientRegistry, window time.Duration, logger *slog.Logger) *Expiry {
	return &Expiry{store: s, clients: clients, window: window, logger: logger}
}

// Sweep expires every eligible charge older than the window and returns how
// many were expired. Per-charge failures are logged and skipped; only a
// failure to list candidates aborts the sweep.
func (e *Expiry) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-e.window)
	charges, err := e.store.ChargesCreatedBefore(ctx, cutoff, expirableStatuses...)
	if err != nil {
		return 0, fmt.Errorf("list expirable charges: %w", err)
	}

	expired := 0
	for _, charge := range charges {
		ok, err := e.expire(ctx, charge)
		if err != nil {
			e.logger.Error("failed to expire charge",
				"charge_external_id", charge.ExternalID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		e.logger.Info("expiry sweep complete", "expired", expired, "candidates", len(charges))
	}
	return expired, nil
}

func (e *Expiry) expire(ctx context.Context, charge *domain.Charge) (bool, error) {
	if charge.Status == domain.StatusAuthorisationSuccess {
		return e.expireAuthorised(ctx, charge)
	}

	// Pre-authorisation statuses expire directly.
	applied, err := e.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{charge.Status}, domain.StatusExpired)
	if err != nil {
		return false, err
	}
	if !applied {
		// Another actor moved the charge since we listed it.
		return false, nil
	}
	if err := e.store.RecordChargeEvent(ctx, charge.ID, domain.StatusExpired, nil); err != nil {
		return false, err
	}
	return true, nil
}

// expireAuthorised claims the charge, cancels the authorisation with the
// gateway, and resolves the claim.
func (e *Expiry) expireAuthorised(ctx context.Context, charge *domain.Charge) (bool, error) {
	account, err := e.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return false, err
	}
	client, err := e.clients.For(account.PaymentProvider)
	if err != nil {
		return false, err
	}

	claimed, err := e.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess}, domain.StatusExpireCancelReady)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if _, callErr := client.Cancel(ctx, *account, charge.GatewayTransactionID); callErr != nil {
		if _, err := e.store.TransitionChargeStatus(ctx, charge.ID,
			[]domain.ChargeStatus{domain.StatusExpireCancelReady}, domain.StatusExpireCancelFailed); err != nil {
			return false, err
		}
		if err := e.store.RecordChargeEvent(ctx, charge.ID, domain.StatusExpireCancelFailed, nil); err != nil {
			return false, err
		}
		return false, fmt.Errorf("gateway cancel for expiry: %w", callErr)
	}

	applied, err := e.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusExpireCancelReady}, domain.StatusExpired)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	if err := e.store.RecordChargeEvent(ctx, charge.ID, domain.StatusExpired, nil); err != nil {
		return false, err
	}
	return true, nil
}

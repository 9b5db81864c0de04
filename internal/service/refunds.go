package service

import (
	"context"
	"fmt"
	"log/slog"

	"payconnect/internal/domain"
	"payconnect/internal/store"
)

// Refunds handles refund creation and lookups. Submission to the gateway is
// the refund worker's job; this service only writes the CREATED record after
// checking the refundable amount.
type Refunds struct {
	store  store.Store
	logger *slog.Logger
}

// NewRefunds creates the refunds service.
func NewRefunds(s store.Store, logger *slog.Logger) *Refunds {
	return &Refunds{store: s, logger: logger}
}

// Create records a new refund against a captured charge. The refundable
// amount is the captured amount minus every prior refund that has not
// failed: pending refunds count, otherwise two concurrent requests could
// both pass the check.
func (r *Refunds) Create(ctx context.Context, chargeExternalID string, amount int64, userExternalID string) (*domain.Refund, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}

	charge, err := r.store.ChargeByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}
	if charge.Status != domain.StatusCaptured {
		return nil, domain.ErrRefundNotAvailable
	}

	refunded, err := r.refundedAmount(ctx, charge.ID)
	if err != nil {
		return nil, err
	}
	if amount > charge.Amount-refunded {
		return nil, domain.ErrRefundAmountAvailable
	}

	refund := domain.NewRefund(charge.ID, amount, userExternalID)
	if err := r.store.CreateRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	if err := r.store.RecordRefundEvent(ctx, refund.ID, domain.RefundCreated, nil); err != nil {
		return nil, fmt.Errorf("record refund created event: %w", err)
	}

	r.logger.Info("refund created",
		"refund_external_id", refund.ExternalID,
		"charge_external_id", charge.ExternalID,
		"amount", amount)
	return refund, nil
}

// Get returns a refund by its external id.
func (r *Refunds) Get(ctx context.Context, externalID string) (*domain.Refund, error) {
	return r.store.RefundByExternalID(ctx, externalID)
}

// ForCharge returns all refunds recorded against a charge.
func (r *Refunds) ForCharge(ctx context.Context, chargeExternalID string) ([]*domain.Refund, error) {
	charge, err := r.store.ChargeByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}
	return r.store.RefundsByChargeID(ctx, charge.ID)
}

// refundedAmount sums every refund against the charge except failed ones.
func (r *Refunds) refundedAmount(ctx context.Context, chargeID int64) (int64, error) {
	refunds, err := r.store.RefundsByChargeID(ctx, chargeID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, refund := range refunds {
		if refund.Status != domain.RefundError {
			total += refund.Amount
		}
	}
	return total, nil
}

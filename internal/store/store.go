// Package store provides persistence for charges, refunds, and their
// append-only event logs. The one primitive everything else relies on is the
// conditional status update: set the new status only if the stored status is
// still a member of an expected set. That single write is the serialization
// point between the request path, the background workers, and the
// notification handler.
package store

import (
	"context"
	"time"

	"payconnect/internal/domain"
)

// Store is the persistence interface for the payment connector.
type Store interface {
	// CreateCharge persists a new charge and assigns its internal id.
	CreateCharge(ctx context.Context, charge *domain.Charge) error
	ChargeByID(ctx context.Context, id int64) (*domain.Charge, error)
	ChargeByExternalID(ctx context.Context, externalID string) (*domain.Charge, error)
	// ChargeByGatewayTransactionID looks a charge up by the provider's
	// transaction reference (single or composite form, stored verbatim).
	ChargeByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Charge, error)
	// ChargeByProviderSessionID looks a charge up by the secondary
	// PSP-generated reference some providers send in notifications.
	ChargeByProviderSessionID(ctx context.Context, sessionID string) (*domain.Charge, error)
	ChargesByStatus(ctx context.Context, statuses ...domain.ChargeStatus) ([]*domain.Charge, error)
	// ChargesCreatedBefore returns charges created before the cutoff whose
	// status is in the given set; used by the expiry sweeper.
	ChargesCreatedBefore(ctx context.Context, cutoff time.Time, statuses ...domain.ChargeStatus) ([]*domain.Charge, error)
	SetChargeGatewayReferences(ctx context.Context, chargeID int64, transactionID, sessionID string) error
	SetChargeCardDetails(ctx context.Context, chargeID int64, brand, lastFour string) error

	// TransitionChargeStatus atomically sets the charge status to next if
	// and only if the stored status is currently a member of expected.
	// applied=false with a nil error means another actor already moved the
	// record: a lost race, not a fault. The store knows nothing about
	// transition legality; callers validate against the transition table
	// first.
	TransitionChargeStatus(ctx context.Context, chargeID int64, expected []domain.ChargeStatus, next domain.ChargeStatus) (applied bool, err error)

	// RecordChargeEvent appends to the charge event log. Call only after
	// TransitionChargeStatus reported applied=true. gatewayEventTime may be
	// nil for internally-originated transitions.
	RecordChargeEvent(ctx context.Context, chargeID int64, status domain.ChargeStatus, gatewayEventTime *time.Time) error
	ChargeEvents(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error)
	HasChargeEvent(ctx context.Context, chargeID int64, status domain.ChargeStatus) (bool, error)
	CountChargeEvents(ctx context.Context, chargeID int64, status domain.ChargeStatus) (int, error)

	CreateRefund(ctx context.Context, refund *domain.Refund) error
	RefundByID(ctx context.Context, id int64) (*domain.Refund, error)
	RefundByExternalID(ctx context.Context, externalID string) (*domain.Refund, error)
	RefundByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Refund, error)
	RefundsByChargeID(ctx context.Context, chargeID int64) ([]*domain.Refund, error)
	RefundsByStatus(ctx context.Context, statuses ...domain.RefundStatus) ([]*domain.Refund, error)
	SetRefundGatewayTransactionID(ctx context.Context, refundID int64, transactionID string) error

	// TransitionRefundStatus is the refund counterpart of
	// TransitionChargeStatus.
	TransitionRefundStatus(ctx context.Context, refundID int64, expected []domain.RefundStatus, next domain.RefundStatus) (applied bool, err error)
	RecordRefundEvent(ctx context.Context, refundID int64, status domain.RefundStatus, gatewayEventTime *time.Time) error
	RefundEvents(ctx context.Context, refundID int64) ([]domain.RefundEvent, error)
	HasRefundEvent(ctx context.Context, refundID int64, status domain.RefundStatus) (bool, error)

	CreateAccount(ctx context.Context, account *domain.GatewayAccount) error
	AccountByID(ctx context.Context, id int64) (*domain.GatewayAccount, error)

	Ping(ctx context.Context) error
	Close() error
}

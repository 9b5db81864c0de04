package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment providers supported by the connector. The provider determines both
// the gateway variant (transition table) and the reference scheme used to
// match inbound notifications.
const (
	ProviderSandbox  = "sandbox"
	ProviderWorldpay = "worldpay"
	ProviderSmartpay = "smartpay"
	ProviderEpdq     = "epdq"
)

// VariantFor returns the gateway variant for a payment provider. Unknown
// providers get the async variant, which is the stricter graph.
func VariantFor(provider string) GatewayVariant {
	if provider == ProviderSandbox {
		return VariantSync
	}
	return VariantAsync
}

// GatewayAccount is the merchant account a charge belongs to. Read-only to
// this module; credential storage lives elsewhere.
type GatewayAccount struct {
	ID              int64
	PaymentProvider string
	Type            string // "test" or "live"
}

// Variant returns the transition-table variant for the account's provider.
func (a GatewayAccount) Variant() GatewayVariant {
	return VariantFor(a.PaymentProvider)
}

// Charge is a single payment attempt. Charges are financial records: they
// are never deleted, and every status change goes through the transition
// validator and the store's conditional update.
type Charge struct {
	ID               int64
	ExternalID       string
	GatewayAccountID int64
	Amount           int64 // minor units
	Status           ChargeStatus

	// GatewayTransactionID is the provider's primary reference, set once
	// authorisation begins.
	GatewayTransactionID string
	// ProviderSessionID is the secondary PSP-generated reference some
	// providers use in notifications instead of the transaction id.
	ProviderSessionID string

	ReturnURL   string
	Reference   string
	Description string
	Email       string

	CardBrand      string
	LastFourDigits string

	CreatedDate time.Time
}

// NewCharge creates a charge in CREATED with a fresh external id.
func NewCharge(accountID, amount int64, returnURL, reference, description, email string) *Charge {
	return &Charge{
		ExternalID:       uuid.NewString(),
		GatewayAccountID: accountID,
		Amount:           amount,
		Status:           StatusCreated,
		ReturnURL:        returnURL,
		Reference:        reference,
		Description:      description,
		Email:            email,
		CreatedDate:      time.Now().UTC(),
	}
}

// ChargeEvent is the immutable fact "charge X reached status S at time T".
// GatewayEventTime, when present, is the gateway's own timestamp for the
// event: a capture-confirmed notification is authoritative about when the
// capture happened even if it is processed later.
type ChargeEvent struct {
	ID               int64
	ChargeID         int64
	Status           ChargeStatus
	RecordedAt       time.Time
	GatewayEventTime *time.Time
}

// Refund is one refund attempt against a captured charge.
type Refund struct {
	ID         int64
	ExternalID string
	ChargeID   int64
	Amount     int64 // minor units
	Status     RefundStatus

	GatewayTransactionID string
	UserExternalID       string

	CreatedDate time.Time
}

// NewRefund creates a refund in CREATED with a fresh external id.
func NewRefund(chargeID, amount int64, userExternalID string) *Refund {
	return &Refund{
		ExternalID:     uuid.NewString(),
		ChargeID:       chargeID,
		Amount:         amount,
		Status:         RefundCreated,
		UserExternalID: userExternalID,
		CreatedDate:    time.Now().UTC(),
	}
}

// RefundEvent is the refund counterpart of ChargeEvent.
type RefundEvent struct {
	ID               int64
	RefundID         int64
	Status           RefundStatus
	RecordedAt       time.Time
	GatewayEventTime *time.Time
}

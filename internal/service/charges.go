// Package service implements the charge, refund, and expiry operations
// exposed over the API. Services validate every move against the transition
// tables and write through the store's conditional update; they never assume
// they are the only actor touching a charge, because the background workers
// and the notification reconciler run against the same records.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/store"
)

// CreateChargeRequest carries the caller-supplied fields of a new charge.
type CreateChargeRequest struct {
	GatewayAccountID int64
	Amount           int64 // minor units
	ReturnURL        string
	Reference        string
	Description      string
	Email            string
}

// Charges handles the charge lifecycle operations driven by API callers.
type Charges struct {
	store   store.Store
	clients gateway.ClientRegistry
	logger  *slog.Logger
}

// NewCharges creates the charges service.
func NewCharges(s store.Store, clients gateway.ClientRegistry, logger *slog.Logger) *Charges {
	return &Charges{store: s, clients: clients, logger: logger}
}

// Create persists a new charge in CREATED and records the first event.
func (c *Charges) Create(ctx context.Context, req CreateChargeRequest) (*domain.Charge, error) {
	if req.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}
	if req.Reference == "" {
		return nil, domain.NewValidationError("reference", "must not be empty")
	}
	if _, err := c.store.AccountByID(ctx, req.GatewayAccountID); err != nil {
		return nil, err
	}

	charge := domain.NewCharge(req.GatewayAccountID, req.Amount, req.ReturnURL,
		req.Reference, req.Description, req.Email)
	if err := c.store.CreateCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if err := c.store.RecordChargeEvent(ctx, charge.ID, domain.StatusCreated, nil); err != nil {
		return nil, fmt.Errorf("record created event: %w", err)
	}

	c.logger.Info("charge created",
		"charge_external_id", charge.ExternalID,
		"gateway_account_id", charge.GatewayAccountID,
		"amount", charge.Amount)
	return charge, nil
}

// Get returns a charge by its external id.
func (c *Charges) Get(ctx context.Context, externalID string) (*domain.Charge, error) {
	return c.store.ChargeByExternalID(ctx, externalID)
}

// Events returns the charge's event log, oldest first.
func (c *Charges) Events(ctx context.Context, externalID string) ([]domain.ChargeEvent, error) {
	charge, err := c.store.ChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return c.store.ChargeEvents(ctx, charge.ID)
}

// Authorise runs the card authorisation path for a charge: enter card
// details, submit to the gateway, and land on the provider's answer. On
// success the charge is additionally marked approved for capture, which the
// capture worker picks up.
func (c *Charges) Authorise(ctx context.Context, externalID string, card gateway.CardDetails) (*domain.Charge, error) {
	charge, err := c.store.ChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	account, err := c.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return nil, err
	}
	client, err := c.clients.For(account.PaymentProvider)
	if err != nil {
		return nil, err
	}
	variant := account.Variant()

	// The frontend may already have moved the charge into
	// ENTERING_CARD_DETAILS via Transition; only hop there when it hasn't.
	if charge.Status != domain.StatusEnteringCardDetails {
		if err := c.advance(ctx, charge, variant, domain.StatusEnteringCardDetails, true); err != nil {
			return nil, err
		}
	}
	if err := c.advance(ctx, charge, variant, domain.StatusAuthorisationReady, false); err != nil {
		return nil, err
	}
	if variant == domain.VariantAsync {
		if err := c.advance(ctx, charge, variant, domain.StatusAuthorisationSubmitted, false); err != nil {
			return nil, err
		}
	}

	resp, callErr := client.Authorise(ctx, *account, charge, card)
	if callErr != nil {
		if err := c.advance(ctx, charge, variant, domain.StatusAuthorisationError, true); err != nil {
			c.logger.Error("failed to mark authorisation error",
				"charge_external_id", charge.ExternalID, "error", err)
		}
		return nil, fmt.Errorf("authorise charge %s: %w", externalID, callErr)
	}

	if resp.TransactionID != "" || resp.SessionID != "" {
		if err := c.store.SetChargeGatewayReferences(ctx, charge.ID, resp.TransactionID, resp.SessionID); err != nil {
			return nil, fmt.Errorf("store gateway references: %w", err)
		}
		charge.GatewayTransactionID = resp.TransactionID
		charge.ProviderSessionID = resp.SessionID
	}
	if card.CardNumber != "" {
		lastFour := card.CardNumber
		if len(lastFour) > 4 {
			lastFour = lastFour[len(lastFour)-4:]
		}
		if err := c.store.SetChargeCardDetails(ctx, charge.ID, cardBrand(card.CardNumber), lastFour); err != nil {
			return nil, fmt.Errorf("store card details: %w", err)
		}
	}

	target, ok := gateway.ChargeStatusFor(account.PaymentProvider, resp.ProviderStatus)
	if !ok {
		c.logger.Warn("unknown provider authorise status",
			"provider", account.PaymentProvider, "status", resp.ProviderStatus)
		target = domain.StatusAuthorisationError
	}
	if err := c.advance(ctx, charge, variant, target, true); err != nil {
		return nil, err
	}

	if target == domain.StatusAuthorisationSuccess {
		if err := c.advance(ctx, charge, variant, domain.StatusCaptureApproved, false); err != nil {
			return nil, err
		}
	}

	c.logger.Info("charge authorised",
		"charge_external_id", charge.ExternalID,
		"provider", account.PaymentProvider,
		"status", charge.Status)
	return charge, nil
}

// Cancel cancels a charge on the user's behalf. Before authorisation no
// gateway call is needed; after a successful authorisation the charge is
// claimed and the gateway asked to cancel. Charges past capture cannot be
// cancelled and surface an InvalidTransitionError.
func (c *Charges) Cancel(ctx context.Context, externalID string) (*domain.Charge, error) {
	charge, err := c.store.ChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	account, err := c.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return nil, err
	}
	variant := account.Variant()

	switch charge.Status {
	case domain.StatusEnteringCardDetails, domain.StatusAuthorisation3DSRequired:
		// Nothing authorised yet, no gateway involvement.
		if err := c.advance(ctx, charge, variant, domain.StatusUserCancelled, true); err != nil {
			return nil, err
		}
		return charge, nil

	case domain.StatusAuthorisationSuccess:
		return c.cancelAuthorised(ctx, charge, account)

	default:
		return nil, domain.NewInvalidTransitionError(string(charge.Status), string(domain.StatusUserCancelled))
	}
}

// cancelAuthorised claims the charge, cancels it with the gateway, and
// resolves the claim to USER_CANCELLED or USER_CANCEL_ERROR.
func (c *Charges) cancelAuthorised(ctx context.Context, charge *domain.Charge, account *domain.GatewayAccount) (*domain.Charge, error) {
	client, err := c.clients.For(account.PaymentProvider)
	if err != nil {
		return nil, err
	}
	variant := account.Variant()

	if err := c.advance(ctx, charge, variant, domain.StatusUserCancelReady, false); err != nil {
		return nil, err
	}

	_, callErr := client.Cancel(ctx, *account, charge.GatewayTransactionID)
	if callErr != nil {
		if err := c.advance(ctx, charge, variant, domain.StatusUserCancelError, true); err != nil {
			c.logger.Error("failed to mark user cancel error",
				"charge_external_id", charge.ExternalID, "error", err)
		}
		return nil, fmt.Errorf("cancel charge %s: %w", charge.ExternalID, callErr)
	}

	if err := c.advance(ctx, charge, variant, domain.StatusUserCancelled, true); err != nil {
		return nil, err
	}
	c.logger.Info("charge cancelled by user", "charge_external_id", charge.ExternalID)
	return charge, nil
}

// Transition moves a charge to the given status on behalf of an API caller,
// subject to the usual legality and concurrency rules, and records the
// event. Used for frontend-driven moves such as ENTERING_CARD_DETAILS.
func (c *Charges) Transition(ctx context.Context, externalID string, target domain.ChargeStatus) (*domain.Charge, error) {
	if !target.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	charge, err := c.store.ChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	account, err := c.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return nil, err
	}
	if err := c.advance(ctx, charge, account.Variant(), target, true); err != nil {
		return nil, err
	}
	return charge, nil
}

// advance performs one validated hop. The conditional update expects the
// status the caller last observed; losing that race means another actor
// moved the charge, which surfaces as an InvalidTransitionError built from
// the status the record actually holds now.
func (c *Charges) advance(ctx context.Context, charge *domain.Charge, variant domain.GatewayVariant, next domain.ChargeStatus, record bool) error {
	if err := domain.ValidateTransition(variant, charge.Status, next); err != nil {
		return err
	}
	applied, err := c.store.TransitionChargeStatus(ctx, charge.ID,
		[]domain.ChargeStatus{charge.Status}, next)
	if err != nil {
		return fmt.Errorf("transition charge %s to %s: %w", charge.ExternalID, next, err)
	}
	if !applied {
		current, err := c.store.ChargeByID(ctx, charge.ID)
		if err != nil {
			return err
		}
		return domain.NewInvalidTransitionError(string(current.Status), string(next))
	}
	charge.Status = next
	if record {
		if err := c.store.RecordChargeEvent(ctx, charge.ID, next, nil); err != nil {
			return fmt.Errorf("record %s event: %w", next, err)
		}
	}
	return nil
}

// cardBrand guesses the scheme from the leading digit. Good enough for
// display; the gateway is authoritative.
func cardBrand(number string) string {
	if number == "" {
		return ""
	}
	switch number[0] {
	case '4':
		return "visa"
	case '5':
		return "mastercard"
	case '3':
		return "amex"
	default:
		return "card"
	}
}

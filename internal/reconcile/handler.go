package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/store"
)

// Notification is a normalized inbound gateway event. Webhook ingestion has
// already stripped the provider's wire format down to this tuple.
type Notification struct {
	Provider   string
	Reference  string
	StatusCode string
	EventTime  time.Time
}

// Outcome says what the handler did with a notification. Everything except
// OutcomeApplied is a discard of some flavour; none of them are errors.
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeUnknownReference  Outcome = "unknown_reference"
	OutcomeUnknownStatusCode Outcome = "unknown_status_code"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeIllegalTransition Outcome = "illegal_transition"
	OutcomeLostRace          Outcome = "lost_race"
)

// Handler reconciles notifications against the store.
type Handler struct {
	store   store.Store
	matcher *Matcher
	logger  *slog.Logger
}

// NewHandler creates a reconciliation handler.
func NewHandler(s store.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:   s,
		matcher: NewMatcher(s),
		logger:  logger,
	}
}

// Reconcile applies one notification. The returned error is reserved for
// infrastructure failures (store unavailable). Business-level non-events
// (unknown reference, unknown code, duplicate, stale or illegal status,
// lost race) yield a non-applied Outcome and a nil error so the webhook
// layer can acknowledge the delivery and stop redelivery storms.
func (h *Handler) Reconcile(ctx context.Context, n Notification) (Outcome, error) {
	match, err := h.matcher.Resolve(ctx, n.Provider, n.Reference)
	if err != nil {
		return "", fmt.Errorf("resolve notification reference: %w", err)
	}
	if match == nil {
		h.logger.Info("discarding unmatched notification",
			"provider", n.Provider, "reference", n.Reference, "code", n.StatusCode)
		return OutcomeUnknownReference, nil
	}

	if match.Refund != nil {
		return h.reconcileRefund(ctx, n, match.Refund)
	}
	return h.reconcileCharge(ctx, n, match.Charge)
}

func (h *Handler) reconcileCharge(ctx context.Context, n Notification, charge *domain.Charge) (Outcome, error) {
	log := h.logger.With(
		"provider", n.Provider,
		"charge_external_id", charge.ExternalID,
		"code", n.StatusCode,
	)

	target, ok := gateway.ChargeStatusFor(n.Provider, n.StatusCode)
	if !ok {
		log.Info("discarding notification with unknown status code")
		return OutcomeUnknownStatusCode, nil
	}

	// Duplicate delivery: the event log already holds this exact fact.
	seen, err := h.store.HasChargeEvent(ctx, charge.ID, target)
	if err != nil {
		return "", fmt.Errorf("duplicate check: %w", err)
	}
	if seen {
		log.Info("discarding duplicate notification", "target", target)
		return OutcomeDuplicate, nil
	}

	account, err := h.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return "", fmt.Errorf("load gateway account: %w", err)
	}
	variant := account.Variant()

	if !domain.CanTransition(variant, charge.Status, target) {
		log.Info("discarding notification with illegal transition",
			"from", charge.Status, "target", target)
		return OutcomeIllegalTransition, nil
	}

	// Use the full legal origin set, not the snapshot status we just read:
	// the record may move between the read and the write, and any legal
	// predecessor of the target is an acceptable starting point.
	applied, err := h.store.TransitionChargeStatus(ctx, charge.ID,
		domain.PredecessorsOf(variant, target), target)
	if err != nil {
		return "", fmt.Errorf("apply notification: %w", err)
	}
	if !applied {
		log.Info("notification lost race with another actor", "target", target)
		return OutcomeLostRace, nil
	}

	eventTime := n.EventTime
	if err := h.store.RecordChargeEvent(ctx, charge.ID, target, &eventTime); err != nil {
		return "", fmt.Errorf("record notification event: %w", err)
	}
	log.Info("applied gateway notification", "target", target)
	return OutcomeApplied, nil
}

func (h *Handler) reconcileRefund(ctx context.Context, n Notification, refund *domain.Refund) (Outcome, error) {
	log := h.logger.With(
		"provider", n.Provider,
		"refund_external_id", refund.ExternalID,
		"code", n.StatusCode,
	)

	target, ok := gateway.RefundStatusFor(n.Provider, n.StatusCode)
	if !ok {
		log.Info("discarding refund notification with unknown status code")
		return OutcomeUnknownStatusCode, nil
	}

	seen, err := h.store.HasRefundEvent(ctx, refund.ID, target)
	if err != nil {
		return "", fmt.Errorf("duplicate check: %w", err)
	}
	if seen {
		log.Info("discarding duplicate refund notification", "target", target)
		return OutcomeDuplicate, nil
	}

	if !domain.CanTransitionRefund(refund.Status, target) {
		log.Info("discarding refund notification with illegal transition",
			"from", refund.Status, "target", target)
		return OutcomeIllegalTransition, nil
	}

	applied, err := h.store.TransitionRefundStatus(ctx, refund.ID,
		domain.RefundPredecessorsOf(target), target)
	if err != nil {
		return "", fmt.Errorf("apply refund notification: %w", err)
	}
	if !applied {
		log.Info("refund notification lost race with another actor", "target", target)
		return OutcomeLostRace, nil
	}

	eventTime := n.EventTime
	if err := h.store.RecordRefundEvent(ctx, refund.ID, target, &eventTime); err != nil {
		return "", fmt.Errorf("record refund notification event: %w", err)
	}
	log.Info("applied gateway refund notification", "target", target)
	return OutcomeApplied, nil
}

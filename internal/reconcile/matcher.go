// Package reconcile applies inbound gateway notifications to charges and
// refunds through the same legality and concurrency rules as every other
// status change. Notifications arrive at-least-once and in no particular
// order, so every step here must tolerate duplicates, stale events, and
// races with the background workers.
package reconcile

import (
	"context"
	"errors"
	"strings"

	"payconnect/internal/domain"
	"payconnect/internal/store"
)

// Match is the record a notification reference resolved to: exactly one of
// Charge or Refund is set.
type Match struct {
	Charge *domain.Charge
	Refund *domain.Refund
}

// Matcher resolves a provider reference to an internal charge or refund
// using the provider's reference scheme.
type Matcher struct {
	store store.Store
}

// NewMatcher creates a reference matcher backed by the given store.
func NewMatcher(s store.Store) *Matcher {
	return &Matcher{store: s}
}

// Resolve maps a provider reference to a charge or refund. A reference that
// matches nothing returns (nil, nil): an unknown notification is not an
// error, the caller logs and discards it.
func (m *Matcher) Resolve(ctx context.Context, provider, reference string) (*Match, error) {
	if reference == "" {
		return nil, nil
	}

	switch provider {
	case domain.ProviderSmartpay:
		return m.resolveComposite(ctx, reference)
	case domain.ProviderEpdq:
		return m.resolveWithSessionFallback(ctx, reference)
	default:
		// Sandbox and Worldpay send a single opaque transaction id.
		return m.resolveDirect(ctx, reference)
	}
}

// resolveDirect matches the reference against the stored transaction id,
// first on charges, then on refunds.
func (m *Matcher) resolveDirect(ctx context.Context, reference string) (*Match, error) {
	charge, err := m.store.ChargeByGatewayTransactionID(ctx, reference)
	if err == nil {
		return &Match{Charge: charge}, nil
	}
	if !errors.Is(err, domain.ErrChargeNotFound) {
		return nil, err
	}

	refund, err := m.store.RefundByGatewayTransactionID(ctx, reference)
	if err == nil {
		return &Match{Refund: refund}, nil
	}
	if !errors.Is(err, domain.ErrRefundNotFound) {
		return nil, err
	}
	return nil, nil
}

// resolveComposite handles Smartpay's "payId/payIdSub" scheme: the first
// part matches the stored transaction id, the second the stored session id.
func (m *Matcher) resolveComposite(ctx context.Context, reference string) (*Match, error) {
	payID, payIDSub, ok := strings.Cut(reference, "/")
	if !ok || payID == "" || payIDSub == "" {
		return nil, nil
	}

	charge, err := m.store.ChargeByGatewayTransactionID(ctx, payID)
	if err == nil {
		if charge.ProviderSessionID != payIDSub {
			return nil, nil
		}
		return &Match{Charge: charge}, nil
	}
	if !errors.Is(err, domain.ErrChargeNotFound) {
		return nil, err
	}

	refund, err := m.store.RefundByGatewayTransactionID(ctx, payID)
	if err == nil {
		return &Match{Refund: refund}, nil
	}
	if !errors.Is(err, domain.ErrRefundNotFound) {
		return nil, err
	}
	return nil, nil
}

// resolveWithSessionFallback handles providers whose notifications carry a
// PSP-generated reference distinct from the original transaction id: try
// the transaction id first, then the stored secondary reference.
func (m *Matcher) resolveWithSessionFallback(ctx context.Context, reference string) (*Match, error) {
	match, err := m.resolveDirect(ctx, reference)
	if err != nil || match != nil {
		return match, err
	}

	charge, err := m.store.ChargeByProviderSessionID(ctx, reference)
	if err == nil {
		return &Match{Charge: charge}, nil
	}
	if !errors.Is(err, domain.ErrChargeNotFound) {
		return nil, err
	}
	return nil, nil
}

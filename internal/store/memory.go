package store

import (
	"context"
	"sync"
	"time"

	"payconnect/internal/domain"
)

// MemoryStore is an in-memory implementation of Store. The conditional
// updates hold the store mutex for the whole check-and-set, which gives the
// same atomicity the SQL form gets from a single conditional UPDATE.
type MemoryStore struct {
	mu sync.RWMutex

	charges      map[int64]*domain.Charge
	chargeEvents map[int64][]domain.ChargeEvent
	refunds      map[int64]*domain.Refund
	refundEvents map[int64][]domain.RefundEvent
	accounts     map[int64]*domain.GatewayAccount

	nextChargeID  int64
	nextRefundID  int64
	nextAccountID int64
	nextEventID   int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		charges:      make(map[int64]*domain.Charge),
		chargeEvents: make(map[int64][]domain.ChargeEvent),
		refunds:      make(map[int64]*domain.Refund),
		refundEvents: make(map[int64][]domain.RefundEvent),
		accounts:     make(map[int64]*domain.GatewayAccount),
	}
}

func copyCharge(c *domain.Charge) *domain.Charge {
	dup := *c
	return &dup
}

func copyRefund(r *domain.Refund) *domain.Refund {
	dup := *r
	return &dup
}

// CreateCharge stores a new charge and assigns its internal id.
func (s *MemoryStore) CreateCharge(_ context.Context, charge *domain.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextChargeID++
	charge.ID = s.nextChargeID
	s.charges[charge.ID] = copyCharge(charge)
	return nil
}

// ChargeByID retrieves a charge by internal id.
func (s *MemoryStore) ChargeByID(_ context.Context, id int64) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	charge, ok := s.charges[id]
	if !ok {
		return nil, domain.ErrChargeNotFound
	}
	return copyCharge(charge), nil
}

// ChargeByExternalID retrieves a charge by its public external id.
func (s *MemoryStore) ChargeByExternalID(_ context.Context, externalID string) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, charge := range s.charges {
		if charge.ExternalID == externalID {
			return copyCharge(charge), nil
		}
	}
	return nil, domain.ErrChargeNotFound
}

// ChargeByGatewayTransactionID retrieves a charge by the provider reference.
func (s *MemoryStore) ChargeByGatewayTransactionID(_ context.Context, transactionID string) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, charge := range s.charges {
		if charge.GatewayTransactionID != "" && charge.GatewayTransactionID == transactionID {
			return copyCharge(charge), nil
		}
	}
	return nil, domain.ErrChargeNotFound
}

// ChargeByProviderSessionID retrieves a charge by the secondary PSP reference.
func (s *MemoryStore) ChargeByProviderSessionID(_ context.Context, sessionID string) (*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, charge := range s.charges {
		if charge.ProviderSessionID != "" && charge.ProviderSessionID == sessionID {
			return copyCharge(charge), nil
		}
	}
	return nil, domain.ErrChargeNotFound
}

// ChargesByStatus returns charges whose status is in the given set, ordered
// by internal id.
func (s *MemoryStore) ChargesByStatus(_ context.Context, statuses ...domain.ChargeStatus) ([]*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chargesMatching(func(c *domain.Charge) bool {
		return statusIn(c.Status, statuses)
	}), nil
}

// ChargesCreatedBefore returns charges created before cutoff whose status is
// in the given set, ordered by internal id.
func (s *MemoryStore) ChargesCreatedBefore(_ context.Context, cutoff time.Time, statuses ...domain.ChargeStatus) ([]*domain.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chargesMatching(func(c *domain.Charge) bool {
		return c.CreatedDate.Before(cutoff) && statusIn(c.Status, statuses)
	}), nil
}

func (s *MemoryStore) chargesMatching(match func(*domain.Charge) bool) []*domain.Charge {
	var result []*domain.Charge
	for id := int64(1); id <= s.nextChargeID; id++ {
		charge, ok := s.charges[id]
		if ok && match(charge) {
			result = append(result, copyCharge(charge))
		}
	}
	return result
}

func statusIn(status domain.ChargeStatus, set []domain.ChargeStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// SetChargeGatewayReferences stores the provider references on a charge.
func (s *MemoryStore) SetChargeGatewayReferences(_ context.Context, chargeID int64, transactionID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	charge, ok := s.charges[chargeID]
	if !ok {
		return domain.ErrChargeNotFound
	}
	charge.GatewayTransactionID = transactionID
	charge.ProviderSessionID = sessionID
	return nil
}

// SetChargeCardDetails stores the card snapshot on a charge.
func (s *MemoryStore) SetChargeCardDetails(_ context.Context, chargeID int64, brand, lastFour string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	charge, ok := s.charges[chargeID]
	if !ok {
		return domain.ErrChargeNotFound
	}
	charge.CardBrand = brand
	charge.LastFourDigits = lastFour
	return nil
}

// TransitionChargeStatus performs the conditional status update. applied is
// false, with a nil error, when the stored status is no longer in the
// expected set.
func (s *MemoryStore) TransitionChargeStatus(_ context.Context, chargeID int64, expected []domain.ChargeStatus, next domain.ChargeStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	charge, ok := s.charges[chargeID]
	if !ok {
		return false, domain.ErrChargeNotFound
	}
	if !statusIn(charge.Status, expected) {
		return false, nil
	}
	charge.Status = next
	return true, nil
}

// RecordChargeEvent appends to the charge event log.
func (s *MemoryStore) RecordChargeEvent(_ context.Context, chargeID int64, status domain.ChargeStatus, gatewayEventTime *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charges[chargeID]; !ok {
		return domain.ErrChargeNotFound
	}
	s.nextEventID++
	s.chargeEvents[chargeID] = append(s.chargeEvents[chargeID], domain.ChargeEvent{
		ID:               s.nextEventID,
		ChargeID:         chargeID,
		Status:           status,
		RecordedAt:       time.Now().UTC(),
		GatewayEventTime: gatewayEventTime,
	})
	return nil
}

// ChargeEvents returns the event log for a charge in recording order.
func (s *MemoryStore) ChargeEvents(_ context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.chargeEvents[chargeID]
	result := make([]domain.ChargeEvent, len(events))
	copy(result, events)
	return result, nil
}

// HasChargeEvent reports whether the event log already contains an event
// with the given status for the charge.
func (s *MemoryStore) HasChargeEvent(ctx context.Context, chargeID int64, status domain.ChargeStatus) (bool, error) {
	n, err := s.CountChargeEvents(ctx, chargeID, status)
	return n > 0, err
}

// CountChargeEvents counts events with the given status for the charge.
func (s *MemoryStore) CountChargeEvents(_ context.Context, chargeID int64, status domain.ChargeStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.chargeEvents[chargeID] {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

// CreateRefund stores a new refund and assigns its internal id.
func (s *MemoryStore) CreateRefund(_ context.Context, refund *domain.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charges[refund.ChargeID]; !ok {
		return domain.ErrChargeNotFound
	}
	s.nextRefundID++
	refund.ID = s.nextRefundID
	s.refunds[refund.ID] = copyRefund(refund)
	return nil
}

// RefundByID retrieves a refund by internal id.
func (s *MemoryStore) RefundByID(_ context.Context, id int64) (*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refund, ok := s.refunds[id]
	if !ok {
		return nil, domain.ErrRefundNotFound
	}
	return copyRefund(refund), nil
}

// RefundByExternalID retrieves a refund by its public external id.
func (s *MemoryStore) RefundByExternalID(_ context.Context, externalID string) (*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, refund := range s.refunds {
		if refund.ExternalID == externalID {
			return copyRefund(refund), nil
		}
	}
	return nil, domain.ErrRefundNotFound
}

// RefundByGatewayTransactionID retrieves a refund by the provider reference.
func (s *MemoryStore) RefundByGatewayTransactionID(_ context.Context, transactionID string) (*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, refund := range s.refunds {
		if refund.GatewayTransactionID != "" && refund.GatewayTransactionID == transactionID {
			return copyRefund(refund), nil
		}
	}
	return nil, domain.ErrRefundNotFound
}

// RefundsByChargeID returns all refunds for a charge, ordered by internal id.
func (s *MemoryStore) RefundsByChargeID(_ context.Context, chargeID int64) ([]*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refundsMatching(func(r *domain.Refund) bool {
		return r.ChargeID == chargeID
	}), nil
}

// RefundsByStatus returns refunds whose status is in the given set, ordered
// by internal id.
func (s *MemoryStore) RefundsByStatus(_ context.Context, statuses ...domain.RefundStatus) ([]*domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refundsMatching(func(r *domain.Refund) bool {
		for _, status := range statuses {
			if r.Status == status {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) refundsMatching(match func(*domain.Refund) bool) []*domain.Refund {
	var result []*domain.Refund
	for id := int64(1); id <= s.nextRefundID; id++ {
		refund, ok := s.refunds[id]
		if ok && match(refund) {
			result = append(result, copyRefund(refund))
		}
	}
	return result
}

// SetRefundGatewayTransactionID stores the provider reference on a refund.
func (s *MemoryStore) SetRefundGatewayTransactionID(_ context.Context, refundID int64, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[refundID]
	if !ok {
		return domain.ErrRefundNotFound
	}
	refund.GatewayTransactionID = transactionID
	return nil
}

// TransitionRefundStatus performs the conditional status update for refunds.
func (s *MemoryStore) TransitionRefundStatus(_ context.Context, refundID int64, expected []domain.RefundStatus, next domain.RefundStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[refundID]
	if !ok {
		return false, domain.ErrRefundNotFound
	}
	match := false
	for _, status := range expected {
		if refund.Status == status {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	refund.Status = next
	return true, nil
}

// RecordRefundEvent appends to the refund event log.
func (s *MemoryStore) RecordRefundEvent(_ context.Context, refundID int64, status domain.RefundStatus, gatewayEventTime *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refunds[refundID]; !ok {
		return domain.ErrRefundNotFound
	}
	s.nextEventID++
	s.refundEvents[refundID] = append(s.refundEvents[refundID], domain.RefundEvent{
		ID:               s.nextEventID,
		RefundID:         refundID,
		Status:           status,
		RecordedAt:       time.Now().UTC(),
		GatewayEventTime: gatewayEventTime,
	})
	return nil
}

// RefundEvents returns the event log for a refund in recording order.
func (s *MemoryStore) RefundEvents(_ context.Context, refundID int64) ([]domain.RefundEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.refundEvents[refundID]
	result := make([]domain.RefundEvent, len(events))
	copy(result, events)
	return result, nil
}

// HasRefundEvent reports whether the event log already contains an event
// with the given status for the refund.
func (s *MemoryStore) HasRefundEvent(_ context.Context, refundID int64, status domain.RefundStatus) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.refundEvents[refundID] {
		if e.Status == status {
			return true, nil
		}
	}
	return false, nil
}

// CreateAccount stores a gateway account, assigning an id if unset.
func (s *MemoryStore) CreateAccount(_ context.Context, account *domain.GatewayAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == 0 {
		s.nextAccountID++
		account.ID = s.nextAccountID
	} else if account.ID > s.nextAccountID {
		s.nextAccountID = account.ID
	}
	dup := *account
	s.accounts[account.ID] = &dup
	return nil
}

// AccountByID retrieves a gateway account.
func (s *MemoryStore) AccountByID(_ context.Context, id int64) (*domain.GatewayAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	dup := *account
	return &dup, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

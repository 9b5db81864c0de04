package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/store"
)

// RefundConfig tunes the refund submitter.
type RefundConfig struct {
	Workers      int
	QueueSize    int
	PollInterval time.Duration
}

// RefundSubmitter submits newly created refunds to the gateway. The refund
// graph has no separate claim status: the CREATED to REFUND_SUBMITTED
// conditional update is the claim, so exactly one worker submits each
// refund.
type RefundSubmitter struct {
	store   store.Store
	clients gateway.ClientRegistry
	cfg     RefundConfig
	logger  *slog.Logger
	pool    *Pool
}

// NewRefundSubmitter creates the refund submitter.
func NewRefundSubmitter(s store.Store, clients gateway.ClientRegistry, cfg RefundConfig, logger *slog.Logger) *RefundSubmitter {
	r := &RefundSubmitter{store: s, clients: clients, cfg: cfg, logger: logger}
	r.pool = NewPool(cfg.QueueSize, r.process, logger)
	return r
}

// Run polls until the context is cancelled, then drains the pool.
func (r *RefundSubmitter) Run(ctx context.Context) {
	r.pool.Start(ctx, r.cfg.Workers)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.pool.Shutdown()
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *RefundSubmitter) poll(ctx context.Context) {
	refunds, err := r.store.RefundsByStatus(ctx, domain.RefundCreated)
	if err != nil {
		r.logger.Error("refund poll failed", "error", err)
		return
	}
	for _, refund := range refunds {
		if !r.pool.Submit(refund.ID) {
			return
		}
	}
}

func (r *RefundSubmitter) process(ctx context.Context, refundID int64) {
	if err := r.Process(ctx, refundID); err != nil {
		r.logger.Error("refund processing failed", "refund_id", refundID, "error", err)
	}
}

// Process submits one refund. A lost claim and gateway failures are handled
// outcomes with a nil error.
func (r *RefundSubmitter) Process(ctx context.Context, refundID int64) error {
	refund, err := r.store.RefundByID(ctx, refundID)
	if err != nil {
		return err
	}

	claimed, err := r.store.TransitionRefundStatus(ctx, refundID,
		[]domain.RefundStatus{domain.RefundCreated}, domain.RefundSubmitted)
	if err != nil {
		return fmt.Errorf("claim refund for submission: %w", err)
	}
	if !claimed {
		return nil
	}

	charge, err := r.store.ChargeByID(ctx, refund.ChargeID)
	if err != nil {
		return err
	}
	account, err := r.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return err
	}
	client, err := r.clients.For(account.PaymentProvider)
	if err != nil {
		return err
	}

	resp, callErr := client.Refund(ctx, *account, charge.GatewayTransactionID, refund.Amount)
	if callErr != nil {
		r.logger.Warn("refund rejected by gateway",
			"refund_external_id", refund.ExternalID, "error", callErr)
		return r.fail(ctx, refundID)
	}

	if resp.TransactionID != "" {
		if err := r.store.SetRefundGatewayTransactionID(ctx, refundID, resp.TransactionID); err != nil {
			return fmt.Errorf("store refund reference: %w", err)
		}
	}
	if err := r.store.RecordRefundEvent(ctx, refundID, domain.RefundSubmitted, nil); err != nil {
		return fmt.Errorf("record refund submitted event: %w", err)
	}

	if account.Variant() == domain.VariantSync {
		// Synchronous gateways answer in-line; no notification follows.
		applied, err := r.store.TransitionRefundStatus(ctx, refundID,
			[]domain.RefundStatus{domain.RefundSubmitted}, domain.RefundSucceeded)
		if err != nil {
			return fmt.Errorf("settle sync refund: %w", err)
		}
		if applied {
			if err := r.store.RecordRefundEvent(ctx, refundID, domain.RefundSucceeded, nil); err != nil {
				return fmt.Errorf("record refund succeeded event: %w", err)
			}
		}
	}
	return nil
}

func (r *RefundSubmitter) fail(ctx context.Context, refundID int64) error {
	applied, err := r.store.TransitionRefundStatus(ctx, refundID,
		[]domain.RefundStatus{domain.RefundSubmitted}, domain.RefundError)
	if err != nil {
		return fmt.Errorf("mark refund error: %w", err)
	}
	if !applied {
		return nil
	}
	if err := r.store.RecordRefundEvent(ctx, refundID, domain.RefundError, nil); err != nil {
		return fmt.Errorf("record refund error event: %w", err)
	}
	return nil
}

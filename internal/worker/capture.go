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

// CaptureConfig tunes the capture engine.
type CaptureConfig struct {
	Workers      int
	QueueSize    int
	PollInterval time.Duration
	// MaxRetries bounds the total number of gateway capture attempts. A
	// retryable failure on the final attempt parks the charge in
	// CAPTURE_ERROR.
	MaxRetries int
	// RetryBackoff is the minimum age of the last retry event before the
	// charge is attempted again.
	RetryBackoff time.Duration
}

// CaptureEngine drives approved charges through capture. Each cycle it
// lists charges in CAPTURE_APPROVED or CAPTURE_APPROVED_RETRY and feeds
// them to the pool; each worker claims its charge into CAPTURE_READY before
// calling the gateway, so concurrent engines never double-capture.
type CaptureEngine struct {
	store   store.Store
	clients gateway.ClientRegistry
	cfg     CaptureConfig
	logger  *slog.Logger
	pool    *Pool
}

// NewCaptureEngine creates the capture engine.
func NewCaptureEngine(s store.Store, clients gateway.ClientRegistry, cfg CaptureConfig, logger *slog.Logger) *CaptureEngine {
	e := &CaptureEngine{store: s, clients: clients, cfg: cfg, logger: logger}
	e.pool = NewPool(cfg.QueueSize, e.process, logger)
	return e
}

// Run polls until the context is cancelled, then drains the pool.
func (e *CaptureEngine) Run(ctx context.Context) {
	e.pool.Start(ctx, e.cfg.Workers)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.pool.Shutdown()
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *CaptureEngine) poll(ctx context.Context) {
	charges, err := e.store.ChargesByStatus(ctx,
		domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry)
	if err != nil {
		e.logger.Error("capture poll failed", "error", err)
		return
	}
	for _, charge := range charges {
		if !e.pool.Submit(charge.ID) {
			// Queue full; the rest wait for the next poll.
			return
		}
	}
}

func (e *CaptureEngine) process(ctx context.Context, chargeID int64) {
	if err := e.Capture(ctx, chargeID); err != nil {
		e.logger.Error("capture processing failed", "charge_id", chargeID, "error", err)
	}
}

// Capture attempts to capture one charge. Losing the claim, waiting out a
// backoff, and gateway failures are all handled outcomes with a nil error;
// the returned error is reserved for store failures.
func (e *CaptureEngine) Capture(ctx context.Context, chargeID int64) error {
	charge, err := e.store.ChargeByID(ctx, chargeID)
	if err != nil {
		return err
	}

	if charge.Status == domain.StatusCaptureApprovedRetry && e.cfg.RetryBackoff > 0 {
		due, err := e.retryDue(ctx, chargeID)
		if err != nil {
			return err
		}
		if !due {
			return nil
		}
	}

	claimed, err := e.store.TransitionChargeStatus(ctx, chargeID,
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureReady)
	if err != nil {
		return fmt.Errorf("claim charge for capture: %w", err)
	}
	if !claimed {
		return nil
	}

	account, err := e.store.AccountByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return err
	}
	client, err := e.clients.For(account.PaymentProvider)
	if err != nil {
		return err
	}

	resp, callErr := client.Capture(ctx, *account, charge.GatewayTransactionID)
	if callErr != nil {
		return e.resolveFailure(ctx, charge, callErr)
	}
	// Clients report rejections as errors, but a failure status carried in
	// the response body counts as one too.
	if status, ok := gateway.ChargeStatusFor(account.PaymentProvider, resp.ProviderStatus); ok && status == domain.StatusCaptureError {
		return e.resolveFailure(ctx, charge,
			gateway.NewTerminalError("capture", account.PaymentProvider, "provider reported "+resp.ProviderStatus))
	}

	if account.Variant() == domain.VariantSync {
		// Synchronous gateways confirm in-line; no notification follows.
		return e.settle(ctx, chargeID, domain.StatusCaptured)
	}
	return e.settle(ctx, chargeID, domain.StatusCaptureSubmitted)
}

// resolveFailure moves a claimed charge out of CAPTURE_READY after a failed
// gateway call: back to retry while budget remains, otherwise to
// CAPTURE_ERROR.
func (e *CaptureEngine) resolveFailure(ctx context.Context, charge *domain.Charge, callErr error) error {
	log := e.logger.With("charge_external_id", charge.ExternalID, "error", callErr)

	if !gateway.IsRetryable(callErr) {
		log.Warn("capture rejected by gateway")
		return e.settle(ctx, charge.ID, domain.StatusCaptureError)
	}

	// Prior attempts are the recorded retry events; this failed call makes
	// one more. The count lives in the event log so the budget survives
	// restarts.
	prior, err := e.store.CountChargeEvents(ctx, charge.ID, domain.StatusCaptureApprovedRetry)
	if err != nil {
		return err
	}
	attempts := prior + 1
	if attempts >= e.cfg.MaxRetries {
		log.Warn("capture retry budget exhausted", "attempts", attempts)
		return e.settle(ctx, charge.ID, domain.StatusCaptureError)
	}

	log.Info("capture failed, scheduling retry", "attempts", attempts)
	return e.settle(ctx, charge.ID, domain.StatusCaptureApprovedRetry)
}

// settle resolves the CAPTURE_READY claim to the given status and records
// the event.
func (e *CaptureEngine) settle(ctx context.Context, chargeID int64, target domain.ChargeStatus) error {
	applied, err := e.store.TransitionChargeStatus(ctx, chargeID,
		[]domain.ChargeStatus{domain.StatusCaptureReady}, target)
	if err != nil {
		return fmt.Errorf("settle capture claim to %s: %w", target, err)
	}
	if !applied {
		return nil
	}
	if err := e.store.RecordChargeEvent(ctx, chargeID, target, nil); err != nil {
		return fmt.Errorf("record %s event: %w", target, err)
	}
	return nil
}

// retryDue reports whether the charge's last retry event is older than the
// backoff.
func (e *CaptureEngine) retryDue(ctx context.Context, chargeID int64) (bool, error) {
	events, err := e.store.ChargeEvents(ctx, chargeID)
	if err != nil {
		return false, err
	}
	var last time.Time
	for _, event := range events {
		if event.Status == domain.StatusCaptureApprovedRetry && event.RecordedAt.After(last) {
			last = event.RecordedAt
		}
	}
	if last.IsZero() {
		return true, nil
	}
	return time.Since(last) >= e.cfg.RetryBackoff, nil
}

package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"payconnect/internal/domain"
)

// Magic card numbers the sandbox recognises. Anything else authorises
// successfully.
const (
	SandboxDeclinedCard = "4000000000000002"
	SandboxErrorCard    = "4000000000000119"
	SandboxTimeoutCard  = "4000000000000259"
	SandboxGoodCard     = "4242424242424242"
)

// Sandbox is the synchronous test gateway: every call answers in-line with
// a deterministic outcome chosen by the card number, and no notifications
// are ever sent.
type Sandbox struct{}

// NewSandbox creates a sandbox gateway client.
func NewSandbox() *Sandbox { return &Sandbox{} }

// Authorise answers immediately based on the card number.
func (g *Sandbox) Authorise(_ context.Context, _ domain.GatewayAccount, _ *domain.Charge, card CardDetails) (*AuthoriseResponse, error) {
	number := strings.ReplaceAll(card.CardNumber, " ", "")
	switch number {
	case SandboxDeclinedCard:
		// A decline is a definitive provider answer, not a call failure.
		return &AuthoriseResponse{ProviderStatus: "REFUSED"}, nil
	case SandboxErrorCard:
		return nil, NewTerminalError("authorise", domain.ProviderSandbox, "processing error")
	case SandboxTimeoutCard:
		return nil, NewRetryableError("authorise", domain.ProviderSandbox, "gateway timeout")
	}
	return &AuthoriseResponse{
		ProviderStatus: "AUTHORISED",
		TransactionID:  uuid.NewString(),
	}, nil
}

// Capture always succeeds for an authorised sandbox transaction.
func (g *Sandbox) Capture(_ context.Context, _ domain.GatewayAccount, providerReference string) (*CaptureResponse, error) {
	if providerReference == "" {
		return nil, NewTerminalError("capture", domain.ProviderSandbox, "missing transaction reference")
	}
	return &CaptureResponse{ProviderStatus: "CAPTURED"}, nil
}

// Refund always succeeds for a captured sandbox transaction.
func (g *Sandbox) Refund(_ context.Context, _ domain.GatewayAccount, providerReference string, amount int64) (*RefundResponse, error) {
	if providerReference == "" {
		return nil, NewTerminalError("refund", domain.ProviderSandbox, "missing transaction reference")
	}
	if amount <= 0 {
		return nil, NewTerminalError("refund", domain.ProviderSandbox, "invalid refund amount")
	}
	return &RefundResponse{
		ProviderStatus: "REFUNDED",
		TransactionID:  uuid.NewString(),
	}, nil
}

// Cancel always succeeds for a sandbox transaction.
func (g *Sandbox) Cancel(_ context.Context, _ domain.GatewayAccount, providerReference string) (*CancelResponse, error) {
	if providerReference == "" {
		return nil, NewTerminalError("cancel", domain.ProviderSandbox, "missing transaction reference")
	}
	return &CancelResponse{ProviderStatus: "CANCELLED"}, nil
}

// Package gateway defines the client contract the connector uses to talk to
// payment providers, the sandbox implementation of it, and the per-provider
// status-code mappings used when reconciling notifications. The byte-level
// wire protocols live behind the Client interface; nothing in this module
// parses provider XML or SOAP.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"payconnect/internal/domain"
)

// CardDetails is the card snapshot passed to authorise. Full card data never
// touches persistent storage; only brand and last four digits survive on the
// charge record.
type CardDetails struct {
	CardNumber     string
	CardholderName string
	ExpiryDate     string // MM/YY
	CVC            string
}

// AuthoriseResponse is the outcome of an authorisation call.
type AuthoriseResponse struct {
	// ProviderStatus is the provider's own status string for the attempt.
	ProviderStatus string
	// TransactionID is the provider's reference for the transaction.
	TransactionID string
	// SessionID is the secondary PSP reference, where the provider issues
	// one.
	SessionID string
}

// CaptureResponse is the outcome of a capture call.
type CaptureResponse struct {
	ProviderStatus string
}

// RefundResponse is the outcome of a refund submission.
type RefundResponse struct {
	ProviderStatus string
	TransactionID  string
}

// CancelResponse is the outcome of a cancel call.
type CancelResponse struct {
	ProviderStatus string
}

// Client performs gateway operations for one provider. Implementations may
// block on network I/O; callers must hold the relevant status claim before
// invoking any money-affecting operation and must never call a Client while
// holding an in-process lock.
type Client interface {
	Authorise(ctx context.Context, account domain.GatewayAccount, charge *domain.Charge, card CardDetails) (*AuthoriseResponse, error)
	Capture(ctx context.Context, account domain.GatewayAccount, providerReference string) (*CaptureResponse, error)
	Refund(ctx context.Context, account domain.GatewayAccount, providerReference string, amount int64) (*RefundResponse, error)
	Cancel(ctx context.Context, account domain.GatewayAccount, providerReference string) (*CancelResponse, error)
}

// ClientRegistry selects the Client for a payment provider. Built once at
// startup; safe for concurrent reads.
type ClientRegistry map[string]Client

// For returns the client registered for a provider.
func (r ClientRegistry) For(provider string) (Client, error) {
	client, ok := r[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway client registered for provider %q", provider)
	}
	return client, nil
}

// Error is a gateway operation failure. Retryable distinguishes transient
// faults (timeouts, 5xx-class responses) from definitive provider
// rejections, which must never be retried.
type Error struct {
	Op        string
	Provider  string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("gateway %s %s failed (%s): %s", e.Provider, e.Op, kind, e.Message)
}

// NewRetryableError creates a transient gateway failure.
func NewRetryableError(op, provider, message string) *Error {
	return &Error{Op: op, Provider: provider, Message: message, Retryable: true}
}

// NewTerminalError creates a definitive gateway failure.
func NewTerminalError(op, provider, message string) *Error {
	return &Error{Op: op, Provider: provider, Message: message, Retryable: false}
}

// IsRetryable reports whether err is a gateway error worth retrying.
// Non-gateway errors (context cancellation, transport wrapping) are treated
// as retryable: the operation may succeed on a later attempt and the retry
// budget still bounds them.
func IsRetryable(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return true
}

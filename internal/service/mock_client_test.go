package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payconnect/internal/domain"
	"payconnect/internal/gateway"
)

// MockClient is a mock implementation of gateway.Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Authorise(ctx context.Context, account domain.GatewayAccount, charge *domain.Charge, card gateway.CardDetails) (*gateway.AuthoriseResponse, error) {
	args := m.Called(ctx, account, charge, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AuthoriseResponse), args.Error(1)
}

func (m *MockClient) Capture(ctx context.Context, account domain.GatewayAccount, providerReference string) (*gateway.CaptureResponse, error) {
	args := m.Called(ctx, account, providerReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CaptureResponse), args.Error(1)
}

func (m *MockClient) Refund(ctx context.Context, account domain.GatewayAccount, providerReference string, amount int64) (*gateway.RefundResponse, error) {
	args := m.Called(ctx, account, providerReference, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResponse), args.Error(1)
}

func (m *MockClient) Cancel(ctx context.Context, account domain.GatewayAccount, providerReference string) (*gateway.CancelResponse, error) {
	args := m.Called(ctx, account, providerReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CancelResponse), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event string, loan *domain.LoanApplication) error {
	args := m.Called(ctx, event, loan)
	return args.Error(0)
}

type MockCardGateway struct {
	mock.Mock
}

func (m *MockCardGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

type MockBlockchainObserver struct {
	mock.Mock
}

func (m *MockBlockchainObserver) LookupTransactions(ctx context.Context, q payment.TxQuery) ([]payment.ObservedTx, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.ObservedTx), args.Error(1)
}

type MockBankingRail struct {
	mock.Mock
}

func (m *MockBankingRail) Transfer(ctx context.Context, req payment.TransferRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

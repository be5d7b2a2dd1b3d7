package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/money"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Save(ctx context.Context, loan *domain.Loan, transactions ...*domain.Transaction) error {
	args := m.Called(ctx, loan, transactions)
	return args.Error(0)
}

func (m *MockLoanRepository) ListLoanIDsByStatus(ctx context.Context, status string) ([]string, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

type MockOutstandingCache struct {
	mock.Mock
}

func (m *MockOutstandingCache) Get(ctx context.Context, loanID string) (money.Money, bool, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(money.Money), args.Bool(1), args.Error(2)
}

func (m *MockOutstandingCache) Set(ctx context.Context, loanID string, outstanding money.Money) error {
	args := m.Called(ctx, loanID, outstanding)
	return args.Error(0)
}

func (m *MockOutstandingCache) Invalidate(ctx context.Context, loanID string) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

// MockLocker counts releases so tests can check every acquired lock is freed
type MockLocker struct {
	mock.Mock
	Released int
}

func (m *MockLocker) Acquire(ctx context.Context, loanID string) (func(context.Context) error, error) {
	args := m.Called(ctx, loanID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.Released++
		return nil
	}, nil
}

package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/money"
)

type MockServicingService struct {
	mock.Mock
}

func (m *MockServicingService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, request)
	return loanResult(args)
}

func (m *MockServicingService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanResult(args)
}

func (m *MockServicingService) GetSchedule(ctx context.Context, loanID string) ([]domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Installment), args.Error(1)
}

func (m *MockServicingService) GetOutstanding(ctx context.Context, loanID string) (money.Money, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(money.Money), args.Error(1)
}

func (m *MockServicingService) IsDelinquent(ctx context.Context, loanID string) (bool, int, error) {
	args := m.Called(ctx, loanID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockServicingService) AddCharge(ctx context.Context, loanID string, request *domain.AddChargeRequest) (*domain.LoanCharge, error) {
	args := m.Called(ctx, loanID, request)
	return chargeResult(args)
}

func (m *MockServicingService) UpdateCharge(ctx context.Context, loanID string, chargeID uuid.UUID, request *domain.UpdateChargeRequest) (*domain.LoanCharge, error) {
	args := m.Called(ctx, loanID, chargeID, request)
	return chargeResult(args)
}

func (m *MockServicingService) RemoveCharge(ctx context.Context, loanID string, chargeID uuid.UUID) error {
	args := m.Called(ctx, loanID, chargeID)
	return args.Error(0)
}

func (m *MockServicingService) MakePayment(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, loanID, request)
	return transactionResult(args)
}

func (m *MockServicingService) Waive(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, loanID, request)
	return transactionResult(args)
}

func (m *MockServicingService) WriteOff(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, loanID, request)
	return transactionResult(args)
}

func (m *MockServicingService) ReverseTransaction(ctx context.Context, loanID string, transactionID uuid.UUID, date time.Time) (*domain.Transaction, error) {
	args := m.Called(ctx, loanID, transactionID, date)
	return transactionResult(args)
}

func (m *MockServicingService) Reschedule(ctx context.Context, loanID string, request *domain.RescheduleRequest) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, request)
	return loanResult(args)
}

func (m *MockServicingService) ReprocessActiveLoans(ctx context.Context) (*domain.ReprocessSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReprocessSummary), args.Error(1)
}

func loanResult(args mock.Arguments) (*domain.Loan, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func chargeResult(args mock.Arguments) (*domain.LoanCharge, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanCharge), args.Error(1)
}

func transactionResult(args mock.Arguments) (*domain.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

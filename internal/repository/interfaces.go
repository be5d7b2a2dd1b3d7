package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/servicing-engine/internal/domain"
)

// LoanRepository persists the loan aggregate: the loan, its installments and
// its charges are always written together.
type LoanRepository interface {
	// Create inserts a new loan with its schedule and charges
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID loads the full aggregate; sql.ErrNoRows when absent
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// Save replaces the stored aggregate and upserts the given transactions
	// in one database transaction
	Save(ctx context.Context, loan *domain.Loan, transactions ...*domain.Transaction) error

	// ListLoanIDsByStatus returns the business IDs of loans in a status
	ListLoanIDsByStatus(ctx context.Context, status string) ([]string, error)
}

// TransactionRepository reads transactions recorded through LoanRepository.Save
type TransactionRepository interface {
	// GetByID retrieves one transaction; sql.ErrNoRows when absent
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// GetByLoanID retrieves a loan's transactions in the order they were made
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error)
}

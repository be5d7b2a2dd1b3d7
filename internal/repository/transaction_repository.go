package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/servicing-engine/internal/domain"
)

const selectTransactionColumns = `
	SELECT id, loan_id, type, amount, currency, unallocated, transaction_date,
		allocations, reversed, reversed_on, created_at
	FROM transactions
`

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var row transactionRow
	if err := r.db.GetContext(ctx, &row, selectTransactionColumns+` WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *transactionRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error) {
	var rows []transactionRow
	query := selectTransactionColumns + ` WHERE loan_id = $1 ORDER BY transaction_date, created_at`
	if err := r.db.SelectContext(ctx, &rows, query, loanID); err != nil {
		return nil, err
	}

	transactions := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

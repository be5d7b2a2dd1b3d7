package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/tests/fixtures"
)

var transactionColumns = []string{
	"id", "loan_id", "type", "amount", "currency", "unallocated", "transaction_date",
	"allocations", "reversed", "reversed_on", "created_at",
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	id, loanID := uuid.New(), uuid.New()
	var portions domain.Portions
	portions.Add(domain.ComponentInterest, fixtures.USD("10.00"))
	portions.Add(domain.ComponentPrincipal, fixtures.USD("90.00"))
	allocations := []domain.InstallmentAllocation{{InstallmentNumber: 1, Portions: portions}}
	reversedOn := fixtures.Date(2024, time.February, 3)

	mock.ExpectQuery("FROM transactions").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(transactionColumns).AddRow(
			id.String(), loanID.String(), "repayment", "100.00", "USD", "0", fixtures.Date(2024, time.February, 1),
			mustJSON(t, allocations), true, reversedOn, fixtures.Disbursed,
		))

	tx, err := repo.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, loanID, tx.LoanID)
	assert.Equal(t, domain.TransactionRepayment, tx.Type)
	assert.True(t, tx.Amount.Equal(fixtures.USD("100.00")))
	assert.True(t, tx.Unallocated.IsZero())
	assert.True(t, tx.Reversed)
	require.NotNil(t, tx.ReversedOn)
	assert.True(t, tx.ReversedOn.Equal(reversedOn))
	require.Len(t, tx.Allocations, 1)
	assert.True(t, tx.Allocations[0].Portions.Principal.Equal(fixtures.USD("90.00")))
	assert.True(t, tx.Allocated().Equal(fixtures.USD("100.00")))
}

func TestTransactionRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	id := uuid.New()

	mock.ExpectQuery("FROM transactions").WithArgs(id).WillReturnRows(sqlmock.NewRows(transactionColumns))

	tx, err := repo.GetByID(context.Background(), id)

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransactionRepository_GetByLoanID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	loanID := uuid.New()

	rows := sqlmock.NewRows(transactionColumns).
		AddRow(uuid.NewString(), loanID.String(), "repayment", "50.00", "USD", "0", fixtures.Date(2024, time.January, 15),
			[]byte("[]"), false, nil, fixtures.Disbursed).
		AddRow(uuid.NewString(), loanID.String(), "waiver", "3.00", "USD", "0", fixtures.Date(2024, time.February, 2),
			[]byte("[]"), false, nil, fixtures.Disbursed)
	mock.ExpectQuery("FROM transactions").WithArgs(loanID).WillReturnRows(rows)

	transactions, err := repo.GetByLoanID(context.Background(), loanID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, transactions, 2)
	assert.Equal(t, domain.TransactionRepayment, transactions[0].Type)
	assert.Equal(t, domain.TransactionWaiver, transactions[1].Type)
	assert.Nil(t, transactions[1].ReversedOn)
	assert.Empty(t, transactions[1].Allocations)
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/servicing-engine/internal/domain"
)

const (
	insertLoanQuery = `
		INSERT INTO loans (id, loan_id, currency, principal, interest_rate, frequency, disbursement_date,
			interest_charged_from, status, interest_recalculation, vat_percentage, disbursements,
			reschedule_dates, created_at, updated_at)
		VALUES (:id, :loan_id, :currency, :principal, :interest_rate, :frequency, :disbursement_date,
			:interest_charged_from, :status, :interest_recalculation, :vat_percentage, :disbursements,
			:reschedule_dates, :created_at, :updated_at)
	`

	updateLoanQuery = `
		UPDATE loans
		SET interest_rate = :interest_rate, status = :status, interest_charged_from = :interest_charged_from,
			interest_recalculation = :interest_recalculation, vat_percentage = :vat_percentage,
			disbursements = :disbursements, reschedule_dates = :reschedule_dates, updated_at = :updated_at
		WHERE id = :id
	`

	insertInstallmentQuery = `
		INSERT INTO installments (loan_id, number, due_date, obligations_met, data)
		VALUES (:loan_id, :number, :due_date, :obligations_met, :data)
	`

	insertChargeQuery = `
		INSERT INTO loan_charges (id, loan_id, position, active, data)
		VALUES (:id, :loan_id, :position, :active, :data)
	`

	upsertTransactionQuery = `
		INSERT INTO transactions (id, loan_id, type, amount, currency, unallocated, transaction_date,
			allocations, reversed, reversed_on, created_at)
		VALUES (:id, :loan_id, :type, :amount, :currency, :unallocated, :transaction_date,
			:allocations, :reversed, :reversed_on, :created_at)
		ON CONFLICT (id) DO UPDATE
		SET allocations = EXCLUDED.allocations, unallocated = EXCLUDED.unallocated,
			reversed = EXCLUDED.reversed, reversed_on = EXCLUDED.reversed_on
	`
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	row, err := newLoanRow(loan)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertLoanQuery, row); err != nil {
		return err
	}
	if err = writeChildren(ctx, tx, loan); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, loan_id, currency, principal, interest_rate, frequency, disbursement_date,
			interest_charged_from, status, interest_recalculation, vat_percentage, disbursements,
			reschedule_dates, created_at, updated_at
		FROM loans
		WHERE loan_id = $1
	`

	var row loanRow
	if err := r.db.GetContext(ctx, &row, query, loanID); err != nil {
		return nil, err
	}
	loan, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	var installments []installmentRow
	err = r.db.SelectContext(ctx, &installments, `
		SELECT loan_id, number, due_date, obligations_met, data
		FROM installments
		WHERE loan_id = $1
		ORDER BY number
	`, loan.ID)
	if err != nil {
		return nil, err
	}
	for _, ir := range installments {
		inst, err := ir.toDomain()
		if err != nil {
			return nil, err
		}
		loan.Installments = append(loan.Installments, inst)
	}

	var charges []chargeRow
	err = r.db.SelectContext(ctx, &charges, `
		SELECT id, loan_id, position, active, data
		FROM loan_charges
		WHERE loan_id = $1
		ORDER BY position
	`, loan.ID)
	if err != nil {
		return nil, err
	}
	for _, cr := range charges {
		ch, err := cr.toDomain()
		if err != nil {
			return nil, err
		}
		loan.Charges = append(loan.Charges, ch)
	}

	return loan, nil
}

func (r *loanRepository) Save(ctx context.Context, loan *domain.Loan, transactions ...*domain.Transaction) error {
	loan.UpdatedAt = time.Now()
	row, err := newLoanRow(loan)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, updateLoanQuery, row); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM installments WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM loan_charges WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	if err = writeChildren(ctx, tx, loan); err != nil {
		return err
	}

	for _, t := range transactions {
		tr, err := newTransactionRow(t)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, upsertTransactionQuery, tr); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) ListLoanIDsByStatus(ctx context.Context, status string) ([]string, error) {
	query := `
		SELECT loan_id
		FROM loans
		WHERE status = $1
		ORDER BY loan_id
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, status); err != nil {
		return nil, err
	}
	return ids, nil
}

func writeChildren(ctx context.Context, tx *sqlx.Tx, loan *domain.Loan) error {
	for _, inst := range loan.Installments {
		row, err := newInstallmentRow(loan.ID, inst)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, insertInstallmentQuery, row); err != nil {
			return err
		}
	}

	for i, ch := range loan.Charges {
		row, err := newChargeRow(loan.ID, i, ch)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, insertChargeQuery, row); err != nil {
			return err
		}
	}
	return nil
}

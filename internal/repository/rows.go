package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Installment ledgers, charge breakdowns and transaction allocations are
// stored as jsonb next to the columns queries filter on.

type loanRow struct {
	ID                    uuid.UUID       `db:"id"`
	LoanID                string          `db:"loan_id"`
	Currency              string          `db:"currency"`
	Principal             decimal.Decimal `db:"principal"`
	InterestRate          decimal.Decimal `db:"interest_rate"`
	Frequency             string          `db:"frequency"`
	DisbursementDate      time.Time       `db:"disbursement_date"`
	InterestChargedFrom   sql.NullTime    `db:"interest_charged_from"`
	Status                string          `db:"status"`
	InterestRecalculation bool            `db:"interest_recalculation"`
	VATPercentage         decimal.Decimal `db:"vat_percentage"`
	Disbursements         []byte          `db:"disbursements"`
	RescheduleDates       []byte          `db:"reschedule_dates"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

type installmentRow struct {
	LoanID         uuid.UUID `db:"loan_id"`
	Number         int       `db:"number"`
	DueDate        time.Time `db:"due_date"`
	ObligationsMet bool      `db:"obligations_met"`
	Data           []byte    `db:"data"`
}

type chargeRow struct {
	ID       uuid.UUID `db:"id"`
	LoanID   uuid.UUID `db:"loan_id"`
	Position int       `db:"position"`
	Active   bool      `db:"active"`
	Data     []byte    `db:"data"`
}

type transactionRow struct {
	ID              uuid.UUID       `db:"id"`
	LoanID          uuid.UUID       `db:"loan_id"`
	Type            string          `db:"type"`
	Amount          decimal.Decimal `db:"amount"`
	Currency        string          `db:"currency"`
	Unallocated     decimal.Decimal `db:"unallocated"`
	TransactionDate time.Time       `db:"transaction_date"`
	Allocations     []byte          `db:"allocations"`
	Reversed        bool            `db:"reversed"`
	ReversedOn      sql.NullTime    `db:"reversed_on"`
	CreatedAt       time.Time       `db:"created_at"`
}

func newLoanRow(loan *domain.Loan) (loanRow, error) {
	disbursements, err := json.Marshal(loan.Disbursements)
	if err != nil {
		return loanRow{}, fmt.Errorf("encode disbursements: %w", err)
	}
	rescheduleDates, err := json.Marshal(loan.RescheduleDates)
	if err != nil {
		return loanRow{}, fmt.Errorf("encode reschedule dates: %w", err)
	}

	row := loanRow{
		ID:                    loan.ID,
		LoanID:                loan.LoanID,
		Currency:              string(loan.Currency),
		Principal:             loan.Principal.Amount(),
		InterestRate:          loan.InterestRate,
		Frequency:             string(loan.Frequency),
		DisbursementDate:      loan.DisbursementDate,
		Status:                loan.Status,
		InterestRecalculation: loan.InterestRecalculation,
		VATPercentage:         loan.VATPercentage,
		Disbursements:         disbursements,
		RescheduleDates:       rescheduleDates,
		CreatedAt:             loan.CreatedAt,
		UpdatedAt:             loan.UpdatedAt,
	}
	if loan.InterestChargedFrom != nil {
		row.InterestChargedFrom = sql.NullTime{Time: *loan.InterestChargedFrom, Valid: true}
	}
	return row, nil
}

func (r loanRow) toDomain() (*domain.Loan, error) {
	currency := money.Currency(r.Currency)
	loan := &domain.Loan{
		ID:                    r.ID,
		LoanID:                r.LoanID,
		Currency:              currency,
		Principal:             money.New(r.Principal, currency),
		InterestRate:          r.InterestRate,
		Frequency:             domain.TermFrequency(r.Frequency),
		DisbursementDate:      r.DisbursementDate,
		Status:                r.Status,
		InterestRecalculation: r.InterestRecalculation,
		VATPercentage:         r.VATPercentage,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.InterestChargedFrom.Valid {
		from := r.InterestChargedFrom.Time
		loan.InterestChargedFrom = &from
	}
	if err := decodeJSON(r.Disbursements, &loan.Disbursements); err != nil {
		return nil, fmt.Errorf("decode disbursements: %w", err)
	}
	if err := decodeJSON(r.RescheduleDates, &loan.RescheduleDates); err != nil {
		return nil, fmt.Errorf("decode reschedule dates: %w", err)
	}
	return loan, nil
}

func newInstallmentRow(loanID uuid.UUID, inst domain.Installment) (installmentRow, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return installmentRow{}, fmt.Errorf("encode installment %d: %w", inst.Number, err)
	}
	return installmentRow{
		LoanID:         loanID,
		Number:         inst.Number,
		DueDate:        inst.DueDate,
		ObligationsMet: inst.ObligationsMet,
		Data:           data,
	}, nil
}

func (r installmentRow) toDomain() (domain.Installment, error) {
	var inst domain.Installment
	if err := json.Unmarshal(r.Data, &inst); err != nil {
		return inst, fmt.Errorf("decode installment %d: %w", r.Number, err)
	}
	return inst, nil
}

func newChargeRow(loanID uuid.UUID, position int, ch domain.LoanCharge) (chargeRow, error) {
	data, err := json.Marshal(ch)
	if err != nil {
		return chargeRow{}, fmt.Errorf("encode charge %s: %w", ch.ID, err)
	}
	return chargeRow{
		ID:       ch.ID,
		LoanID:   loanID,
		Position: position,
		Active:   ch.Active,
		Data:     data,
	}, nil
}

func (r chargeRow) toDomain() (domain.LoanCharge, error) {
	var ch domain.LoanCharge
	if err := json.Unmarshal(r.Data, &ch); err != nil {
		return ch, fmt.Errorf("decode charge %s: %w", r.ID, err)
	}
	return ch, nil
}

func newTransactionRow(tx *domain.Transaction) (transactionRow, error) {
	allocations, err := json.Marshal(tx.Allocations)
	if err != nil {
		return transactionRow{}, fmt.Errorf("encode allocations of %s: %w", tx.ID, err)
	}
	row := transactionRow{
		ID:              tx.ID,
		LoanID:          tx.LoanID,
		Type:            string(tx.Type),
		Amount:          tx.Amount.Amount(),
		Currency:        string(tx.Amount.Currency()),
		Unallocated:     tx.Unallocated.Amount(),
		TransactionDate: tx.Date,
		Allocations:     allocations,
		Reversed:        tx.Reversed,
		CreatedAt:       tx.CreatedAt,
	}
	if tx.ReversedOn != nil {
		row.ReversedOn = sql.NullTime{Time: *tx.ReversedOn, Valid: true}
	}
	return row, nil
}

func (r transactionRow) toDomain() (*domain.Transaction, error) {
	currency := money.Currency(r.Currency)
	tx := &domain.Transaction{
		ID:          r.ID,
		LoanID:      r.LoanID,
		Type:        domain.TransactionType(r.Type),
		Amount:      money.New(r.Amount, currency),
		Unallocated: money.New(r.Unallocated, currency),
		Date:        r.TransactionDate,
		Reversed:    r.Reversed,
		CreatedAt:   r.CreatedAt,
	}
	if r.ReversedOn.Valid {
		on := r.ReversedOn.Time
		tx.ReversedOn = &on
	}
	if err := decodeJSON(r.Allocations, &tx.Allocations); err != nil {
		return nil, fmt.Errorf("decode allocations of %s: %w", r.ID, err)
	}
	return tx, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRequest carries a repayment, waiver or write-off
type TransactionRequest struct {
	Type   TransactionType `json:"type" validate:"omitempty,oneof=repayment waiver write_off"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Date   time.Time       `json:"date"`
}

// AddChargeRequest attaches a charge definition to a loan
type AddChargeRequest struct {
	Definition ChargeDefinition `json:"definition"`
	DueDate    *time.Time       `json:"due_date,omitempty"`
	Date       time.Time        `json:"date"`

	// AmountOrPercentage overrides the definition's value when set
	AmountOrPercentage decimal.NullDecimal `json:"amount_or_percentage"`

	// ParentChargeID is the loan charge a percentage-of-another-charge is based on
	ParentChargeID *uuid.UUID `json:"parent_charge_id,omitempty"`

	OverdueInstallmentNumber int        `json:"overdue_installment_number,omitempty"`
	TrancheDisbursementID    *uuid.UUID `json:"tranche_disbursement_id,omitempty"`
}

// UpdateChargeRequest changes the amount or percentage of an existing charge
type UpdateChargeRequest struct {
	// AmountOrPercentage keeps the charge's current value when absent
	AmountOrPercentage decimal.NullDecimal `json:"amount_or_percentage" validate:"omitempty,decimal_gte=0"`
	DueDate            *time.Time          `json:"due_date,omitempty"`
	Date               time.Time           `json:"date"`
}

// ReverseTransactionRequest carries the optional reversal date
type ReverseTransactionRequest struct {
	Date time.Time `json:"date"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/servicing-engine/pkg/money"
)

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID                string          `json:"loan_id" validate:"required"`
	Currency              string          `json:"currency" validate:"omitempty,len=3"`
	Amount                decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	InterestRate          decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	NumberOfRepayments    int             `json:"number_of_repayments" validate:"required,gt=0"`
	Frequency             TermFrequency   `json:"frequency" validate:"omitempty,oneof=weekly monthly"`
	DisbursementDate      time.Time       `json:"disbursement_date"`
	InterestChargedFrom   *time.Time      `json:"interest_charged_from,omitempty"`
	InterestRecalculation bool            `json:"interest_recalculation"`
	VATPercentage         decimal.Decimal `json:"vat_percentage" validate:"decimal_gte=0"`
}

type CreateLoanResponse struct {
	Loan     *Loan         `json:"loan"`
	Schedule []Installment `json:"schedule"`
}

type OutstandingResponse struct {
	LoanID      string      `json:"loan_id"`
	Outstanding money.Money `json:"outstanding"`
}

type DelinquentResponse struct {
	LoanID        string `json:"loan_id"`
	IsDelinquent  bool   `json:"is_delinquent"`
	MissedPeriods int    `json:"missed_periods"`
}

type ScheduleResponse struct {
	LoanID   string        `json:"loan_id"`
	Schedule []Installment `json:"schedule"`
}

// RescheduleRequest asks to regenerate the unpaid part of the schedule
type RescheduleRequest struct {
	Periods int `json:"periods" validate:"required,gt=0"`

	// InterestRate replaces the loan's annual rate when present
	InterestRate decimal.NullDecimal `json:"interest_rate" validate:"omitempty,decimal_gte=0"`
	Date         time.Time           `json:"date"`
}

// ReprocessSummary reports the outcome of a batch reprocess run
type ReprocessSummary struct {
	Processed  int      `json:"processed"`
	Failed     int      `json:"failed"`
	Delinquent []string `json:"delinquent"`
}

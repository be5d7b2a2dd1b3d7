package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

const (
	LoanStatusActive  = "active"
	LoanStatusClosed  = "closed"
	LoanStatusDefault = "default"
)

// Disbursement is one tranche paid out to the borrower
type Disbursement struct {
	ID     uuid.UUID   `json:"id"`
	Date   time.Time   `json:"date"`
	Amount money.Money `json:"amount"`
}

// Loan is the aggregate owning one loan's installments and charges.
// Installments and charges reference each other by installment number and
// charge ID only; the aggregate must be mutated as a single unit of work.
type Loan struct {
	ID                  uuid.UUID       `json:"id"`
	LoanID              string          `json:"loan_id"`
	Currency            money.Currency  `json:"currency"`
	Principal           money.Money     `json:"principal"`
	InterestRate        decimal.Decimal `json:"interest_rate"`
	Frequency           TermFrequency   `json:"frequency"`
	DisbursementDate    time.Time       `json:"disbursement_date"`
	InterestChargedFrom *time.Time      `json:"interest_charged_from,omitempty"`
	Status              string          `json:"status"`

	// InterestRecalculation enables day-by-day (horizontal) interest processing
	InterestRecalculation bool `json:"interest_recalculation"`

	// VATPercentage applies to charges flagged RequiresVAT; zero disables VAT
	VATPercentage decimal.Decimal `json:"vat_percentage"`

	Disbursements   []Disbursement `json:"disbursements,omitempty"`
	Installments    []Installment  `json:"installments"`
	Charges         []LoanCharge   `json:"charges,omitempty"`
	RescheduleDates []time.Time    `json:"reschedule_dates,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiresVAT reports whether VAT is computed on flagged charges
func (l *Loan) RequiresVAT() bool {
	return l.VATPercentage.IsPositive()
}

// Zero returns a zero amount in the loan currency
func (l *Loan) Zero() money.Money {
	return money.Zero(l.Currency)
}

// Clone returns a deep copy so engine calls never mutate the caller's aggregate
func (l *Loan) Clone() *Loan {
	cp := *l
	if l.InterestChargedFrom != nil {
		d := *l.InterestChargedFrom
		cp.InterestChargedFrom = &d
	}
	cp.Disbursements = slices.Clone(l.Disbursements)
	cp.RescheduleDates = slices.Clone(l.RescheduleDates)

	cp.Installments = make([]Installment, len(l.Installments))
	for i, inst := range l.Installments {
		if inst.ObligationsMetOnDate != nil {
			d := *inst.ObligationsMetOnDate
			inst.ObligationsMetOnDate = &d
		}
		if inst.OriginalInterestDue != nil {
			m := *inst.OriginalInterestDue
			inst.OriginalInterestDue = &m
		}
		cp.Installments[i] = inst
	}

	cp.Charges = make([]LoanCharge, len(l.Charges))
	for i := range l.Charges {
		cp.Charges[i] = l.Charges[i].clone()
	}
	return &cp
}

// SortInstallments orders installments by number
func (l *Loan) SortInstallments() {
	slices.SortFunc(l.Installments, Installment.Compare)
}

// Validate checks the aggregate invariants the engine relies on: contiguous
// 1-based installment numbers and a single currency across all amounts.
func (l *Loan) Validate() error {
	if l.Currency == "" {
		return customError.WrapInvalidSchedule("loan currency is required")
	}
	if l.Principal.Currency() != l.Currency {
		return customError.WrapCurrencyMismatch(string(l.Currency), string(l.Principal.Currency()))
	}

	for idx, inst := range l.Installments {
		if inst.Number != idx+1 {
			return customError.WrapInvalidSchedule(
				fmt.Sprintf("installment at position %d has number %d", idx+1, inst.Number),
			)
		}
		if inst.DueDate.Before(inst.FromDate) {
			return customError.WrapInvalidSchedule(
				fmt.Sprintf("installment %d is due before it starts", inst.Number),
			)
		}
		for _, c := range AllComponents {
			cur := inst.Ledger(c).Due.Currency()
			if cur != "" && cur != l.Currency {
				return customError.WrapCurrencyMismatch(string(l.Currency), string(cur))
			}
		}
	}

	for _, ch := range l.Charges {
		if cur := ch.Amount.Currency(); cur != "" && cur != l.Currency {
			return customError.WrapCurrencyMismatch(string(l.Currency), string(cur))
		}
	}
	return nil
}

// Installment returns the installment with the given number
func (l *Loan) Installment(number int) (*Installment, error) {
	for i := range l.Installments {
		if l.Installments[i].Number == number {
			return &l.Installments[i], nil
		}
	}
	return nil, customError.WrapInstallmentNotFound(number)
}

// Charge returns the loan charge with the given ID
func (l *Loan) Charge(id uuid.UUID) (*LoanCharge, error) {
	for i := range l.Charges {
		if l.Charges[i].ID == id {
			return &l.Charges[i], nil
		}
	}
	return nil, customError.WrapChargeNotFound(id.String())
}

// ActiveCharges returns pointers to the active charges, in insertion order
func (l *Loan) ActiveCharges() []*LoanCharge {
	var active []*LoanCharge
	for i := range l.Charges {
		if l.Charges[i].Active {
			active = append(active, &l.Charges[i])
		}
	}
	return active
}

// FirstUnpaidInstallment returns the number of the first installment whose
// obligations are not met, or 0 when every installment is settled.
func (l *Loan) FirstUnpaidInstallment() int {
	for _, inst := range l.Installments {
		if !inst.ObligationsMet {
			return inst.Number
		}
	}
	return 0
}

// UnpaidInstallments counts installments whose obligations are not met
func (l *Loan) UnpaidInstallments() int {
	count := 0
	for _, inst := range l.Installments {
		if !inst.ObligationsMet {
			count++
		}
	}
	return count
}

// PeriodStart returns the start of the period ending with the given installment
func (l *Loan) PeriodStart(number int) time.Time {
	if number <= 1 {
		return utils.DateOnly(l.DisbursementDate)
	}
	for _, inst := range l.Installments {
		if inst.Number == number-1 {
			return inst.DueDate
		}
	}
	return utils.DateOnly(l.DisbursementDate)
}

// SkipsInstallmentFees reports whether installment fees are left off the given
// period: the first period produces no interest when interest is charged from
// a date after disbursement.
func (l *Loan) SkipsInstallmentFees(number int) bool {
	return number == 1 && l.InterestChargedFrom != nil &&
		utils.AfterDay(*l.InterestChargedFrom, l.DisbursementDate)
}

// CollectsChargeOn reports whether a charge without an installment breakdown
// is collected on the given installment: its due date falls within the
// installment's period, the first period including its start date. Charges
// due after the final installment are collected on it.
func (l *Loan) CollectsChargeOn(ch *LoanCharge, number int) bool {
	if ch.DueDate == nil || len(ch.Installments) > 0 {
		return false
	}
	inst, err := l.Installment(number)
	if err != nil {
		return false
	}
	if ch.IsDueForCollection(l.PeriodStart(number), inst.DueDate, number == 1) {
		return true
	}
	last := l.Installments[len(l.Installments)-1]
	return number == last.Number && utils.AfterDay(*ch.DueDate, inst.DueDate)
}

// OutstandingPrincipal sums principal outstanding across installments
func (l *Loan) OutstandingPrincipal() money.Money {
	total := l.Zero()
	for i := range l.Installments {
		total = total.Add(l.Installments[i].Outstanding(ComponentPrincipal))
	}
	return total
}

// TotalOutstanding sums every component outstanding across installments
func (l *Loan) TotalOutstanding() money.Money {
	total := l.Zero()
	for i := range l.Installments {
		total = total.Add(l.Installments[i].TotalOutstanding())
	}
	return total
}

// TotalPrincipal sums principal due across installments
func (l *Loan) TotalPrincipal() money.Money {
	total := l.Zero()
	for _, inst := range l.Installments {
		total = total.Add(inst.Principal.Due)
	}
	return total
}

// TotalInterest sums interest due across installments
func (l *Loan) TotalInterest() money.Money {
	total := l.Zero()
	for _, inst := range l.Installments {
		total = total.Add(inst.Interest.Due)
	}
	return total
}

// DisbursedAsOf sums tranches disbursed on or before date. Loans without
// tranche records count the whole principal as disbursed.
func (l *Loan) DisbursedAsOf(date *time.Time) money.Money {
	if len(l.Disbursements) == 0 {
		return l.Principal
	}
	total := l.Zero()
	for _, d := range l.Disbursements {
		if date == nil || !utils.AfterDay(d.Date, *date) {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// ConsecutiveOverdue returns the longest run of unpaid installments already past due at asOf
func (l *Loan) ConsecutiveOverdue(asOf time.Time) int {
	consecutive, longest := 0, 0
	for i := range l.Installments {
		inst := &l.Installments[i]
		if !utils.IsDateOverdue(inst.DueDate, asOf) {
			break
		}
		if inst.ObligationsMet {
			consecutive = 0
			continue
		}
		consecutive++
		longest = max(longest, consecutive)
	}
	return longest
}

// RefreshStatus closes the loan once nothing is outstanding and reopens it otherwise
func (l *Loan) RefreshStatus() {
	if l.Status == LoanStatusDefault {
		return
	}
	if l.TotalOutstanding().IsPositive() {
		l.Status = LoanStatusActive
		return
	}
	l.Status = LoanStatusClosed
}

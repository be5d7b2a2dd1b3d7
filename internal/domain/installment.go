package domain

import (
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// interestRatioPlaces is the intermediate precision of pro-rata interest
const interestRatioPlaces = 5

// Ledger tracks one component of an installment.
// Outstanding = Due - Paid - Waived - WrittenOff.
type Ledger struct {
	Due        money.Money `json:"due"`
	Paid       money.Money `json:"paid"`
	Waived     money.Money `json:"waived"`
	WrittenOff money.Money `json:"written_off"`
}

// Outstanding returns the amount still owed on the component
func (l Ledger) Outstanding() money.Money {
	return l.Due.Sub(l.Paid).Sub(l.Waived).Sub(l.WrittenOff)
}

// Settled returns everything already paid, waived or written off
func (l Ledger) Settled() money.Money {
	return l.Paid.Add(l.Waived).Add(l.WrittenOff)
}

// Installment is one repayment period of a loan schedule
type Installment struct {
	Number     int       `json:"number"`
	FromDate   time.Time `json:"from_date"`
	DueDate    time.Time `json:"due_date"`
	Principal  Ledger    `json:"principal"`
	Interest   Ledger    `json:"interest"`
	Fee        Ledger    `json:"fee"`
	Penalty    Ledger    `json:"penalty"`
	FeeVAT     Ledger    `json:"fee_vat"`
	PenaltyVAT Ledger    `json:"penalty_vat"`

	ObligationsMet       bool        `json:"obligations_met"`
	ObligationsMetOnDate *time.Time  `json:"obligations_met_on_date,omitempty"`
	TotalPaidInAdvance   money.Money `json:"total_paid_in_advance"`
	TotalPaidLate        money.Money `json:"total_paid_late"`

	// OriginalInterestDue keeps the full-period interest while a pro-rata
	// recalculation is in effect.
	OriginalInterestDue *money.Money `json:"original_interest_due,omitempty"`
}

// NewInstallment creates an installment with every ledger zeroed in the given currency
func NewInstallment(number int, from, due time.Time, principal, interest money.Money) Installment {
	currency := principal.Currency()
	zero := money.Zero(currency)
	blank := Ledger{Due: zero, Paid: zero, Waived: zero, WrittenOff: zero}

	inst := Installment{
		Number:             number,
		FromDate:           utils.DateOnly(from),
		DueDate:            utils.DateOnly(due),
		Principal:          blank,
		Interest:           blank,
		Fee:                blank,
		Penalty:            blank,
		FeeVAT:             blank,
		PenaltyVAT:         blank,
		TotalPaidInAdvance: zero,
		TotalPaidLate:      zero,
	}
	inst.Principal.Due = principal
	inst.Interest.Due = interest
	return inst
}

// Compare orders installments by number
func (i Installment) Compare(other Installment) int {
	switch {
	case i.Number < other.Number:
		return -1
	case i.Number > other.Number:
		return 1
	}
	return 0
}

func (i *Installment) ledger(c Component) *Ledger {
	switch c {
	case ComponentPrincipal:
		return &i.Principal
	case ComponentInterest:
		return &i.Interest
	case ComponentFee:
		return &i.Fee
	case ComponentPenalty:
		return &i.Penalty
	case ComponentFeeVAT:
		return &i.FeeVAT
	case ComponentPenaltyVAT:
		return &i.PenaltyVAT
	}
	panic("domain: unknown installment component " + c.String())
}

// Ledger returns a copy of the ledger of one component
func (i *Installment) Ledger(c Component) Ledger {
	return *i.ledger(c)
}

// Outstanding returns the unpaid amount of one component
func (i *Installment) Outstanding(c Component) money.Money {
	return i.ledger(c).Outstanding()
}

// TotalDue sums the due amount across all components
func (i *Installment) TotalDue() money.Money {
	total := money.Zero(i.Principal.Due.Currency())
	for _, c := range AllComponents {
		total = total.Add(i.ledger(c).Due)
	}
	return total
}

// TotalOutstanding sums the outstanding amount across all components. A
// component settled beyond its due counts as zero, never against another one.
func (i *Installment) TotalOutstanding() money.Money {
	total := money.Zero(i.Principal.Due.Currency())
	for _, c := range AllComponents {
		total = total.Add(i.Outstanding(c).NonNegative())
	}
	return total
}

// IsOverdue reports whether the installment is unpaid past its due date
func (i *Installment) IsOverdue(asOf time.Time) bool {
	return !i.ObligationsMet && utils.IsDateOverdue(i.DueDate, asOf)
}

// HasActivity reports whether anything was paid, waived or written off
func (i *Installment) HasActivity() bool {
	for _, c := range AllComponents {
		if i.ledger(c).Settled().IsPositive() {
			return true
		}
	}
	return false
}

// PayComponent applies up to amount against the outstanding balance of c,
// recording it as paid or, with writeOff, as written off. It returns the
// portion actually applied.
func (i *Installment) PayComponent(c Component, amount money.Money, on time.Time, writeOff bool) money.Money {
	l := i.ledger(c)
	due := l.Outstanding()
	if !amount.IsPositive() || !due.IsPositive() {
		return money.Zero(amount.Currency())
	}

	portion := money.Min(amount, due)
	if writeOff {
		l.WrittenOff = l.WrittenOff.Add(portion)
	} else {
		l.Paid = l.Paid.Add(portion)
		i.trackAdvanceAndLate(on, portion)
	}

	i.checkObligations(on)
	return portion
}

// WaiveComponent forgives up to amount of the outstanding balance of c
func (i *Installment) WaiveComponent(c Component, amount money.Money, on time.Time) (money.Money, error) {
	if !c.Waivable() {
		return money.Zero(amount.Currency()), customError.WrapComponentNotWaivable(c.String())
	}

	l := i.ledger(c)
	due := l.Outstanding()
	if !amount.IsPositive() || !due.IsPositive() {
		return money.Zero(amount.Currency()), nil
	}

	portion := money.Min(amount, due)
	l.Waived = l.Waived.Add(portion)
	i.checkObligations(on)
	return portion, nil
}

// UndoPayment reverses up to amount of cash previously applied to c
func (i *Installment) UndoPayment(c Component, amount money.Money, on time.Time) money.Money {
	l := i.ledger(c)
	portion := money.Min(amount, l.Paid).NonNegative()
	if portion.IsZero() {
		return portion
	}

	l.Paid = l.Paid.Sub(portion)
	i.untrackAdvanceAndLate(on, portion)
	i.checkObligations(on)
	return portion
}

// UndoWaive reverses up to amount previously waived on c
func (i *Installment) UndoWaive(c Component, amount money.Money, on time.Time) money.Money {
	l := i.ledger(c)
	portion := money.Min(amount, l.Waived).NonNegative()
	if portion.IsZero() {
		return portion
	}

	l.Waived = l.Waived.Sub(portion)
	i.checkObligations(on)
	return portion
}

// UndoWriteOff reverses up to amount previously written off on c
func (i *Installment) UndoWriteOff(c Component, amount money.Money, on time.Time) money.Money {
	l := i.ledger(c)
	portion := money.Min(amount, l.WrittenOff).NonNegative()
	if portion.IsZero() {
		return portion
	}

	l.WrittenOff = l.WrittenOff.Sub(portion)
	i.checkObligations(on)
	return portion
}

// Apply dispatches a transaction of the given type to the matching ledger operation
func (i *Installment) Apply(t TransactionType, c Component, amount money.Money, on time.Time) (money.Money, error) {
	switch t {
	case TransactionWaiver:
		return i.WaiveComponent(c, amount, on)
	case TransactionWriteOff:
		return i.PayComponent(c, amount, on, true), nil
	default:
		return i.PayComponent(c, amount, on, false), nil
	}
}

// Undo is the inverse of Apply
func (i *Installment) Undo(t TransactionType, c Component, amount money.Money, on time.Time) money.Money {
	switch t {
	case TransactionWaiver:
		return i.UndoWaive(c, amount, on)
	case TransactionWriteOff:
		return i.UndoWriteOff(c, amount, on)
	default:
		return i.UndoPayment(c, amount, on)
	}
}

// ChargeTotals are the charge-derived amounts written back by the reprocessor
type ChargeTotals struct {
	FeeDue            money.Money
	FeeWaived         money.Money
	FeeWrittenOff     money.Money
	PenaltyDue        money.Money
	PenaltyWaived     money.Money
	PenaltyWrittenOff money.Money
	FeeVATDue         money.Money
	PenaltyVATDue     money.Money
}

// UpdateChargeTotals replaces the charge-derived due, waived and written-off
// amounts in one step. Paid amounts are left untouched.
func (i *Installment) UpdateChargeTotals(t ChargeTotals, on time.Time) {
	i.Fee.Due = t.FeeDue
	i.Fee.Waived = t.FeeWaived
	i.Fee.WrittenOff = t.FeeWrittenOff
	i.Penalty.Due = t.PenaltyDue
	i.Penalty.Waived = t.PenaltyWaived
	i.Penalty.WrittenOff = t.PenaltyWrittenOff
	i.FeeVAT.Due = t.FeeVATDue
	i.PenaltyVAT.Due = t.PenaltyVATDue
	i.checkObligations(on)
}

// ProrateInterest lowers the interest due to the fraction of the period
// elapsed at on, when on falls strictly inside the period. The full-period
// amount is kept in OriginalInterestDue so RestoreInterest can bring it back.
func (i *Installment) ProrateInterest(on time.Time) bool {
	if !utils.AfterDay(on, i.FromDate) || !utils.BeforeDay(on, i.DueDate) {
		return false
	}

	full := i.Interest.Due
	if i.OriginalInterestDue != nil {
		full = *i.OriginalInterestDue
	}

	elapsed := decimal.NewFromInt(int64(utils.DaysBetween(i.FromDate, on)))
	period := decimal.NewFromInt(int64(utils.DaysBetween(i.FromDate, i.DueDate)))
	ratio := elapsed.DivRound(period, interestRatioPlaces)
	prorated := full.Mul(ratio).Round()

	if i.OriginalInterestDue == nil {
		original := full
		i.OriginalInterestDue = &original
	}
	i.Interest.Due = money.Max(prorated, i.Interest.Settled())
	i.checkObligations(on)
	return true
}

// RestoreInterest undoes ProrateInterest
func (i *Installment) RestoreInterest(on time.Time) {
	if i.OriginalInterestDue == nil {
		return
	}
	i.Interest.Due = *i.OriginalInterestDue
	i.OriginalInterestDue = nil
	i.checkObligations(on)
}

// TruncatePrincipal lowers the principal due to what is already settled and
// returns the principal taken off the installment
func (i *Installment) TruncatePrincipal(on time.Time) money.Money {
	moved := i.Principal.Outstanding()
	i.Principal.Due = i.Principal.Settled()
	i.checkObligations(on)
	return moved
}

// InterestRecalculated reports whether a pro-rata interest amount is in effect
func (i *Installment) InterestRecalculated() bool {
	return i.OriginalInterestDue != nil
}

func (i *Installment) checkObligations(on time.Time) {
	if i.TotalOutstanding().IsPositive() {
		i.ObligationsMet = false
		i.ObligationsMetOnDate = nil
		return
	}
	if !i.ObligationsMet {
		date := utils.DateOnly(on)
		i.ObligationsMet = true
		i.ObligationsMetOnDate = &date
	}
}

func (i *Installment) trackAdvanceAndLate(on time.Time, amount money.Money) {
	switch {
	case utils.BeforeDay(on, i.DueDate):
		i.TotalPaidInAdvance = i.TotalPaidInAdvance.Add(amount)
	case utils.AfterDay(on, i.DueDate):
		i.TotalPaidLate = i.TotalPaidLate.Add(amount)
	}
}

func (i *Installment) untrackAdvanceAndLate(on time.Time, amount money.Money) {
	switch {
	case utils.BeforeDay(on, i.DueDate):
		i.TotalPaidInAdvance = i.TotalPaidInAdvance.Sub(amount).NonNegative()
	case utils.AfterDay(on, i.DueDate):
		i.TotalPaidLate = i.TotalPaidLate.Sub(amount).NonNegative()
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// ChargeDefinition is the product-level configuration of a fee or penalty
type ChargeDefinition struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	CalculationType ChargeCalculationType `json:"calculation_type"`
	TimeType        ChargeTimeType        `json:"time_type"`
	Category        ChargeCategory        `json:"category"`
	IsPenalty       bool                  `json:"is_penalty"`

	// AmountOrPercentage is the flat amount for flat types and the
	// percentage (e.g. 5 for 5%) for percentage types.
	AmountOrPercentage decimal.Decimal     `json:"amount_or_percentage"`
	MinCap             decimal.NullDecimal `json:"min_cap"`
	MaxCap             decimal.NullDecimal `json:"max_cap"`
	ParentChargeID     *uuid.UUID          `json:"parent_charge_id,omitempty"`
	RequiresVAT        bool                `json:"requires_vat"`
}

// InstallmentCharge is one loan charge's portion on one installment
type InstallmentCharge struct {
	InstallmentNumber int         `json:"installment_number"`
	Amount            money.Money `json:"amount"`
	AmountPaid        money.Money `json:"amount_paid"`
	AmountWaived      money.Money `json:"amount_waived"`
	AmountWrittenOff  money.Money `json:"amount_written_off"`
}

// Outstanding returns the unpaid part of the installment charge
func (ic InstallmentCharge) Outstanding() money.Money {
	return ic.Amount.Sub(ic.AmountPaid).Sub(ic.AmountWaived).Sub(ic.AmountWrittenOff)
}

// Settled returns what was already paid, waived or written off on the installment
func (ic InstallmentCharge) Settled() money.Money {
	return ic.AmountPaid.Add(ic.AmountWaived).Add(ic.AmountWrittenOff)
}

// LoanCharge is a charge definition applied to one loan.
// Amount == AmountPaid + AmountWaived + AmountWrittenOff + AmountOutstanding.
type LoanCharge struct {
	ID         uuid.UUID        `json:"id"`
	Definition ChargeDefinition `json:"definition"`
	DueDate    *time.Time       `json:"due_date,omitempty"`

	AmountOrPercentage        decimal.Decimal `json:"amount_or_percentage"`
	Amount                    money.Money     `json:"amount"`
	AmountPercentageAppliedTo money.Money     `json:"amount_percentage_applied_to"`
	AmountPaid                money.Money     `json:"amount_paid"`
	AmountWaived              money.Money     `json:"amount_waived"`
	AmountWrittenOff          money.Money     `json:"amount_written_off"`
	AmountOutstanding         money.Money     `json:"amount_outstanding"`

	Active                    bool `json:"active"`
	Waived                    bool `json:"waived"`
	ApplicableFromInstallment int  `json:"applicable_from_installment"`

	// ParentChargeID points at the loan charge this one is a percentage of
	ParentChargeID *uuid.UUID `json:"parent_charge_id,omitempty"`

	// OverdueInstallmentNumber links an overdue penalty to the installment that triggered it
	OverdueInstallmentNumber int `json:"overdue_installment_number,omitempty"`

	// TrancheDisbursementID links a tranche charge to its disbursement
	TrancheDisbursementID *uuid.UUID `json:"tranche_disbursement_id,omitempty"`

	Installments []InstallmentCharge `json:"installments,omitempty"`
}

// NewLoanCharge creates an active charge with an untouched balance
func NewLoanCharge(def ChargeDefinition, amount money.Money, dueDate *time.Time) LoanCharge {
	zero := money.Zero(amount.Currency())
	var due *time.Time
	if dueDate != nil {
		d := utils.DateOnly(*dueDate)
		due = &d
	}
	return LoanCharge{
		ID:                        uuid.New(),
		Definition:                def,
		DueDate:                   due,
		AmountOrPercentage:        def.AmountOrPercentage,
		Amount:                    amount,
		AmountPercentageAppliedTo: zero,
		AmountPaid:                zero,
		AmountWaived:              zero,
		AmountWrittenOff:          zero,
		AmountOutstanding:         amount,
		Active:                    true,
		ApplicableFromInstallment: 1,
	}
}

func (c *LoanCharge) IsPenalty() bool { return c.Definition.IsPenalty }

func (c *LoanCharge) IsInstallmentFee() bool { return c.Definition.TimeType == TimeInstallmentFee }

func (c *LoanCharge) IsOverdueInstallmentCharge() bool {
	return c.Definition.TimeType == TimeOverdueInstallment
}

// IsDisbursementCharge reports whether the charge is collected at (tranche) disbursement
func (c *LoanCharge) IsDisbursementCharge() bool {
	return c.Definition.TimeType == TimeDisbursement || c.Definition.TimeType == TimeTrancheDisbursement
}

// Component returns the installment component the charge accrues into
func (c *LoanCharge) Component() Component {
	if c.IsPenalty() {
		return ComponentPenalty
	}
	return ComponentFee
}

// IsPaid reports whether nothing remains outstanding
func (c *LoanCharge) IsPaid() bool { return !c.AmountOutstanding.IsPositive() }

// IsPartiallyPaid reports whether some but not all of the charge was paid
func (c *LoanCharge) IsPartiallyPaid() bool {
	return c.AmountPaid.IsPositive() && c.AmountOutstanding.IsPositive()
}

// IsBalanced checks Amount == Paid + Waived + WrittenOff + Outstanding
func (c *LoanCharge) IsBalanced() bool {
	return c.Amount.Equal(c.AmountPaid.Add(c.AmountWaived).Add(c.AmountWrittenOff).Add(c.AmountOutstanding))
}

// IsDueForCollection reports whether the due date falls within (from, to],
// or [from, to] when fromInclusive is set.
func (c *LoanCharge) IsDueForCollection(from, to time.Time, fromInclusive bool) bool {
	if c.DueDate == nil {
		return false
	}
	return utils.InWindow(*c.DueDate, from, to, fromInclusive)
}

// InstallmentCharge returns the charge's portion on an installment, or nil
func (c *LoanCharge) InstallmentCharge(number int) *InstallmentCharge {
	for i := range c.Installments {
		if c.Installments[i].InstallmentNumber == number {
			return &c.Installments[i]
		}
	}
	return nil
}

// OutstandingFor returns what is outstanding on an installment, or on the
// whole charge when it has no installment breakdown.
func (c *LoanCharge) OutstandingFor(number int) money.Money {
	if ic := c.InstallmentCharge(number); ic != nil {
		return ic.Outstanding()
	}
	if len(c.Installments) > 0 {
		return money.Zero(c.Amount.Currency())
	}
	return c.AmountOutstanding
}

// Pay applies up to amount against the charge (and its installment portion,
// when number > 0 and a breakdown exists), returning the portion applied.
func (c *LoanCharge) Pay(amount money.Money, number int) money.Money {
	portion := c.portion(amount, number)
	if portion.IsZero() {
		return portion
	}
	if ic := c.InstallmentCharge(number); ic != nil {
		ic.AmountPaid = ic.AmountPaid.Add(portion)
	}
	c.AmountPaid = c.AmountPaid.Add(portion)
	c.AmountOutstanding = c.AmountOutstanding.Sub(portion)
	return portion
}

// WaiveAmount forgives up to amount of the charge
func (c *LoanCharge) WaiveAmount(amount money.Money, number int) money.Money {
	portion := c.portion(amount, number)
	if portion.IsZero() {
		return portion
	}
	if ic := c.InstallmentCharge(number); ic != nil {
		ic.AmountWaived = ic.AmountWaived.Add(portion)
	}
	c.AmountWaived = c.AmountWaived.Add(portion)
	c.AmountOutstanding = c.AmountOutstanding.Sub(portion)
	if c.AmountOutstanding.IsZero() && c.AmountWaived.IsPositive() {
		c.Waived = true
	}
	return portion
}

// Waive forgives whatever is outstanding on the whole charge
func (c *LoanCharge) Waive() money.Money {
	if len(c.Installments) == 0 {
		return c.WaiveAmount(c.AmountOutstanding, 0)
	}
	total := money.Zero(c.Amount.Currency())
	for _, ic := range c.Installments {
		total = total.Add(c.WaiveAmount(ic.Outstanding(), ic.InstallmentNumber))
	}
	return total
}

// WriteOff records up to amount of the charge as uncollectible
func (c *LoanCharge) WriteOff(amount money.Money, number int) money.Money {
	portion := c.portion(amount, number)
	if portion.IsZero() {
		return portion
	}
	if ic := c.InstallmentCharge(number); ic != nil {
		ic.AmountWrittenOff = ic.AmountWrittenOff.Add(portion)
	}
	c.AmountWrittenOff = c.AmountWrittenOff.Add(portion)
	c.AmountOutstanding = c.AmountOutstanding.Sub(portion)
	return portion
}

// Apply dispatches a transaction of the given type to the matching operation
func (c *LoanCharge) Apply(t TransactionType, amount money.Money, number int) money.Money {
	switch t {
	case TransactionWaiver:
		return c.WaiveAmount(amount, number)
	case TransactionWriteOff:
		return c.WriteOff(amount, number)
	default:
		return c.Pay(amount, number)
	}
}

// Unpay reverses up to amount of a previous payment
func (c *LoanCharge) Unpay(amount money.Money, number int) money.Money {
	paid := c.AmountPaid
	ic := c.InstallmentCharge(number)
	if ic != nil {
		paid = ic.AmountPaid
	}
	portion := money.Min(amount, paid).NonNegative()
	if portion.IsZero() {
		return portion
	}
	if ic != nil {
		ic.AmountPaid = ic.AmountPaid.Sub(portion)
	}
	c.AmountPaid = c.AmountPaid.Sub(portion)
	c.AmountOutstanding = c.AmountOutstanding.Add(portion)
	return portion
}

// UndoWaive reverses up to amount of a previous waiver and clears the waived flag
func (c *LoanCharge) UndoWaive(amount money.Money, number int) money.Money {
	waived := c.AmountWaived
	ic := c.InstallmentCharge(number)
	if ic != nil {
		waived = ic.AmountWaived
	}
	portion := money.Min(amount, waived).NonNegative()
	if portion.IsZero() {
		return portion
	}
	if ic != nil {
		ic.AmountWaived = ic.AmountWaived.Sub(portion)
	}
	c.AmountWaived = c.AmountWaived.Sub(portion)
	c.AmountOutstanding = c.AmountOutstanding.Add(portion)
	c.Waived = false
	return portion
}

// UndoWriteOff reverses up to amount of a previous write-off
func (c *LoanCharge) UndoWriteOff(amount money.Money, number int) money.Money {
	writtenOff := c.AmountWrittenOff
	ic := c.InstallmentCharge(number)
	if ic != nil {
		writtenOff = ic.AmountWrittenOff
	}
	portion := money.Min(amount, writtenOff).NonNegative()
	if portion.IsZero() {
		return portion
	}
	if ic != nil {
		ic.AmountWrittenOff = ic.AmountWrittenOff.Sub(portion)
	}
	c.AmountWrittenOff = c.AmountWrittenOff.Sub(portion)
	c.AmountOutstanding = c.AmountOutstanding.Add(portion)
	return portion
}

// Undo is the inverse of Apply
func (c *LoanCharge) Undo(t TransactionType, amount money.Money, number int) money.Money {
	switch t {
	case TransactionWaiver:
		return c.UndoWaive(amount, number)
	case TransactionWriteOff:
		return c.UndoWriteOff(amount, number)
	default:
		return c.Unpay(amount, number)
	}
}

// UpdateAmount changes the nominal amount, keeping recorded history
// Settled returns what was already paid, waived or written off on the charge
func (c *LoanCharge) Settled() money.Money {
	return c.AmountPaid.Add(c.AmountWaived).Add(c.AmountWrittenOff)
}

func (c *LoanCharge) UpdateAmount(amount money.Money) {
	c.Amount = amount
	c.AmountOutstanding = amount.Sub(c.AmountPaid).Sub(c.AmountWaived).Sub(c.AmountWrittenOff).NonNegative()
}

// ResetToOriginal clears paid, waived and written-off history
func (c *LoanCharge) ResetToOriginal() {
	zero := money.Zero(c.Amount.Currency())
	c.AmountPaid = zero
	c.AmountWaived = zero
	c.AmountWrittenOff = zero
	c.AmountOutstanding = c.Amount
	c.Waived = false
	for i := range c.Installments {
		c.Installments[i].AmountPaid = zero
		c.Installments[i].AmountWaived = zero
		c.Installments[i].AmountWrittenOff = zero
	}
}

// Deactivate removes the charge from the loan. The installment breakdown and
// the overdue and tranche links are cleared; the charge itself is kept.
func (c *LoanCharge) Deactivate() {
	c.Active = false
	c.Installments = nil
	c.OverdueInstallmentNumber = 0
	c.TrancheDisbursementID = nil
}

func (c *LoanCharge) portion(amount money.Money, number int) money.Money {
	outstanding := c.OutstandingFor(number)
	if !amount.IsPositive() || !outstanding.IsPositive() {
		return money.Zero(c.Amount.Currency())
	}
	return money.Min(amount, outstanding)
}

func (c *LoanCharge) clone() LoanCharge {
	cp := *c
	if c.DueDate != nil {
		d := *c.DueDate
		cp.DueDate = &d
	}
	if c.ParentChargeID != nil {
		id := *c.ParentChargeID
		cp.ParentChargeID = &id
	}
	if c.TrancheDisbursementID != nil {
		id := *c.TrancheDisbursementID
		cp.TrancheDisbursementID = &id
	}
	if c.Installments != nil {
		cp.Installments = append([]InstallmentCharge(nil), c.Installments...)
	}
	return cp
}

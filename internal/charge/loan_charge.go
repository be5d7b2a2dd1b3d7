package charge

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// ApplyRequest carries the loan-specific parameters of a new charge
type ApplyRequest struct {
	DueDate *time.Time

	// AmountOrPercentage overrides the definition's value when set
	AmountOrPercentage       decimal.NullDecimal
	ParentChargeID           *uuid.UUID
	OverdueInstallmentNumber int
	TrancheDisbursementID    *uuid.UUID
}

// UpdateRequest changes the value or due date of an existing charge
type UpdateRequest struct {
	AmountOrPercentage decimal.NullDecimal
	DueDate            *time.Time
}

// Apply attaches a charge definition to a copy of loan and returns the copy
// together with the new charge. Installment fees and distributed charges are
// spread from the first installment whose obligations are not yet met.
func (c *Calculator) Apply(loan *domain.Loan, def domain.ChargeDefinition, req ApplyRequest) (*domain.Loan, *domain.LoanCharge, error) {
	if def.CalculationType == domain.CalculationInvalid {
		return nil, nil, customError.WrapUnsupportedCalculation(def.CalculationType.String())
	}
	if def.TimeType.RequiresDueDate() && req.DueDate == nil {
		return nil, nil, customError.WrapChargeMissingDueDate(def.Name, def.TimeType.String())
	}

	updated := loan.Clone()
	ch := domain.NewLoanCharge(def, updated.Zero(), req.DueDate)
	if req.AmountOrPercentage.Valid {
		ch.AmountOrPercentage = req.AmountOrPercentage.Decimal
	}
	ch.OverdueInstallmentNumber = req.OverdueInstallmentNumber
	ch.TrancheDisbursementID = req.TrancheDisbursementID

	if def.CalculationType == domain.CalculationPercentOfAnotherCharge {
		parentID := req.ParentChargeID
		if parentID == nil {
			parentID = def.ParentChargeID
		}
		parent, err := resolveParent(updated, parentID)
		if err != nil {
			return nil, nil, err
		}
		ch.ParentChargeID = &parent.ID
	}

	start := 1
	if SpreadsOverInstallments(&ch) {
		start = updated.FirstUnpaidInstallment()
		if start == 0 {
			return nil, nil, customError.WrapNoInstallmentsToDistribute(def.Name)
		}
	}
	ch.ApplicableFromInstallment = start

	if err := c.Price(updated, &ch, start); err != nil {
		return nil, nil, err
	}
	updated.Charges = append(updated.Charges, ch)

	c.logger.Debug("charge applied",
		zap.String("loan_id", updated.LoanID),
		zap.String("charge", def.Name),
		zap.Stringer("amount", ch.Amount),
		zap.Int("from_installment", start),
	)
	return updated, &updated.Charges[len(updated.Charges)-1], nil
}

// Update changes a charge's value or due date on a copy of loan and re-prices
// it, together with any charge computed as a percentage of it. Distribution is
// anchored on the first unpaid installment; earlier shares are kept.
func (c *Calculator) Update(loan *domain.Loan, chargeID uuid.UUID, req UpdateRequest) (*domain.Loan, *domain.LoanCharge, error) {
	updated := loan.Clone()
	ch, err := updated.Charge(chargeID)
	if err != nil {
		return nil, nil, err
	}
	if !ch.Active {
		return nil, nil, customError.WrapChargeInactive(chargeID.String())
	}

	if req.AmountOrPercentage.Valid {
		ch.AmountOrPercentage = req.AmountOrPercentage.Decimal
	}
	if req.DueDate != nil {
		due := *req.DueDate
		ch.DueDate = &due
	}

	if err := c.reprice(updated, ch); err != nil {
		return nil, nil, err
	}
	for _, dependent := range updated.ActiveCharges() {
		if dependent.ParentChargeID != nil && *dependent.ParentChargeID == ch.ID {
			if err := c.reprice(updated, dependent); err != nil {
				return nil, nil, err
			}
		}
	}
	return updated, ch, nil
}

// Remove deactivates a charge on a copy of loan. Charges with payments
// recorded against them cannot be removed.
func (c *Calculator) Remove(loan *domain.Loan, chargeID uuid.UUID) (*domain.Loan, error) {
	updated := loan.Clone()
	ch, err := updated.Charge(chargeID)
	if err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, customError.WrapChargeInactive(chargeID.String())
	}
	if ch.AmountPaid.IsPositive() {
		return nil, customError.WrapChargeAlreadyPaid(chargeID.String())
	}

	ch.Deactivate()
	return updated, nil
}

func (c *Calculator) reprice(loan *domain.Loan, ch *domain.LoanCharge) error {
	start := 1
	if SpreadsOverInstallments(ch) {
		start = loan.FirstUnpaidInstallment()
		if start == 0 {
			return customError.WrapNoInstallmentsToDistribute(ch.Definition.Name)
		}
	}
	return c.Price(loan, ch, start)
}

// Price recomputes a charge's amount from the current state of loan. For
// installment fees and distributed charges the installment breakdown is
// rebuilt from start onward; shares on earlier installments are kept and
// amounts already settled on rebuilt installments carry over. No amount is
// priced below what was already settled against it.
func (c *Calculator) Price(loan *domain.Loan, ch *domain.LoanCharge, start int) error {
	if !SpreadsOverInstallments(ch) {
		basis, err := c.basis(loan, ch, nil, loan.UnpaidInstallments())
		if err != nil {
			return err
		}
		result, err := c.ComputeAmount(ch.Definition, ch.AmountOrPercentage, basis)
		if err != nil {
			return err
		}
		ch.AmountPercentageAppliedTo = result.AppliedTo
		ch.UpdateAmount(money.Max(result.Amount, ch.Settled()))
		return nil
	}

	shares, appliedTo, err := c.InstallmentAmounts(loan, ch, start)
	if err != nil {
		return err
	}

	zero := loan.Zero()
	total := zero
	rows := make([]domain.InstallmentCharge, 0, len(loan.Installments))
	for _, inst := range loan.Installments {
		existing := ch.InstallmentCharge(inst.Number)
		if inst.Number < start {
			if existing != nil {
				rows = append(rows, *existing)
				total = total.Add(existing.Amount)
			}
			continue
		}

		share, ok := shares[inst.Number]
		if !ok {
			continue
		}
		row := domain.InstallmentCharge{
			InstallmentNumber: inst.Number,
			Amount:            share,
			AmountPaid:        zero,
			AmountWaived:      zero,
			AmountWrittenOff:  zero,
		}
		if existing != nil {
			row.AmountPaid = existing.AmountPaid
			row.AmountWaived = existing.AmountWaived
			row.AmountWrittenOff = existing.AmountWrittenOff
			// a share never drops below what the installment already settled
			row.Amount = money.Max(share, existing.Settled())
		}
		rows = append(rows, row)
		total = total.Add(row.Amount)
	}

	ch.Installments = rows
	ch.AmountPercentageAppliedTo = appliedTo
	ch.UpdateAmount(total)
	return nil
}

// InstallmentAmounts computes a charge's share on every installment numbered
// start or later. Percentage installment fees are computed per installment
// against that installment's own amounts; everything else is computed once
// and distributed.
func (c *Calculator) InstallmentAmounts(loan *domain.Loan, ch *domain.LoanCharge, start int) (map[int]money.Money, money.Money, error) {
	var targets []*domain.Installment
	for i := range loan.Installments {
		inst := &loan.Installments[i]
		if inst.Number < start {
			continue
		}
		if ch.IsInstallmentFee() && loan.SkipsInstallmentFees(inst.Number) {
			continue
		}
		targets = append(targets, inst)
	}
	if len(targets) == 0 {
		return nil, loan.Zero(), customError.WrapNoInstallmentsToDistribute(ch.Definition.Name)
	}

	if ch.IsInstallmentFee() && perInstallment(ch.Definition.CalculationType) {
		shares := make(map[int]money.Money, len(targets))
		appliedTo := loan.Zero()
		for _, inst := range targets {
			basis, err := c.basis(loan, ch, inst, len(targets))
			if err != nil {
				return nil, loan.Zero(), err
			}
			result, err := c.ComputeAmount(ch.Definition, ch.AmountOrPercentage, basis)
			if err != nil {
				return nil, loan.Zero(), err
			}
			shares[inst.Number] = result.Amount
			appliedTo = appliedTo.Add(result.AppliedTo)
		}
		return shares, appliedTo, nil
	}

	basis, err := c.basis(loan, ch, nil, len(targets))
	if err != nil {
		return nil, loan.Zero(), err
	}
	result, err := c.ComputeAmount(ch.Definition, ch.AmountOrPercentage, basis)
	if err != nil {
		return nil, loan.Zero(), err
	}

	numbers := make([]int, len(targets))
	for i, inst := range targets {
		numbers[i] = inst.Number
	}
	shares, err := Distribute(result.Amount, numbers)
	if err != nil {
		return nil, loan.Zero(), customError.WrapNoInstallmentsToDistribute(ch.Definition.Name)
	}
	return shares, result.AppliedTo, nil
}

func (c *Calculator) basis(loan *domain.Loan, ch *domain.LoanCharge, inst *domain.Installment, count int) (Basis, error) {
	b := Basis{
		Currency:             loan.Currency,
		Principal:            loan.Principal,
		Interest:             loan.TotalInterest(),
		OutstandingPrincipal: loan.OutstandingPrincipal(),
		Disbursed:            loan.DisbursedAsOf(ch.DueDate),
		ParentAmount:         loan.Zero(),
		InstallmentCount:     count,
	}

	switch {
	case inst != nil:
		b.Principal = inst.Principal.Due
		b.Interest = inst.Interest.Due
	case ch.OverdueInstallmentNumber > 0:
		overdue, err := loan.Installment(ch.OverdueInstallmentNumber)
		if err != nil {
			return Basis{}, err
		}
		b.Principal = overdue.Outstanding(domain.ComponentPrincipal)
		b.Interest = overdue.Outstanding(domain.ComponentInterest)
	}

	if ch.TrancheDisbursementID != nil {
		for _, d := range loan.Disbursements {
			if d.ID == *ch.TrancheDisbursementID {
				b.Disbursed = d.Amount
			}
		}
	}

	if ch.ParentChargeID != nil {
		parent, err := loan.Charge(*ch.ParentChargeID)
		if err != nil {
			return Basis{}, err
		}
		b.ParentAmount = parent.Amount
	}
	return b, nil
}

// resolveParent finds the loan charge a percentage-of-another-charge refers
// to, by loan charge ID or by the ID of its definition.
func resolveParent(loan *domain.Loan, id *uuid.UUID) (*domain.LoanCharge, error) {
	if id == nil {
		return nil, customError.WrapChargeNotFound(uuid.Nil.String())
	}
	if parent, err := loan.Charge(*id); err == nil {
		return parent, nil
	}
	for _, ch := range loan.ActiveCharges() {
		if ch.Definition.ID == *id {
			return ch, nil
		}
	}
	return nil, customError.WrapChargeNotFound(id.String())
}

// SpreadsOverInstallments reports whether the charge carries an installment
// breakdown rather than a single due date
func SpreadsOverInstallments(ch *domain.LoanCharge) bool {
	return ch.IsInstallmentFee() || ch.Definition.CalculationType.IsDistributed()
}

func perInstallment(t domain.ChargeCalculationType) bool {
	switch t {
	case domain.CalculationPercentOfPrincipal,
		domain.CalculationPercentOfPrincipalAndInterest,
		domain.CalculationPercentOfInterest,
		domain.CalculationPercentOfOutstandingPrincipal:
		return true
	}
	return false
}

package waterfall

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// DefaultOrder settles penalties, then fees, then interest, then principal.
// VAT on a charge is settled right after the charge itself.
var DefaultOrder = []domain.Component{
	domain.ComponentPenalty,
	domain.ComponentPenaltyVAT,
	domain.ComponentFee,
	domain.ComponentFeeVAT,
	domain.ComponentInterest,
	domain.ComponentPrincipal,
}

// Allocator spreads transactions over a loan's installments in a fixed
// component precedence, oldest unpaid installment first.
type Allocator struct {
	order         []domain.Component
	categoryOrder []domain.ChargeCategory
	logger        *zap.Logger
}

// NewAllocator builds an allocator. Empty orders fall back to DefaultOrder
// and domain.DefaultCategoryOrder.
func NewAllocator(order []domain.Component, categoryOrder []domain.ChargeCategory, logger *zap.Logger) *Allocator {
	if len(order) == 0 {
		order = DefaultOrder
	}
	if len(categoryOrder) == 0 {
		categoryOrder = domain.DefaultCategoryOrder
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		order:         slices.Clone(order),
		categoryOrder: slices.Clone(categoryOrder),
		logger:        logger,
	}
}

// Order returns the component precedence in use
func (a *Allocator) Order() []domain.Component {
	return slices.Clone(a.order)
}

// Apply allocates tx across a copy of loan and returns the copy together
// with tx carrying its allocations and unallocated remainder.
func (a *Allocator) Apply(loan *domain.Loan, tx *domain.Transaction) (*domain.Loan, *domain.Transaction, error) {
	if !tx.Amount.IsPositive() {
		return nil, nil, customError.WrapInvalidTransactionAmount(tx.Amount.String())
	}
	if tx.Amount.Currency() != loan.Currency {
		return nil, nil, customError.WrapCurrencyMismatch(string(loan.Currency), string(tx.Amount.Currency()))
	}

	updated := loan.Clone()
	result := *tx
	result.Allocations = nil

	remaining := tx.Amount
	for i := range updated.Installments {
		if !remaining.IsPositive() {
			break
		}
		if updated.Installments[i].ObligationsMet {
			continue
		}

		alloc, rest, err := a.Allocate(updated, updated.Installments[i].Number, tx.Type, remaining, tx.Date)
		if err != nil {
			return nil, nil, err
		}
		if alloc.Total().IsPositive() {
			result.Allocations = append(result.Allocations, alloc)
		}
		remaining = rest
	}
	result.Unallocated = remaining

	updated.RefreshStatus()
	a.logger.Debug("transaction allocated",
		zap.String("loan_id", updated.LoanID),
		zap.String("type", string(tx.Type)),
		zap.Stringer("amount", tx.Amount),
		zap.Stringer("unallocated", remaining),
		zap.Int("installments", len(result.Allocations)),
	)
	return updated, &result, nil
}

// Allocate applies up to amount against one installment of loan, in place,
// and returns what each component absorbed together with the remainder.
func (a *Allocator) Allocate(loan *domain.Loan, number int, txType domain.TransactionType, amount money.Money, on time.Time) (domain.InstallmentAllocation, money.Money, error) {
	alloc := domain.InstallmentAllocation{InstallmentNumber: number}
	inst, err := loan.Installment(number)
	if err != nil {
		return alloc, amount, err
	}

	prorated := false
	if loan.InterestRecalculation && txType == domain.TransactionRepayment {
		prorated = inst.ProrateInterest(on)
	}

	remaining := amount
	for _, c := range a.order {
		if !remaining.IsPositive() {
			break
		}
		if txType == domain.TransactionWaiver && !c.Waivable() {
			continue
		}

		var portion money.Money
		switch c {
		case domain.ComponentFee, domain.ComponentPenalty:
			portion, err = a.allocateCharges(loan, inst, c, txType, remaining, on, &alloc)
		default:
			portion, err = inst.Apply(txType, c, remaining, on)
		}
		if err != nil {
			return alloc, amount, err
		}
		alloc.Portions.Add(c, portion)
		remaining = remaining.Sub(portion)
	}

	// pro-rata interest only sticks once the period's principal is settled
	if prorated {
		if inst.Outstanding(domain.ComponentPrincipal).IsPositive() {
			inst.RestoreInterest(on)
		} else {
			alloc.InterestProrated = true
		}
	}
	return alloc, remaining, nil
}

// allocateCharges settles a fee or penalty component charge by charge:
// installment portions by category, then charges falling due within the
// period, then whatever the installment carries without a charge behind it.
func (a *Allocator) allocateCharges(loan *domain.Loan, inst *domain.Installment, c domain.Component, txType domain.TransactionType, amount money.Money, on time.Time, alloc *domain.InstallmentAllocation) (money.Money, error) {
	applied := money.Zero(amount.Currency())
	remaining := amount

	for _, ch := range a.chargesFor(loan, inst, c) {
		if !remaining.IsPositive() {
			break
		}

		number := 0
		if ch.InstallmentCharge(inst.Number) != nil {
			number = inst.Number
		}
		due := a.chargeDue(loan, ch, number)
		if !due.IsPositive() {
			continue
		}

		portion, err := inst.Apply(txType, c, money.Min(remaining, due), on)
		if err != nil {
			return applied, err
		}
		if !portion.IsPositive() {
			continue
		}
		ch.Apply(txType, portion, number)

		alloc.Charges = append(alloc.Charges, domain.ChargePortion{ChargeID: ch.ID, Component: c, Amount: portion})
		applied = applied.Add(portion)
		remaining = remaining.Sub(portion)
	}

	if remaining.IsPositive() {
		portion, err := inst.Apply(txType, c, remaining, on)
		if err != nil {
			return applied, err
		}
		applied = applied.Add(portion)
	}
	return applied, nil
}

// chargeDue is what the transaction may settle on a charge. A percentage of
// another charge is capped at that percentage of the parent's portion on the
// installment.
func (a *Allocator) chargeDue(loan *domain.Loan, ch *domain.LoanCharge, number int) money.Money {
	due := ch.OutstandingFor(number)
	if ch.ParentChargeID == nil || number == 0 {
		return due
	}

	parent, err := loan.Charge(*ch.ParentChargeID)
	if err != nil {
		return due
	}
	parentPortion := parent.InstallmentCharge(number)
	if parentPortion == nil {
		return due
	}

	row := ch.InstallmentCharge(number)
	settled := row.AmountPaid.Add(row.AmountWaived).Add(row.AmountWrittenOff)
	limit := parentPortion.Amount.PercentageOf(ch.AmountOrPercentage).Round().Sub(settled).NonNegative()
	return money.Min(due, limit)
}

func (a *Allocator) chargesFor(loan *domain.Loan, inst *domain.Installment, c domain.Component) []*domain.LoanCharge {
	var portions, dated []*domain.LoanCharge
	for _, ch := range loan.ActiveCharges() {
		if ch.Component() != c || ch.IsDisbursementCharge() {
			continue
		}
		switch {
		case ch.InstallmentCharge(inst.Number) != nil:
			portions = append(portions, ch)
		case loan.CollectsChargeOn(ch, inst.Number):
			dated = append(dated, ch)
		}
	}

	byCategory := func(x, y *domain.LoanCharge) int {
		return a.rank(x.Definition.Category) - a.rank(y.Definition.Category)
	}
	slices.SortStableFunc(portions, byCategory)
	slices.SortStableFunc(dated, func(x, y *domain.LoanCharge) int {
		if cmp := utils.DateOnly(*x.DueDate).Compare(utils.DateOnly(*y.DueDate)); cmp != 0 {
			return cmp
		}
		return byCategory(x, y)
	})
	return append(portions, dated...)
}

func (a *Allocator) rank(category domain.ChargeCategory) int {
	if idx := slices.Index(a.categoryOrder, category); idx >= 0 {
		return idx
	}
	return len(a.categoryOrder)
}

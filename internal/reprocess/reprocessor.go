package reprocess

import (
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/charge"
	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Reprocessor keeps each installment's fee, penalty and VAT due amounts in
// step with the loan's active charges.
type Reprocessor struct {
	calculator *charge.Calculator
	logger     *zap.Logger
}

func New(calculator *charge.Calculator, logger *zap.Logger) *Reprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calculator == nil {
		calculator = charge.NewCalculator(logger)
	}
	return &Reprocessor{calculator: calculator, logger: logger}
}

// Reprocess recomputes the charge-derived due amounts of every installment on
// a copy of loan. Paid amounts are never touched; waived and written-off
// amounts are rebuilt from the charges' own ledgers.
func (r *Reprocessor) Reprocess(loan *domain.Loan, on time.Time) (*domain.Loan, error) {
	updated := loan.Clone()
	updated.SortInstallments()

	if updated.FirstUnpaidInstallment() != 0 {
		for _, ch := range updated.ActiveCharges() {
			if !repricedOnReprocess(ch) {
				continue
			}
			if err := r.calculator.Price(updated, ch, 0); err != nil {
				return nil, err
			}
		}
	}

	for i := range updated.Installments {
		inst := &updated.Installments[i]
		inst.UpdateChargeTotals(r.totalsFor(updated, inst), on)
	}
	updated.RefreshStatus()

	r.logger.Debug("schedule reprocessed",
		zap.String("loan_id", updated.LoanID),
		zap.Int("installments", len(updated.Installments)),
		zap.Int("active_charges", len(updated.ActiveCharges())),
	)
	return updated, nil
}

// repricedOnReprocess selects date-based percentage charges, whose base moves
// with the loan's principal and interest totals.
func repricedOnReprocess(ch *domain.LoanCharge) bool {
	return ch.Definition.CalculationType.IsPercentage() &&
		!charge.SpreadsOverInstallments(ch) &&
		!ch.IsDisbursementCharge() &&
		!ch.IsOverdueInstallmentCharge()
}

func (r *Reprocessor) totalsFor(loan *domain.Loan, inst *domain.Installment) domain.ChargeTotals {
	zero := loan.Zero()
	totals := domain.ChargeTotals{
		FeeDue:            zero,
		FeeWaived:         zero,
		FeeWrittenOff:     zero,
		PenaltyDue:        zero,
		PenaltyWaived:     zero,
		PenaltyWrittenOff: zero,
		FeeVATDue:         zero,
		PenaltyVATDue:     zero,
	}

	for _, ch := range loan.ActiveCharges() {
		if ch.IsDisbursementCharge() {
			continue
		}

		var amount, waived, writtenOff money.Money
		switch {
		case charge.SpreadsOverInstallments(ch):
			if ch.IsInstallmentFee() && loan.SkipsInstallmentFees(inst.Number) {
				continue
			}
			row := ch.InstallmentCharge(inst.Number)
			if row == nil {
				continue
			}
			amount, waived, writtenOff = row.Amount, row.AmountWaived, row.AmountWrittenOff
		case loan.CollectsChargeOn(ch, inst.Number):
			amount, waived, writtenOff = ch.Amount, ch.AmountWaived, ch.AmountWrittenOff
		default:
			continue
		}

		vat := zero
		if loan.RequiresVAT() && ch.Definition.RequiresVAT {
			vat = amount.PercentageOf(loan.VATPercentage).Round()
		}

		if ch.IsPenalty() {
			totals.PenaltyDue = totals.PenaltyDue.Add(amount)
			totals.PenaltyWaived = totals.PenaltyWaived.Add(waived)
			totals.PenaltyWrittenOff = totals.PenaltyWrittenOff.Add(writtenOff)
			totals.PenaltyVATDue = totals.PenaltyVATDue.Add(vat)
			continue
		}
		totals.FeeDue = totals.FeeDue.Add(amount)
		totals.FeeWaived = totals.FeeWaived.Add(waived)
		totals.FeeWrittenOff = totals.FeeWrittenOff.Add(writtenOff)
		totals.FeeVATDue = totals.FeeVATDue.Add(vat)
	}
	return totals
}

package waterfall

import (
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// Reverse undoes a previously applied transaction on a copy of loan. The
// allocations are replayed backwards, installment by installment and
// component by component, so that reversing transactions in the opposite
// order they were applied restores the earlier state exactly.
func (a *Allocator) Reverse(loan *domain.Loan, tx *domain.Transaction, on time.Time) (*domain.Loan, *domain.Transaction, error) {
	if tx.Reversed {
		return nil, nil, customError.WrapTransactionReversed(tx.ID.String())
	}

	updated := loan.Clone()
	for i := len(tx.Allocations) - 1; i >= 0; i-- {
		if err := a.undo(updated, tx, tx.Allocations[i]); err != nil {
			return nil, nil, err
		}
	}
	updated.RefreshStatus()

	result := *tx
	reversedOn := utils.DateOnly(on)
	result.Reversed = true
	result.ReversedOn = &reversedOn

	a.logger.Debug("transaction reversed",
		zap.String("loan_id", updated.LoanID),
		zap.String("transaction_id", tx.ID.String()),
		zap.Stringer("amount", tx.Amount),
	)
	return updated, &result, nil
}

func (a *Allocator) undo(loan *domain.Loan, tx *domain.Transaction, alloc domain.InstallmentAllocation) error {
	inst, err := loan.Installment(alloc.InstallmentNumber)
	if err != nil {
		return err
	}

	for i := len(a.order) - 1; i >= 0; i-- {
		c := a.order[i]
		amount := alloc.Portions.Get(c)
		if !amount.IsPositive() {
			continue
		}

		for j := len(alloc.Charges) - 1; j >= 0; j-- {
			portion := alloc.Charges[j]
			if portion.Component != c {
				continue
			}
			ch, err := loan.Charge(portion.ChargeID)
			if err != nil {
				return err
			}
			number := 0
			if ch.InstallmentCharge(alloc.InstallmentNumber) != nil {
				number = alloc.InstallmentNumber
			}
			ch.Undo(tx.Type, portion.Amount, number)
		}
		inst.Undo(tx.Type, c, amount, tx.Date)
	}

	if inst.InterestRecalculated() && inst.Outstanding(domain.ComponentPrincipal).IsPositive() {
		inst.RestoreInterest(tx.Date)
	}
	return nil
}

package charge

import (
	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Distribute splits total across the given installment numbers. Each share is
// rounded up at the currency scale and the last installment absorbs the
// difference, so the shares always add up to total exactly. When total is too
// small to give every installment a rounded-up share, the later installments
// get what is left, down to zero; no share is ever negative.
func Distribute(total money.Money, numbers []int) (map[int]money.Money, error) {
	if len(numbers) == 0 {
		return nil, customError.ErrNoInstallmentsToDistribute
	}

	zero := money.Zero(total.Currency())
	share := money.Max(total.DivCeil(int64(len(numbers)), total.Currency().Scale()), zero)
	remaining := total

	shares := make(map[int]money.Money, len(numbers))
	last := len(numbers) - 1
	for _, number := range numbers[:last] {
		s := money.Max(money.Min(share, remaining), zero)
		shares[number] = s
		remaining = remaining.Sub(s)
	}
	shares[numbers[last]] = remaining
	return shares, nil
}

// DistributeFrom splits total across the installments numbered start or later
func DistributeFrom(total money.Money, installments []domain.Installment, start int) (map[int]money.Money, error) {
	if start < 1 {
		start = 1
	}
	var numbers []int
	for _, inst := range installments {
		if inst.Number >= start {
			numbers = append(numbers, inst.Number)
		}
	}
	return Distribute(total, numbers)
}

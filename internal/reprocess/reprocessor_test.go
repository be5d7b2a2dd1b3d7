package reprocess

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/servicing-engine/internal/charge"
	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/internal/waterfall"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/tests/fixtures"
)

var asOf = fixtures.Date(2024, time.January, 10)

func usd(amount string) money.Money { return fixtures.USD(amount) }

func applyCharge(t *testing.T, loan *domain.Loan, def domain.ChargeDefinition, req charge.ApplyRequest) (*domain.Loan, uuid.UUID) {
	t.Helper()
	updated, ch, err := charge.NewCalculator(nil).Apply(loan, def, req)
	require.NoError(t, err)
	return updated, ch.ID
}

func TestReprocess_InstallmentFee(t *testing.T) {
	loan := fixtures.Loan(4, "250.00", "10.00")
	loan, _ = applyCharge(t, loan, fixtures.Definition("maintenance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00"), charge.ApplyRequest{})

	updated, err := New(nil, nil).Reprocess(loan, asOf)

	require.NoError(t, err)
	for _, inst := range updated.Installments {
		assert.True(t, inst.Fee.Due.Equal(usd("10.00")), "installment %d", inst.Number)
		assert.True(t, inst.Penalty.Due.IsZero())
	}
	assert.True(t, loan.Installments[0].Fee.Due.IsZero(), "input loan must not be mutated")
}

func TestReprocess_DatedChargesLandInTheirPeriod(t *testing.T) {
	loan := fixtures.Loan(3, "250.00", "10.00")

	onDisbursement := fixtures.Disbursed
	midFebruary := fixtures.Date(2024, time.February, 15)
	onSecondDue := fixtures.Date(2024, time.March, 1)
	afterMaturity := fixtures.Date(2024, time.June, 1)

	loan, _ = applyCharge(t, loan, fixtures.Definition("opening", domain.CalculationFlat, domain.TimeSpecifiedDueDate, "1.00"), charge.ApplyRequest{DueDate: &onDisbursement})
	loan, _ = applyCharge(t, loan, fixtures.Definition("statement", domain.CalculationFlat, domain.TimeSpecifiedDueDate, "2.00"), charge.ApplyRequest{DueDate: &midFebruary})
	loan, _ = applyCharge(t, loan, fixtures.Definition("courier", domain.CalculationFlat, domain.TimeSpecifiedDueDate, "4.00"), charge.ApplyRequest{DueDate: &onSecondDue})
	loan, _ = applyCharge(t, loan, fixtures.Definition("closing", domain.CalculationFlat, domain.TimeSpecifiedDueDate, "8.00"), charge.ApplyRequest{DueDate: &afterMaturity})

	updated, err := New(nil, nil).Reprocess(loan, asOf)

	require.NoError(t, err)
	assert.True(t, updated.Installments[0].Fee.Due.Equal(usd("1.00")))
	assert.True(t, updated.Installments[1].Fee.Due.Equal(usd("6.00")))
	assert.True(t, updated.Installments[2].Fee.Due.Equal(usd("8.00")))
}

func TestReprocess_OverduePenaltyAndVAT(t *testing.T) {
	loan := fixtures.Loan(2, "250.00", "10.00")
	loan.VATPercentage = decimal.NewFromInt(19)

	fee := fixtures.Definition("insurance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00")
	fee.RequiresVAT = true
	loan, _ = applyCharge(t, loan, fee, charge.ApplyRequest{})

	penaltyDue := fixtures.Date(2024, time.February, 5)
	penalty := fixtures.Definition("late payment", domain.CalculationPercentOfPrincipal, domain.TimeOverdueInstallment, "2")
	penalty.IsPenalty = true
	penalty.RequiresVAT = true
	loan, _ = applyCharge(t, loan, penalty, charge.ApplyRequest{DueDate: &penaltyDue, OverdueInstallmentNumber: 1})

	updated, err := New(nil, nil).Reprocess(loan, asOf)

	require.NoError(t, err)
	first, second := updated.Installments[0], updated.Installments[1]
	assert.True(t, first.Fee.Due.Equal(usd("10.00")))
	assert.True(t, first.FeeVAT.Due.Equal(usd("1.90")))
	assert.True(t, first.Penalty.Due.IsZero())
	assert.True(t, second.Penalty.Due.Equal(usd("5.00")), "2 percent of the 250.00 overdue principal")
	assert.True(t, second.PenaltyVAT.Due.Equal(usd("0.95")))
	assert.True(t, second.TotalDue().Equal(usd("277.85")))
}

func TestReprocess_PreservesHistory(t *testing.T) {
	loan := fixtures.Loan(2, "250.00", "10.00")
	loan, chargeID := applyCharge(t, loan, fixtures.Definition("maintenance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00"), charge.ApplyRequest{})

	reprocessor := New(nil, nil)
	loan, err := reprocessor.Reprocess(loan, asOf)
	require.NoError(t, err)

	allocator := waterfall.NewAllocator(nil, nil, nil)
	loan, _, err = allocator.Apply(loan, &domain.Transaction{ID: uuid.New(), Type: domain.TransactionRepayment, Amount: usd("6.00"), Date: asOf})
	require.NoError(t, err)
	loan, _, err = allocator.Apply(loan, &domain.Transaction{ID: uuid.New(), Type: domain.TransactionWaiver, Amount: usd("4.00"), Date: asOf})
	require.NoError(t, err)

	loan, _, err = charge.NewCalculator(nil).Update(loan, chargeID, charge.UpdateRequest{
		AmountOrPercentage: decimal.NewNullDecimal(decimal.RequireFromString("12.00")),
	})
	require.NoError(t, err)

	updated, err := reprocessor.Reprocess(loan, asOf)
	require.NoError(t, err)

	first := updated.Installments[0]
	assert.True(t, first.Fee.Due.Equal(usd("12.00")))
	assert.True(t, first.Fee.Paid.Equal(usd("6.00")))
	assert.True(t, first.Fee.Waived.Equal(usd("4.00")))
	assert.True(t, first.Outstanding(domain.ComponentFee).Equal(usd("2.00")))
	assert.True(t, updated.Installments[1].Fee.Due.Equal(usd("12.00")))

	again, err := reprocessor.Reprocess(updated, asOf)
	require.NoError(t, err)
	for i := range again.Installments {
		for _, c := range domain.AllComponents {
			assert.True(t, again.Installments[i].Ledger(c).Due.Equal(updated.Installments[i].Ledger(c).Due))
		}
	}
}

func TestReprocess_SkipsFeesOnInterestFreeFirstPeriod(t *testing.T) {
	loan := fixtures.Loan(3, "250.00", "10.00")
	loan, _ = applyCharge(t, loan, fixtures.Definition("maintenance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00"), charge.ApplyRequest{})
	interestFrom := fixtures.Date(2024, time.January, 20)
	loan.InterestChargedFrom = &interestFrom

	updated, err := New(nil, nil).Reprocess(loan, asOf)

	require.NoError(t, err)
	assert.True(t, updated.Installments[0].Fee.Due.IsZero())
	assert.True(t, updated.Installments[1].Fee.Due.Equal(usd("10.00")))
}

func TestReprocess_RepricesPercentageCharges(t *testing.T) {
	loan := fixtures.Loan(2, "250.00", "10.00")
	due := fixtures.Date(2024, time.February, 15)
	loan, chargeID := applyCharge(t, loan,
		fixtures.Definition("study", domain.CalculationPercentOfPrincipalAndInterest, domain.TimeSpecifiedDueDate, "1"),
		charge.ApplyRequest{DueDate: &due})

	for i := range loan.Installments {
		loan.Installments[i].Interest.Due = usd("25.00")
	}

	updated, err := New(nil, nil).Reprocess(loan, asOf)
	require.NoError(t, err)

	repriced, err := updated.Charge(chargeID)
	require.NoError(t, err)
	assert.True(t, repriced.Amount.Equal(usd("5.50")))
	assert.True(t, updated.Installments[1].Fee.Due.Equal(usd("5.50")))
}

func TestReprocess_IgnoresInactiveCharges(t *testing.T) {
	loan := fixtures.Loan(2, "250.00", "10.00")
	calc := charge.NewCalculator(nil)
	loan, chargeID := applyCharge(t, loan, fixtures.Definition("maintenance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00"), charge.ApplyRequest{})

	reprocessor := New(calc, nil)
	loan, err := reprocessor.Reprocess(loan, asOf)
	require.NoError(t, err)
	require.True(t, loan.Installments[0].Fee.Due.Equal(usd("10.00")))

	loan, err = calc.Remove(loan, chargeID)
	require.NoError(t, err)
	updated, err := reprocessor.Reprocess(loan, asOf)
	require.NoError(t, err)

	for _, inst := range updated.Installments {
		assert.True(t, inst.Fee.Due.IsZero())
	}
}

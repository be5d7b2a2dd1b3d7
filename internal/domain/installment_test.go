package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

var (
	periodStart = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
)

func usd(amount string) money.Money { return money.MustParse(amount, money.USD) }

func newTestInstallment() Installment {
	inst := NewInstallment(1, periodStart, periodEnd, usd("200.00"), usd("50.00"))
	inst.Fee.Due = usd("20.00")
	inst.Penalty.Due = usd("5.00")
	return inst
}

func assertBalanced(t *testing.T, inst *Installment) {
	t.Helper()
	for _, c := range AllComponents {
		l := inst.Ledger(c)
		assert.True(t, l.Due.Equal(l.Paid.Add(l.Waived).Add(l.WrittenOff).Add(l.Outstanding())), "component %s", c)
		assert.False(t, l.Outstanding().IsNegative(), "component %s", c)
	}
}

func TestPayComponent(t *testing.T) {
	tests := []struct {
		name        string
		component   Component
		amount      string
		writeOff    bool
		wantApplied string
		wantPaid    string
		wantWritten string
	}{
		{name: "partial", component: ComponentInterest, amount: "30.00", wantApplied: "30.00", wantPaid: "30.00", wantWritten: "0"},
		{name: "exact", component: ComponentInterest, amount: "50.00", wantApplied: "50.00", wantPaid: "50.00", wantWritten: "0"},
		{name: "more than due", component: ComponentFee, amount: "75.00", wantApplied: "20.00", wantPaid: "20.00", wantWritten: "0"},
		{name: "zero amount", component: ComponentPrincipal, amount: "0", wantApplied: "0", wantPaid: "0", wantWritten: "0"},
		{name: "write off", component: ComponentPrincipal, amount: "80.00", writeOff: true, wantApplied: "80.00", wantPaid: "0", wantWritten: "80.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newTestInstallment()

			applied := inst.PayComponent(tt.component, usd(tt.amount), periodEnd, tt.writeOff)

			assert.True(t, applied.Equal(usd(tt.wantApplied)), "applied %s", applied)
			assert.True(t, inst.Ledger(tt.component).Paid.Equal(usd(tt.wantPaid)))
			assert.True(t, inst.Ledger(tt.component).WrittenOff.Equal(usd(tt.wantWritten)))
			assertBalanced(t, &inst)
		})
	}
}

func TestWaiveComponent(t *testing.T) {
	inst := newTestInstallment()

	waived, err := inst.WaiveComponent(ComponentPenalty, usd("10.00"), periodEnd)
	require.NoError(t, err)
	assert.True(t, waived.Equal(usd("5.00")))
	assert.True(t, inst.Outstanding(ComponentPenalty).IsZero())

	_, err = inst.WaiveComponent(ComponentPrincipal, usd("10.00"), periodEnd)
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeComponentNotWaivable, customError.Code(err))
	assert.True(t, inst.Principal.Waived.IsZero())
}

func TestOutstandingInvariantAcrossOperations(t *testing.T) {
	inst := newTestInstallment()
	on := periodStart.AddDate(0, 0, 10)

	inst.PayComponent(ComponentPenalty, usd("2.00"), on, false)
	_, err := inst.WaiveComponent(ComponentFee, usd("7.50"), on)
	require.NoError(t, err)
	inst.PayComponent(ComponentInterest, usd("60.00"), on, false)
	inst.PayComponent(ComponentPrincipal, usd("25.00"), on, true)
	inst.UndoPayment(ComponentInterest, usd("15.00"), on)
	inst.UndoWaive(ComponentFee, usd("100.00"), on)
	inst.UndoWriteOff(ComponentPrincipal, usd("5.00"), on)
	inst.UndoPayment(ComponentPenalty, usd("9.99"), on)

	assertBalanced(t, &inst)
	assert.True(t, inst.Interest.Paid.Equal(usd("35.00")))
	assert.True(t, inst.Fee.Waived.IsZero())
	assert.True(t, inst.Principal.WrittenOff.Equal(usd("20.00")))
	assert.True(t, inst.Penalty.Paid.IsZero())
}

func TestPayUndoRoundTrip(t *testing.T) {
	dates := map[string]time.Time{
		"in advance": periodStart.AddDate(0, 0, 3),
		"on due":     periodEnd,
		"late":       periodEnd.AddDate(0, 0, 4),
	}

	for name, on := range dates {
		t.Run(name, func(t *testing.T) {
			inst := newTestInstallment()
			inst.PayComponent(ComponentFee, usd("20.00"), on, false)
			before := inst

			applied := inst.PayComponent(ComponentInterest, usd("33.33"), on, false)
			inst.UndoPayment(ComponentInterest, applied, on)

			assert.True(t, inst.Interest.Paid.Equal(before.Interest.Paid))
			assert.True(t, inst.Outstanding(ComponentInterest).Equal(before.Outstanding(ComponentInterest)))
			assert.Equal(t, before.ObligationsMet, inst.ObligationsMet)
			assert.True(t, inst.TotalPaidInAdvance.Equal(before.TotalPaidInAdvance))
			assert.True(t, inst.TotalPaidLate.Equal(before.TotalPaidLate))
		})
	}
}

func TestAdvanceAndLateTracking(t *testing.T) {
	inst := newTestInstallment()

	inst.PayComponent(ComponentInterest, usd("10.00"), periodStart.AddDate(0, 0, 5), false)
	inst.PayComponent(ComponentInterest, usd("10.00"), periodEnd, false)
	inst.PayComponent(ComponentInterest, usd("10.00"), periodEnd.AddDate(0, 0, 1), false)
	inst.PayComponent(ComponentPrincipal, usd("10.00"), periodStart, true)

	assert.True(t, inst.TotalPaidInAdvance.Equal(usd("10.00")))
	assert.True(t, inst.TotalPaidLate.Equal(usd("10.00")))
}

func TestObligationsMetFlag(t *testing.T) {
	inst := newTestInstallment()
	firstDay := periodEnd
	secondDay := periodEnd.AddDate(0, 0, 2)

	for _, c := range AllComponents {
		inst.PayComponent(c, inst.Outstanding(c), firstDay, false)
	}
	require.True(t, inst.ObligationsMet)
	require.NotNil(t, inst.ObligationsMetOnDate)
	assert.True(t, inst.ObligationsMetOnDate.Equal(firstDay))

	inst.UndoPayment(ComponentFee, usd("0.01"), secondDay)
	assert.False(t, inst.ObligationsMet)
	assert.Nil(t, inst.ObligationsMetOnDate)

	inst.PayComponent(ComponentFee, usd("0.01"), secondDay, false)
	assert.True(t, inst.ObligationsMet)
	assert.True(t, inst.ObligationsMetOnDate.Equal(secondDay))
}

func TestUpdateChargeTotalsKeepsPaid(t *testing.T) {
	inst := newTestInstallment()
	inst.PayComponent(ComponentFee, usd("20.00"), periodEnd, false)
	require.True(t, inst.Outstanding(ComponentFee).IsZero())

	inst.UpdateChargeTotals(ChargeTotals{
		FeeDue:     usd("30.00"),
		FeeWaived:  usd("4.00"),
		PenaltyDue: usd("5.00"),
		FeeVATDue:  usd("5.70"),
	}, periodEnd)

	assert.True(t, inst.Fee.Paid.Equal(usd("20.00")))
	assert.True(t, inst.Outstanding(ComponentFee).Equal(usd("6.00")))
	assert.True(t, inst.Outstanding(ComponentFeeVAT).Equal(usd("5.70")))
	assert.False(t, inst.ObligationsMet)
}

func TestOverSettledComponentDoesNotOffsetOthers(t *testing.T) {
	inst := newTestInstallment()
	for _, c := range AllComponents {
		if c != ComponentPrincipal {
			inst.PayComponent(c, inst.Outstanding(c), periodEnd, false)
		}
	}
	inst.PayComponent(ComponentPrincipal, usd("194.00"), periodEnd, false)

	// fee due lowered below the 20.00 already paid
	inst.UpdateChargeTotals(ChargeTotals{FeeDue: usd("4.00"), PenaltyDue: usd("5.00")}, periodEnd)

	assert.True(t, inst.Outstanding(ComponentFee).Equal(usd("-16.00")))
	assert.True(t, inst.TotalOutstanding().Equal(usd("6.00")))
	assert.False(t, inst.ObligationsMet)
	assert.Nil(t, inst.ObligationsMetOnDate)

	inst.PayComponent(ComponentPrincipal, usd("6.00"), periodEnd, false)
	assert.True(t, inst.TotalOutstanding().IsZero())
	assert.True(t, inst.ObligationsMet)
}

func TestProrateInterest(t *testing.T) {
	// 30-day period, 12 days elapsed
	inst := NewInstallment(1, periodStart, periodStart.AddDate(0, 0, 30), usd("200.00"), usd("45.00"))
	on := periodStart.AddDate(0, 0, 12)

	require.True(t, inst.ProrateInterest(on))
	assert.True(t, inst.Interest.Due.Equal(usd("18.00")))
	assert.True(t, inst.InterestRecalculated())
	assert.True(t, inst.OriginalInterestDue.Equal(usd("45.00")))

	inst.RestoreInterest(on)
	assert.True(t, inst.Interest.Due.Equal(usd("45.00")))
	assert.False(t, inst.InterestRecalculated())
}

func TestProrateInterestOutsidePeriod(t *testing.T) {
	inst := newTestInstallment()

	assert.False(t, inst.ProrateInterest(periodStart))
	assert.False(t, inst.ProrateInterest(periodEnd))
	assert.False(t, inst.ProrateInterest(periodEnd.AddDate(0, 0, 1)))
	assert.True(t, inst.Interest.Due.Equal(usd("50.00")))
}

func TestProrateInterestNeverBelowSettled(t *testing.T) {
	inst := NewInstallment(1, periodStart, periodStart.AddDate(0, 0, 30), usd("200.00"), usd("45.00"))
	inst.PayComponent(ComponentInterest, usd("30.00"), periodStart.AddDate(0, 0, 1), false)

	inst.ProrateInterest(periodStart.AddDate(0, 0, 12))

	assert.True(t, inst.Interest.Due.Equal(usd("30.00")))
	assert.True(t, inst.Outstanding(ComponentInterest).IsZero())
}

func TestTruncatePrincipal(t *testing.T) {
	inst := NewInstallment(1, periodStart, periodEnd, usd("200.00"), usd("50.00"))
	inst.PayComponent(ComponentInterest, usd("50.00"), periodEnd, false)
	inst.PayComponent(ComponentPrincipal, usd("80.00"), periodEnd, false)
	require.False(t, inst.ObligationsMet)

	moved := inst.TruncatePrincipal(periodEnd)

	assert.True(t, moved.Equal(usd("120.00")))
	assert.True(t, inst.Principal.Due.Equal(usd("80.00")))
	assert.True(t, inst.ObligationsMet)
	assertBalanced(t, &inst)
}

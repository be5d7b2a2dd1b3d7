package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/servicing-engine/internal/charge"
	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/internal/reprocess"
	"github.com/segyhp/servicing-engine/internal/waterfall"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/tests/fixtures"
)

var quarter = 90 * 24 * time.Hour

func zeroRate() decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.Zero)
}

func TestReschedule_RegeneratesUnpaidPart(t *testing.T) {
	calc := charge.NewCalculator(nil)
	loan := fixtures.Loan(3, "250.00", "10.00")
	loan, _, err := calc.Apply(loan, fixtures.Definition("maintenance", domain.CalculationFlat, domain.TimeInstallmentFee, "10.00"), charge.ApplyRequest{})
	require.NoError(t, err)
	loan, err = reprocess.New(calc, nil).Reprocess(loan, fixtures.Disbursed)
	require.NoError(t, err)

	// settles the first installment, then fee, interest and 50.00 principal of the second
	loan, _, err = waterfall.NewAllocator(nil, nil, nil).Apply(loan, &domain.Transaction{
		ID:     uuid.New(),
		Type:   domain.TransactionRepayment,
		Amount: fixtures.USD("340.00"),
		Date:   fixtures.Date(2024, time.March, 1),
	})
	require.NoError(t, err)
	require.True(t, loan.Installments[1].Principal.Paid.Equal(fixtures.USD("50.00")))

	on := fixtures.Date(2024, time.March, 15)
	rescheduler := NewRescheduler(Policy{MaxReschedules: 2, Window: quarter}, calc, nil, nil)
	updated, err := rescheduler.Reschedule(loan, Request{Periods: 3, AnnualRate: zeroRate(), Date: on})

	require.NoError(t, err)
	require.NoError(t, updated.Validate())
	require.Len(t, updated.Installments, 5)

	kept := updated.Installments[1]
	assert.True(t, kept.Principal.Due.Equal(fixtures.USD("50.00")))
	assert.True(t, kept.Interest.Due.Equal(fixtures.USD("10.00")))
	assert.True(t, kept.Fee.Due.Equal(fixtures.USD("10.00")))
	assert.True(t, kept.ObligationsMet)

	dues := []time.Time{
		fixtures.Date(2024, time.April, 15),
		fixtures.Date(2024, time.May, 15),
		fixtures.Date(2024, time.June, 15),
	}
	for i, due := range dues {
		inst := updated.Installments[2+i]
		assert.Equal(t, 3+i, inst.Number)
		assert.Equal(t, due, inst.DueDate)
		assert.True(t, inst.Principal.Due.Equal(fixtures.USD("150.00")), "installment %d", inst.Number)
		assert.True(t, inst.Interest.Due.IsZero())
		assert.True(t, inst.Fee.Due.Equal(fixtures.USD("10.00")), "installment %d", inst.Number)
	}

	assert.True(t, updated.TotalPrincipal().Equal(loan.Principal))
	assert.True(t, updated.InterestRate.IsZero())
	assert.Equal(t, []time.Time{on}, updated.RescheduleDates)

	fee := updated.Charges[0]
	assert.Len(t, fee.Installments, 5)
	assert.True(t, fee.Amount.Equal(fixtures.USD("50.00")))
	assert.True(t, fee.InstallmentCharge(1).AmountPaid.Equal(fixtures.USD("10.00")))

	assert.Len(t, loan.Installments, 3, "input loan must not be mutated")
}

func TestReschedule_NothingSettledStartsFromDisbursement(t *testing.T) {
	loan := fixtures.Loan(2, "300.00", "0.00")

	updated, err := NewRescheduler(Policy{}, nil, nil, nil).Reschedule(loan, Request{
		Periods:    3,
		AnnualRate: zeroRate(),
		Date:       fixtures.Disbursed,
	})

	require.NoError(t, err)
	require.Len(t, updated.Installments, 3)
	assert.Equal(t, 1, updated.Installments[0].Number)
	assert.Equal(t, fixtures.Disbursed, updated.Installments[0].FromDate)
	for _, inst := range updated.Installments {
		assert.True(t, inst.Principal.Due.Equal(fixtures.USD("200.00")))
	}
}

func TestReschedule_Rejections(t *testing.T) {
	settled := fixtures.Loan(2, "100.00", "5.00")
	fixtures.Settle(settled, 1)
	fixtures.Settle(settled, 2)

	limited := fixtures.Loan(3, "100.00", "5.00")
	limited.RescheduleDates = []time.Time{fixtures.Date(2024, time.February, 1)}

	tests := []struct {
		name string
		loan *domain.Loan
		req  Request
		err  error
	}{
		{
			name: "nothing outstanding",
			loan: settled,
			req:  Request{Periods: 4, Date: fixtures.Date(2024, time.April, 1)},
			err:  customError.ErrNothingToReschedule,
		},
		{
			name: "limit reached within the window",
			loan: limited,
			req:  Request{Periods: 4, Date: fixtures.Date(2024, time.March, 15)},
			err:  customError.ErrRescheduleLimitExceeded,
		},
		{
			name: "periods not above unpaid installments",
			loan: fixtures.Loan(3, "100.00", "5.00"),
			req:  Request{Periods: 3, Date: fixtures.Date(2024, time.March, 15)},
			err:  customError.ErrReschedulePeriodsTooFew,
		},
	}

	rescheduler := NewRescheduler(Policy{MaxReschedules: 1, Window: quarter}, nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := rescheduler.Reschedule(tt.loan, tt.req)

			assert.Nil(t, updated)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReschedule_WindowRolls(t *testing.T) {
	loan := fixtures.Loan(3, "100.00", "5.00")
	loan.RescheduleDates = []time.Time{fixtures.Date(2024, time.February, 1)}

	updated, err := NewRescheduler(Policy{MaxReschedules: 1, Window: quarter}, nil, nil, nil).
		Reschedule(loan, Request{Periods: 4, Date: fixtures.Date(2024, time.June, 1)})

	require.NoError(t, err)
	assert.Len(t, updated.RescheduleDates, 2)
	assert.True(t, updated.TotalPrincipal().Equal(fixtures.USD("300.00")))
}

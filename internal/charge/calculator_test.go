package charge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/tests/fixtures"
)

func usd(amount string) money.Money { return fixtures.USD(amount) }

func TestComputeAmount(t *testing.T) {
	basis := Basis{
		Currency:             money.USD,
		Principal:            usd("1000.00"),
		Interest:             usd("120.00"),
		OutstandingPrincipal: usd("1000.00"),
		Disbursed:            usd("600.00"),
		ParentAmount:         usd("80.00"),
		InstallmentCount:     4,
	}

	tests := []struct {
		name      string
		calc      domain.ChargeCalculationType
		timeType  domain.ChargeTimeType
		value     string
		maxCap    string
		want      string
		appliedTo string
	}{
		{name: "flat", calc: domain.CalculationFlat, timeType: domain.TimeSpecifiedDueDate, value: "15.00", want: "15.00", appliedTo: "0"},
		{name: "flat installment fee", calc: domain.CalculationFlat, timeType: domain.TimeInstallmentFee, value: "10.00", want: "40.00", appliedTo: "0"},
		{name: "flat distributed", calc: domain.CalculationFlatDistributed, timeType: domain.TimeInstallmentFee, value: "100.00", want: "100.00", appliedTo: "0"},
		{name: "percent of principal", calc: domain.CalculationPercentOfPrincipal, timeType: domain.TimeDisbursement, value: "2", want: "20.00", appliedTo: "1000.00"},
		{name: "percent of principal capped", calc: domain.CalculationPercentOfPrincipal, timeType: domain.TimeDisbursement, value: "5", maxCap: "40.00", want: "40.00", appliedTo: "1000.00"},
		{name: "percent of principal and interest", calc: domain.CalculationPercentOfPrincipalAndInterest, timeType: domain.TimeSpecifiedDueDate, value: "1", want: "11.20", appliedTo: "1120.00"},
		{name: "percent of interest", calc: domain.CalculationPercentOfInterest, timeType: domain.TimeSpecifiedDueDate, value: "2.5", want: "3.00", appliedTo: "120.00"},
		{name: "percent of disbursement", calc: domain.CalculationPercentOfDisbursement, timeType: domain.TimeTrancheDisbursement, value: "1", want: "6.00", appliedTo: "600.00"},
		{name: "percent of another charge", calc: domain.CalculationPercentOfAnotherCharge, timeType: domain.TimeSpecifiedDueDate, value: "19", want: "15.20", appliedTo: "80.00"},
		{name: "percent of outstanding principal", calc: domain.CalculationPercentOfOutstandingPrincipal, timeType: domain.TimeInstallmentFee, value: "10", want: "25.00", appliedTo: "250.00"},
		{name: "percent distributed rounds half up", calc: domain.CalculationPercentDistributed, timeType: domain.TimeInstallmentFee, value: "0.0125", want: "0.13", appliedTo: "1000.00"},
	}

	calc := NewCalculator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := fixtures.Definition(tt.name, tt.calc, tt.timeType, tt.value)
			if tt.maxCap != "" {
				def.MaxCap = decimal.NewNullDecimal(decimal.RequireFromString(tt.maxCap))
			}

			got, err := calc.ComputeAmount(def, def.AmountOrPercentage, basis)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount.Amount().StringFixed(2))
			assert.True(t, got.AppliedTo.Equal(usd(tt.appliedTo)), "applied to %s", got.AppliedTo)
		})
	}
}

func TestComputeAmount_InvalidTypeResolvesToZero(t *testing.T) {
	def := fixtures.Definition("broken", domain.CalculationInvalid, domain.TimeSpecifiedDueDate, "10")

	got, err := NewCalculator(nil).ComputeAmount(def, def.AmountOrPercentage, Basis{Currency: money.USD, Principal: usd("100")})

	assert.NoError(t, err)
	assert.True(t, got.Amount.IsZero())
	assert.True(t, got.AppliedTo.IsZero())
}

func TestComputeAmount_OutstandingPrincipalWithoutInstallments(t *testing.T) {
	def := fixtures.Definition("servicing", domain.CalculationPercentOfOutstandingPrincipal, domain.TimeInstallmentFee, "1")

	_, err := NewCalculator(nil).ComputeAmount(def, def.AmountOrPercentage, Basis{
		Currency:             money.USD,
		OutstandingPrincipal: usd("500"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrNoInstallmentsToDistribute)
}

func TestClamp(t *testing.T) {
	def := fixtures.Definition("capped", domain.CalculationPercentOfPrincipal, domain.TimeDisbursement, "3")
	def.MinCap = decimal.NewNullDecimal(decimal.RequireFromString("5.00"))
	def.MaxCap = decimal.NewNullDecimal(decimal.RequireFromString("50.00"))
	calc := NewCalculator(nil)

	for _, base := range []string{"0", "10", "166.66", "500", "1666.67", "1000000"} {
		got, err := calc.ComputeAmount(def, def.AmountOrPercentage, Basis{Currency: money.USD, Principal: usd(base)})
		require.NoError(t, err)
		assert.True(t, got.Amount.GreaterThanOrEqual(usd("5.00")), "base %s gave %s", base, got.Amount)
		assert.True(t, got.Amount.LessThanOrEqual(usd("50.00")), "base %s gave %s", base, got.Amount)
	}

	zeroBase, err := calc.ComputeAmount(def, def.AmountOrPercentage, Basis{Currency: money.USD, Principal: usd("0")})
	require.NoError(t, err)
	assert.True(t, zeroBase.Amount.Equal(usd("5.00")))

	def.MinCap = decimal.NullDecimal{}
	uncapped, err := calc.ComputeAmount(def, def.AmountOrPercentage, Basis{Currency: money.USD, Principal: usd("0")})
	require.NoError(t, err)
	assert.True(t, uncapped.Amount.IsZero())
}

func TestClamp_RoundsCaps(t *testing.T) {
	def := fixtures.Definition("capped", domain.CalculationPercentOfPrincipal, domain.TimeDisbursement, "3")
	def.MinCap = decimal.NewNullDecimal(decimal.RequireFromString("5.005"))
	def.MaxCap = decimal.NewNullDecimal(decimal.RequireFromString("49.999"))

	low := Clamp(def, usd("1.00"))
	high := Clamp(def, usd("100.00"))

	assert.True(t, low.Equal(usd("5.01")), "min cap gave %s", low)
	assert.True(t, high.Equal(usd("50.00")), "max cap gave %s", high)
}

func TestDistribute(t *testing.T) {
	shares, err := Distribute(usd("100.00"), []int{1, 2, 3})

	require.NoError(t, err)
	assert.Equal(t, "33.34", shares[1].Amount().StringFixed(2))
	assert.Equal(t, "33.34", shares[2].Amount().StringFixed(2))
	assert.Equal(t, "33.32", shares[3].Amount().StringFixed(2))
}

func TestDistribute_SumsExactly(t *testing.T) {
	totals := []string{"0.01", "0.05", "1.00", "10.01", "99.99", "100.00", "1234.57", "5000.03"}

	for _, total := range totals {
		for n := 1; n <= 12; n++ {
			numbers := make([]int, n)
			for i := range numbers {
				numbers[i] = i + 1
			}

			shares, err := Distribute(usd(total), numbers)
			require.NoError(t, err)

			sum := money.Zero(money.USD)
			for number, share := range shares {
				assert.False(t, share.IsNegative(), "%s over %d: share %d is %s", total, n, number, share)
				sum = sum.Add(share)
			}
			assert.True(t, sum.Equal(usd(total)), "%s over %d summed to %s", total, n, sum)
		}
	}
}

func TestDistribute_TotalSmallerThanOneUnitPerInstallment(t *testing.T) {
	shares, err := Distribute(usd("0.01"), []int{1, 2, 3})

	require.NoError(t, err)
	assert.Equal(t, "0.01", shares[1].Amount().StringFixed(2))
	assert.True(t, shares[2].IsZero())
	assert.True(t, shares[3].IsZero())

	shares, err = Distribute(usd("0.05"), []int{1, 2, 3, 4, 5, 6, 7})

	require.NoError(t, err)
	for number := 1; number <= 5; number++ {
		assert.Equal(t, "0.01", shares[number].Amount().StringFixed(2), "installment %d", number)
	}
	assert.True(t, shares[6].IsZero())
	assert.True(t, shares[7].IsZero())
}

func TestDistribute_NoInstallments(t *testing.T) {
	_, err := Distribute(usd("10"), nil)
	assert.ErrorIs(t, err, customError.ErrNoInstallmentsToDistribute)
}

func TestDistributeFrom(t *testing.T) {
	loan := fixtures.Loan(4, "250.00", "10.00")

	shares, err := DistributeFrom(usd("90.00"), loan.Installments, 2)

	require.NoError(t, err)
	assert.Len(t, shares, 3)
	assert.NotContains(t, shares, 1)
	assert.True(t, shares[4].Equal(usd("30.00")))
}

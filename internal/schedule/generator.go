package schedule

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// Terms describes the repayment plan to generate
type Terms struct {
	Principal money.Money

	// AnnualRate is the nominal yearly interest rate in percent (12 = 12%)
	AnnualRate decimal.Decimal
	Periods    int
	Frequency  domain.TermFrequency

	// Start is the date the first period runs from
	Start time.Time

	// FirstNumber numbers the first generated installment; zero means 1
	FirstNumber int
}

// PeriodsPerYear returns how many repayment periods fit in one year
func PeriodsPerYear(frequency domain.TermFrequency) int64 {
	if frequency == domain.FrequencyWeekly {
		return 52
	}
	return 12
}

// PeriodicRate converts an annual percentage into the rate of one period
func PeriodicRate(annualRate decimal.Decimal, frequency domain.TermFrequency) decimal.Decimal {
	return annualRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(PeriodsPerYear(frequency)))
}

// Generate builds an equal-installment (annuity) schedule:
//
//	r       = annualRate / 100 / periodsPerYear
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// Interest of each period is the remaining principal times r. The last period
// takes whatever principal is left so the schedule sums exactly to P.
func Generate(terms Terms) ([]domain.Installment, error) {
	if terms.Periods <= 0 {
		return nil, customError.WrapInvalidSchedule("number of repayments must be positive")
	}
	if !terms.Principal.IsPositive() {
		return nil, customError.WrapInvalidLoanAmount(terms.Principal.String())
	}
	if terms.AnnualRate.IsNegative() {
		return nil, customError.WrapInvalidSchedule("interest rate cannot be negative")
	}

	first := terms.FirstNumber
	if first <= 0 {
		first = 1
	}
	currency := terms.Principal.Currency()
	scale := currency.Scale()
	rate := PeriodicRate(terms.AnnualRate, terms.Frequency)

	var payment money.Money
	if rate.IsZero() {
		payment = terms.Principal.Div(int64(terms.Periods), scale)
	} else {
		// float64 for the power, decimal for everything monetary
		r := rate.InexactFloat64()
		factor := math.Pow(1+r, float64(terms.Periods))
		amount := terms.Principal.Amount().InexactFloat64() * r * factor / (factor - 1)
		payment = money.New(decimal.NewFromFloat(amount), currency).Round()
	}

	installments := make([]domain.Installment, 0, terms.Periods)
	remaining := terms.Principal
	for period := 1; period <= terms.Periods; period++ {
		from := utils.CalculateDueDate(terms.Start, string(terms.Frequency), period-1)
		due := utils.CalculateDueDate(terms.Start, string(terms.Frequency), period)

		interest := remaining.Mul(rate).Round()
		principal := money.Min(payment.Sub(interest).NonNegative(), remaining)
		if period == terms.Periods {
			principal = remaining
		}
		remaining = remaining.Sub(principal)

		installments = append(installments, domain.NewInstallment(first+period-1, from, due, principal, interest))
	}
	return installments, nil
}

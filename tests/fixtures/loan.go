package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Disbursed is the disbursement date of every fixture loan
var Disbursed = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// USD parses a USD amount
func USD(amount string) money.Money {
	return money.MustParse(amount, money.USD)
}

// Date returns UTC midnight of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Loan builds an active monthly USD loan disbursed on Disbursed with n
// installments, each due the given principal and interest.
func Loan(n int, principal, interest string) *domain.Loan {
	p := USD(principal)
	loan := &domain.Loan{
		ID:               uuid.New(),
		LoanID:           "LOAN-TEST",
		Currency:         money.USD,
		Principal:        p.MulInt(int64(n)),
		InterestRate:     decimal.NewFromInt(12),
		Frequency:        domain.FrequencyMonthly,
		DisbursementDate: Disbursed,
		Status:           domain.LoanStatusActive,
		VATPercentage:    decimal.Zero,
		CreatedAt:        Disbursed,
		UpdatedAt:        Disbursed,
	}
	for i := 1; i <= n; i++ {
		from := Disbursed.AddDate(0, i-1, 0)
		due := Disbursed.AddDate(0, i, 0)
		loan.Installments = append(loan.Installments, domain.NewInstallment(i, from, due, p, USD(interest)))
	}
	return loan
}

// Definition builds a charge definition
func Definition(name string, calc domain.ChargeCalculationType, timeType domain.ChargeTimeType, value string) domain.ChargeDefinition {
	return domain.ChargeDefinition{
		ID:                 uuid.New(),
		Name:               name,
		CalculationType:    calc,
		TimeType:           timeType,
		Category:           domain.CategoryStandard,
		AmountOrPercentage: decimal.RequireFromString(value),
	}
}

// Settle pays off every component of installment number on its due date
func Settle(loan *domain.Loan, number int) {
	inst, err := loan.Installment(number)
	if err != nil {
		panic(err)
	}
	for _, c := range domain.AllComponents {
		inst.PayComponent(c, inst.Outstanding(c), inst.DueDate, false)
	}
}

package charge

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Basis carries the base values a charge amount may be derived from
type Basis struct {
	Currency             money.Currency
	Principal            money.Money
	Interest             money.Money
	OutstandingPrincipal money.Money
	Disbursed            money.Money
	ParentAmount         money.Money
	InstallmentCount     int
}

// Amount is the result of a charge computation
type Amount struct {
	Amount money.Money

	// AppliedTo is the base a percentage was applied to; zero for flat charges
	AppliedTo money.Money
}

// Calculator derives charge amounts and their installment breakdowns
type Calculator struct {
	logger *zap.Logger
}

func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// ComputeAmount derives the nominal amount of a charge from its calculation
// type. value is the flat amount or the percentage, depending on the type.
// Percentage results are clamped to the definition's caps.
func (c *Calculator) ComputeAmount(def domain.ChargeDefinition, value decimal.Decimal, basis Basis) (Amount, error) {
	zero := money.Zero(basis.Currency)

	switch def.CalculationType {
	case domain.CalculationFlat:
		amount := money.New(value, basis.Currency)
		if def.TimeType == domain.TimeInstallmentFee {
			amount = amount.MulInt(int64(basis.InstallmentCount))
		}
		return Amount{Amount: amount.Round(), AppliedTo: zero}, nil

	case domain.CalculationFlatDistributed:
		return Amount{Amount: money.New(value, basis.Currency).Round(), AppliedTo: zero}, nil

	case domain.CalculationPercentOfPrincipal, domain.CalculationPercentDistributed:
		return percentage(def, value, basis.Principal), nil

	case domain.CalculationPercentOfPrincipalAndInterest:
		return percentage(def, value, basis.Principal.Add(basis.Interest)), nil

	case domain.CalculationPercentOfInterest:
		return percentage(def, value, basis.Interest), nil

	case domain.CalculationPercentOfDisbursement:
		return percentage(def, value, basis.Disbursed), nil

	case domain.CalculationPercentOfAnotherCharge:
		return percentage(def, value, basis.ParentAmount), nil

	case domain.CalculationPercentOfOutstandingPrincipal:
		if basis.InstallmentCount <= 0 {
			return Amount{Amount: zero, AppliedTo: zero}, customError.WrapNoInstallmentsToDistribute(def.Name)
		}
		base := basis.OutstandingPrincipal.Div(int64(basis.InstallmentCount), basis.Currency.Scale())
		return percentage(def, value, base), nil
	}

	c.logger.Warn("unsupported charge calculation type",
		zap.String("charge", def.Name),
		zap.Stringer("calculation_type", def.CalculationType),
	)
	return Amount{Amount: zero, AppliedTo: zero}, nil
}

func percentage(def domain.ChargeDefinition, value decimal.Decimal, base money.Money) Amount {
	return Amount{Amount: Clamp(def, base.PercentageOf(value)), AppliedTo: base}
}

// Clamp applies the definition's caps. The minimum is checked first; an
// amount clamped up to the minimum is never compared against the maximum.
func Clamp(def domain.ChargeDefinition, amount money.Money) money.Money {
	currency := amount.Currency()
	if def.MinCap.Valid {
		if minCap := money.New(def.MinCap.Decimal, currency); amount.LessThan(minCap) {
			return minCap.Round()
		}
	}
	if def.MaxCap.Valid {
		if maxCap := money.New(def.MaxCap.Decimal, currency); amount.GreaterThan(maxCap) {
			return maxCap.Round()
		}
	}
	return amount.Round()
}

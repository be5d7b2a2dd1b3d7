package domain

import (
	"fmt"
	"strings"
)

// Component is one economic component of an installment
type Component int

const (
	ComponentPrincipal Component = iota + 1
	ComponentInterest
	ComponentFee
	ComponentPenalty
	ComponentFeeVAT
	ComponentPenaltyVAT
)

var componentNames = map[Component]string{
	ComponentPrincipal:  "principal",
	ComponentInterest:   "interest",
	ComponentFee:        "fee",
	ComponentPenalty:    "penalty",
	ComponentFeeVAT:     "fee_vat",
	ComponentPenaltyVAT: "penalty_vat",
}

// AllComponents lists every component in reporting order
var AllComponents = []Component{
	ComponentPrincipal,
	ComponentInterest,
	ComponentFee,
	ComponentPenalty,
	ComponentFeeVAT,
	ComponentPenaltyVAT,
}

func (c Component) String() string {
	if name, ok := componentNames[c]; ok {
		return name
	}
	return fmt.Sprintf("component(%d)", int(c))
}

// Waivable reports whether outstanding amounts of the component may be forgiven
func (c Component) Waivable() bool {
	return c != ComponentPrincipal
}

// ParseComponent maps a configuration name to a Component
func ParseComponent(name string) (Component, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range componentNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown component %q", name)
}

// ChargeCalculationType determines how a charge's nominal amount is derived
type ChargeCalculationType int

const (
	CalculationInvalid ChargeCalculationType = iota
	CalculationFlat
	CalculationPercentOfPrincipal
	CalculationPercentOfPrincipalAndInterest
	CalculationPercentOfInterest
	CalculationPercentOfDisbursement
	CalculationPercentOfAnotherCharge
	CalculationPercentOfOutstandingPrincipal
	CalculationFlatDistributed
	CalculationPercentDistributed
)

var calculationNames = map[ChargeCalculationType]string{
	CalculationInvalid:                       "invalid",
	CalculationFlat:                          "flat",
	CalculationPercentOfPrincipal:            "percent_of_principal",
	CalculationPercentOfPrincipalAndInterest: "percent_of_principal_and_interest",
	CalculationPercentOfInterest:             "percent_of_interest",
	CalculationPercentOfDisbursement:         "percent_of_disbursement",
	CalculationPercentOfAnotherCharge:        "percent_of_another_charge",
	CalculationPercentOfOutstandingPrincipal: "percent_of_outstanding_principal",
	CalculationFlatDistributed:               "flat_distributed",
	CalculationPercentDistributed:            "percent_distributed",
}

func (t ChargeCalculationType) String() string {
	if name, ok := calculationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("calculation(%d)", int(t))
}

// ParseCalculationType maps a name to a calculation type. Unknown names map to CalculationInvalid.
func ParseCalculationType(name string) ChargeCalculationType {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range calculationNames {
		if n == name {
			return t
		}
	}
	return CalculationInvalid
}

// IsPercentage reports whether the amount is a percentage of some base
func (t ChargeCalculationType) IsPercentage() bool {
	switch t {
	case CalculationPercentOfPrincipal,
		CalculationPercentOfPrincipalAndInterest,
		CalculationPercentOfInterest,
		CalculationPercentOfDisbursement,
		CalculationPercentOfAnotherCharge,
		CalculationPercentOfOutstandingPrincipal,
		CalculationPercentDistributed:
		return true
	}
	return false
}

// IsDistributed reports whether the charge total is split across installments
func (t ChargeCalculationType) IsDistributed() bool {
	return t == CalculationFlatDistributed || t == CalculationPercentDistributed
}

// ChargeTimeType determines when a charge becomes due
type ChargeTimeType int

const (
	TimeDisbursement ChargeTimeType = iota + 1
	TimeSpecifiedDueDate
	TimeInstallmentFee
	TimeOverdueInstallment
	TimeTrancheDisbursement
)

var timeTypeNames = map[ChargeTimeType]string{
	TimeDisbursement:        "disbursement",
	TimeSpecifiedDueDate:    "specified_due_date",
	TimeInstallmentFee:      "installment_fee",
	TimeOverdueInstallment:  "overdue_installment",
	TimeTrancheDisbursement: "tranche_disbursement",
}

func (t ChargeTimeType) String() string {
	if name, ok := timeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("time_type(%d)", int(t))
}

// ParseTimeType maps a name to a charge time type
func ParseTimeType(name string) (ChargeTimeType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range timeTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown charge time type %q", name)
}

// RequiresDueDate reports whether charges of this time type must carry a due date
func (t ChargeTimeType) RequiresDueDate() bool {
	return t == TimeSpecifiedDueDate || t == TimeOverdueInstallment
}

// ChargeCategory groups fee charges for per-category waterfall splitting
type ChargeCategory string

const (
	CategoryStandard              ChargeCategory = "standard"
	CategoryHonorarios            ChargeCategory = "honorarios"
	CategoryAval                  ChargeCategory = "aval"
	CategoryMandatoryInsurance    ChargeCategory = "mandatory_insurance"
	CategoryMandatoryInsuranceVAT ChargeCategory = "mandatory_insurance_vat"
	CategoryVoluntaryInsurance    ChargeCategory = "voluntary_insurance"
)

// DefaultCategoryOrder is the order fee categories are settled within the fee component
var DefaultCategoryOrder = []ChargeCategory{
	CategoryHonorarios,
	CategoryAval,
	CategoryMandatoryInsurance,
	CategoryMandatoryInsuranceVAT,
	CategoryVoluntaryInsurance,
	CategoryStandard,
}

// TransactionType is the kind of event applied through the waterfall
type TransactionType string

const (
	TransactionRepayment TransactionType = "repayment"
	TransactionWaiver    TransactionType = "waiver"
	TransactionWriteOff  TransactionType = "write_off"
)

// TermFrequency is the length of one repayment period
type TermFrequency string

const (
	FrequencyWeekly  TermFrequency = "weekly"
	FrequencyMonthly TermFrequency = "monthly"
)

func (c Component) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Component) UnmarshalText(b []byte) error {
	parsed, err := ParseComponent(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (t ChargeCalculationType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ChargeCalculationType) UnmarshalText(b []byte) error {
	*t = ParseCalculationType(string(b))
	return nil
}

func (t ChargeTimeType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ChargeTimeType) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/servicing-engine/pkg/money"
)

// Portions holds the amount absorbed by each component of one installment
type Portions struct {
	Principal  money.Money `json:"principal"`
	Interest   money.Money `json:"interest"`
	Fee        money.Money `json:"fee"`
	Penalty    money.Money `json:"penalty"`
	FeeVAT     money.Money `json:"fee_vat"`
	PenaltyVAT money.Money `json:"penalty_vat"`
}

func (p *Portions) field(c Component) *money.Money {
	switch c {
	case ComponentPrincipal:
		return &p.Principal
	case ComponentInterest:
		return &p.Interest
	case ComponentFee:
		return &p.Fee
	case ComponentPenalty:
		return &p.Penalty
	case ComponentFeeVAT:
		return &p.FeeVAT
	case ComponentPenaltyVAT:
		return &p.PenaltyVAT
	}
	panic("domain: unknown portion component " + c.String())
}

// Add accumulates amount into the portion of c
func (p *Portions) Add(c Component, amount money.Money) {
	f := p.field(c)
	*f = f.Add(amount)
}

// Get returns the portion of c
func (p Portions) Get(c Component) money.Money {
	return *p.field(c)
}

// Total sums all portions
func (p Portions) Total() money.Money {
	var total money.Money
	for _, c := range AllComponents {
		total = total.Add(p.Get(c))
	}
	return total
}

// ChargePortion is the part of a fee or penalty portion attributed to one loan charge
type ChargePortion struct {
	ChargeID  uuid.UUID   `json:"charge_id"`
	Component Component   `json:"component"`
	Amount    money.Money `json:"amount"`
}

// InstallmentAllocation records how a transaction was spread over one installment
type InstallmentAllocation struct {
	InstallmentNumber int             `json:"installment_number"`
	Portions          Portions        `json:"portions"`
	Charges           []ChargePortion `json:"charges,omitempty"`

	// InterestProrated marks an allocation made against pro-rata interest
	InterestProrated bool `json:"interest_prorated,omitempty"`
}

// Total returns the amount absorbed by the installment
func (a InstallmentAllocation) Total() money.Money {
	return a.Portions.Total()
}

// Transaction is one cash, waiver or write-off event against a loan
type Transaction struct {
	ID          uuid.UUID               `json:"id"`
	LoanID      uuid.UUID               `json:"loan_id"`
	Type        TransactionType         `json:"type"`
	Amount      money.Money             `json:"amount"`
	Date        time.Time               `json:"date"`
	Allocations []InstallmentAllocation `json:"allocations"`

	// Unallocated is the remainder no installment could absorb
	Unallocated money.Money `json:"unallocated"`
	Reversed    bool        `json:"reversed"`
	ReversedOn  *time.Time  `json:"reversed_on,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Allocated returns the total absorbed across installments
func (t *Transaction) Allocated() money.Money {
	total := money.Zero(t.Amount.Currency())
	for _, a := range t.Allocations {
		total = total.Add(a.Total())
	}
	return total
}

// PortionsTotal sums the portions across all installments
func (t *Transaction) PortionsTotal() Portions {
	var p Portions
	for _, a := range t.Allocations {
		for _, c := range AllComponents {
			p.Add(c, a.Portions.Get(c))
		}
	}
	return p
}

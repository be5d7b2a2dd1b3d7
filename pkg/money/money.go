package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	IDR Currency = "IDR"
	USD Currency = "USD"
	EUR Currency = "EUR"
	COP Currency = "COP"
	JPY Currency = "JPY"
)

// zeroDecimalCurrencies have no minor unit
var zeroDecimalCurrencies = map[Currency]bool{
	JPY:   true,
	"KRW": true,
	"CLP": true,
	"VND": true,
}

// Scale returns the number of decimal places amounts in this currency are rounded to
func (c Currency) Scale() int32 {
	if zeroDecimalCurrencies[c] {
		return 0
	}
	return 2
}

// ParseCurrency validates and normalizes a three letter currency code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	return Currency(code), nil
}

var (
	hundred = decimal.NewFromInt(100)

	// ErrCurrencyMismatch is the panic value wrapped when two currencies are mixed
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Money is an immutable fixed-point amount bound to a currency.
//
// The zero Money value carries no currency and combines with a Money of any
// currency, so uninitialised ledger fields behave as zero.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates Money from a decimal amount
func New(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// NewFromInt creates Money from a whole amount
func NewFromInt(amount int64, currency Currency) Money {
	return New(decimal.NewFromInt(amount), currency)
}

// NewFromString parses a decimal string into Money
func NewFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return New(d, currency), nil
}

// MustParse is NewFromString that panics on malformed input. Intended for
// constants and tests.
func MustParse(amount string, currency Currency) Money {
	m, err := NewFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) Currency() Currency { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// WithCurrency returns the same amount bound to another currency
func (m Money) WithCurrency(currency Currency) Money {
	return Money{amount: m.amount, currency: currency}
}

func (m Money) currencyWith(other Money) Currency {
	switch {
	case m.currency == other.currency:
		return m.currency
	case m.currency == "":
		return other.currency
	case other.currency == "":
		return m.currency
	}
	panic(fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency))
}

// Add returns m + other. Mixing two different currencies panics.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount), currency: m.currencyWith(other)}
}

// Sub returns m - other. Mixing two different currencies panics.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount), currency: m.currencyWith(other)}
}

// Mul multiplies the amount by a factor without rounding
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// MulInt multiplies the amount by a whole factor
func (m Money) MulInt(factor int64) Money {
	return m.Mul(decimal.NewFromInt(factor))
}

// PercentageOf returns percentage/100 of the amount, unrounded
func (m Money) PercentageOf(percentage decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(percentage).Div(hundred), currency: m.currency}
}

// Div divides the amount into n parts rounded HALF_UP to places
func (m Money) Div(n int64, places int32) Money {
	if n == 0 {
		panic("money: division by zero")
	}
	return Money{amount: m.amount.DivRound(decimal.NewFromInt(n), places), currency: m.currency}
}

// DivCeil divides the amount into n parts rounded towards positive infinity at places
func (m Money) DivCeil(n int64, places int32) Money {
	if n == 0 {
		panic("money: division by zero")
	}
	return Money{amount: m.amount.Div(decimal.NewFromInt(n)).RoundCeil(places), currency: m.currency}
}

// Round rounds HALF_UP to the currency scale
func (m Money) Round() Money {
	return m.RoundTo(m.currency.Scale())
}

// RoundTo rounds HALF_UP to the given number of places
func (m Money) RoundTo(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// NonNegative floors the amount at zero
func (m Money) NonNegative() Money {
	if m.amount.IsNegative() {
		return Money{amount: decimal.Zero, currency: m.currency}
	}
	return m
}

// Cmp compares amounts: -1 if m < other, 0 if equal, +1 if m > other
func (m Money) Cmp(other Money) int {
	m.currencyWith(other)
	return m.amount.Cmp(other.amount)
}

// Equal reports whether both amounts are equal. Trailing zeros are ignored.
func (m Money) Equal(other Money) bool { return m.Cmp(other) == 0 }

func (m Money) LessThan(other Money) bool { return m.Cmp(other) < 0 }

func (m Money) LessThanOrEqual(other Money) bool { return m.Cmp(other) <= 0 }

func (m Money) GreaterThan(other Money) bool { return m.Cmp(other) > 0 }

func (m Money) GreaterThanOrEqual(other Money) bool { return m.Cmp(other) >= 0 }

// Min returns the smaller of two amounts
func Min(a, b Money) Money {
	if a.LessThanOrEqual(b) {
		return a.WithCurrency(a.currencyWith(b))
	}
	return b.WithCurrency(a.currencyWith(b))
}

// Max returns the larger of two amounts
func Max(a, b Money) Money {
	if a.GreaterThanOrEqual(b) {
		return a.WithCurrency(a.currencyWith(b))
	}
	return b.WithCurrency(a.currencyWith(b))
}

// Sum adds all amounts, starting from zero in the given currency
func Sum(currency Currency, amounts ...Money) Money {
	total := Zero(currency)
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.Scale()), m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	m.currency = v.Currency
	return nil
}

package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	a := MustParse("10.50", USD)
	b := MustParse("0.25", USD)

	assert.True(t, a.Add(b).Equal(MustParse("10.75", USD)))
	assert.True(t, a.Sub(b).Equal(MustParse("10.25", USD)))
	assert.True(t, b.Sub(a).IsNegative())
	assert.True(t, b.Sub(a).NonNegative().IsZero())
	assert.Equal(t, USD, a.Add(b).Currency())
}

func TestZeroValueAdoptsCurrency(t *testing.T) {
	var unset Money
	sum := unset.Add(MustParse("3.00", COP))

	assert.Equal(t, COP, sum.Currency())
	assert.True(t, sum.Equal(MustParse("3", COP)))
	assert.True(t, unset.LessThan(MustParse("0.01", EUR)))
}

func TestCurrencyMismatchPanics(t *testing.T) {
	assert.PanicsWithError(t, "currency mismatch: USD and EUR", func() {
		MustParse("1", USD).Add(MustParse("1", EUR))
	})
}

func TestDivision(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		parts   int64
		ceiling bool
		want    string
	}{
		{name: "even split", amount: "100.00", parts: 4, want: "25.00"},
		{name: "half up", amount: "100.00", parts: 3, want: "33.33"},
		{name: "half up rounds away", amount: "0.05", parts: 2, want: "0.03"},
		{name: "ceiling", amount: "100.00", parts: 3, ceiling: true, want: "33.34"},
		{name: "ceiling exact", amount: "90.00", parts: 3, ceiling: true, want: "30.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustParse(tt.amount, USD)
			var got Money
			if tt.ceiling {
				got = m.DivCeil(tt.parts, 2)
			} else {
				got = m.Div(tt.parts, 2)
			}
			assert.True(t, got.Equal(MustParse(tt.want, USD)), "got %s", got)
		})
	}

	assert.Panics(t, func() { MustParse("1", USD).DivCeil(0, 2) })
}

func TestPercentageAndRounding(t *testing.T) {
	principal := MustParse("1000.00", USD)

	assert.True(t, principal.PercentageOf(decimal.NewFromInt(5)).Equal(MustParse("50", USD)))
	assert.True(t, MustParse("10.005", USD).Round().Equal(MustParse("10.01", USD)))
	assert.True(t, MustParse("10.4", JPY).Round().Equal(MustParse("10", JPY)))
}

func TestMinMaxSum(t *testing.T) {
	a := MustParse("5", USD)
	b := MustParse("7", USD)

	assert.True(t, Min(a, b).Equal(a))
	assert.True(t, Max(a, b).Equal(b))
	assert.True(t, Sum(USD, a, b, Money{}).Equal(MustParse("12", USD)))
}

func TestJSON(t *testing.T) {
	m := MustParse("12.34", USD)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.34","currency":"USD"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(m))
	assert.Equal(t, USD, back.Currency())
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("dollars")
	assert.Error(t, err)
}

package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func TestLineTotalsMultipliesEveryAmount(t *testing.T) {
	u := Unit{
		BasePrice:  dec(t, "10"),
		Tax:        dec(t, "1"),
		Discount:   dec(t, "0.5"),
		FinalPrice: dec(t, "10.5"),
	}
	got := LineTotals(u, 3).Rounded()
	require.True(t, got.TotalBasePrice.Equal(dec(t, "30.00")))
	require.True(t, got.TotalTax.Equal(dec(t, "3.00")))
	require.True(t, got.TotalDiscount.Equal(dec(t, "1.50")))
	require.True(t, got.FinalPrice.Equal(dec(t, "31.50")))
}

func TestLineTotalsMissingAmountsAreZero(t *testing.T) {
	got := LineTotals(Unit{BasePrice: dec(t, "4.25")}, 2)
	require.True(t, got.TotalBasePrice.Equal(dec(t, "8.5")))
	require.True(t, got.TotalTax.IsZero())
	require.True(t, got.TotalDiscount.IsZero())
	require.True(t, got.FinalPrice.IsZero())
}

func TestRoundingHappensOnlyWhenAsked(t *testing.T) {
	u := Unit{FinalPrice: dec(t, "0.333")}
	raw := LineTotals(u, 3)
	require.True(t, raw.FinalPrice.Equal(dec(t, "0.999")))
	require.Equal(t, "1", raw.Rounded().FinalPrice.String())
	require.Equal(t, "0.33", u.Rounded().FinalPrice.String())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Amount{
		{Quantity: 2, Totals: LineTotals(Unit{BasePrice: dec(t, "90"), Tax: dec(t, "10"), FinalPrice: dec(t, "100")}, 2)},
		{Quantity: 1, Totals: LineTotals(Unit{FinalPrice: dec(t, "49.99"), Discount: dec(t, "5")}, 1)},
	})
	require.EqualValues(t, 3, s.Quantity)
	require.True(t, s.FinalPrice.Equal(dec(t, "249.99")))
	require.True(t, s.TotalBasePrice.Equal(dec(t, "180")))
	require.True(t, s.TotalTax.Equal(dec(t, "20")))
	require.True(t, s.TotalDiscount.Equal(dec(t, "5")))

	empty := Summarize(nil)
	require.True(t, empty.FinalPrice.IsZero())
	require.Zero(t, empty.Quantity)
}

func TestPayable(t *testing.T) {
	cases := []struct {
		name                 string
		total, discount, tax string
		want                 string
	}{
		{name: "plain", total: "100", discount: "0", tax: "0", want: "100"},
		{name: "discount and tax", total: "100", discount: "10", tax: "5.5", want: "95.5"},
		{name: "discount capped", total: "20", discount: "50", tax: "1", want: "1"},
		{name: "negative ignored", total: "20", discount: "-5", tax: "-1", want: "20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Payable(dec(t, tc.total), dec(t, tc.discount), dec(t, tc.tax))
			require.True(t, got.Equal(dec(t, tc.want)), "got %s", got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("  ")
	require.NoError(t, err)
	require.True(t, d.IsZero())

	d, err = ParseAmount("12.345")
	require.NoError(t, err)
	require.Equal(t, "12.345", d.String())
	require.Equal(t, 12.35, Float(d))

	for _, raw := range []string{"-1", "abc", "1,5"} {
		_, err := ParseAmount(raw)
		require.ErrorIs(t, err, ErrInvalidAmount, raw)
	}
}

package coupon

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		snap   Snapshot
		want   string
	}{
		{
			name:   "percent of every line",
			coupon: Coupon{Type: DiscountPercent, Amount: d("10")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "5.00",
		},
		{
			name:   "percent rounds to cents",
			coupon: Coupon{Type: DiscountPercent, Amount: d("15")},
			snap:   snapshot(line(1, "9.99", 1), line(2, "0.33", 1)),
			want:   "1.55",
		},
		{
			name:   "fixed cart",
			coupon: Coupon{Type: DiscountFixedCart, Amount: d("7.5")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "7.50",
		},
		{
			name:   "fixed cart clamped to subtotal",
			coupon: Coupon{Type: DiscountFixedCart, Amount: d("80")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "50",
		},
		{
			name:   "percent above hundred clamped to subtotal",
			coupon: Coupon{Type: DiscountPercent, Amount: d("150")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "50",
		},
		{
			name:   "negative amount floors at zero",
			coupon: Coupon{Type: DiscountFixedCart, Amount: d("-5")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "0",
		},
		{
			name:   "fixed product is applied as a percentage of matching lines",
			coupon: Coupon{Type: DiscountFixedProduct, Amount: d("20"), ProductIDs: []int64{2}},
			snap:   snapshot(line(1, "25", 2), line(2, "10", 3)),
			want:   "6.00",
		},
		{
			name:   "fixed product without included products discounts nothing",
			coupon: Coupon{Type: DiscountFixedProduct, Amount: d("20")},
			snap:   snapshot(line(1, "25", 2)),
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discount(&tt.coupon, tt.snap)
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestDiscount_NeverExceedsSubtotal(t *testing.T) {
	for _, typ := range []DiscountType{DiscountFixedCart, DiscountPercent, DiscountFixedProduct} {
		for _, amount := range []string{"0", "1", "99.99", "100", "250", "100000"} {
			for _, s := range []Snapshot{
				snapshot(),
				snapshot(line(1, "0.01", 1)),
				snapshot(line(1, "25", 2), line(2, "3.33", 3)),
			} {
				c := Coupon{Type: typ, Amount: d(amount), ProductIDs: []int64{1}}
				got, err := Discount(&c, s)
				require.NoError(t, err)
				assert.False(t, got.GreaterThan(s.Subtotal), "%s %s: %s > %s", typ, amount, got, s.Subtotal)
				assert.False(t, got.IsNegative())
			}
		}
	}
}

func TestDiscount_UnsupportedType(t *testing.T) {
	_, err := Discount(&Coupon{Type: "bogo"}, snapshot(line(1, "1", 1)))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestApply(t *testing.T) {
	c := Coupon{
		Code:         "SAVE10",
		Type:         DiscountPercent,
		Amount:       d("10"),
		Description:  "10% off",
		FreeShipping: true,
	}

	applied, err := Apply(&c, snapshot(line(1, "25", 2)), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", applied.Code)
	assert.Equal(t, "10% off", applied.Description)
	assert.True(t, d("5").Equal(applied.Discount))
	assert.True(t, applied.FreeShipping)

	c.UsageLimit, c.UsageCount = 1, 1
	_, err = Apply(&c, snapshot(line(1, "25", 2)), fixedNow)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonUsageLimit, rejected.Reason)
}

package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func line(id int64, price string, qty int, categories ...int64) cart.Item {
	item := cart.Item{ProductID: id, Name: "Product", BasePrice: d(price), Quantity: qty}
	for _, c := range categories {
		item.Categories = append(item.Categories, cart.Category{ID: c})
	}
	return item
}

func snapshot(items ...cart.Item) Snapshot {
	return Snapshot{Items: items, Subtotal: cart.Subtotal(items), Email: "buyer@example.com"}
}

func TestValidate(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	tests := []struct {
		name   string
		coupon Coupon
		snap   Snapshot
		want   Reason
		msg    string
	}{
		{
			name:   "no restrictions",
			coupon: Coupon{Code: "OPEN"},
			snap:   snapshot(line(1, "10", 1)),
		},
		{
			name:   "not yet expired",
			coupon: Coupon{ExpiresAt: &future},
			snap:   snapshot(line(1, "10", 1)),
		},
		{
			name:   "expired",
			coupon: Coupon{ExpiresAt: &past},
			snap:   snapshot(line(1, "10", 1)),
			want:   ReasonExpired,
			msg:    "This coupon has expired.",
		},
		{
			name:   "below minimum spend",
			coupon: Coupon{MinimumAmount: d("100")},
			snap:   snapshot(line(1, "25", 2)),
			want:   ReasonMinimumSpend,
			msg:    "Your order must be at least $100.00 to use this coupon.",
		},
		{
			name:   "above maximum spend",
			coupon: Coupon{MaximumAmount: d("40")},
			snap:   snapshot(line(1, "25", 2)),
			want:   ReasonMaximumSpend,
			msg:    "This coupon can only be used on orders up to $40.00.",
		},
		{
			name:   "zero maximum means unbounded",
			coupon: Coupon{MaximumAmount: decimal.Zero},
			snap:   snapshot(line(1, "2500", 2)),
		},
		{
			name:   "no included product in cart",
			coupon: Coupon{ProductIDs: []int64{9}},
			snap:   snapshot(line(1, "10", 1)),
			want:   ReasonProducts,
			msg:    "This coupon is not valid for any items in your cart.",
		},
		{
			name:   "excluded product in cart",
			coupon: Coupon{ExcludedProductIDs: []int64{2}},
			snap:   snapshot(line(1, "10", 1), line(2, "10", 1)),
			want:   ReasonExcludedProducts,
			msg:    "This coupon cannot be used with some items in your cart.",
		},
		{
			name:   "no included category in cart",
			coupon: Coupon{CategoryIDs: []int64{7}},
			snap:   snapshot(line(1, "10", 1, 3)),
			want:   ReasonCategories,
			msg:    "This coupon is not valid for your selected product categories.",
		},
		{
			name:   "excluded category in cart",
			coupon: Coupon{ExcludedCategoryIDs: []int64{3}},
			snap:   snapshot(line(1, "10", 1, 3)),
			want:   ReasonExcludedCategories,
			msg:    "This coupon cannot be used with some categories in your cart.",
		},
		{
			name:   "global usage exhausted",
			coupon: Coupon{UsageLimit: 5, UsageCount: 5},
			snap:   snapshot(line(1, "10", 1)),
			want:   ReasonUsageLimit,
			msg:    "This coupon has reached its maximum usage limit.",
		},
		{
			name:   "per-user usage is case-insensitive",
			coupon: Coupon{UsageLimitPerUser: 2, UsedBy: []string{"BUYER@example.com", " buyer@EXAMPLE.com ", "other@example.com"}},
			snap:   snapshot(line(1, "10", 1)),
			want:   ReasonUserUsageLimit,
			msg:    "You have already used this coupon the maximum number of times (2).",
		},
		{
			name:   "per-user usage below limit",
			coupon: Coupon{UsageLimitPerUser: 2, UsedBy: []string{"buyer@example.com"}},
			snap:   snapshot(line(1, "10", 1)),
		},
		{
			name:   "first failing rule wins",
			coupon: Coupon{ExpiresAt: &past, MinimumAmount: d("1000"), UsageLimit: 1, UsageCount: 1},
			snap:   snapshot(line(1, "10", 1)),
			want:   ReasonExpired,
			msg:    "This coupon has expired.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(&tt.coupon, tt.snap, fixedNow)
			if tt.want == "" {
				assert.True(t, res.Valid, "unexpected rejection: %s", res.Message)
				return
			}
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.msg, res.Message)
		})
	}
}

func TestValidate_UsageLimitReachedOverridesEverythingElse(t *testing.T) {
	c := Coupon{
		Code:          "LIMITED",
		Type:          DiscountPercent,
		Amount:        d("10"),
		MinimumAmount: d("10"),
		ProductIDs:    []int64{1},
		CategoryIDs:   []int64{3},
		UsageLimit:    100,
		UsageCount:    100,
	}

	res := Validate(&c, snapshot(line(1, "25", 2, 3)), fixedNow)

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonUsageLimit, res.Reason)
	assert.Equal(t, "This coupon has reached its maximum usage limit.", res.Message)
}

func TestValidate_ExpiryIsMonotonic(t *testing.T) {
	expires := fixedNow
	c := Coupon{ExpiresAt: &expires}
	s := snapshot(line(1, "10", 1))

	assert.True(t, Validate(&c, s, fixedNow.Add(-time.Second)).Valid)
	assert.True(t, Validate(&c, s, fixedNow).Valid)
	for _, after := range []time.Duration{time.Nanosecond, time.Second, time.Hour, 24 * 365 * time.Hour} {
		assert.False(t, Validate(&c, s, fixedNow.Add(after)).Valid, "valid %s after expiry", after)
	}
}

package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNewPayload(t *testing.T) {
	billing := checkout.Address{FirstName: "Ada", Email: "ada@example.com", Country: "US"}
	data := checkout.NewData().
		WithBilling(billing).
		WithShipping(billing).
		WithItems([]cart.Item{
			{
				ProductID:    1,
				BasePrice:    d("25"),
				Quantity:     2,
				VariationID:  10,
				Variations:   []cart.Selection{{Name: "Pole Size", Value: "4x4"}},
				CustomFields: []cart.Selection{{Name: "Custom Size", Value: "7ft"}},
				Metadata:     map[string]string{"b": "2", "a": "1"},
			},
			{ProductID: 2, BasePrice: d("5"), Quantity: 1},
		}).
		WithShippingMethod(shipping.MethodFlatRate, d("9.5")).
		WithCoupon(coupon.Applied{Code: "SAVE10", Discount: d("5")}).
		CalculateTotals()

	p := NewPayload(data, "attempt-1")

	assert.Equal(t, "attempt-1", p.AttemptID)
	assert.Equal(t, checkout.PaymentMethodStripe, p.PaymentMethod)
	assert.Equal(t, PaymentMethodTitle, p.PaymentMethodTitle)
	assert.Equal(t, billing, p.Billing)

	require.Len(t, p.LineItems, 2)
	first := p.LineItems[0]
	assert.Equal(t, int64(1), first.ProductID)
	assert.Equal(t, int64(10), first.VariationID)
	assert.Equal(t, 2, first.Quantity)
	require.Len(t, first.MetaData, 3)
	assert.Equal(t, MetaVariations, first.MetaData[0].Key)
	assert.Equal(t, []cart.Selection{{Name: "Custom Size", Value: "7ft"}}, first.MetaData[1].Value)
	assert.Equal(t, []cart.Selection{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}, first.MetaData[2].Value)
	assert.Equal(t, int64(0), p.LineItems[1].VariationID)

	assert.Equal(t, []ShippingLine{{MethodID: "flat_rate", MethodTitle: "Flat Rate", Total: "9.50"}}, p.ShippingLines)
	assert.Equal(t, []CouponLine{{Code: "SAVE10", UsedBy: "ada@example.com"}}, p.CouponLines)
}

func TestNewPayload_NoCoupon(t *testing.T) {
	p := NewPayload(checkout.NewData(), "x")
	assert.Empty(t, p.CouponLines)
	assert.Empty(t, p.LineItems)
	require.Len(t, p.ShippingLines, 1)
}

func TestNewSummary(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	s := NewSummary(Created{
		ID:            123,
		Status:        StatusPending,
		Total:         d("54.95"),
		ShippingTotal: d("9.95"),
		DiscountTotal: d("5"),
		LineItems: []CreatedLine{
			{ID: 1, Name: "Pole", Quantity: 2, Total: d("50"), Image: "pole.jpg"},
			{ID: 2, Name: "Cap", Quantity: 0, Total: d("0")},
		},
		CouponLines: []CouponLine{{Code: "SAVE10"}},
	}, now)

	assert.Equal(t, int64(123), s.OrderID)
	assert.Equal(t, "54.95", s.Total)
	assert.Equal(t, "9.95", s.ShippingCost)
	assert.Equal(t, "5.00", s.DiscountTotal)
	assert.Equal(t, "25.00", s.Items[0].Price)
	assert.Equal(t, "0.00", s.Items[1].Price)
	assert.Equal(t, []string{"SAVE10"}, s.Coupons)
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
}

func TestRejectionError(t *testing.T) {
	err := &RejectionError{Op: "create order", StatusCode: 400, Message: "Invalid billing email."}
	assert.Equal(t, "create order: backend returned 400: Invalid billing email.", err.Error())
	assert.Equal(t, "Invalid billing email.", err.UserMessage("fallback"))

	err = &RejectionError{Op: "update order", StatusCode: 502}
	assert.Equal(t, "fallback", err.UserMessage("fallback"))
}

package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// SummaryItem is a line of an OrderSummary. Price is the unit price.
type SummaryItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Image    string `json:"image,omitempty"`
}

// Summary is the immutable snapshot of an order taken when it is created.
type Summary struct {
	OrderID       int64            `json:"orderId"`
	Status        Status           `json:"status"`
	Total         string           `json:"total"`
	ShippingCost  string           `json:"shippingCost"`
	DiscountTotal string           `json:"discountTotal"`
	Billing       checkout.Address `json:"billing"`
	Shipping      checkout.Address `json:"shipping"`
	Items         []SummaryItem    `json:"lineItems"`
	Coupons       []string         `json:"couponLines,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewSummary snapshots a created order.
func NewSummary(c Created, now time.Time) Summary {
	s := Summary{
		OrderID:       c.ID,
		Status:        c.Status,
		Total:         money.Format(c.Total),
		ShippingCost:  money.Format(c.ShippingTotal),
		DiscountTotal: money.Format(c.DiscountTotal),
		Billing:       c.Billing,
		Shipping:      c.Shipping,
		CreatedAt:     now.UTC(),
	}
	for _, line := range c.LineItems {
		unit := line.Total
		if line.Quantity > 0 {
			unit = line.Total.Div(decimal.NewFromInt(int64(line.Quantity)))
		}
		s.Items = append(s.Items, SummaryItem{
			ID:       line.ID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    money.Format(unit),
			Image:    line.Image,
		})
	}
	for _, cl := range c.CouponLines {
		s.Coupons = append(s.Coupons, cl.Code)
	}
	return s
}

// Archive keeps created-order summaries beyond the single latest-order slot.
type Archive interface {
	SaveSummary(ctx context.Context, s Summary) error
}

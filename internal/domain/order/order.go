// Package order describes orders as the commerce backend accepts and returns
// them, and the summary kept for the post-payment confirmation view.
package order

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Status is a backend order status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCancelled  Status = "cancelled"
)

// PaymentMethodTitle is shown on the backend for every storefront order.
const PaymentMethodTitle = "Online Payment"

// Line metadata keys.
const (
	MetaVariations   = "variations"
	MetaCustomFields = "customFields"
	MetaMetadata     = "metadata"
)

// MetaData is a keyed list of name/value pairs attached to a line.
type MetaData struct {
	Key   string
	Value []cart.Selection
}

// LineItem is one order line. VariationID is 0 for products without
// variations.
type LineItem struct {
	ProductID   int64
	VariationID int64
	Quantity    int
	MetaData    []MetaData
}

type ShippingLine struct {
	MethodID    string
	MethodTitle string
	Total       string
}

// CouponLine records a coupon and the customer who used it.
type CouponLine struct {
	Code   string
	UsedBy string
}

// Payload is the create-order request.
type Payload struct {
	// AttemptID identifies one submission attempt so the backend order can be
	// traced to it.
	AttemptID          string
	PaymentMethod      string
	PaymentMethodTitle string
	Billing            checkout.Address
	Shipping           checkout.Address
	LineItems          []LineItem
	ShippingLines      []ShippingLine
	CouponLines        []CouponLine
}

// NewPayload builds the create-order request for the aggregate.
func NewPayload(data checkout.Data, attemptID string) Payload {
	p := Payload{
		AttemptID:          attemptID,
		PaymentMethod:      data.PaymentMethod,
		PaymentMethodTitle: PaymentMethodTitle,
		Billing:            data.Billing,
		Shipping:           data.Shipping,
		ShippingLines: []ShippingLine{{
			MethodID:    string(data.ShippingMethod),
			MethodTitle: data.ShippingMethod.Title(),
			Total:       money.Format(data.ShippingCost),
		}},
	}
	for _, item := range data.Items {
		p.LineItems = append(p.LineItems, LineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
			MetaData: []MetaData{
				{Key: MetaVariations, Value: item.Variations},
				{Key: MetaCustomFields, Value: item.CustomFields},
				{Key: MetaMetadata, Value: metadataSelections(item.Metadata)},
			},
		})
	}
	if data.Coupon != nil {
		p.CouponLines = []CouponLine{{Code: data.Coupon.Code, UsedBy: data.Billing.Email}}
	}
	return p
}

func metadataSelections(m map[string]string) []cart.Selection {
	out := make([]cart.Selection, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, cart.Selection{Name: k, Value: m[k]})
	}
	return out
}

// CreatedLine is a line of a created order.
type CreatedLine struct {
	ID       int64
	Name     string
	Quantity int
	Total    decimal.Decimal
	Image    string
}

// Created is the backend's view of a newly created order.
type Created struct {
	ID            int64
	Status        Status
	Total         decimal.Decimal
	ShippingTotal decimal.Decimal
	DiscountTotal decimal.Decimal
	Billing       checkout.Address
	Shipping      checkout.Address
	LineItems     []CreatedLine
	CouponLines   []CouponLine
}

// Backend is the order-management contract of the commerce backend.
type Backend interface {
	CreateOrder(ctx context.Context, p Payload) (Created, error)
	UpdateOrderStatus(ctx context.Context, id int64, status Status) error
}

// RejectionError is a non-success answer from the backend.
type RejectionError struct {
	Op         string
	StatusCode int
	// Message is the backend-supplied explanation, if any.
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// UserMessage returns the backend message, or fallback when there is none.
func (e *RejectionError) UserMessage(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}

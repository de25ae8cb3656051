// Package coupon validates promotional coupons against a checkout snapshot and
// computes the discount they grant.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFixedCart takes a flat amount off the cart.
	DiscountFixedCart DiscountType = "fixed_cart"
	// DiscountPercent takes a percentage off every line.
	DiscountPercent DiscountType = "percent"
	// DiscountFixedProduct takes Amount percent off the lines of the
	// included products. The backend name suggests a flat amount per unit;
	// storefront pricing has always treated it as a percentage.
	DiscountFixedProduct DiscountType = "fixed_product"
)

var (
	// ErrNotFound is returned when no coupon has the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrUnsupportedType is returned for discount types the evaluator does not know.
	ErrUnsupportedType = errors.New("unsupported discount type")
)

// NotFoundMessage is shown when a code does not resolve to a coupon.
const NotFoundMessage = "Invalid coupon code."

// Coupon is a coupon definition as published by the commerce backend.
type Coupon struct {
	ID                  int64
	Code                string
	Type                DiscountType
	Amount              decimal.Decimal
	Description         string
	FreeShipping        bool
	MinimumAmount       decimal.Decimal
	MaximumAmount       decimal.Decimal
	ProductIDs          []int64
	ExcludedProductIDs  []int64
	CategoryIDs         []int64
	ExcludedCategoryIDs []int64
	UsageLimit          int
	UsageCount          int
	UsageLimitPerUser   int
	UsedBy              []string
	ExpiresAt           *time.Time
}

// Snapshot is the part of the checkout a coupon is evaluated against.
type Snapshot struct {
	Items    []cart.Item
	Subtotal decimal.Decimal
	Email    string
}

// Applied is the evaluated effect of a coupon. Only this is kept on the
// checkout; the full definition is never persisted.
type Applied struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Discount     decimal.Decimal `json:"discount"`
	FreeShipping bool            `json:"free_shipping"`
}

// RejectedError reports the first validation rule a coupon failed.
type RejectedError struct {
	Code   string
	Reason Reason
	// Message is the customer-facing explanation.
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}

// Repository looks coupons up by their exact, case-sensitive code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// Package checkout holds the checkout aggregate: addresses, shipping choice,
// applied coupon, a value copy of the cart and the totals derived from them.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

const (
	// DefaultCountry is the only country the store ships to.
	DefaultCountry = "US"
	// PaymentMethodStripe is the single supported payment method.
	PaymentMethodStripe = "stripe"
)

// Address is a billing or shipping address. Field names follow the commerce
// backend so the value can be sent as is.
// The validate tags are what a shipping address needs before an order can be
// placed; addresses may be saved incomplete.
type Address struct {
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Address1  string `json:"address_1" validate:"notblank"`
	Address2  string `json:"address_2"`
	City      string `json:"city" validate:"notblank"`
	State     string `json:"state"`
	Postcode  string `json:"postcode" validate:"notblank"`
	Country   string `json:"country" validate:"notblank"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Data is the checkout aggregate. Totals are derived by CalculateTotals and
// never set by hand.
type Data struct {
	Billing        Address         `json:"billing"`
	Shipping       Address         `json:"shipping"`
	PaymentMethod  string          `json:"paymentMethod"`
	ShippingMethod shipping.Method `json:"shippingMethod"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	Items          []cart.Item     `json:"cartItems"`
	Coupon         *coupon.Applied `json:"coupon,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"taxTotal"`
	DiscountTotal  decimal.Decimal `json:"discountTotal"`
	Total          decimal.Decimal `json:"total"`
}

// NewData returns an empty aggregate with the store defaults.
func NewData() Data {
	return Data{
		Billing:        Address{Country: DefaultCountry},
		Shipping:       Address{Country: DefaultCountry},
		PaymentMethod:  PaymentMethodStripe,
		ShippingMethod: shipping.MethodFlatRate,
	}
}

func (d Data) WithBilling(a Address) Data {
	d.Billing = a
	return d
}

func (d Data) WithShipping(a Address) Data {
	d.Shipping = a
	return d
}

func (d Data) WithPaymentMethod(m string) Data {
	d.PaymentMethod = m
	return d
}

func (d Data) WithShippingMethod(m shipping.Method, cost decimal.Decimal) Data {
	d.ShippingMethod = m
	d.ShippingCost = cost
	return d
}

// WithItems stores a deep copy of items.
func (d Data) WithItems(items []cart.Item) Data {
	d.Items = cart.CloneItems(items)
	return d
}

// WithCoupon records an applied coupon. A free-shipping coupon selects free
// shipping at no cost.
func (d Data) WithCoupon(a coupon.Applied) Data {
	d.Coupon = &a
	d.DiscountTotal = a.Discount
	if a.FreeShipping {
		d.ShippingMethod = shipping.MethodFreeShipping
		d.ShippingCost = decimal.Zero
	}
	return d
}

// WithoutCoupon drops the coupon and its discount. The shipping cost it may
// have zeroed is restored by re-resolving shipping, not here.
func (d Data) WithoutCoupon() Data {
	d.Coupon = nil
	d.DiscountTotal = decimal.Zero
	return d
}

// CalculateTotals recomputes subtotal, tax, discount and total:
// total = subtotal + shipping − discount, tax fixed at zero. The discount is
// clamped to the subtotal. Calling it twice yields identical totals.
func (d Data) CalculateTotals() Data {
	d.Subtotal = cart.Subtotal(d.Items)
	d.Tax = decimal.Zero
	d.DiscountTotal = money.Round(decimal.Min(money.FloorAtZero(d.DiscountTotal), d.Subtotal))
	if d.Coupon != nil {
		c := *d.Coupon
		c.Discount = d.DiscountTotal
		d.Coupon = &c
	}
	d.Total = money.Round(d.Subtotal.Add(d.ShippingCost).Sub(d.DiscountTotal))
	return d
}

// CouponSnapshot is the view of the aggregate coupons are evaluated against.
func (d Data) CouponSnapshot() coupon.Snapshot {
	return coupon.Snapshot{
		Items:    cart.CloneItems(d.Items),
		Subtotal: cart.Subtotal(d.Items),
		Email:    d.Billing.Email,
	}
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	d.Items = cart.CloneItems(d.Items)
	if d.Coupon != nil {
		c := *d.Coupon
		d.Coupon = &c
	}
	return d
}

package checkout

import (
	"fmt"
	"strings"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/pkg/validate"
)

// ValidationError lists the fields that keep the checkout from being
// submitted.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout incomplete: missing %s", strings.Join(e.Fields, ", "))
}

// orderable is the part of Data an order cannot be placed without. The
// shipping rules live on Address.
type orderable struct {
	Email    string          `json:"billing.email" validate:"notblank"`
	Shipping Address         `json:"shipping"`
	Method   shipping.Method `json:"shippingMethod" validate:"required"`
	Lines    int             `json:"cart" validate:"gt=0"`
}

// Validate returns *ValidationError when the order cannot be placed yet: it
// needs a billing email, a shipping name, street, city, postcode and country,
// a shipping method and at least one cart line.
func (d Data) Validate() error {
	err := validate.Struct(orderable{
		Email:    d.Billing.Email,
		Shipping: d.Shipping,
		Method:   d.ShippingMethod,
		Lines:    len(d.Items),
	})
	if err == nil {
		return nil
	}
	if fields := validate.Fields(err); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return err
}

// Complete reports whether Validate passes.
func (d Data) Complete() bool {
	return d.Validate() == nil
}

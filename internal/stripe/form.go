package stripe

import (
	"context"
	"strings"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// CardForm is the payment form as submitted by the browser: Stripe Elements
// has already tokenized the card into a payment method.
type CardForm struct {
	Client          *Client
	PaymentMethodID string
}

var _ payment.Form = CardForm{}

// Ready reports whether payments can be taken at all.
func (f CardForm) Ready() bool {
	return f.Client != nil
}

func (f CardForm) Submit(context.Context) (string, error) {
	id := strings.TrimSpace(f.PaymentMethodID)
	if !strings.HasPrefix(id, "pm_") {
		return "", &payment.FieldError{Field: "paymentMethodId", Message: "Enter valid card details."}
	}
	return id, nil
}

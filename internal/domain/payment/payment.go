// Package payment defines the payment processor contracts used by order
// submission: creating an intent for an order and confirming it.
package payment

import (
	"context"
	"fmt"
)

// IntentRequest asks for a payment intent tied to a backend order.
type IntentRequest struct {
	// Amount is in minor currency units.
	Amount   int64
	Currency string
	OrderID  int64
}

// Intent is a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
}

// Intents creates payment intents.
type Intents interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// Status is the outcome of a confirmation.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusRequiresAction Status = "requires_action"
	StatusError          Status = "error"
)

// Confirmation is one attempt to confirm an intent.
type Confirmation struct {
	ClientSecret  string
	ReturnURL     string
	PaymentMethod string
}

// Result is what the processor reports for a confirmation.
type Result struct {
	Status       Status
	ErrorMessage string
	// NextActionURL is where the customer completes an extra step, such as
	// 3-D Secure, when Status is StatusRequiresAction.
	NextActionURL string
}

// Processor confirms intents and reports their current state.
type Processor interface {
	Confirm(ctx context.Context, c Confirmation) (Result, error)
	Retrieve(ctx context.Context, clientSecret string) (Result, error)
}

// Form is the payment entry form. It must be ready before a submission starts
// and passes its own field validation before any backend call.
type Form interface {
	Ready() bool
	// Submit validates the entered payment details and returns a payment
	// method reference for confirmation. Field problems are *FieldError.
	Submit(ctx context.Context) (string, error)
}

// FieldError is a payment form field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("payment field %s: %s", e.Field, e.Message)
}

// Package submission drives an order from a complete checkout to a paid (or
// cancelled) backend order: create the order, create a payment intent,
// confirm it with the processor and settle the order status.
package submission

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// State is a submission state.
type State string

const (
	StateIdle           State = "idle"
	StateOrderCreating  State = "order_creating"
	StateOrderCreated   State = "order_created"
	StateConfirming     State = "confirming"
	StateAwaitingAction State = "awaiting_action"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
	StateRetrying       State = "retrying"
	StateCancelling     State = "cancelling"
	StateCancelled      State = "cancelled"
)

var transitions = map[State][]State{
	StateIdle:           {StateOrderCreating},
	StateOrderCreating:  {StateOrderCreated, StateFailed},
	StateOrderCreated:   {StateConfirming, StateFailed, StateCancelling},
	StateConfirming:     {StateSucceeded, StateFailed, StateAwaitingAction},
	StateAwaitingAction: {StateConfirming, StateCancelling},
	StateFailed:         {StateRetrying, StateCancelling, StateOrderCreating, StateIdle},
	StateRetrying:       {StateConfirming, StateFailed},
	StateCancelling:     {StateCancelled, StateFailed, StateAwaitingAction, StateOrderCreated},
	StateSucceeded:      {StateIdle},
	StateCancelled:      {StateIdle},
}

// CanTransitionTo reports whether the machine may move from one state to
// another.
func CanTransitionTo(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// transient states only exist while a transition is running.
func (s State) transient() bool {
	switch s {
	case StateOrderCreating, StateOrderCreated, StateConfirming, StateRetrying, StateCancelling:
		return true
	}
	return false
}

var (
	// ErrIllegalTransition is returned when an action is not allowed in the
	// current state.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrFormNotReady is returned when the payment form has not loaded yet.
	ErrFormNotReady = errors.New("payment form is not ready")
)

// FailureKind classifies why a submission failed.
type FailureKind string

const (
	// KindOrderRejected: the backend refused to create the order. Only a
	// full resubmission can recover.
	KindOrderRejected FailureKind = "order_rejected"
	// KindIntentFailed: no payment intent could be created for the order.
	KindIntentFailed FailureKind = "intent_failed"
	// KindProcessorError: the processor declined or failed the confirmation.
	KindProcessorError FailureKind = "processor_error"
	// KindTimeout: a step did not answer in time.
	KindTimeout FailureKind = "timeout"
	// KindInconsistent: payment succeeded but the order could not be marked
	// as processing. Needs support follow-up.
	KindInconsistent FailureKind = "inconsistent"
)

// Failure is the payload of StateFailed.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

// Snapshot is the observable state of the machine.
type Snapshot struct {
	State     State           `json:"state"`
	AttemptID string          `json:"attemptId,omitempty"`
	OrderID   int64           `json:"orderId,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Failure   *Failure        `json:"failure,omitempty"`
	// NextActionURL is set in StateAwaitingAction.
	NextActionURL string `json:"nextActionUrl,omitempty"`
	// Notice reports a non-fatal problem, such as a failed cancellation,
	// without changing the state.
	Notice string `json:"notice,omitempty"`
}

// CanRetry reports whether Retry is allowed.
func (s Snapshot) CanRetry() bool {
	return s.State == StateFailed && s.Failure != nil && s.Failure.Retryable && s.OrderID != 0
}

// CanCancel reports whether Cancel is allowed.
func (s Snapshot) CanCancel() bool {
	if s.OrderID == 0 {
		return false
	}
	switch s.State {
	case StateAwaitingAction, StateOrderCreated:
		return true
	case StateFailed:
		return s.Failure == nil || s.Failure.Kind != KindInconsistent
	}
	return false
}

// restore maps a persisted snapshot onto a state the machine can resume from.
// A transition interrupted by a restart cannot be replayed: with an order it
// waits for the processor's verdict, without one it starts over.
func restore(s Snapshot) Snapshot {
	if s.State == "" {
		return Snapshot{State: StateIdle}
	}
	if !s.State.transient() {
		return s
	}
	if s.OrderID == 0 {
		return Snapshot{State: StateIdle}
	}
	s.State = StateAwaitingAction
	s.Failure = nil
	return s
}

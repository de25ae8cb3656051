package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

const (
	msgOrderRejected  = "We could not create your order. Please review your details and try again."
	msgIntentFailed   = "We could not start the payment. Please try again."
	msgProcessorError = "Your payment could not be completed. Please try again."
	msgTimeout        = "The payment service took too long to respond. Please try again."
	msgCancelFailed   = "We could not cancel your order. Please try again."
	msgInconsistent   = "Your payment was successful, but we could not finalize order #%d. Please contact support and mention this order number."
)

// Hooks connect the machine to the session that owns the checkout. They are
// called while the machine holds its transition lock.
type Hooks interface {
	// Checkout returns the current checkout state.
	Checkout() checkout.State
	// OrderCreated records the backend order and persists its summary.
	OrderCreated(ctx context.Context, summary order.Summary)
	// IntentCreated records the payment intent's client secret.
	IntentCreated(ctx context.Context, clientSecret string)
	// Paid clears the cart and resets the checkout once the charge went
	// through, whether or not the order could be marked as processing.
	Paid(ctx context.Context)
	// Cancelled clears the cart, its shipping choice and any coupon.
	Cancelled(ctx context.Context)
	// Reset forgets the order and intent of the previous attempt.
	Reset(ctx context.Context)
}

// Machine is the order submission state machine. One transition runs at a
// time; a transition requested while another is in flight waits for it to
// settle. Backend and processor failures are states, not errors: the
// transition methods return an error only when the action is not allowed or
// local validation fails.
type Machine struct {
	backend   order.Backend
	intents   payment.Intents
	processor payment.Processor
	hooks     Hooks
	opts      Options

	run sync.Mutex

	mu            sync.RWMutex
	snap          Snapshot
	paymentMethod string
	subs          map[int]func(Snapshot)
	nextSub       int

	tracer      trace.Tracer
	transitions metric.Int64Counter
	failures    metric.Int64Counter
}

// New creates a Machine.
func New(backend order.Backend, intents payment.Intents, processor payment.Processor, hooks Hooks, opts Options) (*Machine, error) {
	opts.setDefaults()

	meter := opts.MeterProvider.Meter("storefront/submission")
	transitions, err := meter.Int64Counter("submission.transitions",
		metric.WithDescription("Submission state transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}
	failures, err := meter.Int64Counter("submission.failures",
		metric.WithDescription("Submission failures by kind"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failures counter")
	}

	return &Machine{
		backend:     backend,
		intents:     intents,
		processor:   processor,
		hooks:       hooks,
		opts:        opts,
		snap:        restore(opts.Initial),
		subs:        map[int]func(Snapshot){},
		tracer:      opts.TracerProvider.Tracer("storefront/submission"),
		transitions: transitions,
		failures:    failures,
	}, nil
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn for every state change. The returned function
// removes the subscription.
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Submit validates the checkout and the payment form, then creates the order
// and pays for it. Allowed when idle, or after an order was rejected.
func (m *Machine) Submit(ctx context.Context, form payment.Form) (Snapshot, error) {
	m.run.Lock()
	defer m.run.Unlock()

	ctx, span := m.tracer.Start(context.WithoutCancel(ctx), "submission.Submit")
	defer span.End()

	cur := m.Snapshot()
	if !(cur.State == StateIdle || (cur.State == StateFailed && cur.OrderID == 0)) {
		return cur, m.illegal(cur.State, StateOrderCreating)
	}
	if form == nil || !form.Ready() {
		return cur, ErrFormNotReady
	}
	data := m.hooks.Checkout().Data
	if err := data.Validate(); err != nil {
		return cur, err
	}
	method, err := form.Submit(ctx)
	if err != nil {
		return cur, err
	}

	attempt := m.opts.NewAttemptID()
	span.SetAttributes(attribute.String("submission.attempt_id", attempt))
	m.mu.Lock()
	m.paymentMethod = method
	m.mu.Unlock()
	m.transition(ctx, Snapshot{State: StateOrderCreating, AttemptID: attempt, Amount: data.Total})

	var created order.Created
	err = m.step(ctx, m.opts.CreateOrderTimeout, func(ctx context.Context) error {
		var err error
		created, err = m.backend.CreateOrder(ctx, order.NewPayload(data, attempt))
		return err
	})
	if err != nil {
		f := Failure{Kind: KindOrderRejected, Message: msgOrderRejected}
		var rejected *order.RejectionError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			f.Kind, f.Message = KindTimeout, msgTimeout
		case errors.As(err, &rejected):
			f.Message = rejected.UserMessage(msgOrderRejected)
		}
		return m.fail(ctx, span, f, err), nil
	}

	m.hooks.OrderCreated(ctx, order.NewSummary(created, m.opts.Now()))
	span.SetAttributes(attribute.Int64("submission.order_id", created.ID))
	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateOrderCreated
		s.OrderID = created.ID
	}))

	return m.pay(ctx, span), nil
}

// Retry re-runs payment for the existing order after a retryable failure.
// The order is never created twice. A nil or unready form reuses the payment
// method of the previous attempt.
func (m *Machine) Retry(ctx context.Context, form payment.Form) (Snapshot, error) {
	m.run.Lock()
	defer m.run.Unlock()

	ctx, span := m.tracer.Start(context.WithoutCancel(ctx), "submission.Retry")
	defer span.End()

	cur := m.Snapshot()
	if !cur.CanRetry() {
		return cur, m.illegal(cur.State, StateRetrying)
	}
	if form != nil && form.Ready() {
		method, err := form.Submit(ctx)
		if err != nil {
			return cur, err
		}
		m.mu.Lock()
		m.paymentMethod = method
		m.mu.Unlock()
	}

	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateRetrying
		s.Failure = nil
		s.Notice = ""
	}))
	return m.pay(ctx, span), nil
}

// Resume asks the processor for the outcome of an extra authentication step
// and settles the order accordingly.
func (m *Machine) Resume(ctx context.Context) (Snapshot, error) {
	m.run.Lock()
	defer m.run.Unlock()

	ctx, span := m.tracer.Start(context.WithoutCancel(ctx), "submission.Resume")
	defer span.End()

	cur := m.Snapshot()
	if cur.State != StateAwaitingAction {
		return cur, m.illegal(cur.State, StateConfirming)
	}

	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateConfirming
		s.NextActionURL = ""
		s.Notice = ""
	}))

	secret := m.hooks.Checkout().PaymentIntentClientSecret
	var res payment.Result
	err := m.step(ctx, m.opts.ConfirmTimeout, func(ctx context.Context) error {
		var err error
		res, err = m.processor.Retrieve(ctx, secret)
		return err
	})
	return m.settle(ctx, span, res, err), nil
}

// Cancel marks the order cancelled on the backend. On success the cart is
// emptied and the coupon removed; on failure the state is left unchanged with
// a Notice, and Cancel may be called again.
func (m *Machine) Cancel(ctx context.Context) (Snapshot, error) {
	m.run.Lock()
	defer m.run.Unlock()

	ctx, span := m.tracer.Start(context.WithoutCancel(ctx), "submission.Cancel")
	defer span.End()

	prev := m.Snapshot()
	if !prev.CanCancel() {
		return prev, m.illegal(prev.State, StateCancelling)
	}

	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateCancelling
		s.Notice = ""
	}))

	err := m.step(ctx, m.opts.UpdateStatusTimeout, func(ctx context.Context) error {
		return m.backend.UpdateOrderStatus(ctx, prev.OrderID, order.StatusCancelled)
	})
	if err != nil {
		span.RecordError(err)
		zctx.From(ctx).Warn("Cancel order failed",
			zap.Int64("order_id", prev.OrderID),
			zap.Error(err),
		)
		back := prev
		back.Notice = msgCancelFailed
		m.transition(ctx, back)
		return back, nil
	}

	m.hooks.Cancelled(ctx)
	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateCancelled
		s.Failure = nil
		s.NextActionURL = ""
	}))
	return m.Snapshot(), nil
}

// Reset returns to idle after a terminal outcome or a failure that cannot be
// retried.
func (m *Machine) Reset(ctx context.Context) (Snapshot, error) {
	m.run.Lock()
	defer m.run.Unlock()

	cur := m.Snapshot()
	switch {
	case cur.State == StateIdle:
		return cur, nil
	case cur.State == StateSucceeded, cur.State == StateCancelled:
	case cur.State == StateFailed && !cur.CanRetry():
	default:
		return cur, m.illegal(cur.State, StateIdle)
	}

	m.hooks.Reset(ctx)
	m.mu.Lock()
	m.paymentMethod = ""
	m.mu.Unlock()
	m.transition(ctx, Snapshot{State: StateIdle})
	return m.Snapshot(), nil
}

// pay creates the intent unless one exists for the order, then confirms it.
func (m *Machine) pay(ctx context.Context, span trace.Span) Snapshot {
	cur := m.Snapshot()
	secret := m.hooks.Checkout().PaymentIntentClientSecret

	if secret == "" {
		var intent payment.Intent
		err := m.step(ctx, m.opts.CreateIntentTimeout, func(ctx context.Context) error {
			var err error
			intent, err = m.intents.CreateIntent(ctx, payment.IntentRequest{
				Amount:   money.MinorUnits(cur.Amount),
				Currency: m.opts.Currency,
				OrderID:  cur.OrderID,
			})
			return err
		})
		if err != nil {
			f := Failure{Kind: KindIntentFailed, Message: msgIntentFailed, Retryable: true}
			if errors.Is(err, context.DeadlineExceeded) {
				f.Kind, f.Message = KindTimeout, msgTimeout
			}
			return m.fail(ctx, span, f, err)
		}
		secret = intent.ClientSecret
		m.hooks.IntentCreated(ctx, secret)
	}

	m.transition(ctx, m.with(func(s *Snapshot) { s.State = StateConfirming }))

	m.mu.RLock()
	method := m.paymentMethod
	m.mu.RUnlock()

	var res payment.Result
	err := m.step(ctx, m.opts.ConfirmTimeout, func(ctx context.Context) error {
		var err error
		res, err = m.processor.Confirm(ctx, payment.Confirmation{
			ClientSecret:  secret,
			ReturnURL:     m.opts.ReturnURL,
			PaymentMethod: method,
		})
		return err
	})
	return m.settle(ctx, span, res, err)
}

// settle maps a processor answer onto the next state.
func (m *Machine) settle(ctx context.Context, span trace.Span, res payment.Result, err error) Snapshot {
	if err != nil {
		f := Failure{Kind: KindProcessorError, Message: msgProcessorError, Retryable: true}
		if errors.Is(err, context.DeadlineExceeded) {
			f.Kind, f.Message = KindTimeout, msgTimeout
		}
		return m.fail(ctx, span, f, err)
	}

	switch res.Status {
	case payment.StatusSucceeded:
		return m.complete(ctx, span)
	case payment.StatusRequiresAction:
		m.transition(ctx, m.with(func(s *Snapshot) {
			s.State = StateAwaitingAction
			s.NextActionURL = res.NextActionURL
		}))
		return m.Snapshot()
	default:
		msg := res.ErrorMessage
		if msg == "" {
			msg = msgProcessorError
		}
		return m.fail(ctx, span, Failure{Kind: KindProcessorError, Message: msg, Retryable: true}, nil)
	}
}

// complete marks the paid order as processing. The status update is not
// retried automatically: a failure here leaves a charged customer whose order
// still reads pending. The checkout is cleared in both cases so the paid cart
// cannot be submitted again.
func (m *Machine) complete(ctx context.Context, span trace.Span) Snapshot {
	orderID := m.Snapshot().OrderID
	err := m.step(ctx, m.opts.UpdateStatusTimeout, func(ctx context.Context) error {
		return m.backend.UpdateOrderStatus(ctx, orderID, order.StatusProcessing)
	})
	m.hooks.Paid(ctx)
	if err != nil {
		zctx.From(ctx).Error("Paid order left pending",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return m.fail(ctx, span, Failure{
			Kind:    KindInconsistent,
			Message: fmt.Sprintf(msgInconsistent, orderID),
		}, err)
	}

	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateSucceeded
		s.Failure = nil
		s.NextActionURL = ""
	}))
	return m.Snapshot()
}

func (m *Machine) fail(ctx context.Context, span trace.Span, f Failure, cause error) Snapshot {
	if cause != nil {
		span.RecordError(cause)
	}
	span.SetStatus(codes.Error, string(f.Kind))
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(f.Kind))))

	lg := zctx.From(ctx)
	if f.Kind != KindInconsistent {
		lg.Warn("Submission failed",
			zap.String("kind", string(f.Kind)),
			zap.Bool("retryable", f.Retryable),
			zap.Error(cause),
		)
	}

	m.transition(ctx, m.with(func(s *Snapshot) {
		s.State = StateFailed
		s.Failure = &f
		s.NextActionURL = ""
	}))
	return m.Snapshot()
}

// step runs fn with its own deadline.
func (m *Machine) step(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (m *Machine) with(fn func(s *Snapshot)) Snapshot {
	s := m.Snapshot()
	fn(&s)
	return s
}

// transition moves to next. A move the transition table does not allow is a
// bug in the machine: it is reported and the state is left as it was.
func (m *Machine) transition(ctx context.Context, next Snapshot) {
	m.mu.Lock()
	from := m.snap.State
	if from != next.State && !CanTransitionTo(from, next.State) {
		m.mu.Unlock()
		zctx.From(ctx).DPanic("Illegal submission transition",
			zap.String("from", string(from)),
			zap.String("to", string(next.State)),
		)
		return
	}
	m.snap = next
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(next.State)),
	))
	if from != next.State {
		zctx.From(ctx).Info("Submission transition",
			zap.String("from", string(from)),
			zap.String("to", string(next.State)),
			zap.Int64("order_id", next.OrderID),
		)
	}
	for _, fn := range subs {
		fn(next)
	}
}

func (m *Machine) illegal(from, to State) error {
	return errors.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
}

// Package storefront runs one customer's checkout: the cart, the checkout
// record, shipping quotes, coupons and order submission, kept in sync and
// persisted between requests.
package storefront

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
	"github.com/xenking/storefront-checkout/internal/storage"
	"github.com/xenking/storefront-checkout/pkg/debounce"
)

var (
	// ErrEmptyCart is returned when checkout is entered with nothing in the
	// cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutLocked is returned for cart and checkout edits while an
	// order is being paid for.
	ErrCheckoutLocked = errors.New("checkout is locked by an order in progress")
	// ErrShippingUnavailable is returned when the chosen method is not
	// offered for the current address and cart.
	ErrShippingUnavailable = errors.New("shipping method is not available")
	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("session is closed")
)

// Catalog loads products for pricing.
type Catalog interface {
	Product(ctx context.Context, id int64) (product.Product, error)
}

// AddItem is a request to put a product into the cart.
type AddItem struct {
	ProductID    int64             `json:"productId" validate:"gt=0"`
	Quantity     int               `json:"quantity"`
	Selections   []cart.Selection  `json:"selections,omitempty"`
	CustomFields []cart.Selection  `json:"customFields,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Session is one customer's storefront state. Mutations are serialized;
// View may be called at any time.
type Session struct {
	id   string
	deps Deps
	cfg  Config
	lg   *zap.Logger

	used atomic.Int64 // unix nanoseconds, set by the Manager

	mu      sync.Mutex
	closed  bool
	ledger  *cart.Ledger
	store   *checkout.Store
	machine *submission.Machine
	persist *debounce.Debouncer
	requote *debounce.Debouncer
	unsub   func()

	viewMu       sync.RWMutex
	options      []shipping.Option
	couponNotice string
	latest       *order.Summary
}

// restored is what a session is hydrated from.
type restored struct {
	items      []cart.Item
	checkout   *checkout.State
	submission submission.Snapshot
	latest     *order.Summary
}

func newSession(ctx context.Context, id string, deps Deps, cfg Config, r restored) (*Session, error) {
	s := &Session{
		id:      id,
		deps:    deps,
		cfg:     cfg,
		lg:      zctx.From(ctx).With(zap.String("session", id)),
		persist: debounce.New(cfg.PersistDebounce),
		requote: debounce.New(cfg.AddressDebounce),
		latest:  r.latest,
	}

	st := checkout.NewState()
	if r.checkout != nil {
		st = *r.checkout
	}
	s.ledger = cart.NewLedger(r.items, cart.WithOnChange(func([]cart.Item) { s.schedulePersist() }))
	s.store = checkout.NewStore(st, checkout.WithOnChange(func(checkout.State) { s.schedulePersist() }))

	opts := cfg.Submission
	opts.Initial = r.submission
	m, err := submission.New(deps.Backend, deps.Intents, deps.Processor, hooks{s: s}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "create submission machine")
	}
	s.machine = m
	s.unsub = m.Subscribe(func(submission.Snapshot) { s.schedulePersist() })
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) touch(now time.Time) { s.used.Store(now.UnixNano()) }

func (s *Session) lastUsed() time.Time { return time.Unix(0, s.used.Load()) }

// background returns a context carrying the session logger for work that
// outlives the request that scheduled it.
func (s *Session) background() context.Context {
	return zctx.Base(context.Background(), s.lg)
}

// lock serializes mutations and rejects them after Close.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// editable reports whether the cart and checkout may change. Once an order
// exists, edits would diverge from what the customer is paying for.
func (s *Session) editable() error {
	snap := s.machine.Snapshot()
	if snap.OrderID == 0 {
		return nil
	}
	switch snap.State {
	case submission.StateSucceeded, submission.StateCancelled:
		return nil
	}
	return ErrCheckoutLocked
}

func (s *Session) mutate(ctx context.Context, fn func(ctx context.Context) error) (View, error) {
	if err := s.lock(); err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()

	ctx = zctx.Base(ctx, s.lg)
	if err := s.editable(); err != nil {
		return s.View(), err
	}
	if err := fn(ctx); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

// AddToCart prices the product for the given selections and adds it.
func (s *Session) AddToCart(ctx context.Context, req AddItem) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		p, err := s.deps.Catalog.Product(ctx, req.ProductID)
		if err != nil {
			return errors.Wrap(err, "load product")
		}
		item, err := p.CartItem(req.Quantity, req.Selections, req.CustomFields)
		if err != nil {
			return err
		}
		if len(req.Metadata) > 0 {
			item.Metadata = make(map[string]string, len(req.Metadata))
			for k, v := range req.Metadata {
				item.Metadata[k] = v
			}
		}
		if _, err := s.ledger.Add(item); err != nil {
			return err
		}
		s.cartChanged(ctx)
		return nil
	})
}

// RemoveFromCart deletes a line whatever its quantity.
func (s *Session) RemoveFromCart(ctx context.Context, id cart.LineID) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.ledger.Remove(id)
		s.cartChanged(ctx)
		return nil
	})
}

func (s *Session) IncreaseQuantity(ctx context.Context, id cart.LineID) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.ledger.Increase(id)
		s.cartChanged(ctx)
		return nil
	})
}

// DecreaseQuantity removes the line when its quantity would drop to zero.
func (s *Session) DecreaseQuantity(ctx context.Context, id cart.LineID) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.ledger.Decrease(id)
		s.cartChanged(ctx)
		return nil
	})
}

// EnterCheckout copies the cart into the checkout and quotes it. An empty
// cart yields ErrEmptyCart so the caller can send the customer back.
func (s *Session) EnterCheckout(ctx context.Context) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		if s.ledger.Empty() {
			return ErrEmptyCart
		}
		s.cartChanged(ctx)
		return nil
	})
}

func (s *Session) SaveBilling(ctx context.Context, a checkout.Address) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		before := s.store.State().Data.Billing.Email
		s.store.SetBilling(normalizeAddress(a))
		if s.store.State().Data.Billing.Email != before {
			s.reevaluateCoupon(ctx)
		}
		return nil
	})
}

// SaveShipping stores the address at once; the shipping quote follows after
// the address has been quiet for the configured delay.
func (s *Session) SaveShipping(ctx context.Context, a checkout.Address) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		before := s.store.State()
		after := s.store.SetShipping(normalizeAddress(a))
		if after.Data.Shipping.Postcode != before.Data.Shipping.Postcode {
			s.requote.Trigger(s.debouncedRequote)
		}
		if after.Data.Billing.Email != before.Data.Billing.Email {
			s.reevaluateCoupon(ctx)
		}
		return nil
	})
}

func (s *Session) debouncedRequote() {
	if err := s.lock(); err != nil {
		return
	}
	defer s.mu.Unlock()
	if s.editable() != nil {
		return
	}
	s.requoteShipping(s.background())
}

// SaveEmail stores the contact email and re-checks per-customer coupon
// limits against it.
func (s *Session) SaveEmail(ctx context.Context, email string) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.store.SetEmail(strings.TrimSpace(email))
		s.reevaluateCoupon(ctx)
		return nil
	})
}

func (s *Session) SetBillingSameAsShipping(ctx context.Context, same bool) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		before := s.store.State().Data.Billing.Email
		st := s.store.SetBillingSameAsShipping(same)
		if st.Data.Billing.Email != before {
			s.reevaluateCoupon(ctx)
		}
		return nil
	})
}

// SelectShippingMethod picks one of the eligible methods.
func (s *Session) SelectShippingMethod(ctx context.Context, m shipping.Method) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.settleRequote(ctx)
		r, err := s.deps.Shipping.Resolver(ctx)
		if err != nil {
			return err
		}
		q := s.quote(r, m)
		if !q.Has(m) {
			return errors.Wrapf(ErrShippingUnavailable, "%q", m)
		}
		s.store.SetShippingMethod(q.Selected, q.Cost)
		s.setOptions(q.Eligible)
		return nil
	})
}

// ApplyCoupon evaluates code against the checkout and applies it. Coupon
// problems are returned as errors understood by coupon.Message.
func (s *Session) ApplyCoupon(ctx context.Context, code string) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.setCouponNotice("")
		applied, err := s.deps.Coupons.Evaluate(ctx, strings.TrimSpace(code), s.store.State().Data.CouponSnapshot())
		if err != nil {
			return err
		}
		s.store.ApplyCoupon(applied)
		s.requoteShipping(ctx)
		return nil
	})
}

// RemoveCoupon drops the coupon; shipping is re-quoted so a cost the coupon
// waived comes back.
func (s *Session) RemoveCoupon(ctx context.Context) (View, error) {
	return s.mutate(ctx, func(ctx context.Context) error {
		s.setCouponNotice("")
		s.store.RemoveCoupon()
		s.requoteShipping(ctx)
		return nil
	})
}

// Submit places the order and pays for it with the given form.
func (s *Session) Submit(ctx context.Context, form payment.Form) (View, error) {
	return s.transition(ctx, func(ctx context.Context) error {
		s.settleRequote(ctx)
		_, err := s.machine.Submit(ctx, form)
		return err
	})
}

// Retry re-runs payment for the existing order.
func (s *Session) Retry(ctx context.Context, form payment.Form) (View, error) {
	return s.transition(ctx, func(ctx context.Context) error {
		_, err := s.machine.Retry(ctx, form)
		return err
	})
}

// Resume settles the order after the customer returns from an extra
// authentication step.
func (s *Session) Resume(ctx context.Context) (View, error) {
	return s.transition(ctx, func(ctx context.Context) error {
		_, err := s.machine.Resume(ctx)
		return err
	})
}

func (s *Session) Cancel(ctx context.Context) (View, error) {
	return s.transition(ctx, func(ctx context.Context) error {
		_, err := s.machine.Cancel(ctx)
		return err
	})
}

// Reset starts a new submission after a terminal outcome.
func (s *Session) Reset(ctx context.Context) (View, error) {
	return s.transition(ctx, func(ctx context.Context) error {
		_, err := s.machine.Reset(ctx)
		return err
	})
}

// transition runs a submission action. It holds the session lock so no cart
// or checkout edit interleaves with the backend calls.
func (s *Session) transition(ctx context.Context, fn func(ctx context.Context) error) (View, error) {
	if err := s.lock(); err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()

	err := fn(zctx.Base(ctx, s.lg))
	return s.View(), err
}

// LatestOrder returns the summary of the last order placed in this session.
func (s *Session) LatestOrder() (order.Summary, bool) {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	if s.latest == nil {
		return order.Summary{}, false
	}
	return *s.latest, true
}

// Flush runs any pending shipping re-quote and writes the session through.
func (s *Session) Flush(ctx context.Context) error {
	s.requote.Flush()
	return s.save(zctx.Base(ctx, s.lg))
}

// Close cancels pending work and writes the final state. No write happens
// after Close returns.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.requote.Stop()
	s.persist.Stop()
	s.unsub()
	return s.save(zctx.Base(ctx, s.lg))
}

// cartChanged copies the cart into the checkout, re-quotes shipping and
// re-evaluates the coupon, in that order.
func (s *Session) cartChanged(ctx context.Context) {
	s.store.SetItems(s.ledger.Items())
	s.requoteShipping(ctx)
	s.reevaluateCoupon(ctx)
}

// settleRequote runs a waiting shipping re-quote now. The caller holds the
// session lock.
func (s *Session) settleRequote(ctx context.Context) {
	if s.requote.Cancel() {
		s.requoteShipping(ctx)
	}
}

func (s *Session) quote(r *shipping.Resolver, current shipping.Method) shipping.Quote {
	d := s.store.State().Data
	free := d.Coupon != nil && d.Coupon.FreeShipping
	return r.Resolve(d.Shipping.Postcode, d.Subtotal, current, free)
}

// requoteShipping resolves shipping for the current address and subtotal.
// Without a valid postcode nothing is eligible: the selection and its cost are
// cleared, which keeps the checkout from validating.
func (s *Session) requoteShipping(ctx context.Context) {
	r, err := s.deps.Shipping.Resolver(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Shipping quote skipped", zap.Error(err))
		return
	}
	q := s.quote(r, s.store.State().Data.ShippingMethod)
	s.setOptions(q.Eligible)
	s.store.SetShippingMethod(q.Selected, q.Cost)
}

// reevaluateCoupon re-applies the coupon to the changed checkout. A coupon
// that no longer qualifies is removed and the reason kept as a notice; a
// lookup failure keeps the coupon as it was.
func (s *Session) reevaluateCoupon(ctx context.Context) {
	d := s.store.State().Data
	if d.Coupon == nil {
		return
	}
	applied, err := s.deps.Coupons.Evaluate(ctx, d.Coupon.Code, d.CouponSnapshot())
	if err != nil {
		msg, ok := coupon.Message(err)
		if !ok {
			zctx.From(ctx).Warn("Coupon re-evaluation failed", zap.String("code", d.Coupon.Code), zap.Error(err))
			return
		}
		s.store.RemoveCoupon()
		s.setCouponNotice(msg)
		s.requoteShipping(ctx)
		return
	}
	s.store.ApplyCoupon(applied)
	if applied.FreeShipping != d.Coupon.FreeShipping {
		s.requoteShipping(ctx)
	}
}

func (s *Session) setOptions(opts []shipping.Option) {
	s.viewMu.Lock()
	s.options = opts
	s.viewMu.Unlock()
}

func (s *Session) setCouponNotice(msg string) {
	s.viewMu.Lock()
	s.couponNotice = msg
	s.viewMu.Unlock()
}

func (s *Session) setLatest(sum order.Summary) {
	s.viewMu.Lock()
	s.latest = &sum
	s.viewMu.Unlock()
}

func (s *Session) schedulePersist() {
	s.persist.Trigger(func() {
		ctx, cancel := context.WithTimeout(s.background(), 10*time.Second)
		defer cancel()
		if err := s.save(ctx); err != nil {
			zctx.From(ctx).Error("Persist session", zap.Error(err))
		}
	})
}

// save writes the cart, the checkout and the submission state.
func (s *Session) save(ctx context.Context) error {
	kv := s.deps.KV
	if err := storage.PutJSON(ctx, kv, storage.SessionKey(s.id, storage.KeyCart), s.ledger.Items()); err != nil {
		return err
	}
	if err := storage.PutJSON(ctx, kv, storage.SessionKey(s.id, storage.KeyCheckout), s.store.State()); err != nil {
		return err
	}
	return storage.PutJSON(ctx, kv, storage.SessionKey(s.id, storage.KeySubmission), s.machine.Snapshot())
}

func normalizeAddress(a checkout.Address) checkout.Address {
	for _, f := range []*string{
		&a.FirstName, &a.LastName, &a.Address1, &a.Address2, &a.City,
		&a.State, &a.Postcode, &a.Country, &a.Email, &a.Phone,
	} {
		*f = strings.TrimSpace(*f)
	}
	if a.Country == "" {
		a.Country = checkout.DefaultCountry
	}
	return a
}

package checkout

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// State is the persisted checkout record: the aggregate plus the flags the
// payment step needs across reloads.
type State struct {
	Data                      Data   `json:"checkoutData"`
	BillingSameAsShipping     bool   `json:"billingSameAsShipping"`
	OrderValidated            bool   `json:"orderValidated"`
	PaymentIntentClientSecret string `json:"paymentIntentClientSecret,omitempty"`
	EmailSaved                bool   `json:"emailSaved"`
	OrderID                   int64  `json:"orderId,omitempty"`
}

// NewState returns the state of a fresh checkout.
func NewState() State {
	return State{Data: NewData().CalculateTotals(), BillingSameAsShipping: true}
}

func (s State) clone() State {
	s.Data = s.Data.Clone()
	return s
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithOnChange registers a hook called with every new state, after the store
// is unlocked.
func WithOnChange(fn func(State)) StoreOption {
	return func(s *Store) {
		s.onChange = fn
	}
}

// Store is the single mutable checkout record. Every mutator recomputes the
// totals and the order-validated flag before returning the full new state, so
// callers never read totals that lag behind the mutation.
type Store struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewStore returns a store seeded with st, typically hydrated from
// persistence.
func NewStore(st State, opts ...StoreOption) *Store {
	s := &Store{state: settle(st.clone())}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Update applies fn to a copy of the state and stores the settled result.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	s.state = settle(fn(s.state.clone()))
	out := s.state.clone()
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(out.clone())
	}
	return out
}

func (s *Store) updateData(fn func(Data) Data) State {
	return s.Update(func(st State) State {
		st.Data = fn(st.Data)
		return st
	})
}

// keepEmail fills a's empty email from prev. Address forms do not carry the
// contact email, so saving one must not erase it.
func keepEmail(a Address, prev string) Address {
	if a.Email == "" {
		a.Email = prev
	}
	return a
}

// SetBilling replaces the billing address, keeping the saved email when a
// has none.
func (s *Store) SetBilling(a Address) State {
	return s.updateData(func(d Data) Data { return d.WithBilling(keepEmail(a, d.Billing.Email)) })
}

// SetShipping replaces the shipping address, keeping the saved email when a
// has none; billing mirrors it while BillingSameAsShipping is set.
func (s *Store) SetShipping(a Address) State {
	return s.Update(func(st State) State {
		st.Data = st.Data.WithShipping(keepEmail(a, st.Data.Shipping.Email))
		if st.BillingSameAsShipping {
			st.Data = st.Data.WithBilling(keepEmail(st.Data.Shipping, st.Data.Billing.Email))
		}
		return st
	})
}

// SetBillingSameAsShipping toggles mirroring. Turning it on copies the
// current shipping address into billing.
func (s *Store) SetBillingSameAsShipping(same bool) State {
	return s.Update(func(st State) State {
		st.BillingSameAsShipping = same
		if same {
			st.Data = st.Data.WithBilling(keepEmail(st.Data.Shipping, st.Data.Billing.Email))
		}
		return st
	})
}

// SetEmail stores the contact email on both addresses.
func (s *Store) SetEmail(email string) State {
	return s.Update(func(st State) State {
		st.Data.Billing.Email = email
		st.Data.Shipping.Email = email
		st.EmailSaved = email != ""
		return st
	})
}

func (s *Store) SetPaymentMethod(m string) State {
	return s.updateData(func(d Data) Data { return d.WithPaymentMethod(m) })
}

func (s *Store) SetShippingMethod(m shipping.Method, cost decimal.Decimal) State {
	return s.updateData(func(d Data) Data { return d.WithShippingMethod(m, cost) })
}

// SetItems replaces the cart snapshot.
func (s *Store) SetItems(items []cart.Item) State {
	return s.updateData(func(d Data) Data { return d.WithItems(items) })
}

func (s *Store) ApplyCoupon(a coupon.Applied) State {
	return s.updateData(func(d Data) Data { return d.WithCoupon(a) })
}

func (s *Store) RemoveCoupon() State {
	return s.updateData(func(d Data) Data { return d.WithoutCoupon() })
}

// SetPaymentIntent records the client secret of the order's payment intent.
func (s *Store) SetPaymentIntent(clientSecret string) State {
	return s.Update(func(st State) State {
		st.PaymentIntentClientSecret = clientSecret
		return st
	})
}

// SetOrderID records the backend order the checkout is being paid for.
func (s *Store) SetOrderID(id int64) State {
	return s.Update(func(st State) State {
		st.OrderID = id
		return st
	})
}

// Reset empties the checkout.
func (s *Store) Reset() State {
	return s.Update(func(State) State { return NewState() })
}

func settle(st State) State {
	st.Data = st.Data.CalculateTotals()
	st.OrderValidated = st.Data.Complete()
	return st
}

package storefront

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
)

// CartView is the cart as shown to the customer.
type CartView struct {
	Items    []cart.Item     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Empty    bool            `json:"empty"`
}

// SubmissionView is the submission state plus the actions it allows.
type SubmissionView struct {
	submission.Snapshot
	CanRetry  bool `json:"canRetry"`
	CanCancel bool `json:"canCancel"`
}

// View is everything the storefront renders for a session.
type View struct {
	SessionID       string            `json:"sessionId"`
	Cart            CartView          `json:"cart"`
	Checkout        checkout.State    `json:"checkout"`
	ShippingOptions []shipping.Option `json:"shippingOptions"`
	CouponNotice    string            `json:"couponNotice,omitempty"`
	Submission      SubmissionView    `json:"submission"`
	LatestOrder     *order.Summary    `json:"latestOrder,omitempty"`
}

// View returns the current state of the session.
func (s *Session) View() View {
	items := s.ledger.Items()
	if items == nil {
		items = []cart.Item{}
	}
	snap := s.machine.Snapshot()

	v := View{
		SessionID: s.id,
		Cart: CartView{
			Items:    items,
			Subtotal: cart.Subtotal(items),
			Empty:    len(items) == 0,
		},
		Checkout: s.store.State(),
		Submission: SubmissionView{
			Snapshot:  snap,
			CanRetry:  snap.CanRetry(),
			CanCancel: snap.CanCancel(),
		},
	}

	s.viewMu.RLock()
	v.ShippingOptions = append([]shipping.Option{}, s.options...)
	v.CouponNotice = s.couponNotice
	if s.latest != nil {
		latest := *s.latest
		v.LatestOrder = &latest
	}
	s.viewMu.RUnlock()
	return v
}

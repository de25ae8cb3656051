package storefront

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
	"github.com/xenking/storefront-checkout/internal/storage"
)

// hooks feeds submission outcomes back into the session. They run under the
// session lock, taken by the action that drives the machine.
type hooks struct {
	s *Session
}

var _ submission.Hooks = hooks{}

func (h hooks) Checkout() checkout.State {
	return h.s.store.State()
}

// OrderCreated records the order and keeps its summary in the latest-order
// slot, and in the archive when one is configured. Storage failures are
// logged: the order exists either way.
func (h hooks) OrderCreated(ctx context.Context, sum order.Summary) {
	h.s.store.SetOrderID(sum.OrderID)
	h.s.setLatest(sum)

	lg := zctx.From(ctx)
	key := storage.SessionKey(h.s.id, storage.KeyLatestOrder)
	if err := storage.PutJSON(ctx, h.s.deps.KV, key, sum); err != nil {
		lg.Error("Save latest order", zap.Int64("order_id", sum.OrderID), zap.Error(err))
	}
	if h.s.deps.Archive != nil {
		if err := h.s.deps.Archive.SaveSummary(ctx, sum); err != nil {
			lg.Error("Archive order summary", zap.Int64("order_id", sum.OrderID), zap.Error(err))
		}
	}
}

func (h hooks) IntentCreated(_ context.Context, clientSecret string) {
	h.s.store.SetPaymentIntent(clientSecret)
}

func (h hooks) Paid(context.Context) {
	h.s.ledger.Clear()
	h.s.store.Reset()
	h.s.setOptions(nil)
	h.s.setCouponNotice("")
}

// Cancelled empties the cart. The shipping choice goes with it, so the
// cancelled checkout totals zero until something is added again.
func (h hooks) Cancelled(context.Context) {
	h.s.ledger.Clear()
	h.s.store.RemoveCoupon()
	h.s.store.SetItems(nil)
	h.s.store.SetShippingMethod("", decimal.Zero)
	h.s.setCouponNotice("")
}

func (h hooks) Reset(context.Context) {
	h.s.store.SetOrderID(0)
	h.s.store.SetPaymentIntent("")
}

package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

var _ order.Archive = (*SummaryArchive)(nil)

// SummaryArchive keeps every created order's summary in order_summaries.
type SummaryArchive struct {
	db DB
}

func NewSummaryArchive(db DB) *SummaryArchive {
	return &SummaryArchive{db: db}
}

// SaveSummary inserts the summary; saving the same order again overwrites it.
func (a *SummaryArchive) SaveSummary(ctx context.Context, s order.Summary) error {
	total, err := decimal.NewFromString(s.Total)
	if err != nil {
		return errors.Wrap(err, "parse total")
	}
	shippingCost, err := decimal.NewFromString(s.ShippingCost)
	if err != nil {
		return errors.Wrap(err, "parse shipping cost")
	}
	discount, err := decimal.NewFromString(s.DiscountTotal)
	if err != nil {
		return errors.Wrap(err, "parse discount total")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}

	_, err = a.db.Exec(ctx, `
		INSERT INTO order_summaries
			(order_id, status, email, total, shipping_cost, discount_total, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			shipping_cost = EXCLUDED.shipping_cost,
			discount_total = EXCLUDED.discount_total,
			summary = EXCLUDED.summary`,
		s.OrderID, string(s.Status), s.Billing.Email, total, shippingCost, discount, payload, s.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order summary %d", s.OrderID)
	}
	return nil
}

// Summary loads an archived summary.
func (a *SummaryArchive) Summary(ctx context.Context, orderID int64) (order.Summary, error) {
	var payload []byte
	err := a.db.QueryRow(ctx, `SELECT summary FROM order_summaries WHERE order_id = $1`, orderID).Scan(&payload)
	if err != nil {
		return order.Summary{}, errors.Wrapf(err, "select order summary %d", orderID)
	}
	var s order.Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return order.Summary{}, errors.Wrap(err, "decode summary")
	}
	return s, nil
}

package coupon

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Discount computes the amount c takes off the snapshot, rounded to cents and
// clamped to [0, subtotal].
func Discount(c *Coupon, s Snapshot) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.Type {
	case DiscountFixedCart:
		amount = c.Amount
	case DiscountPercent:
		for _, item := range s.Items {
			amount = amount.Add(money.Percent(item.LinePrice(), c.Amount))
		}
	case DiscountFixedProduct:
		for _, item := range s.Items {
			if slices.Contains(c.ProductIDs, item.ProductID) {
				amount = amount.Add(money.Percent(item.LinePrice(), c.Amount))
			}
		}
	default:
		return decimal.Zero, errors.Wrapf(ErrUnsupportedType, "%q", c.Type)
	}

	amount = money.FloorAtZero(amount)
	return money.Round(decimal.Min(amount, s.Subtotal)), nil
}

// Apply validates c and, when it passes, returns its evaluated effect. A
// failed rule is reported as *RejectedError.
func Apply(c *Coupon, s Snapshot, now time.Time) (Applied, error) {
	if res := Validate(c, s, now); !res.Valid {
		return Applied{}, &RejectedError{Code: c.Code, Reason: res.Reason, Message: res.Message}
	}
	amount, err := Discount(c, s)
	if err != nil {
		return Applied{}, err
	}
	return Applied{
		Code:         c.Code,
		Description:  c.Description,
		Discount:     amount,
		FreeShipping: c.FreeShipping,
	}, nil
}

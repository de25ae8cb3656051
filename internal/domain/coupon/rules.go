package coupon

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Reason names a validation rule.
type Reason string

const (
	ReasonExpired            Reason = "expired"
	ReasonMinimumSpend       Reason = "minimum_spend"
	ReasonMaximumSpend       Reason = "maximum_spend"
	ReasonProducts           Reason = "products"
	ReasonExcludedProducts   Reason = "excluded_products"
	ReasonCategories         Reason = "categories"
	ReasonExcludedCategories Reason = "excluded_categories"
	ReasonUsageLimit         Reason = "usage_limit"
	ReasonUserUsageLimit     Reason = "user_usage_limit"
)

// Result is the outcome of Validate.
type Result struct {
	Valid   bool
	Reason  Reason
	Message string
}

type rule struct {
	reason Reason
	failed func(c *Coupon, s Snapshot, now time.Time) bool
	msg    func(c *Coupon) string
}

func constMsg(s string) func(*Coupon) string {
	return func(*Coupon) string { return s }
}

// rules run in order; the first failure wins.
var rules = []rule{
	{
		reason: ReasonExpired,
		failed: func(c *Coupon, _ Snapshot, now time.Time) bool {
			return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
		},
		msg: constMsg("This coupon has expired."),
	},
	{
		reason: ReasonMinimumSpend,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return s.Subtotal.LessThan(c.MinimumAmount)
		},
		msg: func(c *Coupon) string {
			return fmt.Sprintf("Your order must be at least $%s to use this coupon.", money.Format(c.MinimumAmount))
		},
	},
	{
		reason: ReasonMaximumSpend,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return c.MaximumAmount.IsPositive() && s.Subtotal.GreaterThan(c.MaximumAmount)
		},
		msg: func(c *Coupon) string {
			return fmt.Sprintf("This coupon can only be used on orders up to $%s.", money.Format(c.MaximumAmount))
		},
	},
	{
		reason: ReasonProducts,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return len(c.ProductIDs) > 0 && !anyProduct(s, c.ProductIDs)
		},
		msg: constMsg("This coupon is not valid for any items in your cart."),
	},
	{
		reason: ReasonExcludedProducts,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return anyProduct(s, c.ExcludedProductIDs)
		},
		msg: constMsg("This coupon cannot be used with some items in your cart."),
	},
	{
		reason: ReasonCategories,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return len(c.CategoryIDs) > 0 && !anyCategory(s, c.CategoryIDs)
		},
		msg: constMsg("This coupon is not valid for your selected product categories."),
	},
	{
		reason: ReasonExcludedCategories,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return anyCategory(s, c.ExcludedCategoryIDs)
		},
		msg: constMsg("This coupon cannot be used with some categories in your cart."),
	},
	{
		reason: ReasonUsageLimit,
		failed: func(c *Coupon, _ Snapshot, _ time.Time) bool {
			return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
		},
		msg: constMsg("This coupon has reached its maximum usage limit."),
	},
	{
		reason: ReasonUserUsageLimit,
		failed: func(c *Coupon, s Snapshot, _ time.Time) bool {
			return c.UsageLimitPerUser > 0 && usesBy(c, s.Email) >= c.UsageLimitPerUser
		},
		msg: func(c *Coupon) string {
			return fmt.Sprintf("You have already used this coupon the maximum number of times (%d).", c.UsageLimitPerUser)
		},
	},
}

// Validate checks c against the snapshot at time now. Zero limits and a nil
// expiry mean "no restriction".
func Validate(c *Coupon, s Snapshot, now time.Time) Result {
	for _, r := range rules {
		if r.failed(c, s, now) {
			return Result{Reason: r.reason, Message: r.msg(c)}
		}
	}
	return Result{Valid: true}
}

func anyProduct(s Snapshot, ids []int64) bool {
	for _, item := range s.Items {
		if slices.Contains(ids, item.ProductID) {
			return true
		}
	}
	return false
}

func anyCategory(s Snapshot, ids []int64) bool {
	for _, item := range s.Items {
		for _, cat := range item.Categories {
			if slices.Contains(ids, cat.ID) {
				return true
			}
		}
	}
	return false
}

// usesBy counts prior uses by email, ignoring case and surrounding spaces.
func usesBy(c *Coupon, email string) int {
	email = normalizeEmail(email)
	if email == "" {
		return 0
	}
	n := 0
	for _, u := range c.UsedBy {
		if normalizeEmail(u) == email {
			n++
		}
	}
	return n
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Package shipping resolves which shipping methods a customer may choose from
// for a postal code and cart subtotal, and what the chosen one costs.
package shipping

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/pkg/validate"
)

// Method is a shipping method tag as the commerce backend names it.
type Method string

const (
	MethodFlatRate     Method = "flat_rate"
	MethodFreeShipping Method = "free_shipping"
	MethodLocalPickup  Method = "local_pickup"
)

// Title is the display name sent with the order's shipping line.
func (m Method) Title() string {
	switch m {
	case MethodFlatRate:
		return "Flat Rate"
	case MethodFreeShipping:
		return "Free Shipping"
	case MethodLocalPickup:
		return "Local Pickup"
	default:
		return string(m)
	}
}

// ValidPostcode reports whether code is a 5-digit postal code.
func ValidPostcode(code string) bool {
	return validate.Var(code, "len=5,number") == nil
}

// Tier is one flat-rate step: subtotals at or above Threshold pay Cost.
type Tier struct {
	Threshold decimal.Decimal `json:"threshold"`
	Cost      decimal.Decimal `json:"cost"`
}

// Options is the shipping table published by the backend.
type Options struct {
	FlatRates             []Tier   `json:"flatRates"`
	PickupZipCodes        []string `json:"pickupZipCodes"`
	FreeShippingForPickup bool     `json:"freeShippingForPickup"`
}

// Option is one eligible method with its cost.
type Option struct {
	Method Method          `json:"method"`
	Title  string          `json:"title"`
	Cost   decimal.Decimal `json:"cost"`
}

// Quote is the outcome of a resolution: the eligible options and the one
// selected. Selected is empty when nothing is eligible.
type Quote struct {
	Eligible []Option
	Selected Method
	Cost     decimal.Decimal
}

// Has reports whether m is among the eligible options.
func (q Quote) Has(m Method) bool {
	return slices.ContainsFunc(q.Eligible, func(o Option) bool { return o.Method == m })
}

// Resolver evaluates an Options table.
type Resolver struct {
	tiers  []Tier
	pickup map[string]struct{}
	free   bool
}

// NewResolver builds a resolver over opts. Tiers are sorted by threshold.
func NewResolver(opts Options) *Resolver {
	tiers := slices.Clone(opts.FlatRates)
	slices.SortFunc(tiers, func(a, b Tier) int { return a.Threshold.Cmp(b.Threshold) })

	pickup := make(map[string]struct{}, len(opts.PickupZipCodes))
	for _, z := range opts.PickupZipCodes {
		pickup[z] = struct{}{}
	}
	return &Resolver{tiers: tiers, pickup: pickup, free: opts.FreeShippingForPickup}
}

// FlatRate returns the cost of the highest tier whose threshold is at or
// below subtotal, or the lowest tier's cost when none qualify. Zero when the
// table has no tiers.
func (r *Resolver) FlatRate(subtotal decimal.Decimal) decimal.Decimal {
	if len(r.tiers) == 0 {
		return decimal.Zero
	}
	cost := r.tiers[0].Cost
	for _, t := range r.tiers {
		if t.Threshold.GreaterThan(subtotal) {
			break
		}
		cost = t.Cost
	}
	return cost
}

// Eligible lists the methods available for postcode and subtotal. A coupon
// granting free shipping adds a free option for any valid postcode.
func (r *Resolver) Eligible(postcode string, subtotal decimal.Decimal, couponFreeShipping bool) []Option {
	if !ValidPostcode(postcode) {
		return nil
	}

	var out []Option
	if _, ok := r.pickup[postcode]; ok {
		out = append(out, option(MethodLocalPickup, decimal.Zero))
		if r.free || couponFreeShipping {
			out = append(out, option(MethodFreeShipping, decimal.Zero))
		}
		return out
	}

	out = append(out, option(MethodFlatRate, r.FlatRate(subtotal)))
	if couponFreeShipping {
		out = append(out, option(MethodFreeShipping, decimal.Zero))
	}
	return out
}

// Resolve computes the eligible options and keeps current when it is still
// eligible; otherwise it falls back to the default selection.
func (r *Resolver) Resolve(postcode string, subtotal decimal.Decimal, current Method, couponFreeShipping bool) Quote {
	q := Quote{Eligible: r.Eligible(postcode, subtotal, couponFreeShipping), Cost: decimal.Zero}
	if len(q.Eligible) == 0 {
		return q
	}

	pick := DefaultSelection(q.Eligible)
	if current != "" && q.Has(current) {
		pick = current
	}
	for _, o := range q.Eligible {
		if o.Method == pick {
			q.Selected, q.Cost = o.Method, o.Cost
		}
	}
	return q
}

// DefaultSelection prefers free shipping, then local pickup, then flat rate.
func DefaultSelection(eligible []Option) Method {
	for _, m := range []Method{MethodFreeShipping, MethodLocalPickup, MethodFlatRate} {
		for _, o := range eligible {
			if o.Method == m {
				return m
			}
		}
	}
	return ""
}

func option(m Method, cost decimal.Decimal) Option {
	return Option{Method: m, Title: m.Title(), Cost: cost}
}

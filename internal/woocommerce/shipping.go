package woocommerce

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// ShippingOptions fetches the shipping table from the ACF options page. The
// page is public; no credentials are sent.
func (c *Client) ShippingOptions(ctx context.Context) (shipping.Options, error) {
	if c.cfg.OptionsURL == "" {
		return shipping.Options{}, errors.New("shipping options url is not configured")
	}
	data, err := c.do(ctx, http.MethodGet, c.cfg.OptionsURL, nil, false)
	if err != nil {
		return shipping.Options{}, errors.Wrap(err, "get shipping options")
	}

	var (
		opts  shipping.Options
		found bool
	)
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "acf" {
			return d.Skip()
		}
		found = true
		o, err := decodeACF(d)
		opts = o
		return err
	})
	if err != nil {
		return shipping.Options{}, errors.Wrap(err, "decode shipping options")
	}
	if !found {
		return shipping.Options{}, errors.New("shipping options: missing acf block")
	}
	return opts, nil
}

// acf field names of the three flat-rate tiers.
var tierFields = map[string]struct {
	tier int
	cost bool
}{
	"flat_rate_1_threshold":     {0, false},
	"flat_rate_1_cost":          {0, true},
	"flat_rate_2_threshold_max": {1, false},
	"flat_rate_2_cost":          {1, true},
	"flat_rate_3_threshold":     {2, false},
	"flat_rate_3_cost":          {2, true},
}

func decodeACF(d *jx.Decoder) (shipping.Options, error) {
	var (
		opts  shipping.Options
		tiers [3]shipping.Tier
		seen  [3]bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if f, ok := tierFields[key]; ok {
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, key)
			}
			if f.cost {
				tiers[f.tier].Cost = v
			} else {
				tiers[f.tier].Threshold = v
			}
			seen[f.tier] = true
			return nil
		}
		switch key {
		case "local_pickup_zipcodes":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "zip_code" {
						return d.Skip()
					}
					var zip string
					var err error
					if d.Next() == jx.Number {
						var n jx.Num
						n, err = d.Num()
						zip = n.String()
					} else {
						zip, err = decodeString(d)
					}
					if zip != "" {
						opts.PickupZipCodes = append(opts.PickupZipCodes, zip)
					}
					return err
				})
			})
		case "is_free_shipping_for_local_pickup":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			opts.FreeShippingForPickup = v
			return err
		default:
			return d.Skip()
		}
	})
	for i, t := range tiers {
		if seen[i] {
			opts.FlatRates = append(opts.FlatRates, shipping.Tier{
				Threshold: t.Threshold.Round(2),
				Cost:      t.Cost.Round(2),
			})
		}
	}
	return opts, err
}

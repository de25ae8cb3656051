package woocommerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

var _ coupon.Repository = (*Client)(nil)

// FindByCode looks a coupon up by code. The backend filter ignores case, so
// the result is narrowed to an exact match.
func (c *Client) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	if code == "" {
		return nil, coupon.ErrNotFound
	}
	u := c.cfg.BaseURL + "/coupons?code=" + url.QueryEscape(code)

	data, err := c.do(ctx, http.MethodGet, u, nil, true)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrap(err, "get coupon")
	}

	var found *coupon.Coupon
	err = jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		cp, err := decodeCoupon(d)
		if err != nil {
			return err
		}
		if found == nil && cp.Code == code {
			found = &cp
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupons")
	}
	if found == nil {
		return nil, coupon.ErrNotFound
	}
	return found, nil
}

func decodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var (
		cp         coupon.Coupon
		expires    string
		expiresGMT string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			cp.ID, err = decodeInt(d)
		case "code":
			cp.Code, err = decodeString(d)
		case "discount_type":
			var s string
			s, err = decodeString(d)
			cp.Type = coupon.DiscountType(s)
		case "amount":
			cp.Amount, err = decodeDecimal(d)
		case "description":
			cp.Description, err = decodeString(d)
		case "free_shipping":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			cp.FreeShipping, err = d.Bool()
		case "minimum_amount":
			cp.MinimumAmount, err = decodeDecimal(d)
		case "maximum_amount":
			cp.MaximumAmount, err = decodeDecimal(d)
		case "product_ids":
			cp.ProductIDs, err = decodeInts(d)
		case "excluded_product_ids":
			cp.ExcludedProductIDs, err = decodeInts(d)
		case "product_categories":
			cp.CategoryIDs, err = decodeInts(d)
		case "excluded_product_categories":
			cp.ExcludedCategoryIDs, err = decodeInts(d)
		case "usage_limit":
			var n int64
			n, err = decodeInt(d)
			cp.UsageLimit = int(n)
		case "usage_count":
			var n int64
			n, err = decodeInt(d)
			cp.UsageCount = int(n)
		case "usage_limit_per_user":
			var n int64
			n, err = decodeInt(d)
			cp.UsageLimitPerUser = int(n)
		case "used_by":
			cp.UsedBy, err = decodeStrings(d)
		case "date_expires":
			expires, err = decodeString(d)
		case "date_expires_gmt":
			expiresGMT, err = decodeString(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return cp, err
	}

	raw := expiresGMT
	if raw == "" {
		raw = expires
	}
	if raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return cp, err
		}
		cp.ExpiresAt = t
	}
	return cp, nil
}

package woocommerce

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
)

// WooCommerce dates carry no zone; the _gmt variants are UTC.
const dateLayout = "2006-01-02T15:04:05"

// decodeDecimal accepts a JSON string, number or null. WooCommerce sends
// money as strings and ACF fields as either.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, d.Skip()
	}
}

// decodeInt accepts a number, a numeric string or null.
func decodeInt(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

// decodeString accepts a string or null; ACF returns false for empty fields.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

func parseDate(s string) (*time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, errors.Wrapf(err, "parse date %q", s)
	}
	return &t, nil
}

func decodeInts(d *jx.Decoder) ([]int64, error) {
	var out []int64
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		v, err := decodeInt(d)
		out = append(out, v)
		return err
	})
	return out, err
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		v, err := decodeString(d)
		out = append(out, v)
		return err
	})
	return out, err
}

func encodeAddress(e *jx.Encoder, a checkout.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("first_name", func(e *jx.Encoder) { e.Str(a.FirstName) })
		e.Field("last_name", func(e *jx.Encoder) { e.Str(a.LastName) })
		e.Field("address_1", func(e *jx.Encoder) { e.Str(a.Address1) })
		e.Field("address_2", func(e *jx.Encoder) { e.Str(a.Address2) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("postcode", func(e *jx.Encoder) { e.Str(a.Postcode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
		e.Field("email", func(e *jx.Encoder) { e.Str(a.Email) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
	})
}

func decodeAddress(d *jx.Decoder) (checkout.Address, error) {
	var a checkout.Address
	fields := map[string]*string{
		"first_name": &a.FirstName,
		"last_name":  &a.LastName,
		"address_1":  &a.Address1,
		"address_2":  &a.Address2,
		"city":       &a.City,
		"state":      &a.State,
		"postcode":   &a.Postcode,
		"country":    &a.Country,
		"email":      &a.Email,
		"phone":      &a.Phone,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := decodeString(d)
		*dst = v
		return err
	})
	return a, err
}

func encodeSelections(e *jx.Encoder, s []cart.Selection) {
	e.Arr(func(e *jx.Encoder) {
		for _, sel := range s {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(sel.Name) })
				e.Field("value", func(e *jx.Encoder) { e.Str(sel.Value) })
			})
		}
	})
}

// encodeSelectionMap writes selections as a JSON object.
func encodeSelectionMap(e *jx.Encoder, s []cart.Selection) {
	e.Obj(func(e *jx.Encoder) {
		for _, sel := range s {
			e.Field(sel.Name, func(e *jx.Encoder) { e.Str(sel.Value) })
		}
	})
}

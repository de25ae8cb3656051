package woocommerce

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// AttemptMetaKey tags backend orders with the submission attempt that
// created them. The leading underscore hides it in the admin UI.
const AttemptMetaKey = "_storefront_attempt"

var _ order.Backend = (*Client)(nil)

// CreateOrder posts a new order. Any non-2xx answer is an
// *order.RejectionError carrying the backend message.
func (c *Client) CreateOrder(ctx context.Context, p order.Payload) (order.Created, error) {
	data, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", encodePayload(p), true)
	if err != nil {
		return order.Created{}, rejection("create order", err)
	}
	created, err := decodeCreated(jx.DecodeBytes(data))
	if err != nil {
		return order.Created{}, errors.Wrap(err, "decode order")
	}
	return created, nil
}

// UpdateOrderStatus sets the status of an existing order.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(status)) })
	})
	u := c.cfg.BaseURL + "/orders/" + strconv.FormatInt(id, 10)
	if _, err := c.do(ctx, http.MethodPut, u, e.Bytes(), true); err != nil {
		return rejection("update order status", err)
	}
	return nil
}

func rejection(op string, err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return &order.RejectionError{Op: op, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return errors.Wrap(err, op)
}

func encodePayload(p order.Payload) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(p.PaymentMethod) })
		e.Field("payment_method_title", func(e *jx.Encoder) { e.Str(p.PaymentMethodTitle) })
		e.Field("set_paid", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("billing", func(e *jx.Encoder) { encodeAddress(e, p.Billing) })
		e.Field("shipping", func(e *jx.Encoder) { encodeAddress(e, p.Shipping) })
		e.Field("line_items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range p.LineItems {
					encodeLineItem(e, li)
				}
			})
		})
		e.Field("shipping_lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, sl := range p.ShippingLines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("method_id", func(e *jx.Encoder) { e.Str(sl.MethodID) })
						e.Field("method_title", func(e *jx.Encoder) { e.Str(sl.MethodTitle) })
						e.Field("total", func(e *jx.Encoder) { e.Str(sl.Total) })
					})
				}
			})
		})
		if len(p.CouponLines) > 0 {
			e.Field("coupon_lines", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, cl := range p.CouponLines {
						e.Obj(func(e *jx.Encoder) {
							e.Field("code", func(e *jx.Encoder) { e.Str(cl.Code) })
							e.Field("used_by", func(e *jx.Encoder) { e.Str(cl.UsedBy) })
						})
					}
				})
			})
		}
		if p.AttemptID != "" {
			e.Field("meta_data", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("key", func(e *jx.Encoder) { e.Str(AttemptMetaKey) })
						e.Field("value", func(e *jx.Encoder) { e.Str(p.AttemptID) })
					})
				})
			})
		}
	})
	return e.Bytes()
}

func encodeLineItem(e *jx.Encoder, li order.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(li.ProductID) })
		if li.VariationID != 0 {
			e.Field("variation_id", func(e *jx.Encoder) { e.Int64(li.VariationID) })
		}
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("meta_data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range li.MetaData {
					e.Obj(func(e *jx.Encoder) {
						e.Field("key", func(e *jx.Encoder) { e.Str(m.Key) })
						e.Field("value", func(e *jx.Encoder) {
							if m.Key == order.MetaMetadata {
								encodeSelectionMap(e, m.Value)
								return
							}
							encodeSelections(e, m.Value)
						})
					})
				}
			})
		})
	})
}

func decodeCreated(d *jx.Decoder) (order.Created, error) {
	var o order.Created
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = decodeInt(d)
		case "status":
			var s string
			s, err = decodeString(d)
			o.Status = order.Status(s)
		case "total":
			o.Total, err = decodeDecimal(d)
		case "shipping_total":
			o.ShippingTotal, err = decodeDecimal(d)
		case "discount_total":
			o.DiscountTotal, err = decodeDecimal(d)
		case "billing":
			o.Billing, err = decodeAddress(d)
		case "shipping":
			o.Shipping, err = decodeAddress(d)
		case "line_items":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeCreatedLine(d)
				o.LineItems = append(o.LineItems, l)
				return err
			})
		case "coupon_lines":
			err = d.Arr(func(d *jx.Decoder) error {
				var cl order.CouponLine
				err := d.Obj(func(d *jx.Decoder, key string) error {
					if key != "code" {
						return d.Skip()
					}
					v, err := decodeString(d)
					cl.Code = v
					return err
				})
				o.CouponLines = append(o.CouponLines, cl)
				return err
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return o, err
}

func decodeCreatedLine(d *jx.Decoder) (order.CreatedLine, error) {
	var l order.CreatedLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			l.ID, err = decodeInt(d)
		case "name":
			l.Name, err = decodeString(d)
		case "quantity":
			var n int64
			n, err = decodeInt(d)
			l.Quantity = int(n)
		case "total":
			l.Total, err = decodeDecimal(d)
		case "image":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "src" {
					return d.Skip()
				}
				v, err := decodeString(d)
				l.Image = v
				return err
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return l, err
}

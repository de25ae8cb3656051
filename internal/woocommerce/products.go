package woocommerce

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

type productInfo struct {
	id           int64
	name         string
	slug         string
	price        decimal.Decimal
	image        string
	categories   []cart.Category
	hasVariation bool
}

// Product loads a product and its variations and picks its pricing strategy.
// Unknown products yield product.ErrNotFound.
func (c *Client) Product(ctx context.Context, id int64) (product.Product, error) {
	base := c.cfg.BaseURL + "/products/" + strconv.FormatInt(id, 10)

	var (
		info       productInfo
		variations []product.Variation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := c.do(gctx, http.MethodGet, base, nil, true)
		if err != nil {
			return err
		}
		info, err = decodeProduct(jx.DecodeBytes(data))
		return errors.Wrap(err, "decode product")
	})
	g.Go(func() error {
		data, err := c.do(gctx, http.MethodGet, base+"/variations?per_page=100", nil, true)
		if err != nil {
			return err
		}
		err = jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
			v, err := decodeVariation(d)
			variations = append(variations, v)
			return err
		})
		return errors.Wrap(err, "decode variations")
	})
	if err := g.Wait(); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return product.Product{}, errors.Wrapf(product.ErrNotFound, "product %d", id)
		}
		return product.Product{}, errors.Wrapf(err, "get product %d", id)
	}
	if !info.hasVariation {
		variations = nil
	}

	pricing, err := product.NewPricing(product.DetectKind(variations), info.price, variations)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "product %d", id)
	}
	return product.Product{
		ID:         info.id,
		Name:       info.name,
		Slug:       info.slug,
		Image:      info.image,
		Categories: info.categories,
		Pricing:    pricing,
	}, nil
}

func decodeProduct(d *jx.Decoder) (productInfo, error) {
	var p productInfo
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.id, err = decodeInt(d)
		case "name":
			p.name, err = decodeString(d)
		case "slug":
			p.slug, err = decodeString(d)
		case "price":
			p.price, err = decodeDecimal(d)
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "src" || p.image != "" {
						return d.Skip()
					}
					v, err := decodeString(d)
					p.image = v
					return err
				})
			})
		case "categories":
			err = d.Arr(func(d *jx.Decoder) error {
				var c cart.Category
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						c.ID, err = decodeInt(d)
					case "name":
						c.Name, err = decodeString(d)
					case "slug":
						c.Slug, err = decodeString(d)
					default:
						return d.Skip()
					}
					return err
				})
				p.categories = append(p.categories, c)
				return err
			})
		case "variations":
			var ids []int64
			ids, err = decodeInts(d)
			p.hasVariation = len(ids) > 0
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return p, err
}

func decodeVariation(d *jx.Decoder) (product.Variation, error) {
	var v product.Variation
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = decodeInt(d)
		case "price":
			v.Price, err = decodeDecimal(d)
		case "attributes":
			err = d.Arr(func(d *jx.Decoder) error {
				var a product.Attribute
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						a.Name, err = decodeString(d)
					case "option":
						a.Option, err = decodeString(d)
					default:
						return d.Skip()
					}
					return err
				})
				v.Attributes = append(v.Attributes, a)
				return err
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return v, err
}

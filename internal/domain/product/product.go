package product

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

var (
	// ErrNotFound is returned when the catalog has no such product.
	ErrNotFound = errors.New("product not found")
	// ErrUnknownKind is returned when a product's pricing kind is not recognised.
	ErrUnknownKind = errors.New("unknown pricing kind")
	// ErrNoMatchingVariation is returned when the selections do not resolve
	// to a priced variation.
	ErrNoMatchingVariation = errors.New("no variation matches the selected options")
	// ErrMissingPrice is returned when a simple product has no price.
	ErrMissingPrice = errors.New("missing price for simple product")
)

// Attribute is one name/option pair of a variation, e.g. Color = Red.
type Attribute struct {
	Name   string
	Option string
}

// Variation is a specific priced configuration (SKU) of a product.
type Variation struct {
	ID         int64
	Price      decimal.Decimal
	Attributes []Attribute
}

func (v Variation) option(name string) (string, bool) {
	for _, a := range v.Attributes {
		if a.Name == name {
			return a.Option, true
		}
	}
	return "", false
}

// Product is the catalog view the cart needs: identity, display data,
// category tags and the pricing strategy selected at load time.
type Product struct {
	ID         int64
	Name       string
	Slug       string
	Image      string
	Categories []cart.Category
	Pricing    Pricing
}

// CartItem resolves the selections against the product's pricing and builds
// the cart line to add.
func (p Product) CartItem(qty int, selections, customFields []cart.Selection) (cart.Item, error) {
	if qty < 1 {
		return cart.Item{}, cart.ErrInvalidQuantity
	}
	if p.Pricing == nil {
		return cart.Item{}, errors.Wrapf(ErrUnknownKind, "product %d", p.ID)
	}
	q, err := p.Pricing.Resolve(selections)
	if err != nil {
		return cart.Item{}, errors.Wrapf(err, "price product %d", p.ID)
	}
	return cart.Item{
		ProductID:    p.ID,
		Name:         p.Name,
		BasePrice:    q.Price,
		Quantity:     qty,
		Image:        p.Image,
		Categories:   append([]cart.Category(nil), p.Categories...),
		VariationID:  q.VariationID,
		Variations:   q.Selections,
		CustomFields: append([]cart.Selection(nil), customFields...),
	}, nil
}

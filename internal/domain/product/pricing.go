// Package product models how a catalog product is priced. Each product gets
// exactly one Pricing strategy when it is loaded, and the strategy turns the
// customer's option selections into a unit price and variation id.
package product

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

// Kind tags the pricing strategy of a product.
type Kind string

const (
	KindSimple           Kind = "simple"
	KindSingleVariation  Kind = "single-variation"
	KindComplexVariation Kind = "complex-variation"
	KindBloxx            Kind = "bloxx"
)

// Attribute names used by the bloxx strategy.
const (
	AttrPoleShape = "Pole Shape"
	AttrPoleSize  = "Pole Size"
	AttrVersion   = "Version"

	// optionSelection is the selection name the single-variation strategy uses.
	optionSelection = "Option"
)

// Quote is a resolved price for a set of selections.
type Quote struct {
	Price       decimal.Decimal
	VariationID int64
	Selections  []cart.Selection
}

// Pricing resolves selections to a Quote.
type Pricing interface {
	Kind() Kind
	Resolve(selections []cart.Selection) (Quote, error)
}

// NewPricing selects the strategy for kind. price is used by simple products,
// variations by all others.
func NewPricing(kind Kind, price decimal.Decimal, variations []Variation) (Pricing, error) {
	switch kind {
	case KindSimple:
		if price.IsZero() {
			return nil, ErrMissingPrice
		}
		return Simple{Price: price}, nil
	case KindSingleVariation:
		return SingleVariation{Variations: variations}, nil
	case KindComplexVariation:
		return ComplexVariation{Variations: variations}, nil
	case KindBloxx:
		return Bloxx{Variations: variations}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
}

// Simple is a product with one fixed price.
type Simple struct {
	Price decimal.Decimal
}

func (Simple) Kind() Kind { return KindSimple }

func (s Simple) Resolve(selections []cart.Selection) (Quote, error) {
	return Quote{Price: s.Price, Selections: copySelections(selections)}, nil
}

// SingleVariation offers one option axis; each variation's first attribute
// is the option. Without a selection the first variation is used.
type SingleVariation struct {
	Variations []Variation
}

func (SingleVariation) Kind() Kind { return KindSingleVariation }

func (s SingleVariation) Resolve(selections []cart.Selection) (Quote, error) {
	if len(s.Variations) == 0 {
		return Quote{}, ErrNoMatchingVariation
	}
	want, ok := lookup(selections, optionSelection)
	match := s.Variations[0]
	if ok {
		found := false
		for _, v := range s.Variations {
			if len(v.Attributes) > 0 && v.Attributes[0].Option == want {
				match, found = v, true
				break
			}
		}
		if !found {
			return Quote{}, errors.Wrapf(ErrNoMatchingVariation, "option %q", want)
		}
	}

	option := ""
	if len(match.Attributes) > 0 {
		option = match.Attributes[0].Option
	}
	return Quote{
		Price:       match.Price,
		VariationID: match.ID,
		Selections:  []cart.Selection{{Name: optionSelection, Value: option}},
	}, nil
}

// ComplexVariation matches the variation whose every attribute equals the
// selection of the same name.
type ComplexVariation struct {
	Variations []Variation
}

func (ComplexVariation) Kind() Kind { return KindComplexVariation }

func (c ComplexVariation) Resolve(selections []cart.Selection) (Quote, error) {
	for _, v := range c.Variations {
		if matchesAll(v, selections) {
			return Quote{
				Price:       v.Price,
				VariationID: v.ID,
				Selections:  attributesToSelections(v.Attributes),
			}, nil
		}
	}
	return Quote{}, ErrNoMatchingVariation
}

// Bloxx prices poles whose options depend on each other: the shape narrows
// the sizes (and versions) on offer. A size or version that is not offered
// for the chosen shape falls back to the first one that is.
type Bloxx struct {
	Variations []Variation
}

func (Bloxx) Kind() Kind { return KindBloxx }

func (b Bloxx) Resolve(selections []cart.Selection) (Quote, error) {
	if len(b.Variations) == 0 {
		return Quote{}, ErrNoMatchingVariation
	}

	shape, ok := lookup(selections, AttrPoleShape)
	if !ok {
		shape, _ = b.Variations[0].option(AttrPoleShape)
	}

	var forShape []Variation
	for _, v := range b.Variations {
		if s, _ := v.option(AttrPoleShape); s == shape {
			forShape = append(forShape, v)
		}
	}
	if len(forShape) == 0 {
		return Quote{}, errors.Wrapf(ErrNoMatchingVariation, "shape %q", shape)
	}

	size := pickOffered(forShape, AttrPoleSize, selections)
	version := pickOffered(forShape, AttrVersion, selections)

	for _, v := range forShape {
		s, _ := v.option(AttrPoleSize)
		ver, _ := v.option(AttrVersion)
		if s != size || ver != version {
			continue
		}
		out := []cart.Selection{
			{Name: AttrPoleShape, Value: shape},
			{Name: AttrPoleSize, Value: size},
		}
		if version != "" {
			out = append(out, cart.Selection{Name: AttrVersion, Value: version})
		}
		return Quote{Price: v.Price, VariationID: v.ID, Selections: out}, nil
	}
	return Quote{}, errors.Wrapf(ErrNoMatchingVariation, "shape %q size %q version %q", shape, size, version)
}

// pickOffered returns the selected value for attr when one of the variations
// offers it, otherwise the first offered value ("" when none carry attr).
func pickOffered(vs []Variation, attr string, selections []cart.Selection) string {
	want, wanted := lookup(selections, attr)
	first := ""
	for _, v := range vs {
		opt, ok := v.option(attr)
		if !ok {
			continue
		}
		if wanted && opt == want {
			return opt
		}
		if first == "" {
			first = opt
		}
	}
	return first
}

func matchesAll(v Variation, selections []cart.Selection) bool {
	if len(v.Attributes) == 0 {
		return false
	}
	for _, a := range v.Attributes {
		got, ok := lookup(selections, a.Name)
		if !ok || got != a.Option {
			return false
		}
	}
	return true
}

func lookup(selections []cart.Selection, name string) (string, bool) {
	for _, s := range selections {
		if s.Name == name {
			return s.Value, true
		}
	}
	return "", false
}

func attributesToSelections(attrs []Attribute) []cart.Selection {
	out := make([]cart.Selection, len(attrs))
	for i, a := range attrs {
		out[i] = cart.Selection{Name: a.Name, Value: a.Option}
	}
	return out
}

func copySelections(s []cart.Selection) []cart.Selection {
	if len(s) == 0 {
		return nil
	}
	return append([]cart.Selection(nil), s...)
}

// DetectKind classifies a product from its variations: none is simple, a
// single attribute is single-variation, pole shape plus size is bloxx and
// anything else is complex-variation.
func DetectKind(variations []Variation) Kind {
	if len(variations) == 0 {
		return KindSimple
	}
	if len(variations[0].Attributes) == 1 {
		return KindSingleVariation
	}
	_, shape := variations[0].option(AttrPoleShape)
	_, size := variations[0].option(AttrPoleSize)
	if shape && size {
		return KindBloxx
	}
	return KindComplexVariation
}

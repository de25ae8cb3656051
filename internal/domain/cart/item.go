package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Selection is one resolved name/value pair, such as a chosen variation
// attribute ("Pole Size" = "4x4") or a free-text custom field.
type Selection struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Category is a catalog category tag attached to a line.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// LineID identifies a cart line. Two items with the same product and
// variation merge into one line.
type LineID struct {
	ProductID   int64
	VariationID int64
}

// Item is one cart line.
type Item struct {
	ProductID    int64             `json:"id"`
	Name         string            `json:"name"`
	BasePrice    decimal.Decimal   `json:"basePrice"`
	Quantity     int               `json:"quantity"`
	Image        string            `json:"image,omitempty"`
	Categories   []Category        `json:"categories,omitempty"`
	VariationID  int64             `json:"variation_id,omitempty"`
	Variations   []Selection       `json:"variations,omitempty"`
	CustomFields []Selection       `json:"customFields,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ID returns the merge identity of the line.
func (i Item) ID() LineID {
	return LineID{ProductID: i.ProductID, VariationID: i.VariationID}
}

// LinePrice is BasePrice × Quantity.
func (i Item) LinePrice() decimal.Decimal {
	return i.BasePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CategoryIDs returns the ids of the line's category tags.
func (i Item) CategoryIDs() []int64 {
	ids := make([]int64, len(i.Categories))
	for j, c := range i.Categories {
		ids[j] = c.ID
	}
	return ids
}

// Clone returns a deep copy so that mutations on the copy never reach the
// ledger.
func (i Item) Clone() Item {
	out := i
	out.Categories = append([]Category(nil), i.Categories...)
	out.Variations = append([]Selection(nil), i.Variations...)
	out.CustomFields = append([]Selection(nil), i.CustomFields...)
	if i.Metadata != nil {
		out.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CloneItems deep-copies a slice of lines.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Subtotal returns Σ(BasePrice × Quantity) rounded to cents.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LinePrice())
	}
	return money.Round(sum)
}

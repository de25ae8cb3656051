package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newItem(id int64, price string, qty int) Item {
	return Item{
		ProductID: id,
		Name:      "Product",
		BasePrice: d(price),
		Quantity:  qty,
	}
}

func TestLedger_AddMergesSameLine(t *testing.T) {
	l := NewLedger(nil)

	_, err := l.Add(Item{
		ProductID:   1,
		VariationID: 10,
		BasePrice:   d("25"),
		Quantity:    1,
		Variations:  []Selection{{Name: "Size", Value: "S"}},
	})
	require.NoError(t, err)

	items, err := l.Add(Item{
		ProductID:    1,
		VariationID:  10,
		BasePrice:    d("25"),
		Quantity:     2,
		Variations:   []Selection{{Name: "Size", Value: "M"}},
		CustomFields: []Selection{{Name: "Custom Size", Value: "7ft"}},
	})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, []Selection{{Name: "Size", Value: "M"}}, items[0].Variations)
	assert.Equal(t, []Selection{{Name: "Custom Size", Value: "7ft"}}, items[0].CustomFields)
}

func TestLedger_AddKeepsSelectionsWhenNoneGiven(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.Add(Item{ProductID: 1, BasePrice: d("5"), Quantity: 1, Variations: []Selection{{Name: "Color", Value: "Red"}}})
	require.NoError(t, err)

	items, err := l.Add(Item{ProductID: 1, BasePrice: d("5"), Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, []Selection{{Name: "Color", Value: "Red"}}, items[0].Variations)
}

func TestLedger_DifferentVariationsAreSeparateLines(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.Add(Item{ProductID: 1, VariationID: 10, BasePrice: d("5"), Quantity: 1})
	require.NoError(t, err)
	items, err := l.Add(Item{ProductID: 1, VariationID: 11, BasePrice: d("6"), Quantity: 1})
	require.NoError(t, err)

	assert.Len(t, items, 2)
}

func TestLedger_AddRejectsZeroQuantity(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.Add(newItem(1, "5", 0))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.True(t, l.Empty())
}

func TestLedger_RemoveIgnoresQuantity(t *testing.T) {
	l := NewLedger([]Item{newItem(1, "5", 4), newItem(2, "3", 1)})

	items := l.Remove(LineID{ProductID: 1})

	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ProductID)
}

func TestLedger_AddThenRemoveIsNoop(t *testing.T) {
	l := NewLedger([]Item{newItem(1, "5", 2)})
	before := l.Items()

	_, err := l.Add(newItem(2, "9.99", 3))
	require.NoError(t, err)
	after := l.Remove(LineID{ProductID: 2})

	assert.Equal(t, before, after)
}

func TestLedger_IncreaseDecrease(t *testing.T) {
	l := NewLedger([]Item{newItem(1, "5", 1)})
	id := LineID{ProductID: 1}

	l.Increase(id)
	assert.Equal(t, 2, l.Quantity(id))

	l.Decrease(id)
	assert.Equal(t, 1, l.Quantity(id))

	items := l.Decrease(id)
	assert.Empty(t, items)
	assert.True(t, l.Empty())
	assert.Equal(t, 0, l.Quantity(id))
}

func TestLedger_IncreaseUnknownLine(t *testing.T) {
	l := NewLedger([]Item{newItem(1, "5", 1)})
	items := l.Increase(LineID{ProductID: 99})
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestLedger_Subtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  decimal.Decimal
	}{
		{name: "empty", want: decimal.Zero},
		{name: "single line", items: []Item{newItem(1, "25", 2)}, want: d("50")},
		{
			name:  "rounds to cents",
			items: []Item{newItem(1, "0.333", 3), newItem(2, "10.005", 1)},
			want:  d("11.00"),
		},
		{
			name:  "several lines",
			items: []Item{newItem(1, "9.99", 3), newItem(2, "0.01", 1)},
			want:  d("29.98"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(tt.items)
			assert.True(t, tt.want.Equal(l.Subtotal()), "expected %s, got %s", tt.want, l.Subtotal())
		})
	}
}

func TestLedger_SetValidatesAndCopies(t *testing.T) {
	l := NewLedger(nil)

	_, err := l.Set([]Item{newItem(1, "5", 0)})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	src := []Item{newItem(1, "5", 1)}
	_, err = l.Set(src)
	require.NoError(t, err)

	src[0].Quantity = 42
	assert.Equal(t, 1, l.Quantity(LineID{ProductID: 1}))
}

func TestLedger_ItemsAreCopies(t *testing.T) {
	l := NewLedger([]Item{{ProductID: 1, BasePrice: d("1"), Quantity: 1, Variations: []Selection{{Name: "a", Value: "b"}}}})

	items := l.Items()
	items[0].Quantity = 9
	items[0].Variations[0].Value = "changed"

	fresh := l.Items()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, "b", fresh[0].Variations[0].Value)
}

func TestLedger_OnChange(t *testing.T) {
	var calls [][]Item
	l := NewLedger(nil, WithOnChange(func(items []Item) {
		calls = append(calls, items)
	}))

	_, err := l.Add(newItem(1, "5", 1))
	require.NoError(t, err)
	l.Clear()

	require.Len(t, calls, 2)
	assert.Len(t, calls[0], 1)
	assert.Empty(t, calls[1])
}

func TestNewLedger_DropsInvalidLines(t *testing.T) {
	l := NewLedger([]Item{newItem(1, "5", 0), newItem(2, "5", 1)})
	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ProductID)
}

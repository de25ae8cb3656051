// Package cart implements the cart ledger: the authoritative list of lines a
// customer intends to buy. The ledger performs no network calls; every
// mutation is synchronous and reports the resulting lines to an optional
// change hook (used for persistence).
package cart

import (
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a line is added with quantity below 1.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Option configures a Ledger.
type Option func(*Ledger)

// WithOnChange registers a hook that receives a copy of the lines after every
// mutation. The hook runs with the ledger unlocked.
func WithOnChange(fn func(items []Item)) Option {
	return func(l *Ledger) {
		l.onChange = fn
	}
}

// Ledger is the cart. It is safe for concurrent use; last writer wins.
type Ledger struct {
	mu       sync.Mutex
	items    []Item
	onChange func(items []Item)
}

// NewLedger returns a ledger seeded with items (typically hydrated from the
// persisted cart). Lines with quantity below 1 are dropped.
func NewLedger(items []Item, opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	for _, item := range items {
		if item.Quantity >= 1 {
			l.items = append(l.items, item.Clone())
		}
	}
	return l
}

// Add appends item, or merges it into the line with the same product and
// variation: quantities add up and non-nil variation and custom-field
// selections replace the stored ones.
func (l *Ledger) Add(item Item) ([]Item, error) {
	if item.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return l.mutate(func(items []Item) []Item {
		idx := indexOf(items, item.ID())
		if idx < 0 {
			return append(items, item.Clone())
		}
		existing := &items[idx]
		existing.Quantity += item.Quantity
		if item.Variations != nil {
			existing.Variations = append([]Selection(nil), item.Variations...)
		}
		if item.CustomFields != nil {
			existing.CustomFields = append([]Selection(nil), item.CustomFields...)
		}
		return items
	}), nil
}

// Remove deletes the line regardless of its quantity.
func (l *Ledger) Remove(id LineID) []Item {
	return l.mutate(func(items []Item) []Item {
		idx := indexOf(items, id)
		if idx < 0 {
			return items
		}
		return append(items[:idx], items[idx+1:]...)
	})
}

// Increase adds one unit to the line. Unknown lines are ignored.
func (l *Ledger) Increase(id LineID) []Item {
	return l.mutate(func(items []Item) []Item {
		if idx := indexOf(items, id); idx >= 0 {
			items[idx].Quantity++
		}
		return items
	})
}

// Decrease removes one unit from the line; the last unit removes the line.
func (l *Ledger) Decrease(id LineID) []Item {
	return l.mutate(func(items []Item) []Item {
		idx := indexOf(items, id)
		if idx < 0 {
			return items
		}
		if items[idx].Quantity <= 1 {
			return append(items[:idx], items[idx+1:]...)
		}
		items[idx].Quantity--
		return items
	})
}

// Set replaces all lines, e.g. when checkout edits are synced back.
func (l *Ledger) Set(items []Item) ([]Item, error) {
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %d", item.ProductID)
		}
	}
	return l.mutate(func([]Item) []Item {
		return CloneItems(items)
	}), nil
}

// Clear empties the cart.
func (l *Ledger) Clear() {
	l.mutate(func([]Item) []Item { return nil })
}

// Items returns a deep copy of the lines.
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return CloneItems(l.items)
}

// Quantity returns the quantity of the line, or 0 when absent.
func (l *Ledger) Quantity(id LineID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := indexOf(l.items, id); idx >= 0 {
		return l.items[idx].Quantity
	}
	return 0
}

// Empty reports whether the cart has no lines. Views use it to redirect away
// from cart and checkout.
func (l *Ledger) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items) == 0
}

// Subtotal returns Σ(unit price × quantity) rounded to cents.
func (l *Ledger) Subtotal() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Subtotal(l.items)
}

func (l *Ledger) mutate(fn func(items []Item) []Item) []Item {
	l.mu.Lock()
	l.items = fn(l.items)
	snapshot := CloneItems(l.items)
	hook := l.onChange
	l.mu.Unlock()

	if hook != nil {
		hook(CloneItems(snapshot))
	}
	return snapshot
}

func indexOf(items []Item, id LineID) int {
	for i, item := range items {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

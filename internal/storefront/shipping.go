package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// ShippingSource publishes the shipping table.
type ShippingSource interface {
	ShippingOptions(ctx context.Context) (shipping.Options, error)
}

// ShippingTable caches the shipping table for all sessions. Concurrent
// misses share one fetch; a failed refresh keeps serving the previous table.
type ShippingTable struct {
	src ShippingSource
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	resolver *shipping.Resolver
	fetched  time.Time
}

// NewShippingTable creates a table refreshed from src at most once per ttl.
func NewShippingTable(src ShippingSource, ttl time.Duration) *ShippingTable {
	return &ShippingTable{src: src, ttl: ttl, now: time.Now}
}

// Resolver returns a resolver over the current table.
func (t *ShippingTable) Resolver(ctx context.Context) (*shipping.Resolver, error) {
	t.mu.RLock()
	r, fetched := t.resolver, t.fetched
	t.mu.RUnlock()
	if r != nil && t.now().Sub(fetched) < t.ttl {
		return r, nil
	}

	v, err, _ := t.group.Do("options", func() (any, error) {
		opts, err := t.src.ShippingOptions(ctx)
		if err != nil {
			return nil, err
		}
		r := shipping.NewResolver(opts)
		t.mu.Lock()
		t.resolver, t.fetched = r, t.now()
		t.mu.Unlock()
		return r, nil
	})
	if err != nil {
		if r != nil {
			zctx.From(ctx).Warn("Serving stale shipping options", zap.Error(err))
			return r, nil
		}
		return nil, errors.Wrap(err, "load shipping options")
	}
	return v.(*shipping.Resolver), nil
}

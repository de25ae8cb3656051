package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/storefront"
)

func (h *Handler) addItem(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var req storefront.AddItem
	if err := bind(r, &req); err != nil {
		return storefront.View{}, err
	}
	return s.AddToCart(ctx, req)
}

// lineID reads {productID} and the optional ?variation= of a cart line.
func lineID(r *http.Request) (cart.LineID, error) {
	productID, err := pathInt(r, "productID")
	if err != nil {
		return cart.LineID{}, err
	}
	id := cart.LineID{ProductID: productID}
	if v := r.URL.Query().Get("variation"); v != "" {
		id.VariationID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || id.VariationID < 0 {
			return cart.LineID{}, &badRequestError{err: errors.Errorf("invalid variation %q", v), fields: []string{"variation"}}
		}
	}
	return id, nil
}

func (h *Handler) removeItem(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	id, err := lineID(r)
	if err != nil {
		return storefront.View{}, err
	}
	return s.RemoveFromCart(ctx, id)
}

func (h *Handler) increase(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	id, err := lineID(r)
	if err != nil {
		return storefront.View{}, err
	}
	return s.IncreaseQuantity(ctx, id)
}

func (h *Handler) decrease(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	id, err := lineID(r)
	if err != nil {
		return storefront.View{}, err
	}
	return s.DecreaseQuantity(ctx, id)
}

package handler

import (
	"context"
	"net/http"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/storefront"
)

func (h *Handler) enterCheckout(ctx context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.EnterCheckout(ctx)
}

func (h *Handler) saveBilling(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var a checkout.Address
	if err := decode(r, &a); err != nil {
		return storefront.View{}, err
	}
	return s.SaveBilling(ctx, a)
}

func (h *Handler) saveShipping(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var a checkout.Address
	if err := decode(r, &a); err != nil {
		return storefront.View{}, err
	}
	return s.SaveShipping(ctx, a)
}

func (h *Handler) saveEmail(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		return storefront.View{}, err
	}
	return s.SaveEmail(ctx, req.Email)
}

func (h *Handler) billingSameAsShipping(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var req struct {
		Same bool `json:"same"`
	}
	if err := decode(r, &req); err != nil {
		return storefront.View{}, err
	}
	return s.SetBillingSameAsShipping(ctx, req.Same)
}

func (h *Handler) shippingMethod(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var req struct {
		Method shipping.Method `json:"method" validate:"required,oneof=flat_rate free_shipping local_pickup"`
	}
	if err := bind(r, &req); err != nil {
		return storefront.View{}, err
	}
	return s.SelectShippingMethod(ctx, req.Method)
}

func (h *Handler) applyCoupon(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		return storefront.View{}, err
	}
	return s.ApplyCoupon(ctx, req.Code)
}

func (h *Handler) removeCoupon(ctx context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.RemoveCoupon(ctx)
}

// paymentRequest is the body of submit and retry.
type paymentRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// form returns the payment form for the request. Retry without a payment
// method reuses the previous one, so a nil form is passed on.
func (h *Handler) form(r *http.Request, optional bool) (payment.Form, error) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if optional && req.PaymentMethodID == "" {
		return nil, nil
	}
	return h.forms(req.PaymentMethodID), nil
}

func (h *Handler) submit(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	f, err := h.form(r, false)
	if err != nil {
		return storefront.View{}, err
	}
	return s.Submit(ctx, f)
}

func (h *Handler) retry(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error) {
	f, err := h.form(r, true)
	if err != nil {
		return storefront.View{}, err
	}
	return s.Retry(ctx, f)
}

func (h *Handler) cancel(ctx context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.Cancel(ctx)
}

func (h *Handler) resume(ctx context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.Resume(ctx)
}

func (h *Handler) reset(ctx context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.Reset(ctx)
}

// Package handler exposes storefront sessions over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/storefront"
	"github.com/xenking/storefront-checkout/pkg/validate"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// FormFactory builds the payment form for a payment method reference sent by
// the browser.
type FormFactory func(paymentMethodID string) payment.Form

// Handler serves the storefront API.
type Handler struct {
	sessions *storefront.Manager
	forms    FormFactory
}

// New creates a Handler.
func New(sessions *storefront.Manager, forms FormFactory) *Handler {
	return &Handler{sessions: sessions, forms: forms}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)

		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", h.session(h.view))
			r.Get("/orders/latest", h.latestOrder)

			r.Route("/cart/items", func(r chi.Router) {
				r.Post("/", h.session(h.addItem))
				r.Delete("/{productID}", h.session(h.removeItem))
				r.Post("/{productID}/increase", h.session(h.increase))
				r.Post("/{productID}/decrease", h.session(h.decrease))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.session(h.enterCheckout))
				r.Put("/billing", h.session(h.saveBilling))
				r.Put("/shipping", h.session(h.saveShipping))
				r.Put("/email", h.session(h.saveEmail))
				r.Put("/billing-same-as-shipping", h.session(h.billingSameAsShipping))
				r.Put("/shipping-method", h.session(h.shippingMethod))
				r.Post("/coupon", h.session(h.applyCoupon))
				r.Delete("/coupon", h.session(h.removeCoupon))

				r.Post("/submit", h.session(h.submit))
				r.Post("/retry", h.session(h.retry))
				r.Post("/cancel", h.session(h.cancel))
				r.Post("/resume", h.session(h.resume))
				r.Post("/reset", h.session(h.reset))
			})
		})
	})
}

// op is one session operation. It returns the view to render.
type op func(ctx context.Context, s *storefront.Session, r *http.Request) (storefront.View, error)

// session resolves {sid} and renders the operation's view or error.
func (h *Handler) session(fn op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := h.sessions.Session(ctx, chi.URLParam(r, "sid"))
		if err != nil {
			writeError(ctx, w, err, nil)
			return
		}
		v, err := fn(ctx, s, r)
		if err != nil {
			var view *storefront.View
			if v.SessionID != "" {
				view = &v
			}
			writeError(ctx, w, err, view)
			return
		}
		writeJSON(ctx, w, http.StatusOK, v)
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.sessions.Session(ctx, h.sessions.NewID())
	if err != nil {
		writeError(ctx, w, err, nil)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, s.View())
}

func (h *Handler) view(_ context.Context, s *storefront.Session, _ *http.Request) (storefront.View, error) {
	return s.View(), nil
}

func (h *Handler) latestOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.sessions.Session(ctx, chi.URLParam(r, "sid"))
	if err != nil {
		writeError(ctx, w, err, nil)
		return
	}
	sum, ok := s.LatestOrder()
	if !ok {
		writeError(ctx, w, errNoOrder, nil)
		return
	}
	writeJSON(ctx, w, http.StatusOK, sum)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	d := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &badRequestError{err: err}
	}
	return nil
}

// bind decodes like decode and then checks v's validate tags.
func bind(r *http.Request, v any) error {
	if err := decode(r, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return &badRequestError{err: errors.Wrap(err, "invalid request"), fields: validate.Fields(err)}
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zctx.From(ctx).Error("Encode response", zap.Error(err))
		status = http.StatusInternalServerError
		data = []byte(`{"code":500,"message":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, &badRequestError{err: errors.Errorf("invalid %s %q", name, raw), fields: []string{name}}
	}
	return v, nil
}

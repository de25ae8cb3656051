package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
	"github.com/xenking/storefront-checkout/internal/storefront"
)

var errNoOrder = errors.New("no order has been placed in this session")

type badRequestError struct {
	err    error
	fields []string
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// errorBody is the API error. View is the session state after a refused
// operation, when there is one.
type errorBody struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Fields  []string         `json:"fields,omitempty"`
	View    *storefront.View `json:"view,omitempty"`
}

// mapError converts domain errors to an API error. Submission failures never
// get here: they are states carried by the view.
func mapError(err error) errorBody {
	var (
		bad      *badRequestError
		invalid  *checkout.ValidationError
		fieldErr *payment.FieldError
	)
	switch {
	case errors.As(err, &bad):
		return errorBody{Code: http.StatusBadRequest, Message: err.Error(), Fields: bad.fields}
	case errors.Is(err, storefront.ErrInvalidSessionID):
		return errorBody{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, product.ErrNotFound), errors.Is(err, errNoOrder):
		return errorBody{Code: http.StatusNotFound, Message: err.Error()}
	case errors.As(err, &invalid):
		return errorBody{Code: http.StatusUnprocessableEntity, Message: "checkout is incomplete", Fields: invalid.Fields}
	case errors.As(err, &fieldErr):
		return errorBody{Code: http.StatusUnprocessableEntity, Message: fieldErr.Message, Fields: []string{fieldErr.Field}}
	}
	if msg, ok := coupon.Message(err); ok {
		return errorBody{Code: http.StatusUnprocessableEntity, Message: msg}
	}
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, product.ErrNoMatchingVariation),
		errors.Is(err, storefront.ErrShippingUnavailable):
		return errorBody{Code: http.StatusUnprocessableEntity, Message: err.Error()}
	case errors.Is(err, submission.ErrIllegalTransition),
		errors.Is(err, submission.ErrFormNotReady),
		errors.Is(err, storefront.ErrCheckoutLocked),
		errors.Is(err, storefront.ErrEmptyCart):
		return errorBody{Code: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, storefront.ErrClosed):
		return errorBody{Code: http.StatusServiceUnavailable, Message: "shutting down"}
	}
	return errorBody{Code: http.StatusInternalServerError, Message: "internal error"}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error, view *storefront.View) {
	body := mapError(err)
	lg := zctx.From(ctx)
	if body.Code >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
	} else {
		lg.Debug("Request refused", zap.Int("code", body.Code), zap.Error(err))
	}
	body.View = view
	writeJSON(ctx, w, body.Code, body)
}

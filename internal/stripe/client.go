// Package stripe adapts Stripe payment intents to the payment contracts used
// by order submission.
package stripe

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = errors.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// DefaultPaymentMethodTypes are offered when the config names none.
var DefaultPaymentMethodTypes = []string{"card", "klarna"}

// Config selects the Stripe account.
type Config struct {
	Environment string
	APIKey      string

	// PaymentMethodTypes are offered on every intent.
	PaymentMethodTypes []string
}

// intentAPI is the part of the payment intent API the client calls.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type packageIntents struct{}

func (packageIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (packageIntents) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Confirm(id, params)
}

func (packageIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

// Client creates and confirms payment intents.
type Client struct {
	api         intentAPI
	environment string
	methodTypes []string
}

var (
	_ payment.Intents   = (*Client)(nil)
	_ payment.Processor = (*Client)(nil)
)

// NewClient validates the key against the environment and initializes the
// Stripe SDK with it.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment)
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	zctx.From(ctx).Info("Stripe client initialized", zap.String("env", env))

	return &Client{api: packageIntents{}, environment: env, methodTypes: cfg.PaymentMethodTypes}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) paymentMethodTypes() []string {
	if len(c.methodTypes) == 0 {
		return DefaultPaymentMethodTypes
	}
	return c.methodTypes
}

// CreateIntent creates an intent for the order total. The order id is kept
// in the intent metadata.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	if req.Amount <= 0 {
		return payment.Intent{}, errors.Errorf("invalid amount %d", req.Amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice(c.paymentMethodTypes()),
	}
	params.AddMetadata("orderId", strconv.FormatInt(req.OrderID, 10))
	params.Context = ctx

	pi, err := c.api.New(params)
	if err != nil {
		return payment.Intent{}, errors.Wrap(err, "create payment intent")
	}
	if pi.ClientSecret == "" {
		return payment.Intent{}, errors.New("payment intent has no client secret")
	}
	return payment.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Confirm confirms the intent behind the client secret. A card decline is a
// Result with StatusError, not an error.
func (c *Client) Confirm(ctx context.Context, conf payment.Confirmation) (payment.Result, error) {
	id, err := IntentID(conf.ClientSecret)
	if err != nil {
		return payment.Result{}, err
	}
	params := &stripe.PaymentIntentConfirmParams{}
	if conf.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(conf.PaymentMethod)
	}
	if conf.ReturnURL != "" {
		params.ReturnURL = stripe.String(conf.ReturnURL)
	}
	params.Context = ctx

	pi, err := c.api.Confirm(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return payment.Result{Status: payment.StatusError, ErrorMessage: stripeErr.Msg}, nil
		}
		return payment.Result{}, errors.Wrap(err, "confirm payment intent")
	}
	return result(pi), nil
}

// Retrieve reports the current state of the intent behind the client secret.
func (c *Client) Retrieve(ctx context.Context, clientSecret string) (payment.Result, error) {
	id, err := IntentID(clientSecret)
	if err != nil {
		return payment.Result{}, err
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.Get(id, params)
	if err != nil {
		return payment.Result{}, errors.Wrap(err, "get payment intent")
	}
	return result(pi), nil
}

// IntentID extracts the intent id from a client secret ("pi_X_secret_Y").
func IntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || !strings.HasPrefix(id, "pi_") {
		return "", errors.New("malformed client secret")
	}
	return id, nil
}

// result maps an intent to a confirmation outcome. Intents still processing
// asynchronously are reported as needing action so they get re-checked.
func result(pi *stripe.PaymentIntent) payment.Result {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
		return payment.Result{Status: payment.StatusSucceeded}
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing:
		r := payment.Result{Status: payment.StatusRequiresAction}
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			r.NextActionURL = pi.NextAction.RedirectToURL.URL
		}
		return r
	default:
		msg := "Payment was not completed."
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return payment.Result{Status: payment.StatusError, ErrorMessage: msg}
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return errors.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return errors.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

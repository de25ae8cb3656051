// Package woocommerce is a client for the parts of the WooCommerce REST API
// checkout needs: orders, coupons and the shipping options page.
package woocommerce

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the REST endpoints and credentials.
type Config struct {
	// BaseURL is the wc/v3 root, e.g. https://shop.example.com/wp-json/wc/v3.
	BaseURL string
	// OptionsURL serves the ACF options page with the shipping table.
	OptionsURL     string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

// Options configures the HTTP transport.
type Options struct {
	HTTPClient     *http.Client
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to WooCommerce.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. Without an explicit HTTPClient, requests go through
// an instrumented transport.
func New(cfg Config, opts Options) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("woocommerce base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		var transportOpts []otelhttp.Option
		if opts.TracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
		}
		if opts.MeterProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
		}
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// apiError is a non-2xx answer.
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return "woocommerce: status " + http.StatusText(e.StatusCode)
	}
	return "woocommerce: " + e.Message
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, auth bool) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// decodeAPIError reads WooCommerce's {"code","message"} error body. Bodies
// that are not JSON leave the message empty.
func decodeAPIError(status int, data []byte) error {
	e := &apiError{StatusCode: status}
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			e.Code = v
			return err
		case "message":
			v, err := d.Str()
			e.Message = v
			return err
		default:
			return d.Skip()
		}
	})
	return e
}

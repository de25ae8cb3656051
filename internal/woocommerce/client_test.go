package woocommerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL + "/wp-json/wc/v3/",
		OptionsURL:     srv.URL + "/wp-json/acf/v3/options/options",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
	}, Options{HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, Options{})
	require.Error(t, err)
}

func TestClient_CreateOrder(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{
			"id": 123,
			"status": "pending",
			"total": "59.95",
			"shipping_total": "9.95",
			"discount_total": "0.00",
			"billing": {"first_name": "Ada", "email": "ada@example.com", "phone": null},
			"shipping": {"first_name": "Ada", "postcode": "90210"},
			"line_items": [{"id": 9, "name": "Pole", "quantity": 2, "total": "50.00", "image": {"src": "pole.jpg"}}],
			"coupon_lines": [],
			"meta_data": [{"id": 1, "key": "x", "value": {"nested": true}}]
		}`)
	})

	data := checkout.NewData().
		WithBilling(checkout.Address{FirstName: "Ada", Email: "ada@example.com", Country: "US"}).
		WithShipping(checkout.Address{FirstName: "Ada", Postcode: "90210", Country: "US"}).
		WithShippingMethod(shipping.MethodFlatRate, decimal.RequireFromString("9.95")).
		WithItems([]cart.Item{{
			ProductID:    7,
			VariationID:  101,
			BasePrice:    decimal.RequireFromString("25"),
			Quantity:     2,
			Variations:   []cart.Selection{{Name: "Pole Size", Value: "8ft"}},
			CustomFields: []cart.Selection{{Name: "Note", Value: "gift"}},
			Metadata:     map[string]string{"source": "configurator"},
		}}).
		CalculateTotals()

	created, err := c.CreateOrder(context.Background(), order.NewPayload(data, "attempt-1"))
	require.NoError(t, err)

	assert.Equal(t, int64(123), created.ID)
	assert.Equal(t, order.StatusPending, created.Status)
	assert.True(t, decimal.RequireFromString("59.95").Equal(created.Total))
	assert.True(t, decimal.RequireFromString("9.95").Equal(created.ShippingTotal))
	assert.Equal(t, "ada@example.com", created.Billing.Email)
	require.Len(t, created.LineItems, 1)
	assert.Equal(t, "pole.jpg", created.LineItems[0].Image)
	assert.Equal(t, 2, created.LineItems[0].Quantity)

	assert.Equal(t, "stripe", body["payment_method"])
	assert.Equal(t, order.PaymentMethodTitle, body["payment_method_title"])
	assert.Equal(t, false, body["set_paid"])

	lines := body["line_items"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.EqualValues(t, 7, line["product_id"])
	assert.EqualValues(t, 101, line["variation_id"])
	meta := line["meta_data"].([]any)
	require.Len(t, meta, 3)
	assert.Equal(t, map[string]any{"source": "configurator"}, meta[2].(map[string]any)["value"])
	assert.Equal(t, []any{map[string]any{"name": "Pole Size", "value": "8ft"}}, meta[0].(map[string]any)["value"])

	shippingLines := body["shipping_lines"].([]any)
	assert.Equal(t, map[string]any{"method_id": "flat_rate", "method_title": "Flat Rate", "total": "9.95"}, shippingLines[0])

	orderMeta := body["meta_data"].([]any)
	assert.Equal(t, map[string]any{"key": AttemptMetaKey, "value": "attempt-1"}, orderMeta[0])
	assert.NotContains(t, body, "coupon_lines")
}

func TestClient_CreateOrderRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_invalid_product_id","message":"Product ID 7 is invalid.","data":{"status":400}}`)
	})

	_, err := c.CreateOrder(context.Background(), order.Payload{})
	var rej *order.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.StatusCode)
	assert.Equal(t, "Product ID 7 is invalid.", rej.UserMessage("fallback"))
}

func TestClient_CreateOrderRejectedWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `<html>bad gateway</html>`)
	})

	_, err := c.CreateOrder(context.Background(), order.Payload{})
	var rej *order.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "fallback", rej.UserMessage("fallback"))
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/orders/123", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":123,"status":"cancelled"}`)
	})

	require.NoError(t, c.UpdateOrderStatus(context.Background(), 123, order.StatusCancelled))
	assert.Equal(t, map[string]any{"status": "cancelled"}, got)
}

func TestClient_UpdateOrderStatusNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_shop_order_invalid_id","message":"Invalid ID."}`)
	})

	err := c.UpdateOrderStatus(context.Background(), 5, order.StatusProcessing)
	var rej *order.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusNotFound, rej.StatusCode)
}

func TestClient_FindByCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/coupons", r.URL.Path)
		assert.Equal(t, "SAVE10", r.URL.Query().Get("code"))
		_, _ = io.WriteString(w, `[
			{"id": 1, "code": "save10", "amount": "1.00"},
			{
				"id": 2,
				"code": "SAVE10",
				"discount_type": "percent",
				"amount": "10.00",
				"description": "Ten off",
				"free_shipping": false,
				"minimum_amount": "50.00",
				"maximum_amount": "0.00",
				"product_ids": [7],
				"excluded_product_ids": [],
				"product_categories": [3],
				"excluded_product_categories": [],
				"usage_limit": null,
				"usage_count": 4,
				"usage_limit_per_user": 1,
				"used_by": ["ada@example.com", "12"],
				"date_expires": "2030-01-01T00:00:00",
				"date_expires_gmt": "2030-01-01T05:00:00",
				"meta_data": []
			}
		]`)
	})

	cp, err := c.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, int64(2), cp.ID)
	assert.Equal(t, coupon.DiscountPercent, cp.Type)
	assert.True(t, decimal.RequireFromString("10").Equal(cp.Amount))
	assert.True(t, decimal.RequireFromString("50").Equal(cp.MinimumAmount))
	assert.True(t, cp.MaximumAmount.IsZero())
	assert.Equal(t, []int64{7}, cp.ProductIDs)
	assert.Equal(t, []int64{3}, cp.CategoryIDs)
	assert.Equal(t, 0, cp.UsageLimit)
	assert.Equal(t, 4, cp.UsageCount)
	assert.Equal(t, 1, cp.UsageLimitPerUser)
	assert.Equal(t, []string{"ada@example.com", "12"}, cp.UsedBy)
	require.NotNil(t, cp.ExpiresAt)
	assert.Equal(t, time.Date(2030, 1, 1, 5, 0, 0, 0, time.UTC), *cp.ExpiresAt)
}

func TestClient_FindByCodeNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty list", status: http.StatusOK, body: `[]`},
		{name: "only case-insensitive match", status: http.StatusOK, body: `[{"id":1,"code":"save10"}]`},
		{name: "404", status: http.StatusNotFound, body: `{"code":"not_found","message":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FindByCode(context.Background(), "SAVE10")
			require.ErrorIs(t, err, coupon.ErrNotFound)
		})
	}
}

func TestClient_FindByCodeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.FindByCode(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, coupon.ErrNotFound)
}

func TestClient_ShippingOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/acf/v3/options/options", r.URL.Path)
		_, hasAuth := r.Header["Authorization"]
		assert.False(t, hasAuth)
		_, _ = io.WriteString(w, `{"acf": {
			"flat_rate_1_threshold": "0",
			"flat_rate_1_cost": "9.95",
			"flat_rate_2_threshold_max": 100,
			"flat_rate_2_cost": "4.95",
			"flat_rate_3_threshold": "250",
			"flat_rate_3_cost": 0,
			"local_pickup_zipcodes": [{"zip_code": "30501"}, {"zip_code": 30502}],
			"is_free_shipping_for_local_pickup": true,
			"hero_banner": {"image": "x.jpg"}
		}}`)
	})

	opts, err := c.ShippingOptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"30501", "30502"}, opts.PickupZipCodes)
	assert.True(t, opts.FreeShippingForPickup)
	require.Len(t, opts.FlatRates, 3)
	assert.True(t, decimal.RequireFromString("100").Equal(opts.FlatRates[1].Threshold))
	assert.True(t, decimal.RequireFromString("4.95").Equal(opts.FlatRates[1].Cost))

	r := shipping.NewResolver(opts)
	assert.True(t, decimal.RequireFromString("4.95").Equal(r.FlatRate(decimal.RequireFromString("120"))))
}

func TestClient_ShippingOptionsWithoutPickup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"acf": {"flat_rate_1_threshold": "0", "flat_rate_1_cost": "5", "local_pickup_zipcodes": false}}`)
	})

	opts, err := c.ShippingOptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opts.PickupZipCodes)
	assert.False(t, opts.FreeShippingForPickup)
	assert.Len(t, opts.FlatRates, 1)
}

func TestClient_ShippingOptionsMissingBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.ShippingOptions(context.Background())
	require.Error(t, err)
}

func TestClient_Product(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wc/v3/products/7":
			_, _ = io.WriteString(w, `{
				"id": 7, "name": "Bloxx Pole", "slug": "bloxx-pole", "price": "",
				"images": [{"src": "a.jpg"}, {"src": "b.jpg"}],
				"categories": [{"id": 3, "name": "Poles", "slug": "poles"}],
				"variations": [101, 102]
			}`)
		case "/wp-json/wc/v3/products/7/variations":
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))
			_, _ = io.WriteString(w, `[
				{"id": 101, "price": "120.00", "attributes": [{"id": 1, "name": "Pole Shape", "option": "Round"}, {"id": 2, "name": "Pole Size", "option": "8ft"}]},
				{"id": 102, "price": "140.00", "attributes": [{"id": 1, "name": "Pole Shape", "option": "Round"}, {"id": 2, "name": "Pole Size", "option": "10ft"}]}
			]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p, err := c.Product(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bloxx Pole", p.Name)
	assert.Equal(t, "a.jpg", p.Image)
	assert.Equal(t, []cart.Category{{ID: 3, Name: "Poles", Slug: "poles"}}, p.Categories)
	assert.Equal(t, product.KindBloxx, p.Pricing.Kind())

	item, err := p.CartItem(1, []cart.Selection{{Name: "Pole Size", Value: "10ft"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(102), item.VariationID)
	assert.True(t, decimal.RequireFromString("140").Equal(item.BasePrice))
}

func TestClient_ProductSimple(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wc/v3/products/8":
			_, _ = io.WriteString(w, `{"id": 8, "name": "Cap", "price": "12.50", "variations": []}`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})

	p, err := c.Product(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, product.KindSimple, p.Pricing.Kind())
}

func TestClient_ProductNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_product_invalid_id","message":"Invalid ID."}`)
	})

	_, err := c.Product(context.Background(), 9)
	require.ErrorIs(t, err, product.ErrNotFound)
}

package commerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:         srv.URL + "/api",
		Timeout:         5 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Config{BaseURL: "/api"})
	require.Error(t, err)
}

func TestListAddresses_Shapes(t *testing.T) {
	bodies := map[string]string{
		"array":   `[{"id":"a1","fullName":"Home","line1":"1 Main St","city":"Springfield","postalCode":"1000","country":"US","isDefault":true}]`,
		"results": `{"results":[{"id":"a1","fullName":"Home","line1":"1 Main St","city":"Springfield","postalCode":"1000","country":"US","isDefault":true}]}`,
		"data":    `{"data":[{"id":"a1","fullName":"Home","line1":"1 Main St","city":"Springfield","postalCode":"1000","country":"US","isDefault":true}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/addresses/", r.URL.Path)
				assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, body)
			}))

			got, err := c.ListAddresses(WithToken(context.Background(), "Bearer abc"))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, order.Address{
				ID: "a1", FullName: "Home", Line1: "1 Main St", City: "Springfield",
				PostalCode: "1000", Country: "US", IsDefault: true,
			}, got[0])
		})
	}
}

func TestListAddresses_Empty(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty results", status: http.StatusOK, body: `{"results":[]}`},
		{name: "null body", status: http.StatusOK, body: `null`},
		{name: "no content", status: http.StatusNoContent, body: ``},
		{name: "blank body", status: http.StatusOK, body: " \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))

			got, err := c.ListAddresses(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders/", r.URL.Path)
		assert.Equal(t, "chk-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"addressId":            "a1",
			"couponId":             "c1",
			"couponDiscountValue":  21.0,
			"productDiscountTotal": 40.0,
			"paymentMethod":        "cash_on_delivery",
		}, body)

		writeJSON(w, http.StatusCreated, `{"orderId":"o-77"}`)
	}))

	got, err := c.CreateOrder(context.Background(), checkout.SubmissionRequest{
		CheckoutID:           "chk-1",
		AddressID:            "a1",
		CouponID:             "c1",
		CouponDiscountValue:  money.MustParse("21"),
		ProductDiscountTotal: money.MustParse("40"),
		PaymentMethod:        checkout.PaymentCashOnDelivery,
	})
	require.NoError(t, err)
	assert.Equal(t, "o-77", got.OrderID)
}

func TestCreateOrder_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"detail":"Address does not belong to user."}`)
	}))

	_, err := c.CreateOrder(context.Background(), checkout.SubmissionRequest{AddressID: "a9"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Address does not belong to user.", apiErr.Message)
}

func TestPayments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payments/initiate/":
			writeJSON(w, http.StatusOK, `{"success":true,"paymentUrl":"https://pay.example/x","merchantOrderId":"m-1","orderId":"o-1"}`)
		case "/api/payments/status/":
			var body struct {
				MerchantOrderID string `json:"merchantOrderId"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "m-1", body.MerchantOrderID)
			writeJSON(w, http.StatusOK, `{"orderId":"o-1","status":"paid"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	started, err := c.InitiatePayment(ctx, checkout.SubmissionRequest{AddressID: "a1", PaymentMethod: checkout.PaymentOnline})
	require.NoError(t, err)
	assert.Equal(t, &checkout.PaymentInitiation{
		Success: true, PaymentURL: "https://pay.example/x", MerchantOrderID: "m-1", OrderID: "o-1",
	}, started)

	outcome, err := c.ConfirmPayment(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, checkout.PaymentPaid, outcome.Status)
}

func TestGetOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/o-1/", r.URL.Path)
		writeJSON(w, http.StatusOK, `{
			"id":"o-1","status":"shipped","totalPrice":"189.00","paymentMethod":"cash_on_delivery",
			"items":[{"variantId":"v1","name":"Jacket","quantity":2,"unitPrice":80}],
			"tracking":{"number":"TRK","partner":"Courier"},
			"createdAt":"2025-06-15T12:00:00Z"
		}`)
	}))

	got, err := c.GetOrder(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.Equal(t, money.MustParse("189"), got.TotalPrice)
	require.Len(t, got.Items, 1)
	assert.Equal(t, money.MustParse("80"), got.Items[0].UnitPrice)
	assert.Equal(t, "TRK", got.Tracking.Number)

	_, err = c.GetOrder(context.Background(), "../admin")
	require.Error(t, err)
}

func TestListAllOrders_DrainsPages(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/orders/", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, http.StatusOK, `{"next":"http://x/api/orders/?page=2","results":[{"id":"o1","status":"pending"},{"id":"o2","status":"pending"}]}`)
		case "2":
			writeJSON(w, http.StatusOK, `{"next":null,"results":[{"id":"o3","status":"delivered"}]}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"detail":"Invalid page."}`)
		}
	}))

	got, err := c.ListAllOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "o3", got[2].ID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestListOrders_BareArrayIsSinglePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"o1","status":"pending"}]`)
	}))

	p, err := c.ListOrders(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, p.Orders, 1)
	assert.False(t, p.HasNext)
}

func TestGetVariant(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/variants/v1/":
			writeJSON(w, http.StatusOK, `{
				"id":"v1","product_id":"p1","product_name":"Jacket","size":"M",
				"price":"100.00","is_discount_active":true,"discount_price":"80.00",
				"discount_percentage":null,"stock":4
			}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"detail":"Not found."}`)
		}
	}))
	ctx := context.Background()

	got, err := c.GetVariant(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProductID)
	assert.Equal(t, "Jacket", got.Name)
	assert.Equal(t, money.MustParse("100"), got.Variant.Price)
	require.NotNil(t, got.Variant.DiscountPrice)
	assert.Equal(t, money.MustParse("80"), *got.Variant.DiscountPrice)
	assert.Nil(t, got.Variant.DiscountPercentage)
	assert.Equal(t, 4, got.Variant.Stock)

	_, err = c.GetVariant(ctx, "v404")
	require.ErrorIs(t, err, cart.ErrVariantNotFound)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, `{"detail":"upstream down"}`)
	}))
	ctx := context.Background()

	for range 3 {
		_, err := c.ListAddresses(ctx)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}

	_, err := c.ListAddresses(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 3, calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"detail":"Not found."}`)
	}))

	for range 5 {
		_, err := c.GetOrder(context.Background(), "o-x")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}
	assert.EqualValues(t, 5, calls.Load())
}

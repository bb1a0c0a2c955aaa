// Package handler is the HTTP surface the storefront talks to: cart,
// checkout wizard and order reads for the caller's browsing session.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/commerce"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

const maxBodySize = 64 << 10

// Carts is the cart use case surface.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	AddItem(ctx context.Context, sessionID, variantID string, qty int) (*cart.Cart, error)
	SetQuantity(ctx context.Context, sessionID, variantID string, qty int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, sessionID, variantID string) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (*cart.Cart, error)
	RemoveCoupon(ctx context.Context, sessionID string) (*cart.Cart, error)
}

// Orders reads placed orders.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	History(ctx context.Context, id string) ([]order.Observation, error)
}

// PaymentConfirmer resolves online payments on return from the payment page.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, browsingSessionID, correlationID string) (*checkout.Confirmation, error)
}

// Handler serves the storefront API.
type Handler struct {
	carts     Carts
	checkouts *checkout.Registry
	confirmer PaymentConfirmer
	orders    Orders
}

// New creates a Handler.
func New(carts Carts, checkouts *checkout.Registry, confirmer PaymentConfirmer, orders Orders) *Handler {
	return &Handler{
		carts:     carts,
		checkouts: checkouts,
		confirmer: confirmer,
		orders:    orders,
	}
}

// Routes mounts the API on r. Requests must already carry a browsing
// session (httpmiddleware.Session).
func (h *Handler) Routes(r chi.Router) {
	r.Use(forwardAuthorization)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Post("/items", h.addItem)
		r.Patch("/items/{variantID}", h.setQuantity)
		r.Delete("/items/{variantID}", h.removeItem)
		r.Put("/coupon", h.applyCoupon)
		r.Delete("/coupon", h.removeCoupon)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.beginCheckout)
		r.Get("/", h.getCheckout)
		r.Post("/step", h.goToStep)
		r.Get("/addresses", h.listAddresses)
		r.Post("/address", h.completeAddress)
		r.Post("/payment", h.completePayment)
		r.Post("/submit", h.submit)
		r.Post("/confirm", h.confirm)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/history", h.orderHistory)
	})
}

// forwardAuthorization hands the caller's credentials to commerce backend
// calls made while serving the request.
func forwardAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			r = r.WithContext(commerce.WithToken(r.Context(), auth))
		}
		next.ServeHTTP(w, r)
	})
}

func sessionID(r *http.Request) string {
	return httpmiddleware.SessionFromContext(r.Context())
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequest{err: err}
	}
	return nil
}

func respond(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(ctx).Debug("Write response", zap.Error(err))
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return "invalid request body: " + e.err.Error() }

var errNoCheckout = errors.New("no active checkout")

func errMissing(field string) error {
	return errors.Errorf("%s is required", field)
}

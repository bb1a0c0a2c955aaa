package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

var (
	_ checkout.AddressDirectory = (*Client)(nil)
	_ checkout.OrderService     = (*Client)(nil)
	_ cart.Catalog              = (*Client)(nil)
	_ order.Source              = (*Client)(nil)
)

// maxPages bounds ListAllOrders against a backend that never ends paging.
const maxPages = 1000

func segment(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", errors.Errorf("invalid id %q", id)
	}
	return id, nil
}

func decodeItems[T any](items []jx.Raw) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "decode item %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

// ListAddresses returns the buyer's saved addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]order.Address, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "addresses/"}, &raw); err != nil {
		return nil, err
	}
	l, err := normalizeList(raw)
	if err != nil {
		return nil, errors.Wrap(err, "addresses")
	}
	return decodeItems[order.Address](l.Items)
}

func submission(path string, req checkout.SubmissionRequest) request {
	r := request{method: http.MethodPost, path: path, body: req}
	if req.CheckoutID != "" {
		r.header = http.Header{"Idempotency-Key": {req.CheckoutID}}
	}
	return r
}

// CreateOrder places a cash on delivery order.
func (c *Client) CreateOrder(ctx context.Context, req checkout.SubmissionRequest) (*checkout.CreatedOrder, error) {
	var out checkout.CreatedOrder
	if err := c.do(ctx, submission("orders/", req), &out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		return nil, errors.New("create order: empty order id")
	}
	return &out, nil
}

// InitiatePayment starts an online payment.
func (c *Client) InitiatePayment(ctx context.Context, req checkout.SubmissionRequest) (*checkout.PaymentInitiation, error) {
	var out checkout.PaymentInitiation
	if err := c.do(ctx, submission("payments/initiate/", req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment asks for the outcome of an online payment.
func (c *Client) ConfirmPayment(ctx context.Context, merchantOrderID string) (*checkout.PaymentOutcome, error) {
	var out checkout.PaymentOutcome
	body := struct {
		MerchantOrderID string `json:"merchantOrderId"`
	}{MerchantOrderID: merchantOrderID}
	if err := c.do(ctx, request{method: http.MethodPost, path: "payments/status/", body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	id, err := segment(id)
	if err != nil {
		return nil, err
	}
	var out order.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "orders/" + id + "/"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrdersPage is one page of the order listing.
type OrdersPage struct {
	Orders  []order.Order
	HasNext bool
}

// ListOrders fetches one page of orders, starting at 1.
func (c *Client) ListOrders(ctx context.Context, page int) (*OrdersPage, error) {
	var raw json.RawMessage
	q := url.Values{"page": {strconv.Itoa(max(page, 1))}}
	if err := c.do(ctx, request{method: http.MethodGet, path: "orders/", query: q}, &raw); err != nil {
		return nil, err
	}
	l, err := normalizeList(raw)
	if err != nil {
		return nil, errors.Wrap(err, "orders")
	}
	orders, err := decodeItems[order.Order](l.Items)
	if err != nil {
		return nil, err
	}
	return &OrdersPage{Orders: orders, HasNext: l.Next != ""}, nil
}

// ListAllOrders drains every page of the order listing.
func (c *Client) ListAllOrders(ctx context.Context) ([]order.Order, error) {
	var all []order.Order
	for page := 1; page <= maxPages; page++ {
		p, err := c.ListOrders(ctx, page)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", page)
		}
		all = append(all, p.Orders...)
		if !p.HasNext || len(p.Orders) == 0 {
			return all, nil
		}
	}
	return nil, errors.Errorf("order listing exceeds %d pages", maxPages)
}

type variantDTO struct {
	ID                 string       `json:"id"`
	ProductID          string       `json:"product_id"`
	ProductName        string       `json:"product_name"`
	Size               string       `json:"size"`
	Price              money.Money  `json:"price"`
	IsDiscountActive   bool         `json:"is_discount_active"`
	DiscountPrice      *money.Money `json:"discount_price"`
	DiscountPercentage *int         `json:"discount_percentage"`
	Stock              int          `json:"stock"`
}

// GetVariant resolves a catalog variant.
func (c *Client) GetVariant(ctx context.Context, variantID string) (*cart.CatalogVariant, error) {
	id, err := segment(variantID)
	if err != nil {
		return nil, cart.ErrVariantNotFound
	}
	var dto variantDTO
	if err := c.do(ctx, request{method: http.MethodGet, path: "variants/" + id + "/"}, &dto); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, cart.ErrVariantNotFound
		}
		return nil, err
	}
	return &cart.CatalogVariant{
		ProductID: dto.ProductID,
		Name:      dto.ProductName,
		Variant: pricing.Variant{
			ID:                 dto.ID,
			Size:               dto.Size,
			Price:              dto.Price,
			DiscountActive:     dto.IsDiscountActive,
			DiscountPrice:      dto.DiscountPrice,
			DiscountPercentage: dto.DiscountPercentage,
			Stock:              dto.Stock,
		},
	}, nil
}

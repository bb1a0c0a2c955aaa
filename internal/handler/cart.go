package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

type cartLineView struct {
	ProductID          string      `json:"productId"`
	Name               string      `json:"name"`
	VariantID          string      `json:"variantId"`
	Size               string      `json:"size,omitempty"`
	Quantity           int         `json:"quantity"`
	Price              money.Money `json:"price"`
	UnitPrice          money.Money `json:"unitPrice"`
	DiscountPercentage *int        `json:"discountPercentage,omitempty"`
	LineTotal          money.Money `json:"lineTotal"`
}

type couponView struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	Description   string              `json:"description,omitempty"`
}

type totalsView struct {
	Subtotal             money.Money `json:"subtotal"`
	ProductDiscountTotal money.Money `json:"productDiscountTotal"`
	CouponDiscount       money.Money `json:"couponDiscount"`
	FinalTotal           money.Money `json:"finalTotal"`
}

type cartView struct {
	Lines         []cartLineView `json:"lines"`
	Coupon        *couponView    `json:"coupon,omitempty"`
	TotalQuantity int            `json:"totalQuantity"`
	Totals        totalsView     `json:"totals"`
}

func newCartView(c *cart.Cart) cartView {
	v := cartView{
		Lines:         make([]cartLineView, 0, len(c.Lines)),
		TotalQuantity: c.TotalQuantity(),
	}
	for _, l := range c.Lines {
		lv := cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			VariantID: l.Variant.ID,
			Size:      l.Variant.Size,
			Quantity:  l.Quantity,
			Price:     l.Variant.Price,
			UnitPrice: pricing.EffectiveUnitPrice(l.Variant),
			LineTotal: pricing.LineTotal(pricing.Line{Variant: l.Variant, Quantity: l.Quantity}),
		}
		if pct, ok := pricing.DiscountPercentage(l.Variant); ok {
			lv.DiscountPercentage = &pct
		}
		v.Lines = append(v.Lines, lv)
	}
	if cp := c.Coupon; cp != nil {
		v.Coupon = &couponView{
			ID:            cp.ID,
			Code:          cp.Code,
			DiscountType:  cp.DiscountType,
			DiscountValue: cp.Value,
			Description:   cp.Description,
		}
	}
	t := c.Totals()
	v.Totals = totalsView{
		Subtotal:             t.Subtotal,
		ProductDiscountTotal: t.ProductDiscountTotal,
		CouponDiscount:       t.CouponDiscount,
		FinalTotal:           t.FinalTotal,
	}
	return v
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, status int, c *cart.Cart, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, status, newCartView(c))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), sessionID(r))
	h.writeCart(w, r, http.StatusOK, c, err)
}

type addItemRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.VariantID == "" {
		h.fail(w, r, &badRequest{err: errMissing("variantId")})
		return
	}
	if err := pricing.ValidateQuantity(req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), sessionID(r), req.VariantID, req.Quantity)
	h.writeCart(w, r, http.StatusCreated, c, err)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := pricing.ValidateQuantity(req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.carts.SetQuantity(r.Context(), sessionID(r), chi.URLParam(r, "variantID"), req.Quantity)
	h.writeCart(w, r, http.StatusOK, c, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), sessionID(r), chi.URLParam(r, "variantID"))
	h.writeCart(w, r, http.StatusOK, c, err)
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.carts.ApplyCoupon(r.Context(), sessionID(r), req.Code)
	h.writeCart(w, r, http.StatusOK, c, err)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveCoupon(r.Context(), sessionID(r))
	h.writeCart(w, r, http.StatusOK, c, err)
}

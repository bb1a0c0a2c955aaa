package handler

import (
	"net/http"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*checkout.Orchestrator, bool) {
	orch, ok := h.checkouts.Get(sessionID(r))
	if !ok {
		h.fail(w, r, errNoCheckout)
		return nil, false
	}
	return orch, true
}

// beginCheckout starts a new checkout, dropping any unfinished one.
func (h *Handler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	orch := h.checkouts.Begin(r.Context(), sessionID(r))
	respond(r.Context(), w, http.StatusCreated, orch.Session())
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(r.Context(), w, http.StatusOK, orch.Session())
}

type stepRequest struct {
	Step checkout.Step `json:"step"`
}

// goToStep navigates the wizard. Unreachable steps answer the unchanged
// session.
func (h *Handler) goToStep(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, http.StatusOK, orch.GoTo(r.Context(), req.Step))
}

type addressesResponse struct {
	Addresses         []order.Address `json:"addresses"`
	SelectedAddressID string          `json:"selectedAddressId,omitempty"`
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	addrs, err := orch.Addresses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, http.StatusOK, addressesResponse{
		Addresses:         addrs,
		SelectedAddressID: orch.Session().SelectedAddressID,
	})
}

type addressRequest struct {
	AddressID string `json:"addressId"`
}

// completeAddress selects an address, when given, and finishes step one.
func (h *Handler) completeAddress(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.AddressID != "" {
		if err := orch.SelectAddress(req.AddressID); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := orch.CompleteAddress(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, http.StatusOK, orch.Session())
}

type paymentRequest struct {
	PaymentMethod checkout.PaymentMethod `json:"paymentMethod"`
}

// completePayment selects a payment method, when given, and finishes step
// two.
func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.PaymentMethod != "" {
		if err := orch.SelectPaymentMethod(req.PaymentMethod); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := orch.CompletePayment(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, http.StatusOK, orch.Session())
}

// submit places the order. Cash on delivery answers 201 with the order;
// online payment answers 200 with the redirect target.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := orch.Submit(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Redirect != nil {
		status = http.StatusOK
	}
	respond(r.Context(), w, status, res)
}

type confirmRequest struct {
	CorrelationID string `json:"correlationId"`
}

// confirm resolves an online payment after the buyer returns from the
// payment page. It works without a live checkout session.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.CorrelationID == "" {
		h.fail(w, r, &badRequest{err: errMissing("correlationId")})
		return
	}
	res, err := h.confirmer.Confirm(r.Context(), sessionID(r), req.CorrelationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(r.Context(), w, http.StatusOK, res)
}

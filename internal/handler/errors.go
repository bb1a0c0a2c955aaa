package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/commerce"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// statusOf maps domain errors to an HTTP status and the message shown to
// the client.
func statusOf(err error) (int, string) {
	var (
		bad      *badRequest
		invalid  *checkout.ValidationError
		submit   *checkout.SubmissionError
		upstream *commerce.APIError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.Error()
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Reason
	case errors.Is(err, checkout.ErrSubmissionInProgress),
		errors.Is(err, checkout.ErrSessionClosed),
		errors.Is(err, cart.ErrOutOfStock):
		return http.StatusConflict, rootMessage(err)
	case errors.As(err, &submit):
		return http.StatusBadGateway, submit.Error()
	case errors.Is(err, errNoCheckout),
		errors.Is(err, checkout.ErrSnapshotNotFound),
		errors.Is(err, cart.ErrVariantNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity, rootMessage(err)
	case errors.Is(err, commerce.ErrUnavailable):
		return http.StatusServiceUnavailable, commerce.ErrUnavailable.Error()
	case errors.As(err, &upstream):
		switch upstream.Status {
		case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
			return upstream.Status, upstream.Message
		}
		return http.StatusBadGateway, upstream.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage strips wrapping context down to the sentinel's text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err), zap.Int("status", status))
	} else {
		lg.Debug("Request rejected", zap.Error(err), zap.Int("status", status))
	}
	respond(r.Context(), w, status, errorResponse{Code: status, Message: msg})
}

package checkout

import (
	"context"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

// CartStore gives checkout access to the browsing session's cart.
type CartStore interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
	RemoveCoupon(ctx context.Context, sessionID string) (*cart.Cart, error)
}

// AddressDirectory lists the buyer's saved addresses. No addresses is an
// empty slice, not an error.
type AddressDirectory interface {
	ListAddresses(ctx context.Context) ([]order.Address, error)
}

// OrderService creates orders and drives online payments.
type OrderService interface {
	CreateOrder(ctx context.Context, req SubmissionRequest) (*CreatedOrder, error)
	InitiatePayment(ctx context.Context, req SubmissionRequest) (*PaymentInitiation, error)
	ConfirmPayment(ctx context.Context, merchantOrderID string) (*PaymentOutcome, error)
}

// ScratchStore keeps payment snapshots across the external redirect,
// scoped to the browsing session and keyed by correlation id.
type ScratchStore interface {
	Put(ctx context.Context, browsingSessionID string, s *Snapshot) error
	// Take returns and deletes the snapshot, or ErrSnapshotNotFound.
	Take(ctx context.Context, browsingSessionID, correlationID string) (*Snapshot, error)
}

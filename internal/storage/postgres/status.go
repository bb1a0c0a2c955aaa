package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

var _ order.StatusRepository = (*StatusRepository)(nil)

// StatusRepository implements order.StatusRepository as an append-only
// table of observations.
type StatusRepository struct {
	db DB
}

// NewStatusRepository returns a StatusRepository that uses the given pool.
func NewStatusRepository(db DB) *StatusRepository {
	return &StatusRepository{db: db}
}

const latestStatus = `
SELECT order_id, status, observed_at
FROM order_status_observations
WHERE order_id = $1
ORDER BY id DESC
LIMIT 1`

// Latest returns the most recent observation for the order.
func (r *StatusRepository) Latest(ctx context.Context, orderID string) (*order.Observation, error) {
	var (
		obs    order.Observation
		status string
	)
	err := r.db.QueryRow(ctx, latestStatus, orderID).Scan(&obs.OrderID, &status, &obs.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotObserved
		}
		return nil, errors.Wrapf(err, "latest status of %q", orderID)
	}
	obs.Status = order.Status(status)
	return &obs, nil
}

const appendStatus = `
INSERT INTO order_status_observations (order_id, status, observed_at)
VALUES ($1, $2, $3)`

// Append records an observation.
func (r *StatusRepository) Append(ctx context.Context, obs order.Observation) error {
	if _, err := r.db.Exec(ctx, appendStatus, obs.OrderID, string(obs.Status), obs.At); err != nil {
		return errors.Wrapf(err, "append status of %q", obs.OrderID)
	}
	return nil
}

const statusHistory = `
SELECT order_id, status, observed_at
FROM order_status_observations
WHERE order_id = $1
ORDER BY id`

// History returns every observation for the order, oldest first.
func (r *StatusRepository) History(ctx context.Context, orderID string) ([]order.Observation, error) {
	rows, err := r.db.Query(ctx, statusHistory, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "status history of %q", orderID)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Observation, error) {
		var (
			obs    order.Observation
			status string
		)
		if err := row.Scan(&obs.OrderID, &status, &obs.At); err != nil {
			return obs, err
		}
		obs.Status = order.Status(status)
		return obs, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan status history of %q", orderID)
	}
	return out, nil
}

package order

import (
	"context"

	"github.com/go-faster/errors"
)

// Source reads orders from the commerce backend.
type Source interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListAllOrders(ctx context.Context) ([]Order, error)
}

// Service serves order reads with statuses reconciled against the tracker
// and fields filtered by status.
type Service struct {
	source  Source
	tracker *Tracker
}

// NewService creates an order read Service.
func NewService(source Source, tracker *Tracker) *Service {
	return &Service{source: source, tracker: tracker}
}

// Get returns the order view for id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.source.GetOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o, err = s.tracker.Reconcile(ctx, o)
	if err != nil {
		return nil, err
	}
	v := o.View()
	return &v, nil
}

// List returns views of every order, draining all pages.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.source.ListAllOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]Order, 0, len(orders))
	for i := range orders {
		o, err := s.tracker.Reconcile(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o.View())
	}
	return out, nil
}

// History returns the statuses observed for an order.
func (s *Service) History(ctx context.Context, id string) ([]Observation, error) {
	return s.tracker.History(ctx, id)
}

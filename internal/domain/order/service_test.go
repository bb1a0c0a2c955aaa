package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	orders map[string]Order
	err    error
}

func (m *mockSource) GetOrder(_ context.Context, id string) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &o, nil
}

func (m *mockSource) ListAllOrders(_ context.Context) ([]Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Order, 0, len(m.orders))
	for _, id := range []string{"o1", "o2"} {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestService_GetAppliesViewAndReconcile(t *testing.T) {
	delivered := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	src := &mockSource{orders: map[string]Order{
		"o1": {ID: "o1", Status: StatusProcessing, Tracking: &Tracking{Number: "TRK", ActualDeliveredAt: &delivered}},
	}}
	repo := newMemStatusRepo()
	tr := NewTracker(repo)
	require.NoError(t, tr.Observe(context.Background(), Observation{OrderID: "o1", Status: StatusShipped}))

	svc := NewService(src, tr)
	got, err := svc.Get(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, StatusShipped, got.Status)
	require.NotNil(t, got.Tracking)
	assert.Equal(t, "TRK", got.Tracking.Number)
	assert.Nil(t, got.Tracking.ActualDeliveredAt)
}

func TestService_List(t *testing.T) {
	src := &mockSource{orders: map[string]Order{
		"o1": {ID: "o1", Status: StatusPending, Tracking: &Tracking{Number: "EARLY"}},
		"o2": {ID: "o2", Status: StatusDelivered, Tracking: &Tracking{Number: "DONE"}},
	}}
	svc := NewService(src, NewTracker(newMemStatusRepo()))

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Tracking)
	require.NotNil(t, got[1].Tracking)
	assert.Equal(t, "DONE", got[1].Tracking.Number)
}

func TestService_SourceError(t *testing.T) {
	svc := NewService(&mockSource{err: errors.New("backend down")}, NewTracker(newMemStatusRepo()))

	_, err := svc.Get(context.Background(), "o1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get order")

	_, err = svc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

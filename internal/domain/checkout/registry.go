package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Options configures checkout sessions.
type Options struct {
	Carts     CartStore
	Addresses AddressDirectory
	Orders    OrderService
	Scratch   ScratchStore

	// MeterProvider defaults to the global provider when nil.
	MeterProvider metric.MeterProvider
	// OnlinePayments enables the redirect based payment method.
	OnlinePayments bool
	// SessionTTL bounds how long an untouched checkout session is kept.
	SessionTTL time.Duration
}

type deps struct {
	carts          CartStore
	addresses      AddressDirectory
	orders         OrderService
	scratch        ScratchStore
	metrics        *metrics
	onlinePayments bool
	now            func() time.Time
}

type entry struct {
	orch    *Orchestrator
	touched time.Time
}

// Registry holds the active checkout session of each browsing session.
type Registry struct {
	deps *deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a Registry.
func NewRegistry(opts Options) (*Registry, error) {
	m, err := newMetrics(opts.MeterProvider)
	if err != nil {
		return nil, err
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		deps: &deps{
			carts:          opts.Carts,
			addresses:      opts.Addresses,
			orders:         opts.Orders,
			scratch:        opts.Scratch,
			metrics:        m,
			onlinePayments: opts.OnlinePayments,
			now:            time.Now,
		},
		ttl:      ttl,
		sessions: make(map[string]*entry),
	}, nil
}

// Begin starts a fresh checkout session, replacing any previous one.
func (r *Registry) Begin(ctx context.Context, browsingSessionID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orch *Orchestrator
	orch = newOrchestrator(r.deps, uuid.NewString(), browsingSessionID, func() {
		r.discard(browsingSessionID, orch)
	})
	r.sessions[browsingSessionID] = &entry{orch: orch, touched: r.deps.now()}

	zctx.From(ctx).Debug("Checkout started",
		zap.String("checkout_id", orch.id),
	)
	return orch
}

// Get returns the active session, or false when none exists.
func (r *Registry) Get(browsingSessionID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[browsingSessionID]
	if !ok {
		return nil, false
	}
	now := r.deps.now()
	if now.Sub(e.touched) > r.ttl {
		delete(r.sessions, browsingSessionID)
		return nil, false
	}
	e.touched = now
	return e.orch, true
}

// Discard drops the active session.
func (r *Registry) Discard(browsingSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, browsingSessionID)
}

func (r *Registry) discard(browsingSessionID string, orch *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[browsingSessionID]; ok && e.orch == orch {
		delete(r.sessions, browsingSessionID)
	}
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.deps.now()
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.touched) > r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				zctx.From(ctx).Debug("Swept idle checkout sessions", zap.Int("count", n))
			}
		}
	}
}

// Confirmer returns the payment confirmation flow sharing this registry's
// collaborators.
func (r *Registry) Confirmer() *Confirmer {
	return &Confirmer{deps: r.deps}
}

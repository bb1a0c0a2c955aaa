package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/commerce"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/handler"
	"github.com/xenking/kart-checkout/internal/messaging"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
	"github.com/xenking/kart-checkout/internal/storage/redis"
	"github.com/xenking/kart-checkout/pkg/health"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	// PostgreSQL pool + migrations.
	version, err := postgres.Migrate(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "migrate")
	}
	lg.Info("Schema ready", zap.Uint("version", version))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	rdb, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	backend, err := commerce.New(commerce.Config{
		BaseURL:         cfg.Commerce.BaseURL,
		Timeout:         cfg.Commerce.Timeout,
		BreakerFailures: cfg.Commerce.BreakerFailures,
		BreakerCooldown: cfg.Commerce.BreakerCooldown,
	},
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create commerce client")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Check{Name: "postgres", Kind: health.Readiness, Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.Register(health.Check{Name: "redis", Kind: health.Readiness, Timeout: 2 * time.Second, Func: health.RedisCheck(rdb)})
	healthSvc.Register(health.Check{Name: "goroutines", Kind: health.Liveness, Func: health.GoroutineCountCheck(10000)})
	healthSvc.Start(ctx, 10*time.Second)

	// Domain services.
	carts := cart.NewService(
		redis.NewCartRepository(rdb, cfg.Cart.TTL),
		backend,
		coupon.NewRepoValidator(postgres.NewCouponRepository(pool)),
	)
	registry, err := checkout.NewRegistry(checkout.Options{
		Carts:          carts,
		Addresses:      backend,
		Orders:         backend,
		Scratch:        redis.NewScratchStore(rdb, cfg.Scratch.TTL),
		MeterProvider:  m.MeterProvider(),
		OnlinePayments: cfg.Checkout.OnlinePayments,
		SessionTTL:     cfg.Checkout.SessionTTL,
	})
	if err != nil {
		return errors.Wrap(err, "create checkout registry")
	}
	tracker := order.NewTracker(postgres.NewStatusRepository(pool))
	orders := order.NewService(backend, tracker)

	h := handler.New(carts, registry, registry.Confirmer(), orders)

	r := chi.NewRouter()
	healthSvc.Routes(r)
	r.Route("/api", func(r chi.Router) {
		r.Use(
			httpmiddleware.Session(httpmiddleware.SessionConfig{
				CookieName: cfg.Session.CookieName,
				Secure:     cfg.Session.Secure,
				MaxAge:     cfg.Session.MaxAge,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Rate:  cfg.RateLimit.Rate,
				Burst: cfg.RateLimit.Burst,
			}, cfg.RateLimit.IdleTTL),
		)
		h.Routes(r)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Commerce.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("checkout-server", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return registry.Run(gctx, cfg.Checkout.SweepInterval)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := messaging.NewConsumer(messaging.NewReader(messaging.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}), cfg.Kafka.Topic, cfg.Kafka.GroupID, m.TracerProvider())
		g.Go(func() error {
			defer func() { _ = consumer.Close() }()
			// Status updates still arrive through the fetch path without it.
			if err := consumer.Consume(gctx, messaging.StatusHandler(tracker)); err != nil {
				lg.Error("Order status consumer stopped", zap.Error(err))
			}
			return nil
		})
	} else {
		lg.Info("Kafka brokers not set, order status consumer disabled")
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

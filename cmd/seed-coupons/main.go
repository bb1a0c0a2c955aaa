package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
)

var seedCoupons = []coupon.Coupon{
	{
		Code:         "HAPPYHOURS",
		DiscountType: coupon.DiscountPercent,
		Value:        decimal.NewFromInt(18),
		Description:  "Happy Hours: 18% off entire order",
	},
	{
		Code:         "WELCOME10",
		DiscountType: coupon.DiscountPercent,
		Value:        decimal.NewFromInt(10),
		Description:  "10% off your first order",
	},
	{
		Code:         "BULK5",
		DiscountType: coupon.DiscountFixed,
		Value:        decimal.NewFromInt(5),
		MinItems:     5,
		Description:  "$5 off orders of five items or more",
	},
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("running migrations")

	version, err := postgres.Migrate(databaseURL)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	slog.Info("schema ready", slog.Uint64("version", uint64(version)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCouponRepository(pool)
	for i := range seedCoupons {
		c := &seedCoupons[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

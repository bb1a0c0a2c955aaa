package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
)

const batchSize = 5_000

// codeRule is the discount applied to every ingested code that shares a prefix.
type codeRule struct {
	discountType coupon.DiscountType
	value        decimal.Decimal
	description  string
}

var prefixRules = map[string]codeRule{
	"FIFTY": {discountType: coupon.DiscountPercent, value: decimal.NewFromInt(50), description: "50% off entire order"},
	"HAPPY": {discountType: coupon.DiscountPercent, value: decimal.NewFromInt(18), description: "Happy Hours: 18% off"},
	"OVER9": {discountType: coupon.DiscountFixed, value: decimal.NewFromInt(9), description: "$9 off your order"},
}

var defaultRule = codeRule{
	discountType: coupon.DiscountPercent,
	value:        decimal.NewFromInt(10),
	description:  "Valid promo code: 10% off",
}

func ruleFor(code string) (string, codeRule) {
	for prefix, r := range prefixRules {
		if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
			return prefix, r
		}
	}
	return "", defaultRule
}

func main() {
	var (
		dataDir     string
		databaseURL string
		minFiles    int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzip-compressed code lists")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&minFiles, "min-files", 2, "number of lists a code must appear in")
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

	if err := run(ctx, dataDir, databaseURL, minFiles); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, minFiles int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list code files")
	}
	sort.Strings(files)
	if len(files) < minFiles {
		return errors.Errorf("need at least %d code files in %s, found %d", minFiles, dataDir, len(files))
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d code files are supported, found %d", maxFiles, len(files))
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")

	validCodes, err := findValidCodes(ctx, files, filters, minFiles)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))
	if len(validCodes) == 0 {
		return nil
	}

	if _, err := postgres.Migrate(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCoupons(ctx, postgres.NewCouponRepository(pool), validCodes)
}

// codeWriter is the subset of the coupon repository used by the ingest.
type codeWriter interface {
	InsertCodes(
		ctx context.Context,
		codes []string,
		typ coupon.DiscountType,
		value decimal.Decimal,
		description string,
		validUntil *time.Time,
	) (int64, error)
}

// writeCoupons groups codes by discount rule and inserts each group in batches.
func writeCoupons(ctx context.Context, w codeWriter, codes []string) error {
	groups := make(map[string][]string)
	for _, code := range codes {
		prefix, _ := ruleFor(code)
		groups[prefix] = append(groups[prefix], code)
	}

	var inserted int64
	for prefix, group := range groups {
		rule := defaultRule
		if prefix != "" {
			rule = prefixRules[prefix]
		}
		for start := 0; start < len(group); start += batchSize {
			end := min(start+batchSize, len(group))
			n, err := w.InsertCodes(ctx, group[start:end], rule.discountType, rule.value, rule.description, nil)
			if err != nil {
				return errors.Wrapf(err, "insert codes for rule %q", rule.description)
			}
			inserted += n
		}
		slog.Info("write progress",
			slog.String("rule", rule.description),
			slog.Int("codes", len(group)),
		)
	}

	slog.Info("codes written",
		slog.Int64("inserted", inserted),
		slog.Int64("skipped", int64(len(codes))-inserted),
	)
	return nil
}

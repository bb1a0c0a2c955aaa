package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

var (
	bloomCapacity uint = 120_000_000
	bloomFPR           = 0.001
)

const (
	maxFiles      = bits.UintSize
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

func validLength(code string) bool {
	return len(code) >= minCodeLen && len(code) <= maxCodeLen
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64
			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes re-streams each file and records, per code, the set of files
// whose filters report it. Codes seen in at least minFiles files are returned
// in no particular order.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, minFiles int) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			self := uint(1) << uint(i)
			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				mask := self
				for j, f := range filters {
					if j != i && f.TestString(code) {
						mask |= uint(1) << uint(j)
					}
				}
				if bits.OnesCount(mask) >= minFiles {
					candidates[code] |= mask
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}
			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Bloom hits can be false positives; only the files that actually
	// contained the code count.
	confirmed := make(map[string]uint)
	for i, r := range results {
		for code := range r {
			confirmed[code] |= uint(1) << uint(i)
		}
	}

	var valid []string
	for code, mask := range confirmed {
		if bits.OnesCount(mask) >= minFiles {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each trimmed line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(strings.ToUpper(strings.TrimSpace(scanner.Text())))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

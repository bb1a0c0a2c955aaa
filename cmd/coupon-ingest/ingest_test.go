package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFindValidCodes(t *testing.T) {
	bloomCapacity = 1_000

	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "HAPPYHRS1", "ONLYINA01", "short", "fiftyoff12"),
		writeGz(t, dir, "b.gz", "HAPPYHRS1", "ONLYINB01", "FIFTYOFF12"),
		writeGz(t, dir, "c.gz", "ONLYINC01", "WAYTOOLONGCODE"),
	}

	ctx := context.Background()
	filters, err := buildBloomFilters(ctx, files)
	require.NoError(t, err)
	require.Len(t, filters, 3)

	valid, err := findValidCodes(ctx, files, filters, 2)
	require.NoError(t, err)
	sort.Strings(valid)
	assert.Equal(t, []string{"FIFTYOFF12", "HAPPYHRS1"}, valid)

	valid, err = findValidCodes(ctx, files, filters, 3)
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestStreamGzFile_Canceled(t *testing.T) {
	path := writeGz(t, t.TempDir(), "a.gz", "CODE0001")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := streamGzFile(ctx, path, func(string) {})
	require.ErrorIs(t, err, context.Canceled)
}

type insertCall struct {
	codes []string
	typ   coupon.DiscountType
	value decimal.Decimal
}

type fakeWriter struct {
	calls []insertCall
}

func (w *fakeWriter) InsertCodes(
	_ context.Context,
	codes []string,
	typ coupon.DiscountType,
	value decimal.Decimal,
	_ string,
	_ *time.Time,
) (int64, error) {
	w.calls = append(w.calls, insertCall{codes: append([]string(nil), codes...), typ: typ, value: value})
	return int64(len(codes)), nil
}

func TestWriteCoupons_GroupsByRule(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, writeCoupons(context.Background(), w, []string{"OVER9ABC", "PLAINCODE", "FIFTY123"}))
	require.Len(t, w.calls, 3)

	byType := make(map[string]insertCall)
	for _, c := range w.calls {
		require.Len(t, c.codes, 1)
		byType[c.codes[0]] = c
	}
	assert.Equal(t, coupon.DiscountFixed, byType["OVER9ABC"].typ)
	assert.True(t, decimal.NewFromInt(9).Equal(byType["OVER9ABC"].value))
	assert.True(t, decimal.NewFromInt(50).Equal(byType["FIFTY123"].value))
	assert.True(t, decimal.NewFromInt(10).Equal(byType["PLAINCODE"].value))
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuietSpike/internal/domain/models"
	"QuietSpike/pkg/cache"
)

func TestStoreSeriesProvider(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.UpsertBars(context.Background(), quietThenSpike("600000")))
	p := NewStoreSeriesProvider(store)

	s, err := p.Series(context.Background(), "600000", day0, day0.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 6, s.Len())

	_, err = p.Series(context.Background(), "000001", day0, day0.AddDate(0, 0, 5))
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)

	store.queryErr = errors.New("database is locked")
	_, err = p.Series(context.Background(), "600000", day0, day0.AddDate(0, 0, 5))
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestFetchSeriesProviderRejectsBadBars(t *testing.T) {
	md := newFakeMarketData()
	bars := quietThenSpike("600000")
	bars[3], bars[4] = bars[4], bars[3]
	md.bars["600000"] = bars
	md.errs["300750"] = []error{fmt.Errorf("%w: 503", models.ErrUpstreamUnavailable)}
	p := NewFetchSeriesProvider(md)

	_, err := p.Series(context.Background(), "600000", day0, day0.AddDate(0, 0, 20))
	assert.ErrorIs(t, err, models.ErrInvalidBar)

	_, err = p.Series(context.Background(), "300750", day0, day0.AddDate(0, 0, 20))
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)

	_, err = p.Series(context.Background(), "000001", day0, day0.AddDate(0, 0, 20))
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
}

func TestCachedSeriesProviderLoadsOnce(t *testing.T) {
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	mem := cache.NewMemoryCache()
	defer mem.Close()
	cached := NewCachedSeriesProvider(p, mem, time.Minute)

	for i := 0; i < 3; i++ {
		s, err := cached.Series(context.Background(), "600000", day0, day0.AddDate(0, 0, 20))
		require.NoError(t, err)
		assert.Equal(t, 13, s.Len())
		assert.True(t, s.Bars[0].Date.Equal(day0))
	}
	assert.Equal(t, 1, p.callCount("600000"))

	_, err := cached.Series(context.Background(), "000001", day0, day0.AddDate(0, 0, 20))
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	_, err = cached.Series(context.Background(), "000001", day0, day0.AddDate(0, 0, 20))
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	assert.Equal(t, 2, p.callCount("000001"))
}

func TestCachedSeriesProviderInvalidate(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")[:12]
	p.bars["000001"] = flat("000001", 5)
	mem := cache.NewMemoryCache()
	defer mem.Close()
	cached := NewCachedSeriesProvider(p, mem, time.Hour)
	end := day0.AddDate(0, 0, 12)

	s, err := cached.Series(ctx, "600000", day0, end)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Len())
	_, err = cached.Series(ctx, "000001", day0, end)
	require.NoError(t, err)

	p.mu.Lock()
	p.bars["600000"] = quietThenSpike("600000")
	p.mu.Unlock()
	require.NoError(t, cached.Invalidate(ctx, "600000", "600000"))

	s, err = cached.Series(ctx, "600000", day0, end)
	require.NoError(t, err)
	assert.Equal(t, 13, s.Len())
	assert.Equal(t, 2, p.callCount("600000"))

	_, err = cached.Series(ctx, "000001", day0, end)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount("000001"))
}

func TestCachedSeriesProviderLostVersionReloads(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.bars["600000"] = quietThenSpike("600000")
	mem := cache.NewMemoryCache()
	defer mem.Close()
	cached := NewCachedSeriesProvider(p, mem, time.Hour)

	_, err := cached.Series(ctx, "600000", day0, day0.AddDate(0, 0, 12))
	require.NoError(t, err)
	require.NoError(t, mem.Delete(ctx, versionKey("600000")))

	_, err = cached.Series(ctx, "600000", day0, day0.AddDate(0, 0, 12))
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount("600000"))
}

func TestBarProcessorInvalidatesWrittenCodes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	mem := cache.NewMemoryCache()
	defer mem.Close()
	cached := NewCachedSeriesProvider(NewStoreSeriesProvider(store), mem, time.Hour)
	bars := quietThenSpike("600000")
	require.NoError(t, store.UpsertBars(ctx, bars[:12]))

	s, err := cached.Series(ctx, "600000", day0, day0.AddDate(0, 0, 12))
	require.NoError(t, err)
	require.Equal(t, 12, s.Len())

	require.NoError(t, NewBarProcessor(nil, store, cached, newRecordingMetrics(), BackendStore, 5).Process(ctx, bars[12]))

	s, err = cached.Series(ctx, "600000", day0, day0.AddDate(0, 0, 12))
	require.NoError(t, err)
	assert.Equal(t, 13, s.Len())
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"QuietSpike/internal/domain/models"
	drepo "QuietSpike/internal/domain/repository"
	"QuietSpike/pkg/cache"
	"QuietSpike/pkg/util"
)

// StoreSeriesProvider reads bars from the local store.
type StoreSeriesProvider struct {
	store drepo.BarStore
}

func NewStoreSeriesProvider(store drepo.BarStore) *StoreSeriesProvider {
	return &StoreSeriesProvider{store: store}
}

func (p *StoreSeriesProvider) Series(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	bars, err := p.store.QueryBars(ctx, code, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query bars %s: %v", models.ErrUpstreamUnavailable, code, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no stored bars for %s between %s and %s",
			models.ErrSymbolNotFound, code, util.FormatDate(start), util.FormatDate(end))
	}
	return models.NewSeries(code, bars)
}

// FetchSeriesProvider reads bars straight from the market-data API.
type FetchSeriesProvider struct {
	md drepo.MarketData
}

func NewFetchSeriesProvider(md drepo.MarketData) *FetchSeriesProvider {
	return &FetchSeriesProvider{md: md}
}

func (p *FetchSeriesProvider) Series(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	bars, err := p.md.FetchDaily(ctx, code, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars returned for %s", models.ErrSymbolNotFound, code)
	}
	return models.NewSeries(code, bars)
}

// CachedSeriesProvider memoizes validated bars of another provider. Keys
// carry a per-symbol version token, so Invalidate hides every cached range
// of a symbol at once.
type CachedSeriesProvider struct {
	next  drepo.SeriesProvider
	cache cache.Service
	ttl   time.Duration
	seq   atomic.Uint64
}

func NewCachedSeriesProvider(next drepo.SeriesProvider, c cache.Service, ttl time.Duration) *CachedSeriesProvider {
	return &CachedSeriesProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedSeriesProvider) Series(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	key := cache.GenerateKey("series", code, p.version(ctx, code), util.FormatDate(start), util.FormatDate(end))
	bars, _, err := cache.GetOrLoad(ctx, p.cache, key, p.ttl, func(ctx context.Context) ([]models.Bar, error) {
		s, err := p.next.Series(ctx, code, start, end)
		if err != nil {
			return nil, err
		}
		return s.Bars, nil
	})
	if err != nil {
		return nil, err
	}
	return models.NewSeries(code, bars)
}

// Invalidate bumps the version of each code.
func (p *CachedSeriesProvider) Invalidate(ctx context.Context, codes ...string) error {
	seen := make(map[string]struct{}, len(codes))
	var errs []error
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		if _, err := p.bump(ctx, code); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", code, err))
		}
	}
	return errors.Join(errs...)
}

// version returns the current token of code. A missing token is replaced by
// a fresh one, never reset, so evicted tokens cannot resurrect old entries.
func (p *CachedSeriesProvider) version(ctx context.Context, code string) string {
	var v string
	if err := p.cache.Get(ctx, versionKey(code), &v); err == nil && v != "" {
		return v
	}
	v, _ = p.bump(ctx, code)
	return v
}

func (p *CachedSeriesProvider) bump(ctx context.Context, code string) (string, error) {
	v := strconv.FormatInt(time.Now().UnixNano(), 36) + "." + strconv.FormatUint(p.seq.Add(1), 36)
	return v, p.cache.Set(ctx, versionKey(code), v, 0)
}

func versionKey(code string) string {
	return cache.GenerateKey("series_version", code)
}

var (
	_ drepo.SeriesProvider = (*StoreSeriesProvider)(nil)
	_ drepo.SeriesProvider = (*FetchSeriesProvider)(nil)
	_ drepo.SeriesProvider = (*CachedSeriesProvider)(nil)

	_ drepo.SeriesInvalidator = (*CachedSeriesProvider)(nil)
)

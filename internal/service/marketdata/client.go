package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/repository"
	"QuietSpike/internal/service/ratelimit"
	xhttp "QuietSpike/pkg/http"
	"QuietSpike/pkg/logger"

	"github.com/sony/gobreaker"
)

const (
	dailyPath    = "/api/public/stock_zh_a_hist"
	universePath = "/api/public/stock_info_a_code_name"

	// empty adjust asks for raw, unadjusted prices
	rawPrices = ""
)

// dailyRow is one row of the upstream daily history table.
type dailyRow struct {
	Date              string  `json:"日期"`
	Code              string  `json:"股票代码"`
	Open              float64 `json:"开盘"`
	Close             float64 `json:"收盘"`
	High              float64 `json:"最高"`
	Low               float64 `json:"最低"`
	Volume            float64 `json:"成交量"`
	TurnoverAmount    float64 `json:"成交额"`
	AmplitudePct      float64 `json:"振幅"`
	PctChange         float64 `json:"涨跌幅"`
	TurnoverRatePct   float64 `json:"换手率"`
	PriceChangeAmount float64 `json:"涨跌额"`
}

type symbolRow struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Config configures Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	// Failures in a row before the breaker opens.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client fetches daily bars and the symbol list from an AKTools-compatible HTTP API.
type Client struct {
	cfg     Config
	host    string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

var _ repository.MarketData = (*Client)(nil)

// New creates a market-data client.
func New(cfg Config, hc *xhttp.Client, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: market data base url %q", models.ErrConfiguration, cfg.BaseURL)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if hc == nil {
		hc = xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout))
	}
	if log == nil {
		log = logger.Nop()
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketdata:" + u.Host,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= failures },
		// only upstream outages count; bad requests do not trip the breaker
		IsSuccessful: func(err error) bool { return err == nil || !errors.Is(err, models.ErrUpstreamUnavailable) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("market data breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:     cfg,
		host:    u.Host,
		http:    hc,
		limiter: ratelimit.New(cfg.RateLimit, cfg.Burst),
		breaker: breaker,
		log:     log,
	}, nil
}

// FetchDaily returns raw daily bars for code within [start, end], in upstream order.
func (c *Client) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]models.Bar, error) {
	var rows []dailyRow
	err := c.get(ctx, dailyPath, map[string][]string{
		"symbol":     {code},
		"period":     {"daily"},
		"start_date": {start.Format(models.DateLayout)},
		"end_date":   {end.Format(models.DateLayout)},
		"adjust":     {rawPrices},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch daily %s: %w", code, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("fetch daily %s: %w: %v", code, models.ErrInvalidBar, err)
		}
		barCode := r.Code
		if barCode == "" {
			barCode = code
		}
		bars = append(bars, models.Bar{
			Date:              d,
			Code:              barCode,
			Open:              r.Open,
			Close:             r.Close,
			High:              r.High,
			Low:               r.Low,
			Volume:            r.Volume,
			TurnoverAmount:    r.TurnoverAmount,
			AmplitudePct:      r.AmplitudePct,
			PctChange:         r.PctChange,
			TurnoverRatePct:   r.TurnoverRatePct,
			PriceChangeAmount: r.PriceChangeAmount,
		})
	}
	return bars, nil
}

// FetchUniverse returns every listed A-share code and name.
func (c *Client) FetchUniverse(ctx context.Context) ([]models.Symbol, error) {
	var rows []symbolRow
	if err := c.get(ctx, universePath, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	out := make([]models.Symbol, 0, len(rows))
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		out = append(out, models.Symbol{Code: r.Code, Name: strings.TrimSpace(r.Name)})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			URL:         strings.TrimRight(c.cfg.BaseURL, "/") + path,
			QueryParams: params,
		}, dest)
		return nil, classify(ctx, err)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	return err
}

// classify marks transport failures, 5xx and 429 as retryable upstream outages.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		if se.Temporary() {
			return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, se)
		}
		return se
	}
	if errors.Is(err, xhttp.ErrDecode) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
}

// parseDate accepts 2024-01-02, 2024-01-02T00:00:00.000 and 20240102.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' {
		return time.ParseInLocation("2006-01-02", s[:10], time.UTC)
	}
	return time.ParseInLocation(models.DateLayout, s, time.UTC)
}

// Package marketdata fetches OHLC bars from the Yahoo Finance chart API,
// validates the payload, bounds every upstream call with a timeout and
// caches results for a short TTL.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/finmath"
	"goalwise/internal/logger"
)

const (
	// DefaultTimeout bounds a single upstream chart request.
	DefaultTimeout = 8 * time.Second
	// DefaultCacheTTL is how long a chart response is served from cache.
	DefaultCacheTTL = 5 * time.Minute

	maxConcurrent = 5
	maxBodyBytes  = 4 << 20
)

// Bar is one OHLCV observation. Close is always present; bars without a
// close are dropped during parsing.
type Bar struct {
	Time   time.Time `json:"date"`
	Open   *float64  `json:"open"`
	High   *float64  `json:"high"`
	Low    *float64  `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Chart is a normalized bar series for one symbol.
type Chart struct {
	Symbol         string `json:"symbol"`
	Currency       string `json:"currency"`
	ExchangeName   string `json:"exchangeName"`
	InstrumentType string `json:"instrumentType"`
	Bars           []Bar  `json:"prices"`
}

// Query selects bars for a symbol between two epoch-second bounds.
type Query struct {
	Symbol   string
	Period1  int64
	Period2  int64
	Interval string
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("%s|%d|%d|%s", strings.ToUpper(q.Symbol), q.Period1, q.Period2, q.Interval)
}

// Fetcher is the read contract consumed by services and handlers.
type Fetcher interface {
	FetchBars(ctx context.Context, q Query) (*Chart, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBaseURL points the gateway at a different chart endpoint.
func WithBaseURL(u string) Option { return func(g *Gateway) { g.baseURL = strings.TrimRight(u, "/") } }

// WithTimeout overrides the per-request upstream timeout.
func WithTimeout(d time.Duration) Option { return func(g *Gateway) { g.timeout = d } }

// WithCacheTTL overrides the response cache TTL. Zero disables caching.
func WithCacheTTL(d time.Duration) Option { return func(g *Gateway) { g.cacheTTL = d } }

// Gateway fetches chart data from Yahoo Finance.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	cacheTTL   time.Duration
	cache      *ristretto.Cache
	sem        chan struct{}
	log        *zap.SugaredLogger
}

// NewGateway creates a gateway using httpClient for upstream calls.
func NewGateway(httpClient *http.Client, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		httpClient: httpClient,
		baseURL:    yahooChartURL,
		timeout:    DefaultTimeout,
		cacheTTL:   DefaultCacheTTL,
		sem:        make(chan struct{}, maxConcurrent),
		log:        logger.Named("marketdata"),
	}
	for _, opt := range opts {
		opt(g)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chart cache: %w", err)
	}
	g.cache = cache
	return g, nil
}

// Close releases the cache goroutines.
func (g *Gateway) Close() {
	g.cache.Close()
}

// FetchBars returns the bars for q, from cache when available.
func (g *Gateway) FetchBars(ctx context.Context, q Query) (*Chart, error) {
	if strings.TrimSpace(q.Symbol) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol is required")
	}
	if q.Period2 <= q.Period1 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period2 must be after period1")
	}
	if q.Interval == "" {
		q.Interval = "1d"
	}

	key := q.cacheKey()
	if g.cacheTTL > 0 {
		if v, ok := g.cache.Get(key); ok {
			if chart, ok := v.(*Chart); ok {
				return chart, nil
			}
		}
	}

	chart, err := g.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if g.cacheTTL > 0 {
		g.cache.SetWithTTL(key, chart, 1, g.cacheTTL)
		g.cache.Wait()
	}
	return chart, nil
}

func (g *Gateway) fetch(ctx context.Context, q Query) (*Chart, error) {
	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.ErrUpstreamTimeout, ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(q.Period1, 10))
	params.Set("period2", strconv.FormatInt(q.Period2, 10))
	params.Set("interval", q.Interval)
	endpoint := g.baseURL + "/" + url.PathEscape(strings.ToUpper(q.Symbol)) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", yahooUA)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			g.log.Warnw("chart request timed out", "symbol", q.Symbol, "timeout", g.timeout.String())
			return nil, apperrors.Wrap(apperrors.ErrUpstreamTimeout, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrUpstreamData, fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrUpstreamTimeout, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrUpstreamFormat, fmt.Errorf("reading body: %w", err))
	}

	g.log.Debugw("chart fetched",
		"symbol", q.Symbol,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	chart, err := parseChart(q.Symbol, body)
	if err != nil {
		// A non-200 without a parseable error payload is reported by status.
		if resp.StatusCode != http.StatusOK && apperrors.CodeOf(err) == apperrors.ErrUpstreamFormat.Code {
			return nil, apperrors.WithMessage(apperrors.ErrUpstreamData, fmt.Sprintf("unexpected status %d", resp.StatusCode))
		}
		return nil, err
	}
	return chart, nil
}

// PriceLookup adapts the gateway to finmath's lookup contract using daily
// bars. Windows are widened to whole UTC days so repeated lookups share
// cache entries.
func (g *Gateway) PriceLookup() finmath.PriceLookup {
	return func(ctx context.Context, symbol string, from, to time.Time) ([]finmath.PricePoint, error) {
		day := 24 * time.Hour
		q := Query{
			Symbol:   symbol,
			Period1:  from.UTC().Truncate(day).Unix(),
			Period2:  to.UTC().Truncate(day).Add(day).Unix(),
			Interval: "1d",
		}
		chart, err := g.FetchBars(ctx, q)
		if err != nil {
			return nil, err
		}
		points := make([]finmath.PricePoint, 0, len(chart.Bars))
		for _, b := range chart.Bars {
			c := b.Close
			points = append(points, finmath.PricePoint{Time: b.Time, Close: &c})
		}
		return points, nil
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

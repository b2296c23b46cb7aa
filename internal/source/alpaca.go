// Package source fetches market data from external providers into the
// local bar stores.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"vela/internal/domain"
	"vela/internal/store"
	"vela/internal/util"
)

// Compile-time interface check.
var _ store.BarSource = (*AlpacaSource)(nil)

// barsClient is the slice of the Alpaca market-data client the source
// needs. Narrowing it to an interface keeps the fetch logic testable
// without network access.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// AlpacaSource fetches daily OHLCV bars from the Alpaca market-data API.
// Requests are rate limited and retried with exponential backoff.
type AlpacaSource struct {
	client      barsClient
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses Alpaca's default endpoint. rateLimitPerMin bounds the
// request rate; values below 1 fall back to Alpaca's free-tier limit of
// 200 requests per minute.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, rateLimitPerMin int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if rateLimitPerMin < 1 {
		rateLimitPerMin = 200
	}

	return &AlpacaSource{
		client:      marketdata.NewClient(opts),
		limiter:     util.NewRateLimiter(rateLimitPerMin),
		maxAttempts: 3,
		retryDelay:  time.Second,
		log:         slog.Default().With("source", "alpaca"),
	}
}

// Fetch returns daily bars for one symbol within [start, end], sorted by
// timestamp. API failures after all retries are reported as domain.ErrData.
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := s.FetchMulti(ctx, []string{symbol}, start, end)
	if err != nil {
		return nil, err
	}
	return bars[strings.ToUpper(symbol)], nil
}

// FetchMulti returns daily bars for several symbols in one API call,
// keyed by upper-cased symbol.
func (s *AlpacaSource) FetchMulti(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols requested", domain.ErrData)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		var apiErr error
		multiBars, apiErr = s.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: GetMultiBars: %v", domain.ErrData, err)
	}

	out := make(map[string][]domain.Bar, len(multiBars))
	for symbol, alpacaBars := range multiBars {
		sym := strings.ToUpper(symbol)
		bars := make([]domain.Bar, 0, len(alpacaBars))
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:    sym,
				Timestamp: ab.Timestamp.UTC(),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    int64(ab.Volume),
			})
		}
		sort.Slice(bars, func(i, j int) bool {
			return bars[i].Timestamp.Before(bars[j].Timestamp)
		})
		out[sym] = bars
	}
	return out, nil
}

// Symbols is not supported by the remote API in any bounded way; callers
// list symbols from their local store instead.
func (s *AlpacaSource) Symbols(_ context.Context) ([]string, error) {
	return nil, fmt.Errorf("%w: alpaca source cannot enumerate symbols", domain.ErrData)
}

// Sync fetches bars for the given symbols and writes them through to the
// sink, validating each series first. It returns the number of bars
// written.
func (s *AlpacaSource) Sync(ctx context.Context, sink store.BarSink, symbols []string, start, end time.Time) (int, error) {
	fetched, err := s.FetchMulti(ctx, symbols, start, end)
	if err != nil {
		return 0, err
	}

	total := 0
	for sym, bars := range fetched {
		if len(bars) == 0 {
			s.log.Warn("no bars returned", "symbol", sym)
			continue
		}
		if err := store.ValidateBars(sym, bars); err != nil {
			return total, err
		}
		if err := sink.WriteBars(ctx, bars); err != nil {
			return total, fmt.Errorf("writing %s: %w", sym, err)
		}
		total += len(bars)
		s.log.Info("synced", "symbol", sym, "bars", len(bars))
	}
	return total, nil
}

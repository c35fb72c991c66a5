package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/store"
)

// errEmptyResponse marks a fetch that returned no bars. Providers sometimes
// return empty bodies under load, so it is treated as transient and retried.
var errEmptyResponse = errors.New("collect: empty provider response")

// PriceSource fetches daily OHLCV bars for one ticker over a date range.
type PriceSource interface {
	DailyBars(ctx context.Context, ticker string, start, end time.Time) ([]store.PriceBar, error)
}

// PriceCollector pulls bar series per ticker and persists them with
// idempotent inserts.
type PriceCollector struct {
	source PriceSource
	store  *store.Store
	policy RetryPolicy
	log    zerolog.Logger
	now    func() time.Time
}

func NewPriceCollector(source PriceSource, st *store.Store, policy RetryPolicy, log zerolog.Logger) *PriceCollector {
	return &PriceCollector{
		source: source,
		store:  st,
		policy: policy,
		log:    log.With().Str("component", "price_collector").Logger(),
		now:    time.Now,
	}
}

// Collect fetches `days` of bars for each ticker. One ticker failing all
// retries is recorded, not fatal; the rest of the batch continues.
func (c *PriceCollector) Collect(ctx context.Context, tickers []string, days int) (*Result, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	started := c.now()
	end := started
	start := end.AddDate(0, 0, -days)
	result := newResult()

	for _, raw := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" {
			continue
		}

		added, dupes, err := c.collectOne(ctx, ticker, start, end)
		result.RowsAdded += added
		result.DuplicatesSkipped += dupes

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.log.Error().Err(err).Str("ticker", ticker).Msg("ticker failed after retries")
			result.Failed = append(result.Failed, ticker)
			result.Errors[ticker] = err.Error()
			continue
		}

		c.log.Info().Str("ticker", ticker).Int("added", added).Int("duplicates", dupes).Msg("prices collected")
		result.Succeeded = append(result.Succeeded, ticker)
	}

	rec := store.RunRecord{
		RunType:           "price_collection",
		Status:            result.Status(),
		Attempted:         append(append([]string(nil), result.Succeeded...), result.Failed...),
		Succeeded:         result.Succeeded,
		Failed:            result.Failed,
		RowsAdded:         result.RowsAdded,
		DuplicatesSkipped: result.DuplicatesSkipped,
		Errors:            result.Errors,
		StartedAt:         started,
		FinishedAt:        c.now(),
	}
	if err := c.store.AppendRunRecord(ctx, rec); err != nil {
		return nil, err
	}

	return result.finish(), nil
}

func (c *PriceCollector) collectOne(ctx context.Context, ticker string, start, end time.Time) (added, dupes int, err error) {
	var bars []store.PriceBar
	err = c.policy.Do(ctx, func() error {
		fetched, ferr := c.source.DailyBars(ctx, ticker, start, end)
		if ferr != nil {
			return ferr
		}
		if len(fetched) == 0 {
			return errEmptyResponse
		}
		bars = fetched
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	for _, bar := range bars {
		bar.Ticker = ticker
		inserted, ierr := c.store.InsertPriceBar(ctx, bar)
		if ierr != nil {
			return added, dupes, fmt.Errorf("persist %s %s: %w", ticker, bar.Date, ierr)
		}
		if inserted {
			added++
		} else {
			dupes++
		}
	}
	return added, dupes, nil
}

package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

// RawArticle is a provider article before standardization. PublishedUnix is
// the provider's publish instant in Unix seconds.
type RawArticle struct {
	URL           string
	Title         string
	Source        string
	PublishedUnix int64
}

// NewsSource fetches company headlines for one ticker over a date range.
type NewsSource interface {
	CompanyNews(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error)
}

// NewsCollector pulls headlines per ticker, filters for relevance,
// standardizes timestamps, and persists with URL dedup. Outbound calls are
// paced by a limiter sized to the provider quota; hitting capacity suspends
// the run rather than failing it.
type NewsCollector struct {
	source       NewsSource
	store        *store.Store
	std          *calendar.Standardizer
	limiter      *rate.Limiter
	policy       RetryPolicy
	companies    map[string]string
	minRetention float64
	log          zerolog.Logger
	now          func() time.Time
}

// NewsCollectorConfig carries the news-specific knobs.
type NewsCollectorConfig struct {
	CallsPerMinute int
	// MinRetention is the fraction of fetched articles the relevance filter
	// must keep; below it the filter is abandoned for that ticker.
	MinRetention float64
	Companies    map[string]string
	Retry        RetryPolicy
}

func NewNewsCollector(source NewsSource, st *store.Store, std *calendar.Standardizer, cfg NewsCollectorConfig, log zerolog.Logger) *NewsCollector {
	callsPerMin := cfg.CallsPerMinute
	if callsPerMin <= 0 {
		callsPerMin = 60
	}
	return &NewsCollector{
		source:       source,
		store:        st,
		std:          std,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMin)), callsPerMin),
		policy:       cfg.Retry,
		companies:    cfg.Companies,
		minRetention: cfg.MinRetention,
		log:          log.With().Str("component", "news_collector").Logger(),
		now:          time.Now,
	}
}

// Collect fetches headlines for each ticker over the last `days` days.
// Per-ticker failures are isolated exactly as in price collection.
func (c *NewsCollector) Collect(ctx context.Context, tickers []string, days int) (*Result, error) {
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

		c.log.Info().Str("ticker", ticker).Int("added", added).Int("duplicates", dupes).Msg("news collected")
		result.Succeeded = append(result.Succeeded, ticker)
	}

	rec := store.RunRecord{
		RunType:           "news_collection",
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

func (c *NewsCollector) collectOne(ctx context.Context, ticker string, start, end time.Time) (added, dupes int, err error) {
	var articles []RawArticle
	err = c.policy.Do(ctx, func() error {
		// Every outbound attempt consumes provider quota, so the limiter
		// gates retries too.
		if werr := c.limiter.Wait(ctx); werr != nil {
			return werr
		}
		fetched, ferr := c.source.CompanyNews(ctx, ticker, start, end)
		if ferr != nil {
			return ferr
		}
		articles = fetched
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if len(articles) == 0 {
		// A quiet news window is not a failure.
		c.log.Warn().Str("ticker", ticker).Msg("no articles returned")
		return 0, 0, nil
	}

	relevant := c.filterRelevant(ticker, articles)
	c.log.Debug().Str("ticker", ticker).Int("relevant", len(relevant)).Int("fetched", len(articles)).Msg("relevance filter applied")

	for _, art := range relevant {
		if strings.TrimSpace(art.URL) == "" || strings.TrimSpace(art.Title) == "" {
			// Validation failure: drop the record, not the ticker.
			c.log.Debug().Str("ticker", ticker).Str("url", art.URL).Msg("skipping article with missing fields")
			continue
		}

		publishedAt := c.std.StandardizeTimestampUnix(art.PublishedUnix)
		inserted, ierr := c.store.InsertArticle(ctx, store.Article{
			URL:         art.URL,
			Ticker:      ticker,
			Title:       art.Title,
			Source:      art.Source,
			PublishedAt: publishedAt.Format(time.RFC3339),
		})
		if ierr != nil {
			return added, dupes, fmt.Errorf("persist article for %s: %w", ticker, ierr)
		}
		if inserted {
			added++
		} else {
			dupes++
		}
	}
	return added, dupes, nil
}

// filterRelevant keeps articles whose title mentions the ticker or its
// company name. If that keeps less than the minimum retention fraction, the
// filter is considered too strict for this ticker and everything is kept.
func (c *NewsCollector) filterRelevant(ticker string, articles []RawArticle) []RawArticle {
	symbol := strings.ToLower(ticker)
	company := strings.ToLower(c.companies[ticker])

	var kept []RawArticle
	for _, art := range articles {
		title := strings.ToLower(art.Title)
		if strings.Contains(title, symbol) || (company != "" && strings.Contains(title, company)) {
			kept = append(kept, art)
		}
	}

	minKeep := float64(len(articles)) * c.minRetention
	if minKeep < 1 {
		minKeep = 1
	}
	if float64(len(kept)) < minKeep {
		return articles
	}
	return kept
}

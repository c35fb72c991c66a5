package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

// AlignedNews groups one trading day's informing headlines: every article
// whose publish instant, pushed through the market-close cutoff, lands on
// Date. Joining news to that day's label via this grouping cannot leak
// information the market had not seen.
type AlignedNews struct {
	Date     string
	Articles []store.Article
}

// NewsAligner assigns persisted articles to the trading day they may
// inform.
type NewsAligner struct {
	store *store.Store
	std   *calendar.Standardizer
	log   zerolog.Logger
}

func NewNewsAligner(st *store.Store, std *calendar.Standardizer, log zerolog.Logger) *NewsAligner {
	return &NewsAligner{
		store: st,
		std:   std,
		log:   log.With().Str("component", "news_aligner").Logger(),
	}
}

// Align maps a ticker's articles onto trading days, ordered by date.
// Articles whose cutoff target lies beyond the calendar horizon are
// skipped with a warning rather than failing the batch.
func (a *NewsAligner) Align(ctx context.Context, ticker string) ([]AlignedNews, error) {
	articles, err := a.store.Articles(ctx, ticker)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]store.Article)
	for _, art := range articles {
		published, err := time.Parse(time.RFC3339, art.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("parse published_at %q: %w", art.PublishedAt, err)
		}

		date, err := a.std.ApplyCutoffRule(published)
		if err != nil {
			a.log.Warn().Err(err).Str("url", art.URL).Msg("no trading day for article")
			continue
		}
		byDate[date] = append(byDate[date], art)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	aligned := make([]AlignedNews, 0, len(dates))
	for _, d := range dates {
		aligned = append(aligned, AlignedNews{Date: d, Articles: byDate[d]})
	}
	return aligned, nil
}

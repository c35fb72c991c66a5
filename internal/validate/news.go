package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/store"
)

// futureBuffer absorbs small clock skew between this host and the
// news provider before a timestamp counts as "in the future".
const futureBuffer = 10 * time.Minute

// NewsReport is the result of one news audit.
type NewsReport struct {
	MissingFields  []FieldGap
	FutureArticles []FutureArticle
	DuplicateURLs  []DuplicateURL
	Distribution   []TickerArticles
}

// FutureArticle is a headline whose published_at lies ahead of the
// validation time.
type FutureArticle struct {
	Ticker      string
	Title       string
	PublishedAt string
}

type DuplicateURL struct {
	URL   string
	Count int
}

// TickerArticles summarizes how many headlines one ticker holds and
// over what span.
type TickerArticles struct {
	Ticker   string
	Count    int
	Earliest string
	Latest   string
}

// NewsValidator audits the news table. The UNIQUE(url) constraint should
// make duplicates impossible; the duplicate check exists to catch schema
// drift after manual imports.
type NewsValidator struct {
	store *store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewNewsValidator(st *store.Store, log zerolog.Logger) *NewsValidator {
	return &NewsValidator{
		store: st,
		log:   log.With().Str("component", "news_validator").Logger(),
		now:   time.Now,
	}
}

// Validate runs every news audit for the given tickers.
func (v *NewsValidator) Validate(ctx context.Context, tickers []string) (*NewsReport, error) {
	report := &NewsReport{}

	var err error
	if report.MissingFields, err = v.checkMissing(ctx, tickers); err != nil {
		return nil, err
	}
	if report.FutureArticles, err = v.checkFutureTimestamps(ctx, tickers); err != nil {
		return nil, err
	}
	if report.DuplicateURLs, err = v.checkDuplicateURLs(ctx); err != nil {
		return nil, err
	}
	if report.Distribution, err = v.checkDistribution(ctx, tickers); err != nil {
		return nil, err
	}

	if n := len(report.FutureArticles); n > 0 {
		v.log.Warn().Int("count", n).Msg("articles with future timestamps")
	}
	return report, nil
}

func (v *NewsValidator) checkMissing(ctx context.Context, tickers []string) ([]FieldGap, error) {
	query := fmt.Sprintf(`
SELECT ticker, COUNT(*) FROM news
WHERE ticker IN (%s)
  AND (title IS NULL OR title = '' OR url IS NULL OR url = ''
       OR published_at IS NULL OR published_at = '')
GROUP BY ticker
`, placeholders(len(tickers)))

	rows, err := v.store.DB().QueryContext(ctx, query, tickerArgs(tickers)...)
	if err != nil {
		return nil, fmt.Errorf("check missing news fields: %w", err)
	}
	defer rows.Close()

	var gaps []FieldGap
	for rows.Next() {
		var g FieldGap
		if err := rows.Scan(&g.Ticker, &g.NullCount); err != nil {
			return nil, fmt.Errorf("scan news field gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// checkFutureTimestamps parses published_at in Go rather than comparing
// strings in SQL: rows carry explicit UTC offsets, so lexical comparison
// is not safe.
func (v *NewsValidator) checkFutureTimestamps(ctx context.Context, tickers []string) ([]FutureArticle, error) {
	query := fmt.Sprintf(`
SELECT ticker, title, published_at FROM news
WHERE ticker IN (%s) AND published_at != ''
`, placeholders(len(tickers)))

	rows, err := v.store.DB().QueryContext(ctx, query, tickerArgs(tickers)...)
	if err != nil {
		return nil, fmt.Errorf("check future timestamps: %w", err)
	}
	defer rows.Close()

	horizon := v.now().Add(futureBuffer)

	var future []FutureArticle
	for rows.Next() {
		var a FutureArticle
		if err := rows.Scan(&a.Ticker, &a.Title, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article timestamp: %w", err)
		}
		published, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			// Unparseable timestamps surface through the missing
			// fields check instead.
			continue
		}
		if published.After(horizon) {
			future = append(future, a)
		}
	}
	return future, rows.Err()
}

func (v *NewsValidator) checkDuplicateURLs(ctx context.Context) ([]DuplicateURL, error) {
	rows, err := v.store.DB().QueryContext(ctx, `
SELECT url, COUNT(*) AS n FROM news
GROUP BY url HAVING n > 1
ORDER BY n DESC
`)
	if err != nil {
		return nil, fmt.Errorf("check duplicate urls: %w", err)
	}
	defer rows.Close()

	var dupes []DuplicateURL
	for rows.Next() {
		var d DuplicateURL
		if err := rows.Scan(&d.URL, &d.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate url: %w", err)
		}
		dupes = append(dupes, d)
	}
	return dupes, rows.Err()
}

func (v *NewsValidator) checkDistribution(ctx context.Context, tickers []string) ([]TickerArticles, error) {
	query := fmt.Sprintf(`
SELECT ticker, COUNT(*), MIN(published_at), MAX(published_at)
FROM news WHERE ticker IN (%s)
GROUP BY ticker ORDER BY ticker
`, placeholders(len(tickers)))

	rows, err := v.store.DB().QueryContext(ctx, query, tickerArgs(tickers)...)
	if err != nil {
		return nil, fmt.Errorf("check news distribution: %w", err)
	}
	defer rows.Close()

	var dist []TickerArticles
	for rows.Next() {
		var d TickerArticles
		if err := rows.Scan(&d.Ticker, &d.Count, &d.Earliest, &d.Latest); err != nil {
			return nil, fmt.Errorf("scan news distribution: %w", err)
		}
		dist = append(dist, d)
	}
	return dist, rows.Err()
}

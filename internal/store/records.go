package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PriceBar is one daily OHLCV row. Bars are immutable once inserted;
// re-fetching an overlapping range is a no-op on conflict.
type PriceBar struct {
	Ticker   string
	Date     string // YYYY-MM-DD
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	AdjClose sql.NullFloat64
}

// Article is one news headline. URL is the global dedup key: the same
// article fetched for a second ticker is not stored twice.
type Article struct {
	URL         string
	Ticker      string // ticker the article was fetched for
	Title       string
	Source      string
	PublishedAt string // ISO-8601 with explicit offset
}

// Label is the next-trading-day outcome for (ticker, date).
type Label struct {
	Ticker      string
	Date        string
	LabelBinary int
	PctReturn   float64
}

// RunRecord summarizes one collector invocation. Appended exactly once per
// run and never read back by pipeline logic.
type RunRecord struct {
	RunType           string
	Status            string
	Attempted         []string
	Succeeded         []string
	Failed            []string
	RowsAdded         int
	DuplicatesSkipped int
	Errors            map[string]string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// InsertPriceBar inserts one bar, reporting false when the (ticker, date)
// row already exists.
func (s *Store) InsertPriceBar(ctx context.Context, bar PriceBar) (bool, error) {
	if strings.TrimSpace(bar.Ticker) == "" || strings.TrimSpace(bar.Date) == "" {
		return false, fmt.Errorf("price bar requires ticker and date")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO prices (ticker, date, open, high, low, close, volume, adjusted_close)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(ticker, date) DO NOTHING
`, strings.ToUpper(bar.Ticker), bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.AdjClose)
	if err != nil {
		return false, fmt.Errorf("insert price bar: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert price bar rows: %w", err)
	}
	return rows > 0, nil
}

// InsertArticle inserts one article, reporting false when the URL has been
// seen before regardless of ticker association.
func (s *Store) InsertArticle(ctx context.Context, art Article) (bool, error) {
	if strings.TrimSpace(art.URL) == "" {
		return false, fmt.Errorf("article requires a url")
	}
	if strings.TrimSpace(art.Title) == "" {
		return false, fmt.Errorf("article requires a title")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO news (url, ticker, title, source, published_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(url) DO NOTHING
`, art.URL, strings.ToUpper(art.Ticker), art.Title, nullIfEmpty(art.Source), art.PublishedAt)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert article rows: %w", err)
	}
	return rows > 0, nil
}

// InsertLabel inserts one label, reporting false when (ticker, date) already
// has one. Existing labels are left untouched so re-runs are idempotent.
func (s *Store) InsertLabel(ctx context.Context, l Label) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO labels (ticker, date, label_binary, pct_return)
VALUES (?, ?, ?, ?)
ON CONFLICT(ticker, date) DO NOTHING
`, strings.ToUpper(l.Ticker), l.Date, l.LabelBinary, l.PctReturn)
	if err != nil {
		return false, fmt.Errorf("insert label: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert label rows: %w", err)
	}
	return rows > 0, nil
}

// PriceBars returns a ticker's bars ordered by date ascending.
func (s *Store) PriceBars(ctx context.Context, ticker string) ([]PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, date, open, high, low, close, volume, adjusted_close
FROM prices
WHERE ticker = ?
ORDER BY date ASC
`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("query price bars: %w", err)
	}
	defer rows.Close()

	var bars []PriceBar
	for rows.Next() {
		var b PriceBar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.AdjClose); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("price bar rows: %w", err)
	}
	return bars, nil
}

// PriceDates returns a ticker's trading dates ordered ascending.
func (s *Store) PriceDates(ctx context.Context, ticker string) ([]string, error) {
	return s.stringColumn(ctx, `
SELECT date FROM prices WHERE ticker = ? ORDER BY date ASC
`, strings.ToUpper(ticker))
}

// DistinctPriceDates returns every distinct date across all tickers,
// ordered ascending. This is the splitter's input.
func (s *Store) DistinctPriceDates(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, `SELECT DISTINCT date FROM prices ORDER BY date ASC`)
}

// Articles returns a ticker's articles ordered by publish time ascending.
func (s *Store) Articles(ctx context.Context, ticker string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT url, ticker, title, COALESCE(source, ''), published_at
FROM news
WHERE ticker = ?
ORDER BY published_at ASC
`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.URL, &a.Ticker, &a.Title, &a.Source, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("article rows: %w", err)
	}
	return articles, nil
}

// Labels returns a ticker's labels ordered by date ascending.
func (s *Store) Labels(ctx context.Context, ticker string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, date, label_binary, pct_return
FROM labels
WHERE ticker = ?
ORDER BY date ASC
`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []Label
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.Ticker, &l.Date, &l.LabelBinary, &l.PctReturn); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("label rows: %w", err)
	}
	return labels, nil
}

// AppendRunRecord writes one run_log row. Rows are never updated or deleted.
func (s *Store) AppendRunRecord(ctx context.Context, rec RunRecord) error {
	attempted, _ := json.Marshal(rec.Attempted)
	succeeded, _ := json.Marshal(rec.Succeeded)
	failed, _ := json.Marshal(rec.Failed)

	var errMessages any
	if len(rec.Errors) > 0 {
		data, _ := json.Marshal(rec.Errors)
		errMessages = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO run_log (run_type, status, tickers_attempted, tickers_succeeded, tickers_failed,
                     rows_added, duplicates_skipped, error_messages, started_at, finished_at, duration_seconds)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.RunType, rec.Status, string(attempted), string(succeeded), string(failed),
		rec.RowsAdded, rec.DuplicatesSkipped, errMessages,
		rec.StartedAt.Format(time.RFC3339), rec.FinishedAt.Format(time.RFC3339),
		rec.FinishedAt.Sub(rec.StartedAt).Seconds())
	if err != nil {
		return fmt.Errorf("append run record: %w", err)
	}
	return nil
}

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

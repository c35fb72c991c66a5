package validate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCalendar(t *testing.T) *calendar.TradingCalendar {
	t.Helper()
	cal, err := calendar.New("America/New_York", nil)
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	return cal
}

func insertBar(t *testing.T, s *store.Store, ticker, date string, close float64, volume int64) {
	t.Helper()
	bar := store.PriceBar{
		Ticker: ticker, Date: date,
		Open: close - 1, High: close + 1, Low: close - 2,
		Close: close, Volume: volume,
	}
	if _, err := s.InsertPriceBar(context.Background(), bar); err != nil {
		t.Fatalf("InsertPriceBar: %v", err)
	}
}

func TestPriceValidatorFlagsLargeMoves(t *testing.T) {
	s := newTestStore(t)
	insertBar(t, s, "AAPL", "2026-02-09", 100, 1_000_000)
	insertBar(t, s, "AAPL", "2026-02-10", 130, 1_000_000) // +30%
	insertBar(t, s, "AAPL", "2026-02-11", 131, 1_000_000) // well under 20%

	v := NewPriceValidator(s, testCalendar(t), zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(report.Anomalies))
	}
	a := report.Anomalies[0]
	if a.Date != "2026-02-10" || a.PrevClose != 100 {
		t.Fatalf("unexpected anomaly: %+v", a)
	}
}

func TestPriceValidatorCountsNullFields(t *testing.T) {
	s := newTestStore(t)
	insertBar(t, s, "TSLA", "2026-02-09", 200, 1_000_000)
	_, err := s.DB().Exec(
		`INSERT INTO prices (ticker, date, open, high, low, close, volume) VALUES (?, ?, NULL, NULL, NULL, ?, ?)`,
		"TSLA", "2026-02-10", 201.0, int64(1_000_000),
	)
	if err != nil {
		t.Fatalf("insert null row: %v", err)
	}

	v := NewPriceValidator(s, testCalendar(t), zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"TSLA"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.MissingFields) != 1 || report.MissingFields[0].NullCount != 1 {
		t.Fatalf("expected 1 row with nulls, got %+v", report.MissingFields)
	}
}

func TestPriceValidatorFindsZeroVolume(t *testing.T) {
	s := newTestStore(t)
	insertBar(t, s, "NVDA", "2026-02-09", 500, 0)
	insertBar(t, s, "NVDA", "2026-02-10", 505, 2_000_000)

	v := NewPriceValidator(s, testCalendar(t), zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"NVDA"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.ZeroVolume) != 1 || report.ZeroVolume[0].Date != "2026-02-09" {
		t.Fatalf("expected one zero-volume day, got %+v", report.ZeroVolume)
	}
}

func TestPriceValidatorCountsCalendarGaps(t *testing.T) {
	s := newTestStore(t)
	// Monday and Wednesday collected; Tuesday missing.
	insertBar(t, s, "MSFT", "2026-02-09", 400, 1_000_000)
	insertBar(t, s, "MSFT", "2026-02-11", 402, 1_000_000)

	v := NewPriceValidator(s, testCalendar(t), zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"MSFT"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Coverage) != 1 {
		t.Fatalf("expected coverage for 1 ticker, got %d", len(report.Coverage))
	}
	cov := report.Coverage[0]
	if cov.Days != 2 || cov.FirstDate != "2026-02-09" || cov.LastDate != "2026-02-11" {
		t.Fatalf("unexpected coverage: %+v", cov)
	}
	if cov.Gaps != 1 {
		t.Fatalf("expected 1 trading-day gap, got %d", cov.Gaps)
	}
}

func TestPriceValidatorWeekendIsNotAGap(t *testing.T) {
	s := newTestStore(t)
	// Friday then Monday: contiguous sessions.
	insertBar(t, s, "AMZN", "2026-02-06", 180, 1_000_000)
	insertBar(t, s, "AMZN", "2026-02-09", 181, 1_000_000)

	v := NewPriceValidator(s, testCalendar(t), zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"AMZN"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Coverage[0].Gaps != 0 {
		t.Fatalf("weekend must not count as a gap, got %d", report.Coverage[0].Gaps)
	}
}

func insertArticle(t *testing.T, s *store.Store, ticker, url, title, publishedAt string) {
	t.Helper()
	_, err := s.InsertArticle(context.Background(), store.Article{
		Ticker: ticker, URL: url, Title: title, Source: "wire", PublishedAt: publishedAt,
	})
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
}

func TestNewsValidatorFlagsFutureTimestamps(t *testing.T) {
	s := newTestStore(t)
	insertArticle(t, s, "AAPL", "https://n.test/past", "Past story",
		time.Now().Add(-24*time.Hour).Format(time.RFC3339))
	insertArticle(t, s, "AAPL", "https://n.test/future", "Future story",
		time.Now().Add(2*time.Hour).Format(time.RFC3339))
	// Inside the skew buffer: not flagged.
	insertArticle(t, s, "AAPL", "https://n.test/skew", "Almost now",
		time.Now().Add(5*time.Minute).Format(time.RFC3339))

	v := NewNewsValidator(s, zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.FutureArticles) != 1 || report.FutureArticles[0].Title != "Future story" {
		t.Fatalf("expected only the future story flagged, got %+v", report.FutureArticles)
	}
}

func TestNewsValidatorReportsDistribution(t *testing.T) {
	s := newTestStore(t)
	insertArticle(t, s, "AAPL", "https://n.test/a1", "Story one", "2026-02-09T10:00:00-05:00")
	insertArticle(t, s, "AAPL", "https://n.test/a2", "Story two", "2026-02-10T10:00:00-05:00")
	insertArticle(t, s, "TSLA", "https://n.test/t1", "Story three", "2026-02-09T11:00:00-05:00")

	v := NewNewsValidator(s, zerolog.Nop())
	report, err := v.Validate(context.Background(), []string{"AAPL", "TSLA"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Distribution) != 2 {
		t.Fatalf("expected distribution for 2 tickers, got %d", len(report.Distribution))
	}
	aapl := report.Distribution[0]
	if aapl.Ticker != "AAPL" || aapl.Count != 2 || aapl.Earliest != "2026-02-09T10:00:00-05:00" {
		t.Fatalf("unexpected AAPL distribution: %+v", aapl)
	}
	if len(report.DuplicateURLs) != 0 {
		t.Fatalf("unique constraint should prevent duplicates, got %+v", report.DuplicateURLs)
	}
}

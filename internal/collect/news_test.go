package collect

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/calendar"
)

type fakeNewsSource struct {
	articles map[string][]RawArticle
	calls    int
}

func (f *fakeNewsSource) CompanyNews(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error) {
	f.calls++
	return f.articles[ticker], nil
}

func testStandardizer(t *testing.T) *calendar.Standardizer {
	t.Helper()
	cal, err := calendar.New("America/New_York", nil)
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	return calendar.NewStandardizer(cal, 16)
}

func TestNewsCollectFiltersByRelevance(t *testing.T) {
	// 10 articles, 3 relevant: the filter keeps the 3 (above 10% retention).
	articles := []RawArticle{
		{URL: "https://n.test/1", Title: "Apple unveils new chip", Source: "wire", PublishedUnix: 1770000000},
		{URL: "https://n.test/2", Title: "AAPL climbs on earnings", Source: "wire", PublishedUnix: 1770000100},
		{URL: "https://n.test/3", Title: "Markets end mixed", Source: "wire", PublishedUnix: 1770000200},
		{URL: "https://n.test/4", Title: "Fed decision looms", Source: "wire", PublishedUnix: 1770000300},
		{URL: "https://n.test/5", Title: "Oil slides", Source: "wire", PublishedUnix: 1770000400},
		{URL: "https://n.test/6", Title: "Analysts weigh Apple services growth", Source: "wire", PublishedUnix: 1770000500},
		{URL: "https://n.test/7", Title: "Tech roundup", Source: "wire", PublishedUnix: 1770000600},
		{URL: "https://n.test/8", Title: "Bond yields rise", Source: "wire", PublishedUnix: 1770000700},
		{URL: "https://n.test/9", Title: "Retail sales beat", Source: "wire", PublishedUnix: 1770000800},
		{URL: "https://n.test/10", Title: "Crypto rebounds", Source: "wire", PublishedUnix: 1770000900},
	}
	src := &fakeNewsSource{articles: map[string][]RawArticle{"AAPL": articles}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Companies:      map[string]string{"AAPL": "Apple"},
		Retry:          fastRetry(),
	}, zerolog.Nop())

	res, err := c.Collect(context.Background(), []string{"AAPL"}, 7)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.RowsAdded != 3 {
		t.Fatalf("expected 3 relevant articles persisted, got %d", res.RowsAdded)
	}
}

func TestNewsCollectFallbackWhenFilterTooStrict(t *testing.T) {
	// 12 irrelevant headlines, 1 relevant: 1/12 < 10%, so all are kept.
	var articles []RawArticle
	for i := 0; i < 12; i++ {
		articles = append(articles, RawArticle{
			URL:           "https://n.test/generic-" + string(rune('a'+i)),
			Title:         "Broad market update",
			Source:        "wire",
			PublishedUnix: 1770000000 + int64(i),
		})
	}
	articles = append(articles, RawArticle{
		URL: "https://n.test/tsla", Title: "Tesla deliveries jump", Source: "wire", PublishedUnix: 1770001300,
	})

	src := &fakeNewsSource{articles: map[string][]RawArticle{"TSLA": articles}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Companies:      map[string]string{"TSLA": "Tesla"},
		Retry:          fastRetry(),
	}, zerolog.Nop())

	res, err := c.Collect(context.Background(), []string{"TSLA"}, 7)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.RowsAdded != 13 {
		t.Fatalf("expected fallback to keep all 13 articles, got %d", res.RowsAdded)
	}
}

func TestNewsCollectDeduplicatesByURL(t *testing.T) {
	shared := RawArticle{
		URL: "https://n.test/shared", Title: "Apple and Tesla strike deal", Source: "wire", PublishedUnix: 1770000000,
	}
	src := &fakeNewsSource{articles: map[string][]RawArticle{
		"AAPL": {shared},
		"TSLA": {shared},
	}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Companies:      map[string]string{"AAPL": "Apple", "TSLA": "Tesla"},
		Retry:          fastRetry(),
	}, zerolog.Nop())

	res, err := c.Collect(context.Background(), []string{"AAPL", "TSLA"}, 7)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.RowsAdded != 1 || res.DuplicatesSkipped != 1 {
		t.Fatalf("expected 1 insert and 1 duplicate, got added=%d dupes=%d", res.RowsAdded, res.DuplicatesSkipped)
	}

	// Re-collecting the same window adds nothing.
	res, err = c.Collect(context.Background(), []string{"AAPL", "TSLA"}, 7)
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if res.RowsAdded != 0 {
		t.Fatalf("expected idempotent re-collection, got %d new rows", res.RowsAdded)
	}
}

func TestNewsCollectStandardizesTimestamps(t *testing.T) {
	src := &fakeNewsSource{articles: map[string][]RawArticle{
		"AAPL": {{URL: "https://n.test/ts", Title: "Apple event scheduled", Source: "wire", PublishedUnix: 1770000000}},
	}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Companies:      map[string]string{"AAPL": "Apple"},
		Retry:          fastRetry(),
	}, zerolog.Nop())

	if _, err := c.Collect(context.Background(), []string{"AAPL"}, 7); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var publishedAt string
	if err := s.DB().QueryRow(`SELECT published_at FROM news WHERE url = 'https://n.test/ts'`).Scan(&publishedAt); err != nil {
		t.Fatalf("query published_at: %v", err)
	}
	if !strings.HasSuffix(publishedAt, "-05:00") && !strings.HasSuffix(publishedAt, "-04:00") {
		t.Fatalf("expected explicit ET offset, got %s", publishedAt)
	}
}

func TestNewsCollectSkipsArticlesWithMissingFields(t *testing.T) {
	src := &fakeNewsSource{articles: map[string][]RawArticle{
		"AAPL": {
			{URL: "", Title: "Apple story without url", PublishedUnix: 1770000000},
			{URL: "https://n.test/ok", Title: "Apple story with url", PublishedUnix: 1770000100},
		},
	}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Companies:      map[string]string{"AAPL": "Apple"},
		Retry:          fastRetry(),
	}, zerolog.Nop())

	res, err := c.Collect(context.Background(), []string{"AAPL"}, 7)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.RowsAdded != 1 {
		t.Fatalf("expected the malformed record to be dropped, got %d rows", res.RowsAdded)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("a bad record must not fail the ticker: %v", res.Failed)
	}
}

func TestNewsCollectAppendsOneRunRecord(t *testing.T) {
	src := &fakeNewsSource{articles: map[string][]RawArticle{}}
	s := newTestStore(t)
	c := NewNewsCollector(src, s, testStandardizer(t), NewsCollectorConfig{
		CallsPerMinute: 600,
		MinRetention:   0.10,
		Retry:          fastRetry(),
	}, zerolog.Nop())

	if _, err := c.Collect(context.Background(), []string{"AAPL"}, 7); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := runLogCount(t, s, "news_collection"); got != 1 {
		t.Fatalf("expected 1 run record, got %d", got)
	}
}

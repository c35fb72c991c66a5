package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubSource fetches company news from the Finnhub REST API.
type FinnhubSource struct {
	client *resty.Client
	apiKey string
}

func NewFinnhubSource(apiKey string) *FinnhubSource {
	client := resty.New()
	client.SetBaseURL(finnhubBaseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubSource{
		client: client,
		apiKey: apiKey,
	}
}

type finnhubNews struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// CompanyNews fetches headlines for a ticker. Dates are passed to the
// provider as YYYY-MM-DD.
func (f *FinnhubSource) CompanyNews(ctx context.Context, ticker string, start, end time.Time) ([]RawArticle, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("finnhub api key not configured")
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": ticker,
			"from":   start.Format("2006-01-02"),
			"to":     end.Format("2006-01-02"),
			"token":  f.apiKey,
		}).
		Get("/company-news")
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", ticker, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("finnhub error %d: %s", resp.StatusCode(), resp.String())
	}

	var items []finnhubNews
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("parse news response for %s: %w", ticker, err)
	}

	articles := make([]RawArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, RawArticle{
			URL:           item.URL,
			Title:         item.Headline,
			Source:        item.Source,
			PublishedUnix: item.DateTime,
		})
	}
	return articles, nil
}

// Package validate audits persisted data quality. Validators are strictly
// read-only; they report issues and never repair them.
package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

// PriceReport is the result of one price audit.
type PriceReport struct {
	MissingFields []FieldGap
	Anomalies     []PriceAnomaly
	ZeroVolume    []ZeroVolumeDay
	Coverage      []TickerCoverage
}

// FieldGap counts rows with NULL required fields for one ticker.
type FieldGap struct {
	Ticker    string
	NullCount int
}

// PriceAnomaly is a day-over-day close move beyond the anomaly threshold.
// Flagged for review, not treated as an error.
type PriceAnomaly struct {
	Ticker    string
	Date      string
	Close     float64
	PrevClose float64
	PctChange float64
}

type ZeroVolumeDay struct {
	Ticker string
	Date   string
}

// TickerCoverage summarizes one ticker's collected range. Gaps counts
// trading days inside the range with no bar.
type TickerCoverage struct {
	Ticker    string
	Days      int
	FirstDate string
	LastDate  string
	Gaps      int
}

// PriceValidator audits the prices table.
type PriceValidator struct {
	store *store.Store
	cal   *calendar.TradingCalendar
	// AnomalyPct is the absolute day-over-day close change (in percent)
	// above which a move is flagged.
	anomalyPct float64
	log        zerolog.Logger
}

func NewPriceValidator(st *store.Store, cal *calendar.TradingCalendar, log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		store:      st,
		cal:        cal,
		anomalyPct: 20.0,
		log:        log.With().Str("component", "price_validator").Logger(),
	}
}

// Validate runs every price audit for the given tickers.
func (v *PriceValidator) Validate(ctx context.Context, tickers []string) (*PriceReport, error) {
	report := &PriceReport{}

	var err error
	if report.MissingFields, err = v.checkMissing(ctx, tickers); err != nil {
		return nil, err
	}
	if report.Anomalies, err = v.checkPriceJumps(ctx, tickers); err != nil {
		return nil, err
	}
	if report.ZeroVolume, err = v.checkZeroVolume(ctx, tickers); err != nil {
		return nil, err
	}
	if report.Coverage, err = v.checkCoverage(ctx, tickers); err != nil {
		return nil, err
	}

	if n := len(report.Anomalies); n > 0 {
		v.log.Warn().Int("count", n).Msg("price anomalies flagged")
	}
	return report, nil
}

func (v *PriceValidator) checkMissing(ctx context.Context, tickers []string) ([]FieldGap, error) {
	query := fmt.Sprintf(`
SELECT ticker, COUNT(*) FROM prices
WHERE ticker IN (%s)
  AND (open IS NULL OR high IS NULL OR low IS NULL OR close IS NULL OR volume IS NULL)
GROUP BY ticker
`, placeholders(len(tickers)))

	rows, err := v.store.DB().QueryContext(ctx, query, tickerArgs(tickers)...)
	if err != nil {
		return nil, fmt.Errorf("check missing fields: %w", err)
	}
	defer rows.Close()

	var gaps []FieldGap
	for rows.Next() {
		var g FieldGap
		if err := rows.Scan(&g.Ticker, &g.NullCount); err != nil {
			return nil, fmt.Errorf("scan field gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

func (v *PriceValidator) checkPriceJumps(ctx context.Context, tickers []string) ([]PriceAnomaly, error) {
	query := fmt.Sprintf(`
WITH changes AS (
    SELECT ticker, date, close,
           LAG(close) OVER (PARTITION BY ticker ORDER BY date) AS prev,
           ((close - LAG(close) OVER (PARTITION BY ticker ORDER BY date))
            / LAG(close) OVER (PARTITION BY ticker ORDER BY date)) * 100 AS pct_change
    FROM prices WHERE ticker IN (%s)
)
SELECT ticker, date, close, prev, pct_change
FROM changes WHERE ABS(pct_change) > ?
ORDER BY ticker, date
`, placeholders(len(tickers)))

	args := append(tickerArgs(tickers), v.anomalyPct)
	rows, err := v.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check price jumps: %w", err)
	}
	defer rows.Close()

	var anomalies []PriceAnomaly
	for rows.Next() {
		var a PriceAnomaly
		if err := rows.Scan(&a.Ticker, &a.Date, &a.Close, &a.PrevClose, &a.PctChange); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

func (v *PriceValidator) checkZeroVolume(ctx context.Context, tickers []string) ([]ZeroVolumeDay, error) {
	query := fmt.Sprintf(`
SELECT ticker, date FROM prices
WHERE ticker IN (%s) AND volume = 0
ORDER BY ticker, date
`, placeholders(len(tickers)))

	rows, err := v.store.DB().QueryContext(ctx, query, tickerArgs(tickers)...)
	if err != nil {
		return nil, fmt.Errorf("check zero volume: %w", err)
	}
	defer rows.Close()

	var days []ZeroVolumeDay
	for rows.Next() {
		var d ZeroVolumeDay
		if err := rows.Scan(&d.Ticker, &d.Date); err != nil {
			return nil, fmt.Errorf("scan zero volume: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (v *PriceValidator) checkCoverage(ctx context.Context, tickers []string) ([]TickerCoverage, error) {
	var coverage []TickerCoverage
	for _, raw := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		dates, err := v.store.PriceDates(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			continue
		}

		cov := TickerCoverage{
			Ticker:    ticker,
			Days:      len(dates),
			FirstDate: dates[0],
			LastDate:  dates[len(dates)-1],
		}
		cov.Gaps, err = v.countGaps(dates)
		if err != nil {
			return nil, err
		}
		coverage = append(coverage, cov)
	}
	return coverage, nil
}

// countGaps walks the trading calendar between the first and last collected
// date and counts open sessions with no bar.
func (v *PriceValidator) countGaps(dates []string) (int, error) {
	have := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		have[d] = struct{}{}
	}

	cur, err := time.ParseInLocation(calendar.DateLayout, dates[0], v.cal.Location())
	if err != nil {
		return 0, fmt.Errorf("parse coverage date %q: %w", dates[0], err)
	}
	last := dates[len(dates)-1]

	gaps := 0
	for cur.Format(calendar.DateLayout) < last {
		next, err := v.cal.NextTradingDay(cur)
		if err != nil {
			return 0, err
		}
		cur = next
		day := cur.Format(calendar.DateLayout)
		if day >= last {
			break
		}
		if _, ok := have[day]; !ok {
			gaps++
		}
	}
	return gaps, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func tickerArgs(tickers []string) []any {
	args := make([]any, 0, len(tickers))
	for _, t := range tickers {
		args = append(args, strings.ToUpper(strings.TrimSpace(t)))
	}
	return args
}

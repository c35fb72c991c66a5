package collect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

// YahooSource fetches daily bars from Yahoo Finance.
type YahooSource struct{}

func NewYahooSource() *YahooSource {
	return &YahooSource{}
}

// DailyBars pulls one-day bars for the range. Yahoo only returns trading
// days, so bar dates land directly on the trading calendar.
func (y *YahooSource) DailyBars(ctx context.Context, ticker string, start, end time.Time) ([]store.PriceBar, error) {
	params := &chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)

	var bars []store.PriceBar
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()

		bars = append(bars, store.PriceBar{
			Ticker:   ticker,
			Date:     time.Unix(int64(bar.Timestamp), 0).UTC().Format(calendar.DateLayout),
			Open:     bar.Open.InexactFloat64(),
			High:     bar.High.InexactFloat64(),
			Low:      bar.Low.InexactFloat64(),
			Close:    bar.Close.InexactFloat64(),
			Volume:   int64(bar.Volume),
			AdjClose: sql.NullFloat64{Float64: bar.AdjClose.InexactFloat64(), Valid: true},
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}

	return bars, nil
}

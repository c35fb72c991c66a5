// Package dataset turns collected prices into supervised-learning
// artifacts: next-day labels and the chronological train/val/test split.
package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/marketml/stockpipe/internal/store"
)

// LabelGenerator derives next-trading-day labels from persisted bars.
// For each consecutive bar pair (t, t+1) within one ticker it writes
// label_binary = 1 when close[t+1] > close[t], else 0, and pct_return
// as the fractional change. The last bar never receives a label.
type LabelGenerator struct {
	store *store.Store
	log   zerolog.Logger
}

func NewLabelGenerator(st *store.Store, log zerolog.Logger) *LabelGenerator {
	return &LabelGenerator{
		store: st,
		log:   log.With().Str("component", "label_generator").Logger(),
	}
}

// Generate computes labels for every ticker and returns the number of new
// rows written. Existing (ticker, date) labels are left untouched, so the
// operation is idempotent and safe to re-run after each collection.
func (g *LabelGenerator) Generate(ctx context.Context, tickers []string) (int, error) {
	total := 0
	for _, raw := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" {
			continue
		}

		n, err := g.generateOne(ctx, ticker)
		if err != nil {
			return total, fmt.Errorf("labels for %s: %w", ticker, err)
		}
		total += n
	}

	g.log.Info().Int("labels_added", total).Msg("label generation finished")
	return total, nil
}

func (g *LabelGenerator) generateOne(ctx context.Context, ticker string) (int, error) {
	bars, err := g.store.PriceBars(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if len(bars) < 2 {
		g.log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("not enough bars to label")
		return 0, nil
	}

	added := 0
	for i := 0; i+1 < len(bars); i++ {
		cur, next := bars[i], bars[i+1]
		if cur.Close == 0 {
			g.log.Warn().Str("ticker", ticker).Str("date", cur.Date).Msg("zero close, skipping label")
			continue
		}

		label := store.Label{
			Ticker:      ticker,
			Date:        cur.Date,
			LabelBinary: 0,
			PctReturn:   pctReturn(cur.Close, next.Close),
		}
		if next.Close > cur.Close {
			label.LabelBinary = 1
		}

		inserted, err := g.store.InsertLabel(ctx, label)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

// pctReturn computes (next - cur) / cur with decimal arithmetic so the
// stored fraction does not accumulate float subtraction noise.
func pctReturn(cur, next float64) float64 {
	c := decimal.NewFromFloat(cur)
	n := decimal.NewFromFloat(next)
	f, _ := n.Sub(c).Div(c).Float64()
	return f
}

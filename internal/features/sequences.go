package features

import (
	"fmt"
	"time"

	"github.com/marketml/stockpipe/internal/calendar"
	"github.com/marketml/stockpipe/internal/store"
)

// SequenceSample is one sliding window of normalized feature rows. Window
// is window-length x feature-count, oldest row first; EndDate is the date
// of the final row.
type SequenceSample struct {
	Ticker  string
	EndDate string
	Window  [][]float64
}

// LabeledSequence pairs a window with the next-day outcome of its end date.
type LabeledSequence struct {
	SequenceSample
	Label     int
	PctReturn float64
}

// SequenceGenerator slides a fixed-length window over indicator rows with
// stride one. Windows never span a calendar gap: every adjacent pair of
// rows inside a window must be consecutive trading days.
type SequenceGenerator struct {
	window int
	cal    *calendar.TradingCalendar
}

func NewSequenceGenerator(window int, cal *calendar.TradingCalendar) *SequenceGenerator {
	return &SequenceGenerator{window: window, cal: cal}
}

// Generate produces every valid window over the rows, which must be
// chronologically ordered for a single ticker.
func (g *SequenceGenerator) Generate(rows []IndicatorRow) ([]SequenceSample, error) {
	if len(rows) < g.window {
		return nil, nil
	}

	runLen, err := g.contiguousRuns(rows)
	if err != nil {
		return nil, err
	}

	var samples []SequenceSample
	for end := g.window - 1; end < len(rows); end++ {
		if runLen[end] < g.window {
			continue
		}
		start := end - g.window + 1

		window := make([][]float64, 0, g.window)
		for i := start; i <= end; i++ {
			window = append(window, rows[i].Features())
		}
		normalizeWindow(window)

		samples = append(samples, SequenceSample{
			Ticker:  rows[end].Ticker,
			EndDate: rows[end].Date,
			Window:  window,
		})
	}
	return samples, nil
}

// GenerateLabeled joins windows against labels on the window's end date.
// Windows whose end date has no label (the newest bar) are dropped.
func (g *SequenceGenerator) GenerateLabeled(rows []IndicatorRow, labels []store.Label) ([]LabeledSequence, error) {
	samples, err := g.Generate(rows)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]store.Label, len(labels))
	for _, l := range labels {
		byDate[l.Date] = l
	}

	var out []LabeledSequence
	for _, s := range samples {
		l, ok := byDate[s.EndDate]
		if !ok {
			continue
		}
		out = append(out, LabeledSequence{
			SequenceSample: s,
			Label:          l.LabelBinary,
			PctReturn:      l.PctReturn,
		})
	}
	return out, nil
}

// contiguousRuns returns, for each row, the length of the run of
// consecutive trading days ending at that row.
func (g *SequenceGenerator) contiguousRuns(rows []IndicatorRow) ([]int, error) {
	runLen := make([]int, len(rows))
	runLen[0] = 1

	prev, err := time.ParseInLocation(calendar.DateLayout, rows[0].Date, g.cal.Location())
	if err != nil {
		return nil, fmt.Errorf("parse row date %q: %w", rows[0].Date, err)
	}

	for i := 1; i < len(rows); i++ {
		cur, err := time.ParseInLocation(calendar.DateLayout, rows[i].Date, g.cal.Location())
		if err != nil {
			return nil, fmt.Errorf("parse row date %q: %w", rows[i].Date, err)
		}

		next, err := g.cal.NextTradingDay(prev)
		if err != nil {
			return nil, err
		}
		if next.Format(calendar.DateLayout) == rows[i].Date {
			runLen[i] = runLen[i-1] + 1
		} else {
			runLen[i] = 1
		}
		prev = cur
	}
	return runLen, nil
}

// normalizeWindow min-max scales each feature column to [0, 1] using the
// window's own extrema. A constant column scales to all zeros.
func normalizeWindow(window [][]float64) {
	if len(window) == 0 {
		return
	}
	cols := len(window[0])

	for c := 0; c < cols; c++ {
		min, max := window[0][c], window[0][c]
		for _, row := range window {
			if row[c] < min {
				min = row[c]
			}
			if row[c] > max {
				max = row[c]
			}
		}
		span := max - min
		if span == 0 {
			span = 1
		}
		for _, row := range window {
			row[c] = (row[c] - min) / span
		}
	}
}

package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketml/stockpipe/internal/store"
)

// ErrInsufficientData is returned when there are too few distinct dates to
// form three non-empty partitions.
var ErrInsufficientData = errors.New("not enough distinct dates to split")

// SplitAssignment is the chronological train/val/test partition over
// distinct trading dates. Every input date lands in exactly one slice and
// ordering is preserved: all train dates precede all validation dates,
// which precede all test dates.
type SplitAssignment struct {
	TrainDates []string  `json:"train_dates"`
	ValDates   []string  `json:"val_dates"`
	TestDates  []string  `json:"test_dates"`
	CreatedAt  time.Time `json:"created_at"`
}

// Splitter assigns dates to partitions and snapshots the assignment to the
// processed-data directory so downstream training reuses the exact split.
type Splitter struct {
	store        *store.Store
	processedDir string
	trainRatio   float64
	valRatio     float64
	log          zerolog.Logger
}

func NewSplitter(st *store.Store, processedDir string, trainRatio, valRatio float64, log zerolog.Logger) *Splitter {
	return &Splitter{
		store:        st,
		processedDir: processedDir,
		trainRatio:   trainRatio,
		valRatio:     valRatio,
		log:          log.With().Str("component", "splitter").Logger(),
	}
}

// Split partitions all distinct collected dates and writes the snapshot.
func (sp *Splitter) Split(ctx context.Context) (*SplitAssignment, error) {
	dates, err := sp.store.DistinctPriceDates(ctx)
	if err != nil {
		return nil, err
	}

	assignment, err := sp.Assign(dates)
	if err != nil {
		return nil, err
	}

	if err := sp.snapshot(assignment); err != nil {
		return nil, err
	}

	sp.log.Info().
		Int("train", len(assignment.TrainDates)).
		Int("val", len(assignment.ValDates)).
		Int("test", len(assignment.TestDates)).
		Msg("split written")
	return assignment, nil
}

// Assign partitions the given dates chronologically. The same date list
// always produces the same assignment.
func (sp *Splitter) Assign(dates []string) (*SplitAssignment, error) {
	if len(dates) < 3 {
		return nil, fmt.Errorf("%w: have %d, need at least 3", ErrInsufficientData, len(dates))
	}

	sorted := make([]string, len(dates))
	copy(sorted, dates)
	sort.Strings(sorted)

	n := len(sorted)
	trainEnd := int(float64(n) * sp.trainRatio)
	valEnd := int(float64(n) * (sp.trainRatio + sp.valRatio))

	// Every partition must hold at least one date.
	if trainEnd < 1 {
		trainEnd = 1
	}
	if valEnd <= trainEnd {
		valEnd = trainEnd + 1
	}
	if valEnd > n-1 {
		valEnd = n - 1
	}
	if trainEnd >= valEnd {
		trainEnd = valEnd - 1
	}

	return &SplitAssignment{
		TrainDates: sorted[:trainEnd],
		ValDates:   sorted[trainEnd:valEnd],
		TestDates:  sorted[valEnd:],
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// snapshot persists the assignment as JSON named after the covered range.
func (sp *Splitter) snapshot(a *SplitAssignment) error {
	if sp.processedDir == "" {
		return nil
	}
	if err := os.MkdirAll(sp.processedDir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}

	first := a.TrainDates[0]
	last := a.TestDates[len(a.TestDates)-1]
	path := filepath.Join(sp.processedDir, fmt.Sprintf("split_%s_%s.json", first, last))

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal split: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write split snapshot: %w", err)
	}
	return nil
}

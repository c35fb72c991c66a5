// Package collect fetches daily prices and news headlines into the store.
// Both collectors satisfy the same Collector capability; each invocation is
// idempotent against the store and appends exactly one run_log record.
package collect

import (
	"context"
	"sort"
)

// Collector is the shared capability of the price and news collectors:
// fetch `days` worth of data for the given tickers and persist it.
type Collector interface {
	Collect(ctx context.Context, tickers []string, days int) (*Result, error)
}

// Result accounts for every row a collection run touched. A ticker failure
// never aborts the batch; failed tickers and their errors are reported here
// and in the run_log.
type Result struct {
	Succeeded         []string
	Failed            []string
	RowsAdded         int
	DuplicatesSkipped int
	Errors            map[string]string
}

func newResult() *Result {
	return &Result{Errors: make(map[string]string)}
}

// Status is "success" when every ticker succeeded, otherwise "partial".
func (r *Result) Status() string {
	if len(r.Failed) == 0 {
		return "success"
	}
	return "partial"
}

func (r *Result) finish() *Result {
	sort.Strings(r.Succeeded)
	sort.Strings(r.Failed)
	return r
}

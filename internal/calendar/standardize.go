package calendar

import (
	"fmt"
	"time"
)

// dateLayouts are the textual encodings StandardizeDate accepts, most
// specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
	"01/02/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Standardizer normalizes provider dates and timestamps into the market's
// local time and maps publish instants to prediction dates.
type Standardizer struct {
	cal        *TradingCalendar
	cutoffHour int
}

// NewStandardizer builds a standardizer for the given calendar and
// market-close hour (local time, 24h clock).
func NewStandardizer(cal *TradingCalendar, cutoffHour int) *Standardizer {
	return &Standardizer{cal: cal, cutoffHour: cutoffHour}
}

// StandardizeDate converts any supported date encoding into YYYY-MM-DD.
func (s *Standardizer) StandardizeDate(value string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, s.cal.Location()); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrMalformedDate, value)
}

// StandardizeTimestampUnix converts Unix seconds to an instant in the
// market's local time.
func (s *Standardizer) StandardizeTimestampUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(s.cal.Location())
}

// StandardizeTimestamp converts a textual timestamp to an instant in the
// market's local time. Inputs without an offset are taken as UTC.
func (s *Standardizer) StandardizeTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(s.cal.Location()), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", DateLayout} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.In(s.cal.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, value)
}

// ApplyCutoffRule maps a publish instant to the first trading day its
// information could influence:
//
//   - before the cutoff on trading day T: the next trading day after T
//   - at or after the cutoff on trading day T: the trading day after that
//   - on a non-trading day: the next trading session
//
// The result is never a weekend or holiday date.
func (s *Standardizer) ApplyCutoffRule(publishedAt time.Time) (string, error) {
	local := publishedAt.In(s.cal.Location())

	if !s.cal.IsTradingDay(local) {
		next, err := s.cal.NextTradingDay(local)
		if err != nil {
			return "", err
		}
		return next.Format(DateLayout), nil
	}

	next, err := s.cal.NextTradingDay(local)
	if err != nil {
		return "", err
	}
	if local.Hour() >= s.cutoffHour {
		next, err = s.cal.NextTradingDay(next)
		if err != nil {
			return "", err
		}
	}
	return next.Format(DateLayout), nil
}

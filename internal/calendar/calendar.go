// Package calendar holds the trading-day calendar and the date/timestamp
// standardization rules every other component leans on. The cutoff rule lives
// here because it is the leakage boundary between news and prediction dates.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date encoding used across the store.
const DateLayout = "2006-01-02"

// nextTradingDayHorizon bounds the forward scan for the next open session.
// No real market closes for this long; hitting it means a broken holiday set.
const nextTradingDayHorizon = 30

var (
	// ErrMalformedDate reports an input no supported layout could parse.
	ErrMalformedDate = errors.New("calendar: malformed date")

	// ErrNoTradingDay reports that no trading day exists within the bounded
	// forward horizon.
	ErrNoTradingDay = errors.New("calendar: no trading day within horizon")
)

// TradingCalendar answers which calendar dates the market is open on.
// Weekends are always closed; holidays come from configuration.
type TradingCalendar struct {
	loc      *time.Location
	holidays map[string]struct{}
}

// New builds a calendar for the given IANA timezone and holiday list
// (YYYY-MM-DD strings).
func New(timezone string, holidays []string) (*TradingCalendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone %s: %w", timezone, err)
	}

	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if _, err := time.Parse(DateLayout, h); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, ErrMalformedDate)
		}
		set[h] = struct{}{}
	}

	return &TradingCalendar{loc: loc, holidays: set}, nil
}

// Location returns the market's local timezone.
func (c *TradingCalendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether the market is open on t's calendar date,
// interpreted in the market's local time.
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[local.Format(DateLayout)]
	return !holiday
}

// NextTradingDay returns the first open session strictly after t's date.
func (c *TradingCalendar) NextTradingDay(t time.Time) (time.Time, error) {
	day := t.In(c.loc)
	for i := 0; i < nextTradingDayHorizon; i++ {
		day = day.AddDate(0, 0, 1)
		if c.IsTradingDay(day) {
			return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("after %s: %w", t.Format(DateLayout), ErrNoTradingDay)
}

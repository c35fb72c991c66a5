package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testStandardizer(t *testing.T) *Standardizer {
	t.Helper()
	return NewStandardizer(testCalendar(t), 16)
}

func TestStandardizeDate(t *testing.T) {
	std := testStandardizer(t)

	cases := []struct {
		in   string
		want string
	}{
		{"2026-02-07", "2026-02-07"},
		{"February 7, 2026", "2026-02-07"},
		{"02/07/2026", "2026-02-07"},
		{"2026-02-07T14:13:00-05:00", "2026-02-07"},
	}
	for _, tc := range cases {
		got, err := std.StandardizeDate(tc.in)
		if err != nil {
			t.Fatalf("StandardizeDate(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("StandardizeDate(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestStandardizeDateMalformed(t *testing.T) {
	std := testStandardizer(t)
	if _, err := std.StandardizeDate("the seventh of never"); !errors.Is(err, ErrMalformedDate) {
		t.Fatalf("expected ErrMalformedDate, got %v", err)
	}
}

func TestStandardizeTimestampUnix(t *testing.T) {
	std := testStandardizer(t)

	// 2024-02-07 15:13:00 UTC == 10:13 ET.
	got := std.StandardizeTimestampUnix(1707318780)
	iso := got.Format(time.RFC3339)
	if !strings.HasPrefix(iso, "2024-02-07") {
		t.Fatalf("expected ET date 2024-02-07, got %s", iso)
	}
	if !strings.HasSuffix(iso, "-05:00") && !strings.HasSuffix(iso, "-04:00") {
		t.Fatalf("expected explicit ET offset, got %s", iso)
	}
}

func TestStandardizeTimestampNaiveIsUTC(t *testing.T) {
	std := testStandardizer(t)

	got, err := std.StandardizeTimestamp("2026-02-09 18:30:00")
	if err != nil {
		t.Fatalf("StandardizeTimestamp: %v", err)
	}
	if got.Hour() != 13 { // 18:30 UTC == 13:30 EST
		t.Fatalf("expected 13:30 ET, got %s", got.Format(time.RFC3339))
	}
}

func TestCutoffBeforeClose(t *testing.T) {
	std := testStandardizer(t)

	// Monday 2 PM ET predicts Tuesday.
	pub, _ := time.Parse(time.RFC3339, "2026-02-09T14:00:00-05:00")
	got, err := std.ApplyCutoffRule(pub)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if got != "2026-02-10" {
		t.Fatalf("expected 2026-02-10, got %s", got)
	}
}

func TestCutoffAfterClose(t *testing.T) {
	std := testStandardizer(t)

	// Monday 5 PM ET predicts Wednesday.
	pub, _ := time.Parse(time.RFC3339, "2026-02-09T17:00:00-05:00")
	got, err := std.ApplyCutoffRule(pub)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if got != "2026-02-11" {
		t.Fatalf("expected 2026-02-11, got %s", got)
	}
}

func TestCutoffFridayCrossesWeekend(t *testing.T) {
	std := testStandardizer(t)

	// Friday 3 PM maps to Monday, Friday 5 PM to Tuesday.
	before, _ := time.Parse(time.RFC3339, "2026-02-06T15:00:00-05:00")
	after, _ := time.Parse(time.RFC3339, "2026-02-06T17:00:00-05:00")

	gotBefore, err := std.ApplyCutoffRule(before)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if gotBefore != "2026-02-09" {
		t.Fatalf("expected 2026-02-09, got %s", gotBefore)
	}

	gotAfter, err := std.ApplyCutoffRule(after)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if gotAfter != "2026-02-10" {
		t.Fatalf("expected 2026-02-10, got %s", gotAfter)
	}
}

func TestCutoffPreHolidayFridayAfterHours(t *testing.T) {
	std := testStandardizer(t)

	// Friday 5 PM before a holiday Monday: next session is Tuesday, and the
	// after-hours publication rolls one more to Wednesday.
	pub, _ := time.Parse(time.RFC3339, "2026-02-13T17:00:00-05:00")
	got, err := std.ApplyCutoffRule(pub)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if got != "2026-02-18" {
		t.Fatalf("expected 2026-02-18, got %s", got)
	}
}

func TestCutoffNonTradingDayPublication(t *testing.T) {
	std := testStandardizer(t)

	// Saturday publication, any hour, maps to Monday.
	pub, _ := time.Parse(time.RFC3339, "2026-02-07T21:00:00-05:00")
	got, err := std.ApplyCutoffRule(pub)
	if err != nil {
		t.Fatalf("ApplyCutoffRule: %v", err)
	}
	if got != "2026-02-09" {
		t.Fatalf("expected 2026-02-09, got %s", got)
	}
}

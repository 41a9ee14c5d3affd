package usage

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	cases := map[string]struct {
		want Period
		ok   bool
	}{
		"":      {PeriodDay, true},
		"day":   {PeriodDay, true},
		"month": {PeriodMonth, true},
		"year":  {"", false},
	}
	for in, tc := range cases {
		got, ok := ParsePeriod(in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParsePeriod(%q) = %q, %v; want %q, %v", in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPeriodBounds(t *testing.T) {
	now := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

	start, end := PeriodDay.Bounds(now)
	if !start.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day start = %v", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("day length = %v", end.Sub(start))
	}

	start, end = PeriodMonth.Bounds(now)
	if !start.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month end = %v", end)
	}
}

func TestCounterKey(t *testing.T) {
	at := time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)
	if got := CounterKey(ServiceEmbedding, PeriodDay, at); got != "rc:usage:embedding:daily:2026-10-17" {
		t.Errorf("daily key = %q", got)
	}
	if got := CounterKey(ServiceQuerySummary, PeriodMonth, at); got != "rc:usage:query_summary:monthly:2026-10" {
		t.Errorf("monthly key = %q", got)
	}
}

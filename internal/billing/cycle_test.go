package billing

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestNextRenewal(t *testing.T) {
	base := date(2026, time.January, 15)

	tests := []struct {
		name     string
		current  time.Time
		cycle    Cycle
		interval *int
		want     time.Time
	}{
		{"monthly", base, Monthly, nil, date(2026, time.February, 15)},
		{"quarterly", base, Quarterly, nil, date(2026, time.April, 15)},
		{"yearly", base, Yearly, nil, date(2027, time.January, 15)},
		{"custom 45 days", base, Custom, intPtr(45), date(2026, time.March, 1)},
		{"custom without interval", base, Custom, nil, base},
		{"monthly clamps to short month", date(2026, time.January, 31), Monthly, nil, date(2026, time.February, 28)},
		{"monthly clamps in leap year", date(2028, time.January, 31), Monthly, nil, date(2028, time.February, 29)},
		{"quarterly clamps", date(2026, time.November, 30), Quarterly, nil, date(2027, time.February, 28)},
		{"yearly from leap day", date(2028, time.February, 29), Yearly, nil, date(2029, time.February, 28)},
		{"monthly across year end", date(2026, time.December, 10), Monthly, nil, date(2027, time.January, 10)},
		{"time of day is dropped", time.Date(2026, time.January, 15, 23, 59, 0, 0, time.UTC), Monthly, nil, date(2026, time.February, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRenewal(tt.current, tt.cycle, tt.interval)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.want.Equal(got) {
				t.Errorf("got %s, want %s", got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestNextRenewal_UnknownCycle(t *testing.T) {
	_, err := NextRenewal(date(2026, time.January, 15), Cycle("weekly"), nil)
	if !errors.Is(err, ErrUnknownCycle) {
		t.Errorf("expected ErrUnknownCycle, got %v", err)
	}
}

func TestCycleValid(t *testing.T) {
	for _, c := range []Cycle{Monthly, Quarterly, Yearly, Custom} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Cycle{"", "biweekly"} {
		if c.Valid() {
			t.Errorf("%q should not be valid", c)
		}
	}
}

func TestIsStatic(t *testing.T) {
	if !IsStatic(Custom, nil) {
		t.Error("custom without interval is static")
	}
	if IsStatic(Custom, intPtr(30)) {
		t.Error("custom with interval is not static")
	}
	if IsStatic(Monthly, nil) {
		t.Error("monthly is not static")
	}
}

func TestDaysUntil(t *testing.T) {
	today := date(2026, time.October, 19)

	tests := []struct {
		date time.Time
		want int
	}{
		{today, 0},
		{date(2026, time.October, 20), 1},
		{date(2026, time.October, 26), 7},
		{date(2026, time.October, 16), -3},
		{date(2027, time.October, 19), 365},
	}

	for _, tt := range tests {
		if got := DaysUntil(tt.date, today); got != tt.want {
			t.Errorf("DaysUntil(%s) = %d, want %d", tt.date.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestToday_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2026, time.October, 19, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want time.Time
	}{
		{"utc", time.UTC, date(2026, time.October, 19)},
		{"tokyo", tokyo, date(2026, time.October, 20)},
		{"nil defaults to utc", nil, date(2026, time.October, 19)},
	}

	for _, tt := range tests {
		if got := Today(now, tt.loc); !tt.want.Equal(got) {
			t.Errorf("%s: got %s, want %s", tt.name, got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
		}
	}
}

func TestDayWindow(t *testing.T) {
	start, end := DayWindow(date(2026, time.October, 19), time.UTC)
	if !start.Equal(date(2026, time.October, 19)) {
		t.Errorf("unexpected window start %s", start)
	}
	if !end.Equal(date(2026, time.October, 20)) {
		t.Errorf("unexpected window end %s", end)
	}
}

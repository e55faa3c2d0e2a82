package domain

import (
	"testing"
	"time"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{"plain step", Date(2025, 1, 15), 1, Date(2025, 2, 15)},
		{"jan 31 non-leap", Date(2025, 1, 31), 1, Date(2025, 2, 28)},
		{"jan 31 leap", Date(2024, 1, 31), 1, Date(2024, 2, 29)},
		{"jan 31 two months", Date(2025, 1, 31), 2, Date(2025, 3, 31)},
		{"aug 31 to sep", Date(2025, 8, 31), 1, Date(2025, 9, 30)},
		{"year rollover", Date(2025, 12, 31), 2, Date(2026, 2, 28)},
		{"quarter from may 31", Date(2025, 5, 31), 3, Date(2025, 8, 31)},
		{"backwards", Date(2025, 3, 31), -1, Date(2025, 2, 28)},
		{"backwards across year", Date(2025, 1, 10), -13, Date(2023, 12, 10)},
		{"strips time of day", time.Date(2025, 1, 31, 18, 45, 0, 0, time.UTC), 1, Date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamped(tt.start, tt.n)
			if !got.Equal(tt.want) {
				t.Fatalf("AddMonthsClamped(%s, %d) = %s, want %s", FormatDate(tt.start), tt.n, FormatDate(got), FormatDate(tt.want))
			}
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2024, time.February); got != 29 {
		t.Errorf("Feb 2024 = %d, want 29", got)
	}
	if got := DaysInMonth(2100, time.February); got != 28 {
		t.Errorf("Feb 2100 = %d, want 28", got)
	}
	if got := DaysInMonth(2025, time.December); got != 31 {
		t.Errorf("Dec 2025 = %d, want 31", got)
	}
}

func TestEachDate(t *testing.T) {
	var dates []time.Time
	EachDate(Date(2025, 2, 27), Date(2025, 3, 2), func(d time.Time) {
		dates = append(dates, d)
	})

	if len(dates) != 4 {
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	if !dates[2].Equal(Date(2025, 3, 1)) {
		t.Fatalf("expected third date 2025-03-01, got %s", FormatDate(dates[2]))
	}

	var none int
	EachDate(Date(2025, 3, 2), Date(2025, 3, 1), func(time.Time) { none++ })
	if none != 0 {
		t.Fatalf("expected empty iteration for reversed range, got %d", none)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(Date(2025, 6, 30)) {
		t.Fatalf("got %s", d)
	}
	if _, err := ParseDate("30/06/2025"); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(Date(2025, 1, 1), Date(2025, 3, 1)); got != 59 {
		t.Fatalf("expected 59 days, got %d", got)
	}
	if got := DaysBetween(Date(2025, 3, 1), Date(2025, 1, 1)); got != -59 {
		t.Fatalf("expected -59 days, got %d", got)
	}
}

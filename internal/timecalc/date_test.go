package timecalc_test

import (
	"testing"
	"time"

	"github.com/christopherklint97/sitehours/internal/timecalc"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.January, 31},
		{2025, time.February, 28},
		{2024, time.February, 29},
		{2025, time.April, 30},
	}
	for _, tt := range tests {
		if got := timecalc.DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %s) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestIsWeekend(t *testing.T) {
	// 2025-03-08 is a Saturday.
	sat := timecalc.Date{Year: 2025, Month: time.March, Day: 8}
	mon := timecalc.Date{Year: 2025, Month: time.March, Day: 10}
	if !sat.IsWeekend() {
		t.Error("expected Saturday to be weekend")
	}
	if mon.IsWeekend() {
		t.Error("expected Monday not to be weekend")
	}
}

func TestParseDate(t *testing.T) {
	d, err := timecalc.ParseDate("2025-03-05T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2025-03-05" {
		t.Errorf("ParseDate = %s, want 2025-03-05", d)
	}
	if _, err := timecalc.ParseDate("05/03/2025"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := timecalc.ParseTimeOfDay("18:00")
	if err != nil || got != 18*time.Hour {
		t.Errorf("ParseTimeOfDay(18:00) = %v, %v", got, err)
	}
	for _, bad := range []string{"1800", "25:00", "12:61", ""} {
		if _, err := timecalc.ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) expected error", bad)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{480, "8h 0m"},
		{450, "7h 30m"},
	}
	for _, tt := range tests {
		if got := timecalc.FormatMinutes(tt.minutes); got != tt.want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

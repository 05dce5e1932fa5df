package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// parsePeriod accepts "2025-03", "03/2025" or a natural phrase such as
// "last month". An empty value is the month containing now.
func parsePeriod(s string, now time.Time) (timesheet.Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return timesheet.PeriodOf(now), nil
	}
	for _, layout := range []string{"2006-01", "01/2006", "2006/01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return timesheet.PeriodOf(t), nil
		}
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return timesheet.Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if t.Equal(now) && !strings.EqualFold(s, "now") && !strings.EqualFold(s, "today") {
		return timesheet.Period{}, fmt.Errorf("invalid period %q, use YYYY-MM or a phrase like \"last month\"", s)
	}
	return timesheet.PeriodOf(t), nil
}

package main

import (
	"fmt"
	"time"
)

// parseHours converts a duration like "7h30m" or "45m" to whole minutes.
func parseHours(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --hours %q: %w", s, err)
	}
	if d <= 0 || d%time.Minute != 0 {
		return 0, fmt.Errorf("invalid --hours %q: must be a positive whole number of minutes", s)
	}
	return int(d / time.Minute), nil
}

package timecalc

import (
	"sort"
	"time"
)

// DefaultCutoff closes a dangling entry when no exit was recorded.
const DefaultCutoff = 18 * time.Hour

type EventKind string

const (
	Entry EventKind = "entrada"
	Exit  EventKind = "saida"
)

// ClockEvent is a single badge/clock reading for a worker at a site.
type ClockEvent struct {
	WorkerID  int
	SiteID    int
	Timestamp time.Time
	Kind      EventKind
}

// Session is one paired entry/exit. Implicit sessions were closed at the cutoff.
type Session struct {
	WorkerID int
	SiteID   int
	Date     Date
	Start    time.Time
	End      time.Time
	Minutes  int
	Implicit bool
}

// SiteDay keys derived minutes by site and calendar day.
type SiteDay struct {
	SiteID int
	Date   Date
}

// Sessions pairs each entry with the next exit of the same calendar day.
// A repeated entry while a session is open is ignored, as is an exit with
// no open entry. A trailing entry is closed at cutoff when it started before
// it, otherwise it contributes nothing. Sessions are attributed to the site
// of their entry event.
func Sessions(events []ClockEvent, cutoff time.Duration) []Session {
	byDate := make(map[Date][]ClockEvent)
	var dates []Date
	for _, e := range events {
		d := DateOf(e.Timestamp)
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], e)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].String() < dates[j].String() })

	var sessions []Session
	for _, d := range dates {
		day := byDate[d]
		sort.SliceStable(day, func(i, j int) bool { return day[i].Timestamp.Before(day[j].Timestamp) })

		var open *ClockEvent
		for i := range day {
			e := day[i]
			switch e.Kind {
			case Entry:
				if open == nil {
					open = &day[i]
				}
			case Exit:
				if open == nil {
					continue
				}
				sessions = append(sessions, newSession(*open, e.Timestamp, d, false))
				open = nil
			}
		}

		if open != nil {
			end := d.At(cutoff, open.Timestamp.Location())
			if open.Timestamp.Before(end) {
				sessions = append(sessions, newSession(*open, end, d, true))
			}
		}
	}
	return sessions
}

func newSession(entry ClockEvent, end time.Time, d Date, implicit bool) Session {
	minutes := int(end.Sub(entry.Timestamp) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return Session{
		WorkerID: entry.WorkerID,
		SiteID:   entry.SiteID,
		Date:     d,
		Start:    entry.Timestamp,
		End:      end,
		Minutes:  minutes,
		Implicit: implicit,
	}
}

// DailyMinutes sums worked minutes per calendar day across all sites.
func DailyMinutes(events []ClockEvent, cutoff time.Duration) map[Date]int {
	out := make(map[Date]int)
	for _, s := range Sessions(events, cutoff) {
		out[s.Date] += s.Minutes
	}
	return out
}

// SiteDailyMinutes sums worked minutes per (site, calendar day).
func SiteDailyMinutes(events []ClockEvent, cutoff time.Duration) map[SiteDay]int {
	out := make(map[SiteDay]int)
	for _, s := range Sessions(events, cutoff) {
		out[SiteDay{SiteID: s.SiteID, Date: s.Date}] += s.Minutes
	}
	return out
}

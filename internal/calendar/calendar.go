package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	ical "github.com/emersion/go-ical"

	"github.com/christopherklint97/sitehours/internal/timecalc"
)

// Decode reads clock sessions exported as iCalendar events. Each VEVENT
// is one session: SUMMARY holds the worker id, LOCATION the site id,
// DTSTART the entry and DTEND the exit. An event without DTEND yields a
// lone entry, closed later by the duration cutoff.
func Decode(r io.Reader) ([]timecalc.ClockEvent, error) {
	dec := ical.NewDecoder(r)
	var events []timecalc.ClockEvent

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			summary, _ := event.Props.Text(ical.PropSummary)
			workerID, err := strconv.Atoi(strings.TrimSpace(summary))
			if err != nil {
				continue // not a clock session
			}
			location, _ := event.Props.Text(ical.PropLocation)
			siteID, err := strconv.Atoi(strings.TrimSpace(location))
			if err != nil {
				continue
			}

			start, err := event.DateTimeStart(nil)
			if err != nil {
				continue // skip malformed events
			}
			events = append(events, timecalc.ClockEvent{WorkerID: workerID, SiteID: siteID, Timestamp: start, Kind: timecalc.Entry})

			if event.Props.Get(ical.PropDateTimeEnd) == nil {
				continue
			}
			end, err := event.DateTimeEnd(nil)
			if err != nil {
				continue
			}
			events = append(events, timecalc.ClockEvent{WorkerID: workerID, SiteID: siteID, Timestamp: end, Kind: timecalc.Exit})
		}
	}

	return events, nil
}

// Source serves clock events from an iCalendar file or URL. The export is
// read once and indexed by (worker, day).
type Source struct {
	location string

	once   sync.Once
	err    error
	events map[int]map[timecalc.Date][]timecalc.ClockEvent
}

func NewSource(location string) *Source {
	return &Source{location: location}
}

func (s *Source) load(ctx context.Context) {
	r, err := open(ctx, s.location)
	if err != nil {
		s.err = err
		return
	}
	defer r.Close()

	events, err := Decode(r)
	if err != nil {
		s.err = err
		return
	}
	s.events = make(map[int]map[timecalc.Date][]timecalc.ClockEvent)
	for _, e := range events {
		byDay, ok := s.events[e.WorkerID]
		if !ok {
			byDay = make(map[timecalc.Date][]timecalc.ClockEvent)
			s.events[e.WorkerID] = byDay
		}
		d := timecalc.DateOf(e.Timestamp)
		byDay[d] = append(byDay[d], e)
	}
}

// ClockEvents returns the events of one worker on one day.
func (s *Source) ClockEvents(ctx context.Context, workerID int, day timecalc.Date) ([]timecalc.ClockEvent, error) {
	s.once.Do(func() { s.load(ctx) })
	if s.err != nil {
		return nil, s.err
	}
	src := s.events[workerID][day]
	out := make([]timecalc.ClockEvent, len(src))
	copy(out, src)
	return out, nil
}

func open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	return f, nil
}

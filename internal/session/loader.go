package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// ClockSource returns the raw clock readings of one worker on one day.
type ClockSource interface {
	ClockEvents(ctx context.Context, workerID int, day timecalc.Date) ([]timecalc.ClockEvent, error)
}

// LoaderOptions bounds the fan-out of clock loading. Work is split into
// chunks of WorkerChunk workers by DayChunk days, and at most Parallelism
// chunks run at once.
type LoaderOptions struct {
	WorkerChunk int
	DayChunk    int
	Parallelism int
	Cutoff      time.Duration
}

func (o LoaderOptions) withDefaults() LoaderOptions {
	if o.WorkerChunk <= 0 {
		o.WorkerChunk = 10
	}
	if o.DayChunk <= 0 {
		o.DayChunk = 7
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.Cutoff <= 0 {
		o.Cutoff = timecalc.DefaultCutoff
	}
	return o
}

type chunk struct {
	workers  []identity.Identity
	firstDay int
	lastDay  int
}

func chunks(workers []identity.Identity, days int, o LoaderOptions) []chunk {
	var out []chunk
	for w := 0; w < len(workers); w += o.WorkerChunk {
		end := min(w+o.WorkerChunk, len(workers))
		for d := 1; d <= days; d += o.DayChunk {
			out = append(out, chunk{
				workers:  workers[w:end],
				firstDay: d,
				lastDay:  min(d+o.DayChunk-1, days),
			})
		}
	}
	return out
}

// LoadClock fetches clock events for every internal worker on every day of
// p and reduces them to per-site daily minutes. Chunk results are merged in
// chunk order, so the output does not depend on scheduling.
func LoadClock(ctx context.Context, src ClockSource, workers []identity.Identity, p timesheet.Period, o LoaderOptions) ([]timesheet.ClockRow, error) {
	o = o.withDefaults()

	var internal []identity.Identity
	for _, w := range workers {
		if w.Kind == identity.Internal {
			internal = append(internal, w)
		}
	}
	sort.Slice(internal, func(i, j int) bool { return internal[i].WorkerID < internal[j].WorkerID })

	parts := chunks(internal, p.Days(), o)
	results := make([][]timesheet.ClockRow, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Parallelism)
	for i, c := range parts {
		i, c := i, c
		g.Go(func() error {
			rows, err := loadChunk(ctx, src, c, p, o.Cutoff)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []timesheet.ClockRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, nil
}

func loadChunk(ctx context.Context, src ClockSource, c chunk, p timesheet.Period, cutoff time.Duration) ([]timesheet.ClockRow, error) {
	var rows []timesheet.ClockRow
	for _, w := range c.workers {
		for day := c.firstDay; day <= c.lastDay; day++ {
			events, err := src.ClockEvents(ctx, w.WorkerID, p.Date(day))
			if err != nil {
				return nil, fmt.Errorf("clock events for worker %d on %s: %w", w.WorkerID, p.Date(day), err)
			}
			if len(events) == 0 {
				continue
			}
			perSite := timecalc.SiteDailyMinutes(events, cutoff)
			sites := make([]timecalc.SiteDay, 0, len(perSite))
			for sd := range perSite {
				sites = append(sites, sd)
			}
			sort.Slice(sites, func(i, j int) bool { return sites[i].SiteID < sites[j].SiteID })
			for _, sd := range sites {
				if !p.Contains(sd.Date) || perSite[sd] == 0 {
					continue
				}
				rows = append(rows, timesheet.ClockRow{Worker: w, SiteID: sd.SiteID, Day: sd.Date.Day, Minutes: perSite[sd]})
			}
		}
	}
	return rows, nil
}

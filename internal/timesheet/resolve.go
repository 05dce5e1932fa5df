package timesheet

import (
	"github.com/christopherklint97/sitehours/internal/identity"
)

// ClockRow is clock-derived minutes for one (worker, site, day).
type ClockRow struct {
	Worker  identity.Identity
	SiteID  int
	Day     int
	Minutes int
}

// SubmittedRow is one previously submitted line. Several rows for the same
// (worker, site, day) are summed.
type SubmittedRow struct {
	Worker   identity.Identity
	SiteID   int
	SiteName string
	Day      int
	Minutes  int
	Overtime bool
}

// PendingAllocation is a locally booked allocation with its owner.
type PendingAllocation struct {
	Worker     identity.Identity `json:"worker"`
	Allocation Allocation        `json:"allocation"`
}

// EditedDay marks a (worker, site, day) the user touched.
type EditedDay struct {
	Worker identity.Key `json:"worker"`
	SiteID int          `json:"site_id"`
	Day    int          `json:"day"`
}

// OpenDocument is a partially written document of one (worker, site, day).
type OpenDocument struct {
	Worker identity.Identity `json:"worker"`
	SiteID int               `json:"site_id"`
	Day    int               `json:"day"`
	PartialDocument
}

// PendingState is the manual layer of a grid: everything not yet submitted.
type PendingState struct {
	Allocations []PendingAllocation `json:"allocations"`
	Edited      []EditedDay         `json:"edited_days"`
	Documents   []OpenDocument      `json:"documents,omitempty"`
}

// Sources are the three inputs of a reconciliation pass plus roster members
// that should get an empty row.
type Sources struct {
	Period    Period
	Roster    []RosterCell
	Clock     []ClockRow
	Submitted []SubmittedRow
	Pending   PendingState
}

// RosterCell requests an empty cell for a roster member on a site.
type RosterCell struct {
	Worker identity.Identity
	SiteID int
}

// Resolve builds a fresh grid from its sources. Rows outside the period are
// ignored. Pending allocations on days that already carry submitted hours
// are dropped, since submitted data is authoritative, unless the day has an
// open document still waiting for them.
func Resolve(src Sources) (*Grid, int) {
	g := NewGrid(src.Period)
	days := src.Period.Days()
	inRange := func(d int) bool { return d >= 1 && d <= days }

	for _, r := range src.Roster {
		g.Ensure(r.Worker, r.SiteID)
	}
	for _, r := range src.Clock {
		if !inRange(r.Day) {
			continue
		}
		g.Ensure(r.Worker, r.SiteID).Clock[r.Day] += r.Minutes
	}
	for _, r := range src.Submitted {
		if !inRange(r.Day) {
			continue
		}
		c := g.Ensure(r.Worker, r.SiteID)
		if c.SiteName == "" {
			c.SiteName = r.SiteName
		}
		c.Submitted[r.Day] += r.Minutes
		if !r.Overtime {
			c.SubmittedNormal[r.Day] += r.Minutes
		}
	}
	dropped := g.applyPending(src.Pending)
	return g, dropped
}

// ReplacePending discards the grid's manual layer and installs s in its
// place. Applying the same state twice yields the same grid.
func (g *Grid) ReplacePending(s PendingState) int {
	for _, c := range g.cells {
		c.Allocations = nil
		c.Manual = zeroDays(g.Period.Days())
		c.Edited = make(map[int]bool)
		c.Partial = make(map[int]PartialDocument)
	}
	return g.applyPending(s)
}

func (g *Grid) applyPending(s PendingState) int {
	days := g.Period.Days()
	dropped := 0
	touched := make(map[CellKey]map[int]bool)
	touch := func(c *Cell, day int) {
		if touched[c.Key()] == nil {
			touched[c.Key()] = make(map[int]bool)
		}
		touched[c.Key()][day] = true
	}
	for _, d := range s.Documents {
		if d.Day < 1 || d.Day > days {
			continue
		}
		c := g.Ensure(d.Worker, d.SiteID)
		c.Partial[d.Day] = d.PartialDocument
		touch(c, d.Day)
	}
	for _, p := range s.Allocations {
		a := p.Allocation
		if a.Day < 1 || a.Day > days {
			dropped++
			continue
		}
		c := g.Ensure(p.Worker, a.SiteID)
		if c.Locked(a.Day) {
			dropped++
			continue
		}
		c.Allocations = append(c.Allocations, a.clone())
		c.Manual[a.Day] += a.Minutes
		touch(c, a.Day)
	}
	// Edited days are re-derived from the allocations so a stale stored
	// list cannot make an empty day eligible.
	for k, ds := range touched {
		for d := range ds {
			g.cells[k].Edited[d] = true
		}
	}
	return dropped
}

// Pending exports the manual layer in deterministic order.
func (g *Grid) Pending() PendingState {
	var s PendingState
	for _, c := range g.Cells() {
		for _, a := range c.Allocations {
			s.Allocations = append(s.Allocations, PendingAllocation{Worker: c.Worker, Allocation: a.clone()})
		}
		for _, d := range c.EditedDays() {
			s.Edited = append(s.Edited, EditedDay{Worker: c.Worker.Key(), SiteID: c.SiteID, Day: d})
			if p, ok := c.Partial[d]; ok {
				s.Documents = append(s.Documents, OpenDocument{Worker: c.Worker, SiteID: c.SiteID, Day: d, PartialDocument: p})
			}
		}
	}
	return s
}

// Labels is live reference data joined into a grid after it is restored.
type Labels struct {
	Sites   map[int]string
	Classes map[int]string
}

// Enrich refreshes display names on cells and allocations from live data.
func (g *Grid) Enrich(l Labels) {
	for _, c := range g.cells {
		if name, ok := l.Sites[c.SiteID]; ok {
			c.SiteName = name
		}
		for i := range c.Allocations {
			a := &c.Allocations[i]
			a.SiteName = c.SiteName
			if id, ok := a.ClassID(); ok {
				a.ClassName = l.Classes[id]
			}
		}
	}
}

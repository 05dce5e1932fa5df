package timesheet

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/timecalc"
)

// Period is a reporting month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Days() int {
	return timecalc.DaysInMonth(p.Year, p.Month)
}

func (p Period) Date(day int) timecalc.Date {
	return timecalc.Date{Year: p.Year, Month: p.Month, Day: day}
}

// Contains reports whether d falls in p.
func (p Period) Contains(d timecalc.Date) bool {
	return d.Year == p.Year && d.Month == p.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// PartialDocument is a remote document whose header exists but whose
// lines were not all written. LastLine is the highest line number sent.
type PartialDocument struct {
	HeaderID int `json:"header_id"`
	LastLine int `json:"last_line"`
}

type CellKey struct {
	Worker identity.Key
	SiteID int
}

// Cell is the (worker, site) row of the grid. Day maps are indexed by
// day of month and always hold every day of the period.
type Cell struct {
	Worker   identity.Identity
	SiteID   int
	SiteName string

	Clock           map[int]int
	Manual          map[int]int
	Submitted       map[int]int
	SubmittedNormal map[int]int
	Allocations     []Allocation
	Edited          map[int]bool
	Partial         map[int]PartialDocument
}

func (c *Cell) Key() CellKey {
	return CellKey{Worker: c.Worker.Key(), SiteID: c.SiteID}
}

// Display is the authoritative value for a day: submitted, else manual,
// else zero. A partially written day shows both. Clock minutes are
// reference only.
func (c *Cell) Display(day int) int {
	if c.InProgress(day) {
		return c.Submitted[day] + c.Manual[day]
	}
	if m := c.Submitted[day]; m > 0 {
		return m
	}
	if m := c.Manual[day]; m > 0 {
		return m
	}
	return 0
}

// Locked reports whether the day has submitted hours and no document
// still waiting for lines.
func (c *Cell) Locked(day int) bool {
	return c.Submitted[day] > 0 && !c.InProgress(day)
}

// InProgress reports whether a document for the day was started but not
// completed.
func (c *Cell) InProgress(day int) bool {
	_, ok := c.Partial[day]
	return ok
}

// EditedDays returns the edited days in ascending order.
func (c *Cell) EditedDays() []int {
	days := make([]int, 0, len(c.Edited))
	for d, ok := range c.Edited {
		if ok {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}

// AllocationsOn returns the allocations booked for day.
func (c *Cell) AllocationsOn(day int) []Allocation {
	var out []Allocation
	for _, a := range c.Allocations {
		if a.Day == day {
			out = append(out, a)
		}
	}
	return out
}

func (c *Cell) recomputeManual(day int) {
	total := 0
	for _, a := range c.Allocations {
		if a.Day == day {
			total += a.Minutes
		}
	}
	c.Manual[day] = total
}

// Grid is the in-memory reconciliation matrix for one period. It has a
// single writer; callers serialize edits.
type Grid struct {
	Period Period
	cells  map[CellKey]*Cell
}

func NewGrid(p Period) *Grid {
	return &Grid{Period: p, cells: make(map[CellKey]*Cell)}
}

func zeroDays(n int) map[int]int {
	m := make(map[int]int, n)
	for d := 1; d <= n; d++ {
		m[d] = 0
	}
	return m
}

// Ensure returns the cell for (worker, site), creating it with every day
// of the period zero-filled.
func (g *Grid) Ensure(worker identity.Identity, siteID int) *Cell {
	k := CellKey{Worker: worker.Key(), SiteID: siteID}
	if c, ok := g.cells[k]; ok {
		return c
	}
	n := g.Period.Days()
	c := &Cell{
		Worker:          worker,
		SiteID:          siteID,
		Clock:           zeroDays(n),
		Manual:          zeroDays(n),
		Submitted:       zeroDays(n),
		SubmittedNormal: zeroDays(n),
		Edited:          make(map[int]bool),
		Partial:         make(map[int]PartialDocument),
	}
	g.cells[k] = c
	return c
}

func (g *Grid) Cell(worker identity.Key, siteID int) (*Cell, bool) {
	c, ok := g.cells[CellKey{Worker: worker, SiteID: siteID}]
	return c, ok
}

// Cells returns all cells ordered by worker key then site.
func (g *Grid) Cells() []*Cell {
	out := make([]*Cell, 0, len(g.cells))
	for _, c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Worker.Key() != out[j].Worker.Key() {
			return out[i].Worker.Key() < out[j].Worker.Key()
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out
}

func (g *Grid) Len() int {
	return len(g.cells)
}

// DisplayMinutes returns the authoritative minutes for a grid position,
// zero when no cell exists.
func (g *Grid) DisplayMinutes(worker identity.Key, siteID, day int) int {
	c, ok := g.Cell(worker, siteID)
	if !ok {
		return 0
	}
	return c.Display(day)
}

// Usage sums the normal minutes already booked for worker on day, for the
// given site and across all sites. Submitted normal hours count.
func (g *Grid) Usage(worker identity.Key, siteID, day int) Usage {
	var u Usage
	for k, c := range g.cells {
		if k.Worker != worker {
			continue
		}
		n := c.SubmittedNormal[day]
		for _, a := range c.Allocations {
			if a.Day == day && !a.Overtime {
				n += a.Minutes
			}
		}
		u.Day += n
		if k.SiteID == siteID {
			u.SiteDay += n
		}
	}
	return u
}

// AddAllocation validates a and books it on the worker's cell. A rejected
// allocation leaves the grid unchanged. An allocation without an id gets
// one.
func (g *Grid) AddAllocation(v *Validator, worker identity.Identity, a Allocation) error {
	if a.Day < 1 || a.Day > g.Period.Days() {
		return fmt.Errorf("%w: day %d in %s", ErrDayOutOfRange, a.Day, g.Period)
	}
	if c, ok := g.Cell(worker.Key(), a.SiteID); ok && c.Locked(a.Day) {
		return fmt.Errorf("%w: %s site %d day %d", ErrCellLocked, worker, a.SiteID, a.Day)
	}
	hasWorker := worker.Key() != identity.InternalKey(0) && worker.Key() != identity.ExternalKey("")
	if err := v.Check(hasWorker, a, g.Usage(worker.Key(), a.SiteID, a.Day)); err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	c := g.Ensure(worker, a.SiteID)
	c.Allocations = append(c.Allocations, a.clone())
	c.recomputeManual(a.Day)
	c.Edited[a.Day] = true
	return nil
}

// RemoveAllocation deletes the allocation with id from the cell. The day
// stays edited while other allocations remain on it.
func (g *Grid) RemoveAllocation(worker identity.Key, siteID int, id string) error {
	c, ok := g.Cell(worker, siteID)
	if !ok {
		return fmt.Errorf("no cell for %s site %d", worker, siteID)
	}
	for i, a := range c.Allocations {
		if a.ID != id {
			continue
		}
		if c.Locked(a.Day) {
			return fmt.Errorf("%w: site %d day %d", ErrCellLocked, siteID, a.Day)
		}
		c.Allocations = append(c.Allocations[:i], c.Allocations[i+1:]...)
		c.recomputeManual(a.Day)
		if c.Manual[a.Day] == 0 && !c.InProgress(a.Day) {
			delete(c.Edited, a.Day)
		}
		return nil
	}
	return fmt.Errorf("allocation %s not found", id)
}

// ClearDay removes every pending allocation of a day.
func (g *Grid) ClearDay(worker identity.Key, siteID, day int) {
	c, ok := g.Cell(worker, siteID)
	if !ok || c.Locked(day) {
		return
	}
	kept := c.Allocations[:0]
	for _, a := range c.Allocations {
		if a.Day != day {
			kept = append(kept, a)
		}
	}
	c.Allocations = kept
	c.Manual[day] = 0
	if !c.InProgress(day) {
		delete(c.Edited, day)
	}
}

// StartDocument records the header created for a day's document. The day
// stays eligible until MarkSubmitted.
func (g *Grid) StartDocument(worker identity.Key, siteID, day, headerID int) {
	c, ok := g.Cell(worker, siteID)
	if !ok {
		return
	}
	if _, ok := c.Partial[day]; !ok {
		c.Partial[day] = PartialDocument{HeaderID: headerID}
	}
	c.Edited[day] = true
}

// MarkLineWritten moves one written allocation into the submitted layer so
// a later run does not send it again.
func (g *Grid) MarkLineWritten(worker identity.Key, siteID, day int, id string, headerID, line int) {
	c, ok := g.Cell(worker, siteID)
	if !ok {
		return
	}
	for i, a := range c.Allocations {
		if a.Day != day || a.ID != id {
			continue
		}
		c.Allocations = append(c.Allocations[:i], c.Allocations[i+1:]...)
		c.Submitted[a.Day] += a.Minutes
		if !a.Overtime {
			c.SubmittedNormal[a.Day] += a.Minutes
		}
		c.recomputeManual(a.Day)
		c.Partial[a.Day] = PartialDocument{HeaderID: headerID, LastLine: line}
		c.Edited[a.Day] = true
		return
	}
}

// MarkSubmitted locks a day after a successful submission: its allocations
// move into the submitted layer and the day leaves the edited set.
func (g *Grid) MarkSubmitted(worker identity.Key, siteID, day int) {
	c, ok := g.Cell(worker, siteID)
	if !ok {
		return
	}
	kept := c.Allocations[:0]
	for _, a := range c.Allocations {
		if a.Day != day {
			kept = append(kept, a)
			continue
		}
		c.Submitted[day] += a.Minutes
		if !a.Overtime {
			c.SubmittedNormal[day] += a.Minutes
		}
	}
	c.Allocations = kept
	c.Manual[day] = 0
	delete(c.Edited, day)
	delete(c.Partial, day)
}

// EligibleDay is one (worker, site, day) ready for submission.
type EligibleDay struct {
	Worker      identity.Identity
	SiteID      int
	SiteName    string
	Day         int
	Date        timecalc.Date
	Allocations []Allocation
	// Partial is set when a previous run left the day's document open.
	Partial *PartialDocument
}

// Eligible lists edited days that are not yet submitted and carry at least
// one allocation or an open document, ordered by site, day and worker.
func (g *Grid) Eligible() []EligibleDay {
	var out []EligibleDay
	for _, c := range g.Cells() {
		for _, d := range c.EditedDays() {
			if c.Locked(d) {
				continue
			}
			allocs := c.AllocationsOn(d)
			var partial *PartialDocument
			if p, ok := c.Partial[d]; ok {
				partial = &p
			}
			if len(allocs) == 0 && partial == nil {
				continue
			}
			out = append(out, EligibleDay{
				Worker:      c.Worker,
				SiteID:      c.SiteID,
				SiteName:    c.SiteName,
				Day:         d,
				Date:        g.Period.Date(d),
				Allocations: allocs,
				Partial:     partial,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SiteID != out[j].SiteID {
			return out[i].SiteID < out[j].SiteID
		}
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Worker.Key() < out[j].Worker.Key()
	})
	return out
}

// Validate replays every pending allocation through v in booking order, as
// if each were added to a grid holding only submitted hours.
func (g *Grid) Validate(v *Validator) error {
	replay := NewGrid(g.Period)
	for _, c := range g.Cells() {
		rc := replay.Ensure(c.Worker, c.SiteID)
		for d := range c.Submitted {
			rc.Submitted[d] = c.Submitted[d]
			rc.SubmittedNormal[d] = c.SubmittedNormal[d]
		}
	}
	for _, c := range g.Cells() {
		for _, a := range c.Allocations {
			if err := v.Check(true, a, replay.Usage(c.Worker.Key(), a.SiteID, a.Day)); err != nil {
				return fmt.Errorf("%s site %d day %d: %w", c.Worker, a.SiteID, a.Day, err)
			}
			rc := replay.Ensure(c.Worker, a.SiteID)
			rc.Allocations = append(rc.Allocations, a)
		}
	}
	return nil
}

// Package session loads one period of hours, keeps the in-progress grid
// and drives autosave and submission for it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/christopherklint97/sitehours/internal/backend"
	"github.com/christopherklint97/sitehours/internal/cache"
	"github.com/christopherklint97/sitehours/internal/catalog"
	"github.com/christopherklint97/sitehours/internal/draft"
	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/scheduler"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// Backend is the read side of the remote system.
type Backend interface {
	Roster(ctx context.Context) ([]identity.Team, error)
	Sites(ctx context.Context) ([]backend.Site, error)
	Submitted(ctx context.Context, p timesheet.Period) ([]backend.SubmittedLine, error)
}

type Deps struct {
	Backend Backend
	Clock   ClockSource
	Catalog *catalog.Catalog
	Drafts  draft.Store
	Target  submit.Target
	Ledger  submit.Ledger
}

type Options struct {
	User     string
	Limits   timesheet.Limits
	Loader   LoaderOptions
	Overtime submit.OvertimeCodes
	CacheTTL time.Duration
	Debounce time.Duration
	// Notify is called after a submission run. Nil disables notifications.
	Notify    func(title, message string)
	OnOutcome func(submit.Outcome)
	Now       func() time.Time
	AfterFunc scheduler.AfterFunc
	Logger    *slog.Logger
}

// Manager opens sessions and holds the period data cache shared by them.
type Manager struct {
	deps      Deps
	opts      Options
	submitted *cache.TTL[timesheet.Period, []backend.SubmittedLine]
	roster    *cache.TTL[string, []identity.Team]
	logger    *slog.Logger
}

func NewManager(deps Deps, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		deps:      deps,
		opts:      opts,
		submitted: cache.NewTTL[timesheet.Period, []backend.SubmittedLine](opts.CacheTTL, opts.Now),
		roster:    cache.NewTTL[string, []identity.Team](opts.CacheTTL, opts.Now),
		logger:    opts.Logger,
	}
}

// Invalidate drops cached submitted records of p, forcing the next Open
// to refetch them.
func (m *Manager) Invalidate(p timesheet.Period) {
	m.submitted.Invalidate(p)
}

func (m *Manager) loadRoster(ctx context.Context) ([]identity.Team, error) {
	if teams, ok := m.roster.Get("roster"); ok {
		return teams, nil
	}
	teams, err := m.deps.Backend.Roster(ctx)
	if err != nil {
		return nil, err
	}
	m.roster.Set("roster", teams)
	return teams, nil
}

func (m *Manager) loadSubmitted(ctx context.Context, p timesheet.Period) ([]backend.SubmittedLine, error) {
	if lines, ok := m.submitted.Get(p); ok {
		return lines, nil
	}
	lines, err := m.deps.Backend.Submitted(ctx, p)
	if err != nil {
		return nil, err
	}
	m.submitted.Set(p, lines)
	return lines, nil
}

// Session is one period being reconciled.
type Session struct {
	mu        sync.Mutex
	grid      *timesheet.Grid
	validator *timesheet.Validator
	index     *catalog.Index
	catalog   *catalog.Catalog
	directory *identity.Directory
	submitted []backend.SubmittedLine
	labels    timesheet.Labels
	drafts    *draft.Adapter
	autosave  *draft.Autosaver
	batcher   *submit.Batcher
	opts      Options
	logger    *slog.Logger
	// invalidate drops the manager's cached submitted records of the period.
	invalidate func()

	Restored bool // a draft was applied
	Dropped  int  // draft allocations dropped because their day was submitted
}

// Open loads roster, clock, submitted data and catalog for p, resolves the
// grid and applies the stored draft on top of it.
func (m *Manager) Open(ctx context.Context, p timesheet.Period) (*Session, error) {
	teams, err := m.loadRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	dir := identity.NewDirectory(teams)

	sites, err := m.deps.Backend.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sites: %w", err)
	}

	index, err := m.deps.Catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	clock, err := LoadClock(ctx, m.deps.Clock, dir.Members(), p, m.opts.Loader)
	if err != nil {
		return nil, fmt.Errorf("loading clock events: %w", err)
	}

	lines, err := m.loadSubmitted(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("loading submitted records: %w", err)
	}

	labels := timesheet.Labels{Sites: make(map[int]string, len(sites)), Classes: index.ClassLabels()}
	for _, s := range sites {
		labels.Sites[s.ID] = s.Name
	}

	grid, _ := timesheet.Resolve(timesheet.Sources{
		Period:    p,
		Clock:     clock,
		Submitted: submittedRows(lines, dir, p, m.logger),
	})

	s := &Session{
		grid:      grid,
		validator: timesheet.NewValidator(m.opts.Limits, index),
		index:     index,
		catalog:   m.deps.Catalog,
		directory: dir,
		submitted: lines,
		labels:    labels,
		drafts:    draft.NewAdapter(m.deps.Drafts, m.opts.User, m.opts.Now, m.logger),
		opts:      m.opts,
		logger:    m.logger,

		invalidate: func() { m.Invalidate(p) },
	}
	s.autosave = draft.NewAutosaver(scheduler.NewDebouncer(m.opts.AfterFunc), m.opts.Debounce, s.save, m.logger)
	s.batcher = submit.NewBatcher(m.deps.Target, submit.Options{
		Overtime:  m.opts.Overtime,
		Directory: dir,
		Ledger:    m.deps.Ledger,
		Logger:    m.logger,
		OnOutcome: m.opts.OnOutcome,
	})

	snap, ok, err := s.drafts.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	if ok {
		s.Restored = true
		s.Dropped = draft.Restore(grid, snap, labels)
		if s.Dropped > 0 {
			m.logger.Warn("draft allocations dropped on submitted days", "period", p.String(), "dropped", s.Dropped)
		}
	} else {
		grid.Enrich(labels)
	}

	m.logger.Info("period loaded", "period", p.String(), "cells", grid.Len(), "clock_rows", len(clock),
		"submitted_lines", len(lines), "draft", s.Restored)
	return s, nil
}

// submittedRows maps remote lines onto grid rows. Lines without a worker id
// belong to externals and are keyed by their name.
func submittedRows(lines []backend.SubmittedLine, dir *identity.Directory, p timesheet.Period, logger *slog.Logger) []timesheet.SubmittedRow {
	rows := make([]timesheet.SubmittedRow, 0, len(lines))
	for _, l := range lines {
		d, err := timecalc.ParseDate(l.Data)
		if err != nil {
			logger.Warn("skipping submitted line with bad date", "date", l.Data, "error", err)
			continue
		}
		if !p.Contains(d) {
			continue
		}
		var worker identity.Identity
		if l.ColaboradorID != nil {
			worker = identity.NewInternal(*l.ColaboradorID, dir.Name(*l.ColaboradorID))
		} else {
			worker = identity.NewExternal(l.Funcionario, l.Empresa)
		}
		rows = append(rows, timesheet.SubmittedRow{
			Worker:   worker,
			SiteID:   l.ObraID,
			SiteName: l.ObraNome,
			Day:      d.Day,
			Minutes:  l.NumHoras,
			Overtime: l.TipoHoraID != nil,
		})
	}
	return rows
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts.Save(ctx, s.grid)
}

func (s *Session) Period() timesheet.Period {
	return s.grid.Period
}

// View runs f with the grid locked. f must not keep references to it.
func (s *Session) View(f func(g *timesheet.Grid)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.grid)
}

func (s *Session) Catalog() *catalog.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Directory() *identity.Directory {
	return s.directory
}

// AddAllocation books a for worker and saves the draft right away. It
// returns the id given to the allocation. When that save fails the
// allocation stays booked, a debounced save is scheduled and the error
// wraps ErrDraftNotSaved.
func (s *Session) AddAllocation(ctx context.Context, worker identity.Identity, a timesheet.Allocation) (string, error) {
	s.mu.Lock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if name, ok := s.labels.Sites[a.SiteID]; ok {
		a.SiteName = name
	}
	if id, ok := a.ClassID(); ok {
		a.ClassName = s.labels.Classes[id]
	}
	err := s.grid.AddAllocation(s.validator, worker, a)
	if err == nil {
		if c, ok := s.grid.Cell(worker.Key(), a.SiteID); ok && c.SiteName == "" {
			c.SiteName = a.SiteName
		}
	}
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if err := s.autosave.SaveNow(ctx); err != nil {
		s.autosave.Changed()
		return a.ID, fmt.Errorf("%w: %w", ErrDraftNotSaved, err)
	}
	return a.ID, nil
}

func (s *Session) RemoveAllocation(worker identity.Key, siteID int, id string) error {
	s.mu.Lock()
	err := s.grid.RemoveAllocation(worker, siteID, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.autosave.Changed()
	return nil
}

func (s *Session) ClearDay(worker identity.Key, siteID, day int) {
	s.mu.Lock()
	s.grid.ClearDay(worker, siteID, day)
	s.mu.Unlock()
	s.autosave.Changed()
}

// Flush writes the draft now, replacing any pending autosave.
func (s *Session) Flush(ctx context.Context) error {
	return s.autosave.SaveNow(ctx)
}

// Discard deletes the stored draft. The in-memory grid keeps its manual
// layer until the period is opened again.
func (s *Session) Discard(ctx context.Context) error {
	s.autosave.Cancel()
	return s.drafts.Delete(ctx, s.grid.Period)
}

// Submit sends every eligible day. Components are looked up in the catalog
// as it is now, not as it was when the session opened. A fully successful
// run deletes the draft. Otherwise the draft is rewritten so only unsent
// lines remain in it.
func (s *Session) Submit(ctx context.Context, notes string) (*submit.Result, error) {
	index, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	s.autosave.Cancel()

	s.mu.Lock()
	s.index = index
	s.validator = timesheet.NewValidator(s.opts.Limits, index)
	result, err := s.batcher.Submit(ctx, s.grid, s.validator, index, notes)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	// Written lines change the remote records of the period.
	if len(result.Outcomes) > 0 {
		s.invalidate()
	}

	// Use a fresh context so the draft reflects this run even if ctx was cancelled.
	persist := context.WithoutCancel(ctx)
	if result.OK() {
		if err := s.drafts.Delete(persist, s.grid.Period); err != nil {
			s.logger.Error("deleting draft after submission", "error", err)
		}
	} else if err := s.save(persist); err != nil {
		s.logger.Error("saving draft after partial submission", "error", err)
	}

	if s.opts.Notify != nil && len(result.Outcomes) > 0 {
		if result.OK() {
			s.opts.Notify("sitehours", fmt.Sprintf("Submitted %d documents for %s", result.Submitted(), s.grid.Period))
		} else {
			s.opts.Notify("sitehours", fmt.Sprintf("%d of %d documents failed for %s", len(result.Outcomes)-result.Submitted(), len(result.Outcomes), s.grid.Period))
		}
	}
	return result, nil
}

// Externals consolidates external hours from submitted lines, pending
// allocations and the roster.
func (s *Session) Externals() ([]identity.ExternalTotal, []identity.Ambiguity) {
	var submitted []identity.ExternalRecord
	for _, l := range s.submitted {
		if l.ColaboradorID != nil {
			continue
		}
		d, err := timecalc.ParseDate(l.Data)
		if err != nil || !s.grid.Period.Contains(d) {
			continue
		}
		submitted = append(submitted, identity.ExternalRecord{Name: l.Funcionario, Company: l.Empresa, SiteID: l.ObraID, Date: d, Minutes: l.NumHoras})
	}

	var pending []identity.ExternalRecord
	s.mu.Lock()
	for _, p := range s.grid.Pending().Allocations {
		if p.Worker.Kind != identity.External {
			continue
		}
		pending = append(pending, identity.ExternalRecord{
			Name:    p.Worker.Name,
			Company: p.Worker.Company,
			SiteID:  p.Allocation.SiteID,
			Date:    s.grid.Period.Date(p.Allocation.Day),
			Minutes: p.Allocation.Minutes,
		})
	}
	s.mu.Unlock()

	totals, ambiguities := identity.Consolidate(submitted, pending, s.directory.Externals())
	for _, a := range ambiguities {
		s.logger.Warn("external worker name is ambiguous", "key", string(a.Key), "names", a.Names, "companies", a.Companies)
	}
	return totals, ambiguities
}

var (
	// ErrUnknownWorker is returned when a worker reference matches nobody.
	ErrUnknownWorker = errors.New("unknown worker")
	ErrDraftNotSaved = errors.New("draft not saved")
)

// ResolveWorker finds a roster identity by internal id or external name.
// Unknown externals are accepted as new identities.
func (s *Session) ResolveWorker(workerID int, externalName, company string) (identity.Identity, error) {
	if workerID > 0 {
		id, ok := s.directory.Lookup(identity.InternalKey(workerID))
		if !ok {
			return identity.Identity{}, fmt.Errorf("%w: #%d", ErrUnknownWorker, workerID)
		}
		return id, nil
	}
	if externalName == "" {
		return identity.Identity{}, fmt.Errorf("%w: no id or name given", ErrUnknownWorker)
	}
	if id, ok := s.directory.Lookup(identity.ExternalKey(externalName)); ok {
		if company != "" {
			id.Company = company
		}
		return id, nil
	}
	return identity.NewExternal(externalName, company), nil
}

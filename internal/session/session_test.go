package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/christopherklint97/sitehours/internal/backend"
	"github.com/christopherklint97/sitehours/internal/catalog"
	"github.com/christopherklint97/sitehours/internal/draft"
	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/session"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/testfixtures"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

var march = timesheet.Period{Year: 2025, Month: time.March}

func at(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

type fakeClock struct {
	mu     sync.Mutex
	events map[int][]timecalc.ClockEvent
	calls  int
	err    error
}

func (f *fakeClock) ClockEvents(_ context.Context, workerID int, day timecalc.Date) ([]timecalc.ClockEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []timecalc.ClockEvent
	for _, e := range f.events[workerID] {
		if timecalc.DateOf(e.Timestamp) == day {
			out = append(out, e)
		}
	}
	return out, nil
}

func workerDay(worker, site, day, from, to int) []timecalc.ClockEvent {
	return []timecalc.ClockEvent{
		{WorkerID: worker, SiteID: site, Timestamp: at(day, from), Kind: timecalc.Entry},
		{WorkerID: worker, SiteID: site, Timestamp: at(day, to), Kind: timecalc.Exit},
	}
}

type fakeBackend struct {
	teams     []identity.Team
	sites     []backend.Site
	submitted []backend.SubmittedLine
	fetches   int
}

func (f *fakeBackend) Roster(context.Context) ([]identity.Team, error) { return f.teams, nil }
func (f *fakeBackend) Sites(context.Context) ([]backend.Site, error)   { return f.sites, nil }
func (f *fakeBackend) Submitted(context.Context, timesheet.Period) ([]backend.SubmittedLine, error) {
	f.fetches++
	return f.submitted, nil
}

type fakeCatalog struct {
	component int
}

func (f *fakeCatalog) Specialties(context.Context) ([]catalog.Specialty, error) {
	return []catalog.Specialty{{Code: "PED", Name: "Pedreiro", ComponentID: f.component, Tag: "civil"}}, nil
}
func (f *fakeCatalog) Equipment(context.Context, string) ([]catalog.Equipment, error) {
	return []catalog.Equipment{{Code: "EQ-GRUA", ComponentID: 31}}, nil
}
func (f *fakeCatalog) Classes(context.Context) ([]catalog.Class, error) {
	return []catalog.Class{{ID: 3, Name: "Oficial", Tag: "civil"}}, nil
}

type memoryStore struct {
	mu    sync.Mutex
	data  map[draft.Key][]byte
	saves int
}

func (m *memoryStore) Save(_ context.Context, k draft.Key, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[k] = b
	return nil
}

func (m *memoryStore) Load(_ context.Context, k draft.Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[k]
	if !ok {
		return nil, draft.ErrNotFound
	}
	return b, nil
}

func (m *memoryStore) Delete(_ context.Context, k draft.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

type fakeTarget struct {
	next      int
	lines     []submit.Line
	failSites map[int]bool
}

func (f *fakeTarget) CreateHeader(_ context.Context, h submit.Header) (int, error) {
	if f.failSites[h.ObraID] {
		return 0, errors.New("status 500")
	}
	f.next++
	return f.next, nil
}

func (f *fakeTarget) CreateLine(_ context.Context, l submit.Line) error {
	f.lines = append(f.lines, l)
	return nil
}

type env struct {
	backend *fakeBackend
	clock   *fakeClock
	catalog *fakeCatalog
	drafts  *memoryStore
	target  *fakeTarget
	timers  *testfixtures.Timers
	notes   []string
	now     time.Time
}

func newEnv() *env {
	w7 := 7
	return &env{
		backend: &fakeBackend{
			teams: []identity.Team{{ID: 1, Name: "Norte", Members: []identity.Member{
				{WorkerID: &w7, Name: "Ana", Code: "E007"},
				{Name: "Rui Sá", External: true, Company: "Acme"},
			}}},
			sites: []backend.Site{{ID: 1, Name: "Obra Norte"}, {ID: 2, Name: "Obra Sul"}},
		},
		clock:   &fakeClock{events: map[int][]timecalc.ClockEvent{7: workerDay(7, 1, 5, 8, 12)}},
		catalog: &fakeCatalog{component: 11},
		drafts:  &memoryStore{data: make(map[draft.Key][]byte)},
		target:  &fakeTarget{},
		timers:  testfixtures.NewTimers(),
		now:     at(10, 9),
	}
}

func (e *env) manager() *session.Manager {
	now := func() time.Time { return e.now }
	return session.NewManager(session.Deps{
		Backend: e.backend,
		Clock:   e.clock,
		Catalog: catalog.New(e.catalog, catalog.Options{Now: now}),
		Drafts:  e.drafts,
		Target:  e.target,
	}, session.Options{
		User:      "ana",
		Limits:    timesheet.DefaultLimits(),
		Debounce:  2 * time.Second,
		AfterFunc: e.timers.AfterFunc,
		Now:       now,
		Notify:    func(_, msg string) { e.notes = append(e.notes, msg) },
	})
}

func labor(day, site, minutes int) timesheet.Allocation {
	return timesheet.Allocation{
		Day: day, SiteID: site, Minutes: minutes,
		Labor: &timesheet.LaborDetail{SpecialtyCode: "PED", ClassID: timesheet.Class(3)},
	}
}

func cell(t *testing.T, s *session.Session, k identity.Key, site int) *timesheet.Cell {
	t.Helper()
	var c *timesheet.Cell
	s.View(func(g *timesheet.Grid) {
		c, _ = g.Cell(k, site)
	})
	if c == nil {
		t.Fatalf("no cell for %s site %d", k, site)
	}
	return c
}

func TestLoadClockChunks(t *testing.T) {
	clock := &fakeClock{events: map[int][]timecalc.ClockEvent{
		7: append(workerDay(7, 1, 5, 8, 12), workerDay(7, 2, 5, 13, 17)...),
		8: workerDay(8, 1, 20, 8, 10),
	}}
	workers := []identity.Identity{
		identity.NewInternal(8, "Bruno"),
		identity.NewExternal("Rui", "Acme"),
		identity.NewInternal(7, "Ana"),
	}

	rows, err := session.LoadClock(context.Background(), clock, workers, march,
		session.LoaderOptions{WorkerChunk: 1, DayChunk: 3, Parallelism: 3})
	if err != nil {
		t.Fatalf("LoadClock: %v", err)
	}
	if clock.calls != 2*31 {
		t.Errorf("calls = %d, want one per internal worker per day", clock.calls)
	}

	want := []timesheet.ClockRow{
		{Worker: identity.NewInternal(7, "Ana"), SiteID: 1, Day: 5, Minutes: 240},
		{Worker: identity.NewInternal(7, "Ana"), SiteID: 2, Day: 5, Minutes: 240},
		{Worker: identity.NewInternal(8, "Bruno"), SiteID: 1, Day: 20, Minutes: 120},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestLoadClockPropagatesErrors(t *testing.T) {
	clock := &fakeClock{err: errors.New("timeout")}
	_, err := session.LoadClock(context.Background(), clock, []identity.Identity{identity.NewInternal(7, "Ana")}, march, session.LoaderOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenResolvesSources(t *testing.T) {
	e := newEnv()
	w7 := 7
	e.backend.submitted = []backend.SubmittedLine{
		{ColaboradorID: &w7, ObraID: 1, ObraNome: "Obra Norte", Data: "2025-03-06T00:00:00", NumHoras: 480},
		{ObraID: 2, Data: "2025-03-06", NumHoras: 120, Funcionario: "rui sa", Empresa: "Acme"},
		{ObraID: 2, Data: "2025-04-01", NumHoras: 60, Funcionario: "Rui Sá"},
	}

	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Restored {
		t.Error("no draft was stored")
	}

	ana := cell(t, s, identity.InternalKey(7), 1)
	if ana.Clock[5] != 240 || ana.Submitted[6] != 480 || !ana.Locked(6) {
		t.Errorf("ana clock=%d submitted=%d", ana.Clock[5], ana.Submitted[6])
	}
	if ana.SiteName != "Obra Norte" {
		t.Errorf("site name = %q", ana.SiteName)
	}
	rui := cell(t, s, identity.ExternalKey("Rui Sá"), 2)
	if rui.Submitted[6] != 120 {
		t.Errorf("external submitted = %d, want 120", rui.Submitted[6])
	}
}

func TestSubmittedRecordsAreCached(t *testing.T) {
	e := newEnv()
	m := e.manager()
	for n := 0; n < 2; n++ {
		if _, err := m.Open(context.Background(), march); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if e.backend.fetches != 1 {
		t.Errorf("fetches = %d, want 1", e.backend.fetches)
	}
	m.Invalidate(march)
	if _, err := m.Open(context.Background(), march); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.backend.fetches != 2 {
		t.Errorf("fetches after invalidate = %d, want 2", e.backend.fetches)
	}
}

func TestAddAllocationSavesAndRestores(t *testing.T) {
	e := newEnv()
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ana := identity.NewInternal(7, "Ana")
	id, err := s.AddAllocation(context.Background(), ana, labor(5, 1, 240))
	if err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if id == "" {
		t.Error("allocation id not assigned")
	}
	if _, err := s.AddAllocation(context.Background(), ana, labor(5, 1, 300)); !timesheet.IsValidation(err) {
		t.Errorf("over cap: err = %v, want validation error", err)
	}

	if e.drafts.saves != 1 {
		t.Fatalf("saves right after AddAllocation = %d, want 1", e.drafts.saves)
	}
	e.timers.Advance(10 * time.Second)
	if e.drafts.saves != 1 {
		t.Fatalf("a rejected allocation must not schedule a save, saves = %d", e.drafts.saves)
	}

	reopened, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Restored {
		t.Fatal("draft not restored")
	}
	c := cell(t, reopened, ana.Key(), 1)
	allocs := c.AllocationsOn(5)
	if len(allocs) != 1 || allocs[0].ID != id || c.Manual[5] != 240 {
		t.Errorf("restored allocations = %+v manual=%d", allocs, c.Manual[5])
	}
	if allocs[0].ClassName != "Oficial" {
		t.Errorf("class name = %q", allocs[0].ClassName)
	}
}

func TestRemoveAllocationSavesAfterQuietPeriod(t *testing.T) {
	e := newEnv()
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ana := identity.NewInternal(7, "Ana")
	id, err := s.AddAllocation(context.Background(), ana, labor(5, 1, 240))
	if err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if err := s.RemoveAllocation(ana.Key(), 1, id); err != nil {
		t.Fatalf("RemoveAllocation: %v", err)
	}

	e.timers.Advance(time.Second)
	if e.drafts.saves != 1 {
		t.Fatalf("saved before quiet period, saves = %d", e.drafts.saves)
	}
	e.timers.Advance(time.Second)
	if e.drafts.saves != 2 {
		t.Fatalf("saves = %d, want 2", e.drafts.saves)
	}
}

func TestRestoreDropsAllocationsOnSubmittedDays(t *testing.T) {
	e := newEnv()
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.AddAllocation(context.Background(), identity.NewInternal(7, "Ana"), labor(6, 1, 240)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	w7 := 7
	e.backend.submitted = []backend.SubmittedLine{{ColaboradorID: &w7, ObraID: 1, Data: "2025-03-06", NumHoras: 480}}
	reopened, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", reopened.Dropped)
	}
}

func TestSubmitDeletesDraftOnSuccess(t *testing.T) {
	e := newEnv()
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.AddAllocation(context.Background(), identity.NewInternal(7, "Ana"), labor(5, 1, 240)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	res, err := s.Submit(context.Background(), "semana 10")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.OK() || res.Submitted() != 1 {
		t.Fatalf("result = %+v", res.Outcomes)
	}
	if len(e.drafts.data) != 0 {
		t.Error("draft kept after full success")
	}
	if len(e.target.lines) != 1 || e.target.lines[0].Funcionario != "E007" {
		t.Errorf("lines = %+v", e.target.lines)
	}
	if len(e.notes) != 1 {
		t.Errorf("notifications = %v", e.notes)
	}

	// A pending autosave from before the submission must not resurrect the draft.
	e.timers.Advance(10 * time.Second)
	if len(e.drafts.data) != 0 {
		t.Error("draft resurrected by autosave")
	}
}

func TestSubmitLooksUpComponentsAtSubmitTime(t *testing.T) {
	e := newEnv()
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.AddAllocation(context.Background(), identity.NewInternal(7, "Ana"), labor(5, 1, 240)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}

	e.catalog.component = 99
	e.now = e.now.Add(10 * time.Minute)

	if _, err := s.Submit(context.Background(), ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(e.target.lines) != 1 || e.target.lines[0].SubEmpID == nil || *e.target.lines[0].SubEmpID != 99 {
		t.Fatalf("lines = %+v, want component 99", e.target.lines)
	}
}

func TestReopenAfterSubmitSeesSubmittedDay(t *testing.T) {
	e := newEnv()
	m := e.manager()
	s, err := m.Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ana := identity.NewInternal(7, "Ana")
	if _, err := s.AddAllocation(context.Background(), ana, labor(5, 1, 240)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if _, err := s.Submit(context.Background(), ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w7 := 7
	e.backend.submitted = []backend.SubmittedLine{{ColaboradorID: &w7, ObraID: 1, Data: "2025-03-05", NumHoras: 240}}
	reopened, err := m.Open(context.Background(), march)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if e.backend.fetches != 2 {
		t.Errorf("fetches = %d, want a refetch after submit", e.backend.fetches)
	}
	c := cell(t, reopened, ana.Key(), 1)
	if !c.Locked(5) || c.Display(5) != 240 {
		t.Errorf("day 5 locked=%v display=%d", c.Locked(5), c.Display(5))
	}
}

func TestSubmitKeepsDraftOnFailure(t *testing.T) {
	e := newEnv()
	e.target.failSites = map[int]bool{2: true}
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ana := identity.NewInternal(7, "Ana")
	if _, err := s.AddAllocation(context.Background(), ana, labor(5, 1, 120)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	if _, err := s.AddAllocation(context.Background(), ana, labor(5, 2, 120)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}

	res, err := s.Submit(context.Background(), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.OK() || res.Submitted() != 1 || res.Failed() != 1 {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}

	reopened, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Restored {
		t.Fatal("draft not kept after failure")
	}
	if len(cell(t, reopened, ana.Key(), 2).AllocationsOn(5)) != 1 {
		t.Error("failed day missing from draft")
	}
	if len(cell(t, reopened, ana.Key(), 1).AllocationsOn(5)) != 0 {
		t.Error("submitted day still pending in draft")
	}
}

func TestExternalsFlagsAmbiguity(t *testing.T) {
	e := newEnv()
	e.backend.submitted = []backend.SubmittedLine{
		{ObraID: 2, Data: "2025-03-06", NumHoras: 120, Funcionario: "Rui Sá", Empresa: "Acme"},
	}
	s, err := e.manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.AddAllocation(context.Background(), identity.NewExternal("rui sa", "Beta"), labor(7, 1, 60)); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}

	totals, ambiguities := s.Externals()
	if len(totals) != 1 || totals[0].Minutes() != 180 {
		t.Fatalf("totals = %+v", totals)
	}
	if len(ambiguities) != 1 || len(ambiguities[0].Companies) != 2 {
		t.Errorf("ambiguities = %+v", ambiguities)
	}
}

func TestResolveWorker(t *testing.T) {
	s, err := newEnv().manager().Open(context.Background(), march)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	w, err := s.ResolveWorker(7, "", "")
	if err != nil || w.Name != "Ana" {
		t.Errorf("internal = %+v, %v", w, err)
	}
	if _, err := s.ResolveWorker(99, "", ""); !errors.Is(err, session.ErrUnknownWorker) {
		t.Errorf("unknown id err = %v", err)
	}
	x, err := s.ResolveWorker(0, "RUI SA", "")
	if err != nil || x.Name != "Rui Sá" || x.Company != "Acme" {
		t.Errorf("external = %+v, %v", x, err)
	}
	n, err := s.ResolveWorker(0, "Nuno", "Beta")
	if err != nil || n.Kind != identity.External || n.Company != "Beta" {
		t.Errorf("new external = %+v, %v", n, err)
	}
}

package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/timesheet"
	"github.com/invopop/jsonschema"
)

// ErrNotFound is returned by a Store when no draft exists for a key.
var ErrNotFound = errors.New("draft not found")

const snapshotVersion = 1

// FallbackUser keys drafts when no user identifier is configured.
const FallbackUser = "default"

type Key struct {
	User  string
	Year  int
	Month time.Month
}

func KeyFor(user string, p timesheet.Period) Key {
	if user == "" {
		user = FallbackUser
	}
	return Key{User: user, Year: p.Year, Month: p.Month}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%04d/%02d", k.User, k.Year, int(k.Month))
}

// Store is a remote or local key-value store for encoded snapshots.
// Writes are last-write-wins.
type Store interface {
	Save(ctx context.Context, key Key, data []byte) error
	Load(ctx context.Context, key Key) ([]byte, error)
	Delete(ctx context.Context, key Key) error
}

// CellState records the displayed value of one grid row at save time.
type CellState struct {
	Worker  identity.Identity `json:"worker"`
	SiteID  int               `json:"site_id"`
	Minutes map[int]int       `json:"minutes"`
}

// Snapshot is a persisted, not yet submitted editing session.
type Snapshot struct {
	Version             int                           `json:"version"`
	Year                int                           `json:"year"`
	Month               time.Month                    `json:"month"`
	Grid                []CellState                   `json:"grid"`
	ExternalAllocations []timesheet.PendingAllocation `json:"external_allocations"`
	ManualAllocations   []timesheet.PendingAllocation `json:"manual_allocations"`
	Edited              []timesheet.EditedDay         `json:"edited_days"`
	OpenDocuments       []timesheet.OpenDocument      `json:"open_documents,omitempty"`
	SavedAt             time.Time                     `json:"saved_at"`
}

func (s *Snapshot) Period() timesheet.Period {
	return timesheet.Period{Year: s.Year, Month: s.Month}
}

// Capture snapshots the manual layer of g.
func Capture(g *timesheet.Grid, now time.Time) *Snapshot {
	s := &Snapshot{
		Version: snapshotVersion,
		Year:    g.Period.Year,
		Month:   g.Period.Month,
		SavedAt: now.UTC(),
	}
	pending := g.Pending()
	for _, p := range pending.Allocations {
		if p.Worker.Kind == identity.External {
			s.ExternalAllocations = append(s.ExternalAllocations, p)
		} else {
			s.ManualAllocations = append(s.ManualAllocations, p)
		}
	}
	s.Edited = pending.Edited
	s.OpenDocuments = pending.Documents

	for _, c := range g.Cells() {
		minutes := make(map[int]int)
		for d := 1; d <= g.Period.Days(); d++ {
			if m := c.Display(d); m > 0 {
				minutes[d] = m
			}
		}
		if len(minutes) == 0 {
			continue
		}
		s.Grid = append(s.Grid, CellState{Worker: c.Worker, SiteID: c.SiteID, Minutes: minutes})
	}
	return s
}

// Pending rebuilds the manual layer stored in the snapshot.
func (s *Snapshot) Pending() timesheet.PendingState {
	var st timesheet.PendingState
	st.Allocations = append(st.Allocations, s.ManualAllocations...)
	st.Allocations = append(st.Allocations, s.ExternalAllocations...)
	st.Edited = append(st.Edited, s.Edited...)
	st.Documents = append(st.Documents, s.OpenDocuments...)
	return st
}

func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding draft: %w", err)
	}
	return data, nil
}

// Decode parses and sanity-checks an encoded snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding draft: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported draft version %d", s.Version)
	}
	if s.Month < time.January || s.Month > time.December || s.Year <= 0 {
		return nil, fmt.Errorf("invalid draft period %d-%d", s.Year, s.Month)
	}
	for _, p := range append(s.ManualAllocations, s.ExternalAllocations...) {
		a := p.Allocation
		if (a.Labor == nil) == (a.Equipment == nil) {
			return nil, fmt.Errorf("allocation %q must have exactly one category", a.ID)
		}
	}
	return &s, nil
}

// Restore replaces the grid's manual layer with the snapshot and joins in
// live reference data. It returns the number of allocations dropped
// because their day is now submitted.
func Restore(g *timesheet.Grid, s *Snapshot, labels timesheet.Labels) int {
	dropped := g.ReplacePending(s.Pending())
	g.Enrich(labels)
	return dropped
}

// Schema returns the JSON schema of an encoded snapshot.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{}
	schema := r.Reflect(&Snapshot{})
	return json.MarshalIndent(schema, "", "  ")
}

// Adapter saves, loads and deletes snapshots for one user.
type Adapter struct {
	store  Store
	user   string
	now    func() time.Time
	logger *slog.Logger
}

func NewAdapter(store Store, user string, now func() time.Time, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{store: store, user: user, now: now, logger: logger}
}

func (a *Adapter) Save(ctx context.Context, g *timesheet.Grid) error {
	key := KeyFor(a.user, g.Period)
	data, err := Encode(Capture(g, a.now()))
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("saving draft %s: %w", key, err)
	}
	a.logger.Debug("draft saved", "key", key.String(), "bytes", len(data))
	return nil
}

// Load returns the stored snapshot, or false when none exists. A corrupt
// snapshot is logged and treated as missing.
func (a *Adapter) Load(ctx context.Context, p timesheet.Period) (*Snapshot, bool, error) {
	key := KeyFor(a.user, p)
	data, err := a.store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading draft %s: %w", key, err)
	}

	s, err := Decode(data)
	if err != nil {
		a.logger.Warn("discarding corrupt draft", "key", key.String(), "error", err)
		return nil, false, nil
	}
	if s.Period() != p {
		a.logger.Warn("discarding draft for another period", "key", key.String(), "draft_period", s.Period().String())
		return nil, false, nil
	}
	return s, true, nil
}

func (a *Adapter) Delete(ctx context.Context, p timesheet.Period) error {
	key := KeyFor(a.user, p)
	if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting draft %s: %w", key, err)
	}
	return nil
}

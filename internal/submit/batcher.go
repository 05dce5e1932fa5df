package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/christopherklint97/sitehours/internal/catalog"
	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/store"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// Ledger records document outcomes locally.
type Ledger interface {
	InsertSubmission(ctx context.Context, s *store.Submission) (int64, error)
}

// Document is one header with the days whose allocations become its lines.
// HeaderID is set when an earlier run already created the header, and
// LastLine is then the last line number it wrote.
type Document struct {
	Key      DocumentKey
	Header   Header
	Days     []timesheet.EligibleDay
	HeaderID int
	LastLine int
}

func (d Document) LineCount() int {
	n := 0
	for _, day := range d.Days {
		n += len(day.Allocations)
	}
	return n
}

func (d Document) Minutes() int {
	n := 0
	for _, day := range d.Days {
		for _, a := range day.Allocations {
			n += a.Minutes
		}
	}
	return n
}

type Options struct {
	Overtime  OvertimeCodes
	Directory *identity.Directory
	Ledger    Ledger
	Logger    *slog.Logger
	// OnOutcome is called after each document finishes.
	OnOutcome func(Outcome)
	NewRunID  func() string
}

// Batcher turns eligible grid days into documents and writes them.
type Batcher struct {
	target Target
	opts   Options
	logger *slog.Logger
}

func NewBatcher(target Target, opts Options) *Batcher {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Batcher{target: target, opts: opts, logger: opts.Logger}
}

// Plan groups the grid's eligible days into documents: one per internal
// worker per (site, date), and one shared document per (site, date) for
// external workers.
func Plan(g *timesheet.Grid, notes string) []Document {
	notes = HeaderNotes(notes)
	byKey := make(map[DocumentKey]*Document)
	var keys []DocumentKey
	for _, day := range g.Eligible() {
		k := DocumentKey{SiteID: day.SiteID, Date: day.Date}
		var colaborador *int
		if day.Worker.Kind == identity.Internal {
			k.Worker = day.Worker.Key()
			id := day.Worker.WorkerID
			colaborador = &id
		}
		doc, ok := byKey[k]
		if !ok {
			doc = &Document{
				Key: k,
				Header: Header{
					ObraID:        day.SiteID,
					Data:          day.Date.String(),
					Notas:         notes,
					ColaboradorID: colaborador,
				},
			}
			byKey[k] = doc
			keys = append(keys, k)
		}
		doc.Days = append(doc.Days, day)
		if day.Partial != nil {
			if doc.HeaderID == 0 {
				doc.HeaderID = day.Partial.HeaderID
			}
			doc.LastLine = max(doc.LastLine, day.Partial.LastLine)
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SiteID != b.SiteID {
			return a.SiteID < b.SiteID
		}
		if a.Date != b.Date {
			return a.Date.String() < b.Date.String()
		}
		return a.Worker < b.Worker
	})
	docs := make([]Document, 0, len(keys))
	for _, k := range keys {
		docs = append(docs, *byKey[k])
	}
	return docs
}

// Submit validates every eligible day, then writes documents one by one.
// A validation failure aborts before any write. A transport failure only
// aborts its own document. Every written line is recorded on g right away,
// so a later run continues an open document instead of repeating it. Days
// of fully written documents are marked submitted on g.
func (b *Batcher) Submit(ctx context.Context, g *timesheet.Grid, v *timesheet.Validator, comps Components, notes string) (*Result, error) {
	if err := g.Validate(v); err != nil {
		return nil, fmt.Errorf("validating before submit: %w", err)
	}

	result := &Result{RunID: b.opts.NewRunID()}
	docs := Plan(g, notes)
	b.logger.Info("submission started", "run", result.RunID, "period", g.Period.String(), "documents", len(docs))

	for _, doc := range docs {
		doc.Header.Referencia = result.RunID

		var outcome Outcome
		if err := ctx.Err(); err != nil {
			outcome = Outcome{Key: doc.Key, Status: StatusSkipped, LinesTotal: doc.LineCount(), Minutes: doc.Minutes(), Err: err}
		} else {
			outcome = b.submitDocument(ctx, g, doc, comps)
		}

		if outcome.Status == StatusSubmitted {
			for _, day := range doc.Days {
				g.MarkSubmitted(day.Worker.Key(), day.SiteID, day.Day)
			}
		}
		result.Outcomes = append(result.Outcomes, outcome)
		b.record(ctx, result.RunID, outcome)
		if b.opts.OnOutcome != nil {
			b.opts.OnOutcome(outcome)
		}
	}

	b.logger.Info("submission finished", "run", result.RunID, "submitted", result.Submitted(), "failed", result.Failed())
	return result, nil
}

func (b *Batcher) submitDocument(ctx context.Context, g *timesheet.Grid, doc Document, comps Components) Outcome {
	out := Outcome{Key: doc.Key, HeaderID: doc.HeaderID, LinesTotal: doc.LineCount(), Minutes: doc.Minutes()}

	headerID := doc.HeaderID
	if headerID == 0 {
		id, err := b.target.CreateHeader(ctx, doc.Header)
		if err != nil {
			out.Status = StatusFailed
			out.Err = &TransportError{Stage: "header", Key: doc.Key, Err: err}
			b.logger.Error("header creation failed", "document", doc.Key.String(), "error", err)
			return out
		}
		headerID = id
		out.HeaderID = id
		for _, day := range doc.Days {
			g.StartDocument(day.Worker.Key(), day.SiteID, day.Day, headerID)
		}
	} else {
		b.logger.Info("resuming open document", "document", doc.Key.String(), "header", headerID, "after_line", doc.LastLine)
	}

	numero := doc.LastLine
	for _, day := range doc.Days {
		for _, a := range day.Allocations {
			numero++
			line := b.buildLine(headerID, numero, day, a, comps)
			if err := b.target.CreateLine(ctx, line); err != nil {
				out.Status = StatusPartial
				out.Err = &TransportError{Stage: "line", Key: doc.Key, Line: numero, Err: err}
				b.logger.Error("line creation failed, document left incomplete",
					"document", doc.Key.String(), "header", headerID, "line", numero, "error", err)
				return out
			}
			g.MarkLineWritten(day.Worker.Key(), day.SiteID, day.Day, a.ID, headerID, numero)
			out.LinesWritten++
		}
	}
	out.Status = StatusSubmitted
	return out
}

func (b *Batcher) buildLine(headerID, numero int, day timesheet.EligibleDay, a timesheet.Allocation, comps Components) Line {
	classID, _ := a.ClassID()
	line := Line{
		DocumentoID: headerID,
		ObraID:      day.SiteID,
		Data:        day.Date.String(),
		Numero:      numero,
		ClasseID:    classID,
		NumHoras:    a.Minutes,
		Categoria:   string(a.Category()),
		TipoHoraID:  b.opts.Overtime.For(a.Overtime, day.Date),
		Observacoes: a.Notes,
	}

	if day.Worker.Kind == identity.Internal {
		id := day.Worker.WorkerID
		line.ColaboradorID = &id
		if code, ok := b.opts.Directory.Code(id); ok {
			line.Funcionario = code
		} else {
			line.Funcionario = strconv.Itoa(id)
			b.logger.Warn("no employee code for worker", "worker", id)
		}
	} else {
		line.Funcionario = day.Worker.Name
	}

	if comps != nil {
		component, err := comps.Lookup(a.Category(), a.Code())
		switch {
		case err == nil:
			line.SubEmpID = &component
		case errors.Is(err, catalog.ErrNotFound):
			b.logger.Warn("component lookup miss, submitting without component",
				"category", a.Category().String(), "code", a.Code(), "site", day.SiteID, "date", day.Date.String())
		default:
			b.logger.Warn("component lookup failed, submitting without component", "code", a.Code(), "error", err)
		}
	}
	return line
}

func (b *Batcher) record(ctx context.Context, runID string, o Outcome) {
	if b.opts.Ledger == nil {
		return
	}
	row := &store.Submission{
		RunID:    runID,
		SiteID:   o.Key.SiteID,
		Date:     o.Key.Date.String(),
		Worker:   string(o.Key.Worker),
		HeaderID: o.HeaderID,
		Lines:    o.LinesWritten,
		Minutes:  o.Minutes,
		Status:   string(o.Status),
	}
	if o.Err != nil {
		row.Error = o.Err.Error()
	}
	// The ledger write must not depend on a cancelled submission context.
	if _, err := b.opts.Ledger.InsertSubmission(context.WithoutCancel(ctx), row); err != nil {
		b.logger.Warn("recording submission outcome failed", "document", o.Key.String(), "error", err)
	}
}

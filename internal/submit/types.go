package submit

import (
	"context"
	"fmt"
	"strings"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// Header is the document header sent to the submission target.
type Header struct {
	ObraID        int    `json:"ObraID"`
	Data          string `json:"Data"`
	Notas         string `json:"Notas"`
	ColaboradorID *int   `json:"ColaboradorID"`
	Referencia    string `json:"Referencia,omitempty"`
}

// MaxNotesLength is the longest header note the target accepts, in runes.
const MaxNotesLength = 250

// HeaderNotes puts free text in the form a header stores: one line with
// single spaces, cut to MaxNotesLength.
func HeaderNotes(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > MaxNotesLength {
		s = strings.TrimSpace(string(r[:MaxNotesLength]))
	}
	return s
}

// Line is one detail line of a document.
type Line struct {
	DocumentoID   int    `json:"DocumentoID"`
	ObraID        int    `json:"ObraID"`
	Data          string `json:"Data"`
	Numero        int    `json:"Numero"`
	ColaboradorID *int   `json:"ColaboradorID"`
	Funcionario   string `json:"Funcionario"`
	ClasseID      int    `json:"ClasseID"`
	SubEmpID      *int   `json:"SubEmpID"`
	NumHoras      int    `json:"NumHoras"`
	Categoria     string `json:"categoria"`
	TipoHoraID    *int   `json:"TipoHoraID"`
	Observacoes   string `json:"Observacoes"`
}

// Target receives submitted documents.
type Target interface {
	CreateHeader(ctx context.Context, h Header) (int, error)
	CreateLine(ctx context.Context, l Line) error
}

// Components resolves component ids at submit time.
type Components interface {
	Lookup(c timesheet.Category, code string) (int, error)
}

// OvertimeCodes are the hour-type ids for overtime lines. Normal hours
// carry no hour type.
type OvertimeCodes struct {
	Weekday int
	Weekend int
}

func (o OvertimeCodes) For(overtime bool, d timecalc.Date) *int {
	if !overtime {
		return nil
	}
	code := o.Weekday
	if d.IsWeekend() {
		code = o.Weekend
	}
	return &code
}

// DocumentKey identifies one header. Worker is empty for the shared
// external-worker document of a site and day.
type DocumentKey struct {
	SiteID int
	Date   timecalc.Date
	Worker identity.Key
}

func (k DocumentKey) String() string {
	if k.Worker == "" {
		return fmt.Sprintf("site %d %s externals", k.SiteID, k.Date)
	}
	return fmt.Sprintf("site %d %s %s", k.SiteID, k.Date, k.Worker)
}

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result of one document.
type Outcome struct {
	Key          DocumentKey
	Status       Status
	HeaderID     int
	LinesWritten int
	LinesTotal   int
	Minutes      int
	Err          error
}

// TransportError is a failed header or line write. It aborts only its
// own document.
type TransportError struct {
	Stage string
	Key   DocumentKey
	Line  int
	Err   error
}

func (e *TransportError) Error() string {
	if e.Stage == "line" {
		return fmt.Sprintf("creating line %d of %s: %v", e.Line, e.Key, e.Err)
	}
	return fmt.Sprintf("creating %s of %s: %v", e.Stage, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Result summarizes a submission run.
type Result struct {
	RunID    string
	Outcomes []Outcome
}

func (r *Result) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Result) Submitted() int {
	return r.count(StatusSubmitted)
}

// Failed counts documents that were not fully written.
func (r *Result) Failed() int {
	return len(r.Outcomes) - r.Submitted()
}

// OK reports whether every document was written.
func (r *Result) OK() bool {
	return r.Failed() == 0
}

package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

var march = timesheet.Period{Year: 2025, Month: time.March}

func sampleDocs() []submit.Document {
	d := timecalc.Date{Year: 2025, Month: time.March, Day: 5}
	ana := identity.NewInternal(7, "Ana")
	return []submit.Document{{
		Key: submit.DocumentKey{SiteID: 1, Date: d, Worker: ana.Key()},
		Days: []timesheet.EligibleDay{{
			Worker: ana, SiteID: 1, SiteName: "Obra Norte", Day: 5, Date: d,
			Allocations: []timesheet.Allocation{{Day: 5, SiteID: 1, Minutes: 240}},
		}},
	}}
}

func TestSubmitAppFlow(t *testing.T) {
	docs := sampleDocs()
	progress := make(chan submit.Outcome, 1)
	var gotNotes string
	run := func(notes string) (*submit.Result, error) {
		gotNotes = notes
		return &submit.Result{RunID: "run-1", Outcomes: []submit.Outcome{{Key: docs[0].Key, Status: submit.StatusSubmitted, Minutes: 240}}}, nil
	}
	app := NewSubmitApp("2025-03", docs, progress, run, nil)

	if v := app.View(); !strings.Contains(v, "1 documents") || !strings.Contains(v, "Obra Norte") {
		t.Errorf("review view missing plan:\n%s", v)
	}

	for _, r := range "semana 10" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || app.state != submittingView {
		t.Fatalf("enter did not start submission, state = %d", app.state)
	}

	progress <- submit.Outcome{Key: docs[0].Key, Status: submit.StatusSubmitted, Minutes: 240}
	msg := waitForOutcome(progress)()
	app.Update(msg)
	if len(app.outcomes) != 1 || !strings.Contains(app.View(), "1/1") {
		t.Errorf("progress view:\n%s", app.View())
	}

	app.Update(app.runCmd("semana 10")())
	if app.state != doneView {
		t.Fatalf("state = %d, want done", app.state)
	}
	if gotNotes != "semana 10" {
		t.Errorf("notes = %q", gotNotes)
	}
	res := app.GetResult()
	if res == nil || res.Cancelled || !res.Submit.OK() {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(app.View(), "Submitted 1 documents") {
		t.Errorf("done view:\n%s", app.View())
	}
}

func TestSubmitAppEscCancels(t *testing.T) {
	app := NewSubmitApp("2025-03", sampleDocs(), nil, nil, nil)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if res := app.GetResult(); res == nil || !res.Cancelled {
		t.Errorf("result = %+v", res)
	}
}

func TestSubmitAppCtrlCWhileSubmittingCancelsRun(t *testing.T) {
	cancelled := false
	app := NewSubmitApp("2025-03", sampleDocs(), nil, func(string) (*submit.Result, error) { return nil, nil }, func() { cancelled = true })
	app.state = submittingView

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Error("ctrl+c did not cancel the run")
	}
	if app.GetResult() != nil {
		t.Error("screen must wait for the run to finish")
	}
}

func TestDoneViewReportsFailures(t *testing.T) {
	docs := sampleDocs()
	app := NewSubmitApp("2025-03", docs, nil, nil, nil)
	app.Update(doneMsg{result: &submit.Result{RunID: "r", Outcomes: []submit.Outcome{
		{Key: docs[0].Key, Status: submit.StatusPartial, LinesWritten: 1, LinesTotal: 2, Err: errors.New("connection reset")},
	}}})

	v := app.View()
	for _, want := range []string{"1 of 1 documents", "partial 1/2", "connection reset", "stay in the draft"} {
		if !strings.Contains(v, want) {
			t.Errorf("done view missing %q:\n%s", want, v)
		}
	}
}

func TestRenderGrid(t *testing.T) {
	g := timesheet.NewGrid(march)
	v := timesheet.NewValidator(timesheet.DefaultLimits(), nil)
	ana := identity.NewInternal(7, "Ana")
	g.Ensure(ana, 1).Clock[4] = 240
	if err := g.AddAllocation(v, ana, timesheet.Allocation{
		Day: 5, SiteID: 1, Minutes: 450,
		Labor: &timesheet.LaborDetail{SpecialtyCode: "PED", ClassID: timesheet.Class(3)},
	}); err != nil {
		t.Fatal(err)
	}

	out := RenderGrid(g, 4, 5)
	for _, want := range []string{"Ana (#7)", "4c", "7.5+", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("grid missing %q:\n%s", want, out)
		}
	}
}

func TestHours(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{480, "8"},
		{450, "7.5"},
		{20, "0.3"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := hours(tt.minutes); got != tt.want {
			t.Errorf("hours(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestRenderExternals(t *testing.T) {
	out := RenderExternals(
		[]identity.ExternalTotal{{Key: identity.ExternalKey("Rui"), DisplayName: "Rui", Company: "Acme", Submitted: 120, Pending: 60}},
		[]identity.Ambiguity{{Key: identity.ExternalKey("Rui"), Names: []string{"Rui", "rui"}, Companies: []string{"Acme", "Beta"}}},
	)
	for _, want := range []string{"Rui", "2h 0m", "Possibly different people", "Acme, Beta"} {
		if !strings.Contains(out, want) {
			t.Errorf("externals missing %q:\n%s", want, out)
		}
	}
}

func TestNotesModel(t *testing.T) {
	m := newNotesModel("2025-03", "  semana\n10 ")
	if got := m.Value(); got != "semana 10" {
		t.Fatalf("prefill = %q", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	for _, r := range "  piso 2" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if got := m.Value(); got != "semana 10 piso 2" {
		t.Errorf("value = %q, want a single line", got)
	}
	if strings.Contains(m.textarea.Value(), "\n") {
		t.Error("enter inserted a newline")
	}

	v := m.View()
	if !strings.Contains(v, "2025-03") || !strings.Contains(v, fmt.Sprintf("/%d", submit.MaxNotesLength)) {
		t.Errorf("view:\n%s", v)
	}
}

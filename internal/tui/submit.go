package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
)

type viewState int

const (
	reviewView viewState = iota
	submittingView
	doneView
)

// Result is how the submission screen ended.
type Result struct {
	Cancelled bool
	Notes     string
	Submit    *submit.Result
	Err       error
}

type outcomeMsg submit.Outcome

type doneMsg struct {
	result *submit.Result
	err    error
}

// SubmitFunc runs the submission with the given header notes. It should
// close the progress channel when it returns.
type SubmitFunc func(notes string) (*submit.Result, error)

// SubmitApp reviews the planned documents, asks for header notes and shows
// per-document progress while they are written.
type SubmitApp struct {
	state    viewState
	input    notesModel
	spinner  spinner.Model
	result   *Result
	outcomes []submit.Outcome

	period   string
	docs     []submit.Document
	progress <-chan submit.Outcome
	run      SubmitFunc
	cancel   func()
}

func NewSubmitApp(period string, docs []submit.Document, progress <-chan submit.Outcome, run SubmitFunc, cancel func()) *SubmitApp {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &SubmitApp{
		state:    reviewView,
		input:    newNotesModel(period, ""),
		spinner:  s,
		period:   period,
		docs:     docs,
		progress: progress,
		run:      run,
		cancel:   cancel,
	}
}

func (a *SubmitApp) Init() tea.Cmd {
	return tea.Batch(a.input.textarea.Focus(), a.spinner.Tick)
}

func (a *SubmitApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if a.state == submittingView {
				// Let the run finish its current document and skip the rest.
				if a.cancel != nil {
					a.cancel()
				}
				return a, nil
			}
			if a.result == nil {
				a.result = &Result{Cancelled: true}
			}
			return a, tea.Quit
		}
	case outcomeMsg:
		a.outcomes = append(a.outcomes, submit.Outcome(msg))
		return a, waitForOutcome(a.progress)
	case doneMsg:
		a.state = doneView
		a.result = &Result{Notes: a.input.Value(), Submit: msg.result, Err: msg.err}
		if msg.result != nil {
			a.outcomes = msg.result.Outcomes
		}
		return a, nil
	}

	switch a.state {
	case reviewView:
		return a.updateReview(msg)
	case submittingView:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case doneView:
		if _, ok := msg.(tea.KeyMsg); ok {
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *SubmitApp) updateReview(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			a.result = &Result{Cancelled: true}
			return a, tea.Quit
		case "enter":
			if len(a.docs) == 0 {
				a.result = &Result{Cancelled: true}
				return a, tea.Quit
			}
			a.state = submittingView
			return a, tea.Batch(a.spinner.Tick, a.runCmd(a.input.Value()), waitForOutcome(a.progress))
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *SubmitApp) runCmd(notes string) tea.Cmd {
	return func() tea.Msg {
		result, err := a.run(notes)
		return doneMsg{result: result, err: err}
	}
}

func waitForOutcome(ch <-chan submit.Outcome) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		o, ok := <-ch
		if !ok {
			return nil
		}
		return outcomeMsg(o)
	}
}

func (a *SubmitApp) GetResult() *Result {
	return a.result
}

func (a *SubmitApp) View() string {
	switch a.state {
	case reviewView:
		return a.reviewView()
	case submittingView:
		var sb strings.Builder
		sb.WriteString(a.spinner.View())
		sb.WriteString(fmt.Sprintf(" Submitting %s (%d/%d documents)\n\n", a.period, len(a.outcomes), len(a.docs)))
		for _, o := range a.outcomes {
			sb.WriteString(outcomeLine(o))
			sb.WriteString("\n")
		}
		return sb.String()
	case doneView:
		return a.doneView()
	}
	return ""
}

func (a *SubmitApp) reviewView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Submit " + a.period))
	sb.WriteString("\n")

	if len(a.docs) == 0 {
		sb.WriteString(partialStyle.Render("Nothing to submit: no edited days with allocations."))
		sb.WriteString("\n")
		sb.WriteString(helpStyle.Render("Press Enter to exit"))
		return sb.String()
	}

	lines, minutes := 0, 0
	for _, d := range a.docs {
		lines += d.LineCount()
		minutes += d.Minutes()
	}
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%d documents, %d lines, %s", len(a.docs), lines, timecalc.FormatMinutes(minutes))))
	sb.WriteString("\n")

	for _, d := range a.docs {
		sb.WriteString(fmt.Sprintf("  %s  %-20s  %-24s  %2d lines  %s\n",
			d.Key.Date, truncate(siteName(d), 20), truncate(documentOwner(d), 24), d.LineCount(), timecalc.FormatMinutes(d.Minutes())))
	}
	sb.WriteString("\n")
	sb.WriteString(a.input.View())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("Enter: submit • Esc: cancel"))
	return reviewBoxStyle.Render(sb.String())
}

func (a *SubmitApp) doneView() string {
	var sb strings.Builder
	if a.result.Err != nil {
		sb.WriteString(failedStyle.Render("Error: ") + a.result.Err.Error())
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render("Press any key to exit"))
		return sb.String()
	}

	res := a.result.Submit
	if res.OK() {
		sb.WriteString(submittedStyle.Render(fmt.Sprintf("Submitted %d documents for %s!", res.Submitted(), a.period)))
	} else {
		sb.WriteString(failedStyle.Render(fmt.Sprintf("%d of %d documents were not fully written.", res.Failed(), len(res.Outcomes))))
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("run " + res.RunID))
	sb.WriteString("\n\n")
	for _, o := range a.outcomes {
		sb.WriteString(outcomeLine(o))
		sb.WriteString("\n")
	}
	if !res.OK() {
		sb.WriteString("\n")
		sb.WriteString(partialStyle.Render("Unsent days stay in the draft. Run submit again to retry them."))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("Press any key to exit"))
	return sb.String()
}

func outcomeLine(o submit.Outcome) string {
	var status string
	switch o.Status {
	case submit.StatusSubmitted:
		status = statusStyle(o.Status).Render("✓ submitted")
	case submit.StatusPartial:
		status = statusStyle(o.Status).Render(fmt.Sprintf("! partial %d/%d", o.LinesWritten, o.LinesTotal))
	case submit.StatusFailed:
		status = statusStyle(o.Status).Render("✗ failed")
	default:
		status = dimStyle.Render("- " + string(o.Status))
	}
	line := fmt.Sprintf("  %-14s %s  %s", status, o.Key, timecalc.FormatMinutes(o.Minutes))
	if o.Err != nil {
		line += "  " + dimStyle.Render(o.Err.Error())
	}
	return line
}

func siteName(d submit.Document) string {
	if len(d.Days) > 0 && d.Days[0].SiteName != "" {
		return d.Days[0].SiteName
	}
	return fmt.Sprintf("site %d", d.Key.SiteID)
}

func documentOwner(d submit.Document) string {
	if d.Key.Worker == "" {
		return "externals"
	}
	if len(d.Days) > 0 {
		return d.Days[0].Worker.String()
	}
	return string(d.Key.Worker)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

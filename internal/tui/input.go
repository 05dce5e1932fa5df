package tui

import (
	"fmt"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/sitehours/internal/submit"
)

// notesModel edits the notes written on every document header of a run.
// Headers hold a single line, so Enter is left to the caller.
type notesModel struct {
	textarea textarea.Model
	period   string
}

func newNotesModel(period string, prefill string) notesModel {
	ta := textarea.New()
	ta.Placeholder = "Header notes (optional)..."
	ta.Focus()
	ta.CharLimit = submit.MaxNotesLength
	ta.SetWidth(60)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	if prefill != "" {
		ta.SetValue(submit.HeaderNotes(prefill))
	}

	return notesModel{
		textarea: ta,
		period:   period,
	}
}

func (m notesModel) Update(msg tea.Msg) (notesModel, tea.Cmd) {
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m notesModel) View() string {
	used := utf8.RuneCountInString(m.Value())
	counter := fmt.Sprintf("%d/%d", used, submit.MaxNotesLength)
	if used >= submit.MaxNotesLength-20 {
		counter = partialStyle.Render(counter)
	} else {
		counter = dimStyle.Render(counter)
	}
	return dimStyle.Render("Notes for every header of "+m.period) + "\n" + m.textarea.View() + "\n" + counter
}

// Value is the notes as they will be sent.
func (m notesModel) Value() string {
	return submit.HeaderNotes(m.textarea.Value())
}

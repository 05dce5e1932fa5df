package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/christopherklint97/sitehours/internal/submit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginBottom(1)

	reviewBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	submittedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	overtimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	// Grid day cells, padded before styling so columns stay aligned.
	lockedCellStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1)
)

// statusStyle picks the style for a document outcome; the ledger stores the
// same status strings.
func statusStyle(s submit.Status) lipgloss.Style {
	switch s {
	case submit.StatusSubmitted:
		return submittedStyle
	case submit.StatusFailed:
		return failedStyle
	case submit.StatusPartial:
		return partialStyle
	default:
		return dimStyle
	}
}

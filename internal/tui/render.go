package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/store"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

const dayWidth = 6

// RenderGrid draws days from..to of every cell. Submitted days are marked
// "*", days edited but not yet submitted "+", and days with only clock
// readings show the clock hours followed by "c".
func RenderGrid(g *timesheet.Grid, from, to int) string {
	from = max(from, 1)
	to = min(to, g.Period.Days())

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Hours " + g.Period.String()))
	sb.WriteString("\n")

	cells := g.Cells()
	if len(cells) == 0 {
		sb.WriteString(dimStyle.Render("No hours for this period."))
		sb.WriteString("\n")
		return sb.String()
	}

	header := fmt.Sprintf("%-24s %-18s", "Worker", "Site")
	for d := from; d <= to; d++ {
		label := strconv.Itoa(d)
		if g.Period.Date(d).IsWeekend() {
			label += "s"
		}
		header += fmt.Sprintf("%*s", dayWidth, label)
	}
	header += fmt.Sprintf("%*s", 9, "Total")
	sb.WriteString(dimStyle.Render(header))
	sb.WriteString("\n")

	for _, c := range cells {
		site := c.SiteName
		if site == "" {
			site = fmt.Sprintf("site %d", c.SiteID)
		}
		sb.WriteString(fmt.Sprintf("%-24s %-18s", truncate(c.Worker.String(), 24), truncate(site, 18)))
		total := 0
		for d := from; d <= to; d++ {
			sb.WriteString(dayCell(c, d))
			total += c.Display(d)
		}
		sb.WriteString(fmt.Sprintf("%*s", 9, hours(total)))
		sb.WriteString("\n")
	}

	sb.WriteString(helpStyle.Render("* submitted • + pending • c clock only • s weekend"))
	return sb.String()
}

func dayCell(c *timesheet.Cell, day int) string {
	var text string
	switch {
	case c.Locked(day):
		return lockedCellStyle.Render(fmt.Sprintf("%*s", dayWidth, hours(c.Display(day))+"*"))
	case c.Edited[day]:
		return pendingCellStyle.Render(fmt.Sprintf("%*s", dayWidth, hours(c.Display(day))+"+"))
	case c.Clock[day] > 0:
		return dimStyle.Render(fmt.Sprintf("%*s", dayWidth, hours(c.Clock[day])+"c"))
	default:
		text = "·"
	}
	return fmt.Sprintf("%*s", dayWidth, text)
}

// hours formats minutes as decimal hours, "7.5" or "8".
func hours(minutes int) string {
	if minutes%60 == 0 {
		return strconv.Itoa(minutes / 60)
	}
	return strconv.FormatFloat(float64(minutes)/60, 'f', 1, 64)
}

// RenderPending lists the allocations not yet submitted.
func RenderPending(g *timesheet.Grid) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Pending allocations " + g.Period.String()))
	sb.WriteString("\n")

	pending := g.Pending().Allocations
	if len(pending) == 0 {
		sb.WriteString(dimStyle.Render("Nothing pending."))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, p := range pending {
		a := p.Allocation
		class := ""
		if id, ok := a.ClassID(); ok {
			class = a.ClassName
			if class == "" {
				class = strconv.Itoa(id)
			}
		}
		kind := "normal"
		if a.Overtime {
			kind = overtimeStyle.Render("overtime")
		}
		sb.WriteString(fmt.Sprintf("  %s  %-24s  site %-4d %s %-10s %-14s %8s  %s",
			g.Period.Date(a.Day), truncate(p.Worker.String(), 24), a.SiteID, a.Category(), a.Code(), truncate(class, 14),
			timecalc.FormatMinutes(a.Minutes), kind))
		if a.Notes != "" {
			sb.WriteString("  " + dimStyle.Render(a.Notes))
		}
		sb.WriteString(dimStyle.Render("  [" + a.ID + "]"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderExternals lists consolidated external workers and any name
// collisions that merged possibly different people.
func RenderExternals(totals []identity.ExternalTotal, ambiguities []identity.Ambiguity) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("External workers"))
	sb.WriteString("\n")

	if len(totals) == 0 {
		sb.WriteString(dimStyle.Render("No external workers."))
		sb.WriteString("\n")
	}
	for _, t := range totals {
		line := fmt.Sprintf("  %-28s %-18s submitted %-9s pending %-9s",
			truncate(t.DisplayName, 28), truncate(t.Company, 18),
			timecalc.FormatMinutes(t.Submitted), timecalc.FormatMinutes(t.Pending))
		if t.RosterOnly {
			line += dimStyle.Render(" (roster only)")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(ambiguities) > 0 {
		sb.WriteString("\n")
		sb.WriteString(partialStyle.Render("Possibly different people merged by name:"))
		sb.WriteString("\n")
		for _, a := range ambiguities {
			sb.WriteString(fmt.Sprintf("  %s: names %s", a.Key, strings.Join(a.Names, ", ")))
			if len(a.Companies) > 0 {
				sb.WriteString(fmt.Sprintf("; companies %s", strings.Join(a.Companies, ", ")))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// RenderLedger lists recorded submission outcomes, newest first.
func RenderLedger(rows []store.Submission) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Submission ledger"))
	sb.WriteString("\n")

	if len(rows) == 0 {
		sb.WriteString(dimStyle.Render("No submissions recorded."))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, r := range rows {
		worker := r.Worker
		if worker == "" {
			worker = "externals"
		}
		status := statusStyle(submit.Status(r.Status)).Render(r.Status)
		sb.WriteString(fmt.Sprintf("  %s  %s  site %-4d %-14s %3d lines %8s  %s",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Date, r.SiteID, worker, r.Lines,
			timecalc.FormatMinutes(r.Minutes), status))
		if r.HeaderID != 0 {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("  doc %d", r.HeaderID)))
		}
		if r.Error != "" {
			sb.WriteString("  " + dimStyle.Render(r.Error))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

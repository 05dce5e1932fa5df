package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/sitehours/internal/identity"
	"github.com/christopherklint97/sitehours/internal/session"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Book an allocation for a worker on a site and day",
	Long: `Book one allocation line. Use --specialty with --class for labor, or
--equipment for equipment. Class -1 (unclassified) requires --notes.`,
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <allocation-id>",
	Short: "Remove a pending allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var clearDayCmd = &cobra.Command{
	Use:   "clear-day",
	Short: "Remove every pending allocation of a worker on a site and day",
	RunE:  runClearDay,
}

func init() {
	for _, c := range []*cobra.Command{addCmd, removeCmd, clearDayCmd} {
		c.Flags().Int("worker", 0, "internal worker id")
		c.Flags().String("external", "", "external worker name")
		c.Flags().String("company", "", "external worker company")
		c.Flags().Int("site", 0, "site id")
	}
	addCmd.Flags().Int("day", 0, "day of month")
	clearDayCmd.Flags().Int("day", 0, "day of month")

	addAllocationFlags(addCmd)
}

func addAllocationFlags(cmd *cobra.Command) {
	cmd.Flags().Int("minutes", 0, "minutes worked")
	cmd.Flags().String("hours", "", `duration such as "7h30m" (alternative to --minutes)`)
	cmd.Flags().String("specialty", "", "specialty code (labor)")
	cmd.Flags().Int("class", 0, "classification id (labor, -1 for unclassified)")
	cmd.Flags().String("equipment", "", "equipment code")
	cmd.Flags().Bool("overtime", false, "book as overtime")
	cmd.Flags().String("notes", "", "notes for the line")
}

// allocationFromFlags builds the allocation described by the add flags.
func allocationFromFlags(cmd *cobra.Command) (timesheet.Allocation, error) {
	day, _ := cmd.Flags().GetInt("day")
	site, _ := cmd.Flags().GetInt("site")
	minutes, _ := cmd.Flags().GetInt("minutes")
	hours, _ := cmd.Flags().GetString("hours")
	specialty, _ := cmd.Flags().GetString("specialty")
	class, _ := cmd.Flags().GetInt("class")
	equipment, _ := cmd.Flags().GetString("equipment")
	overtime, _ := cmd.Flags().GetBool("overtime")
	notes, _ := cmd.Flags().GetString("notes")

	if hours != "" {
		m, err := parseHours(hours)
		if err != nil {
			return timesheet.Allocation{}, err
		}
		minutes = m
	}

	a := timesheet.Allocation{
		Day:      day,
		SiteID:   site,
		Minutes:  minutes,
		Overtime: overtime,
		Notes:    notes,
	}
	switch {
	case specialty != "" && equipment != "":
		return timesheet.Allocation{}, fmt.Errorf("use either --specialty or --equipment, not both")
	case equipment != "":
		a.Equipment = &timesheet.EquipmentDetail{EquipmentCode: equipment}
	default:
		a.Labor = &timesheet.LaborDetail{SpecialtyCode: specialty}
		if cmd.Flags().Changed("class") {
			a.Labor.ClassID = timesheet.Class(class)
		}
	}
	return a, nil
}

func workerFromFlags(cmd *cobra.Command, s *session.Session) (identity.Identity, error) {
	id, _ := cmd.Flags().GetInt("worker")
	name, _ := cmd.Flags().GetString("external")
	company, _ := cmd.Flags().GetString("company")
	if id > 0 && name != "" {
		return identity.Identity{}, fmt.Errorf("use either --worker or --external, not both")
	}
	return s.ResolveWorker(id, name, company)
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := allocationFromFlags(cmd)
	if err != nil {
		return err
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	worker, err := workerFromFlags(cmd, s)
	if err != nil {
		return err
	}

	id, err := s.AddAllocation(context.WithoutCancel(ctx), worker, a)
	if err != nil {
		return err
	}
	fmt.Printf("Booked %s for %s on site %d, %s [%s]\n",
		timecalc.FormatMinutes(a.Minutes), worker, a.SiteID, e.period.Date(a.Day), id)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	worker, err := workerFromFlags(cmd, s)
	if err != nil {
		return err
	}
	site, _ := cmd.Flags().GetInt("site")
	if err := s.RemoveAllocation(worker.Key(), site, args[0]); err != nil {
		return err
	}
	if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	fmt.Printf("Removed allocation %s.\n", args[0])
	return nil
}

func runClearDay(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	worker, err := workerFromFlags(cmd, s)
	if err != nil {
		return err
	}
	site, _ := cmd.Flags().GetInt("site")
	day, _ := cmd.Flags().GetInt("day")
	s.ClearDay(worker.Key(), site, day)
	if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	fmt.Printf("Cleared %s on site %d, %s.\n", worker, site, e.period.Date(day))
	return nil
}

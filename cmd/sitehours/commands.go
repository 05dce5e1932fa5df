package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/sitehours/internal/config"
	"github.com/christopherklint97/sitehours/internal/draft"
	"github.com/christopherklint97/sitehours/internal/store"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timecalc"
	"github.com/christopherklint97/sitehours/internal/timesheet"
	"github.com/christopherklint97/sitehours/internal/tui"
)

const lastRunKey = "last_submit_run"

func runStatus(cmd *cobra.Command, args []string) error {
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

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	s.View(func(g *timesheet.Grid) {
		fmt.Println(tui.RenderGrid(g, from, to))
		if n := len(g.Eligible()); n > 0 {
			fmt.Printf("\n%d days pending submission.\n", n)
		}
	})
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
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

	var docs []submit.Document
	s.View(func(g *timesheet.Grid) {
		docs = submit.Plan(g, "")
	})

	yes, _ := cmd.Flags().GetBool("yes")
	notes, _ := cmd.Flags().GetString("notes")

	var result *submit.Result
	if yes {
		if len(docs) == 0 {
			fmt.Println("Nothing to submit.")
			return nil
		}
		result, err = s.Submit(ctx, notes)
		if err != nil {
			return err
		}
		for _, o := range result.Outcomes {
			line := fmt.Sprintf("  %-9s %s  %s", o.Status, o.Key, timecalc.FormatMinutes(o.Minutes))
			if o.Err != nil {
				line += "  " + o.Err.Error()
			}
			fmt.Println(line)
		}
	} else {
		e.progress = make(chan submit.Outcome, len(docs))
		run := func(notes string) (*submit.Result, error) {
			defer close(e.progress)
			return s.Submit(ctx, notes)
		}
		app := tui.NewSubmitApp(e.period.String(), docs, e.progress, run, cancel)
		p := tea.NewProgram(app)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		res := app.GetResult()
		if res == nil || res.Cancelled {
			fmt.Println("Submission cancelled.")
			return nil
		}
		if res.Err != nil {
			return res.Err
		}
		result = res.Submit
	}

	if err := e.db.SetState(lastRunKey, result.RunID); err != nil {
		e.logger.Warn("recording last run", "error", err)
	}
	if !result.OK() {
		return fmt.Errorf("%d of %d documents were not fully written (run %s)", result.Failed(), len(result.Outcomes), result.RunID)
	}
	fmt.Printf("Submitted %d documents for %s.\n", result.Submitted(), e.period)
	return nil
}

func runDraftShow(cmd *cobra.Command, args []string) error {
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
	if !s.Restored {
		fmt.Printf("No draft stored for %s.\n", e.period)
		return nil
	}
	s.View(func(g *timesheet.Grid) {
		fmt.Println(tui.RenderPending(g))
	})
	return nil
}

func runDraftClear(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	user := e.cfg.Backend.User
	adapter := draft.NewAdapter(e.drafts, user, nil, e.logger)
	if err := adapter.Delete(context.Background(), e.period); err != nil {
		return err
	}
	fmt.Printf("Draft %s cleared.\n", draft.KeyFor(user, e.period))
	return nil
}

func runExternals(cmd *cobra.Command, args []string) error {
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
	fmt.Println(tui.RenderExternals(s.Externals()))
	return nil
}

func runClasses(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	idx, err := e.catalog.Load(ctx)
	if err != nil {
		return err
	}
	sp, ok := idx.Specialty(args[0])
	if !ok {
		return fmt.Errorf("unknown specialty %q", args[0])
	}
	fmt.Printf("%s  %s\n\n", sp.Code, sp.Name)
	for _, c := range idx.ClassesFor(sp.Code) {
		fmt.Printf("  %4d  %s\n", c.ID, c.Name)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := draft.Schema()
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runLedger(cmd *cobra.Command, args []string) error {
	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("limit")
	failed, _ := cmd.Flags().GetBool("failed")
	last, _ := cmd.Flags().GetBool("last")

	var rows []store.Submission
	switch {
	case last:
		runID, err := db.GetState(lastRunKey)
		if err != nil {
			return fmt.Errorf("reading last run: %w", err)
		}
		if runID == "" {
			fmt.Println("No submission run recorded yet.")
			return nil
		}
		rows, err = db.GetRunSubmissions(ctx, runID)
		if err != nil {
			return err
		}
	case failed:
		rows, err = db.GetFailedSubmissions(ctx)
	default:
		rows, err = db.GetRecentSubmissions(ctx, limit)
	}
	if err != nil {
		return err
	}
	fmt.Println(tui.RenderLedger(rows))
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[backend]
base_url = ""
api_key = ""
user = ""

[limits]
site_day_minutes = %d
day_minutes = %d
clock_cutoff = "%s"

[overtime]
weekday_code = 0
weekend_code = 0

[draft]
store = "%s"
debounce_seconds = %d

[loader]
worker_chunk = %d
day_chunk = %d
parallelism = %d

[cache]
ttl_minutes = %d

[catalog]
equipment_prefix = ""
retries = %d
retry_base_ms = %d

[notifications]
enabled = %t

[calendar]
source = ""
`,
			cfg.Limits.SiteDayMinutes,
			cfg.Limits.DayMinutes,
			cfg.Limits.ClockCutoff,
			cfg.Draft.Store,
			cfg.Draft.DebounceSeconds,
			cfg.Loader.WorkerChunk,
			cfg.Loader.DayChunk,
			cfg.Loader.Parallelism,
			cfg.Cache.TTLMinutes,
			cfg.Catalog.Retries,
			cfg.Catalog.RetryBaseMS,
			cfg.Notifications.Enabled,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	if len(args) == 3 {
		return config.Set(configPath, args[0], args[1], configValue(args[2]))
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)
	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

// configValue types a command-line value the way TOML would.
func configValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

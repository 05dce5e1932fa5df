package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/sitehours/internal/backend"
	"github.com/christopherklint97/sitehours/internal/calendar"
	"github.com/christopherklint97/sitehours/internal/catalog"
	"github.com/christopherklint97/sitehours/internal/config"
	"github.com/christopherklint97/sitehours/internal/draft"
	"github.com/christopherklint97/sitehours/internal/scheduler"
	"github.com/christopherklint97/sitehours/internal/session"
	"github.com/christopherklint97/sitehours/internal/store"
	"github.com/christopherklint97/sitehours/internal/submit"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

var rootCmd = &cobra.Command{
	Use:           "sitehours",
	Short:         "Reconcile and submit monthly site hours",
	Long:          "sitehours merges clock readings, manual allocations and submitted records into a monthly worker/site grid and submits the pending days.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"reconcile"},
	Short:   "Show the reconciled hours grid for a period",
	RunE:    runStatus,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit every edited, unsubmitted day of a period",
	RunE:  runSubmit,
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or discard the stored draft",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List pending allocations",
	RunE:  runDraftShow,
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored draft for a period",
	RunE:  runDraftClear,
}

var externalsCmd = &cobra.Command{
	Use:   "externals",
	Short: "List external workers with consolidated hours",
	RunE:  runExternals,
}

var classesCmd = &cobra.Command{
	Use:   "classes <specialty>",
	Short: "List the classifications a specialty accepts",
	Args:  cobra.ExactArgs(1),
	RunE:  runClasses,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of stored drafts",
	RunE:  runSchema,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show recorded submission outcomes",
	RunE:  runLedger,
}

var configCmd = &cobra.Command{
	Use:   "config [section key value]",
	Short: "Open config file in your editor, or set one value",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 3 {
			return fmt.Errorf("expected no arguments or <section> <key> <value>")
		}
		return nil
	},
	RunE: runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringP("period", "p", "", `period as YYYY-MM or a phrase like "last month" (default: current month)`)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")

	statusCmd.Flags().Int("from", 1, "first day to show")
	statusCmd.Flags().Int("to", 31, "last day to show")

	submitCmd.Flags().BoolP("yes", "y", false, "submit without the interactive review")
	submitCmd.Flags().String("notes", "", "notes written on every document header")

	ledgerCmd.Flags().Int("limit", 30, "number of rows to show")
	ledgerCmd.Flags().Bool("failed", false, "show only documents that were not fully written")
	ledgerCmd.Flags().Bool("last", false, "show only the most recent run")

	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftClearCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearDayCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(externalsCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w; run 'sitehours config' to set it up", err)
	}
	return cfg, nil
}

// env is everything a command needs to work on one period.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	client   *backend.Client
	drafts   draft.Store
	catalog  *catalog.Catalog
	manager  *session.Manager
	period   timesheet.Period
	progress chan submit.Outcome
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd)

	periodFlag, _ := cmd.Flags().GetString("period")
	period, err := parsePeriod(periodFlag, time.Now())
	if err != nil {
		return nil, err
	}
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}

	db, err := store.Open()
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client := backend.NewClient(cfg.Backend.APIKey, cfg.Backend.BaseURL, logger)
	e := &env{cfg: cfg, logger: logger, db: db, client: client, period: period}

	e.drafts = client
	if cfg.Draft.Store == "local" {
		e.drafts = db
	}
	e.catalog = catalog.New(client, catalog.Options{
		EquipmentPrefix: cfg.Catalog.EquipmentPrefix,
		Retries:         cfg.Catalog.Retries,
		RetryBase:       cfg.RetryBase(),
		CacheTTL:        cfg.CacheTTL(),
		Logger:          logger,
	})
	var clock session.ClockSource = client
	if cfg.Calendar.Source != "" {
		clock = calendar.NewSource(cfg.Calendar.Source)
	}
	var notify func(title, message string)
	if cfg.Notifications.Enabled {
		notify = scheduler.SendNotification
	}

	e.manager = session.NewManager(session.Deps{
		Backend: client,
		Clock:   clock,
		Catalog: e.catalog,
		Drafts:  e.drafts,
		Target:  client,
		Ledger:  db,
	}, session.Options{
		User:   cfg.Backend.User,
		Limits: timesheet.Limits{SiteDayMinutes: cfg.Limits.SiteDayMinutes, DayMinutes: cfg.Limits.DayMinutes},
		Loader: session.LoaderOptions{
			WorkerChunk: cfg.Loader.WorkerChunk,
			DayChunk:    cfg.Loader.DayChunk,
			Parallelism: cfg.Loader.Parallelism,
			Cutoff:      cutoff,
		},
		Overtime: submit.OvertimeCodes{Weekday: cfg.Overtime.WeekdayCode, Weekend: cfg.Overtime.WeekendCode},
		CacheTTL: cfg.CacheTTL(),
		Debounce: cfg.DebounceDelay(),
		Notify:   notify,
		OnOutcome: func(o submit.Outcome) {
			if e.progress == nil {
				return
			}
			select {
			case e.progress <- o:
			default:
			}
		},
		Logger: logger,
	})
	return e, nil
}

func (e *env) Close() {
	e.db.Close()
}

// open loads the period, reporting draft restoration on stdout.
func (e *env) open(ctx context.Context) (*session.Session, error) {
	s, err := e.manager.Open(ctx, e.period)
	if err != nil {
		return nil, err
	}
	if s.Dropped > 0 {
		fmt.Printf("Note: %d draft allocations were dropped because their days are already submitted.\n", s.Dropped)
	}
	return s, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

package draft

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/sitehours/internal/scheduler"
)

// DefaultQuietPeriod is the debounce delay between the last change and a save.
const DefaultQuietPeriod = 2 * time.Second

// Autosaver debounces saves of the in-progress session.
type Autosaver struct {
	debouncer *scheduler.Debouncer
	quiet     time.Duration
	save      func(ctx context.Context) error
	logger    *slog.Logger
}

func NewAutosaver(d *scheduler.Debouncer, quiet time.Duration, save func(ctx context.Context) error, logger *slog.Logger) *Autosaver {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Autosaver{debouncer: d, quiet: quiet, save: save, logger: logger}
}

// Changed schedules a save after the quiet period, replacing any save
// still waiting.
func (a *Autosaver) Changed() {
	a.debouncer.Schedule(a.quiet, func() {
		if err := a.save(context.Background()); err != nil {
			a.logger.Error("autosave failed", "error", err)
		}
	})
}

// SaveNow cancels any pending save and saves immediately.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	a.debouncer.CancelPending()
	return a.save(ctx)
}

// Cancel drops a pending save without running it.
func (a *Autosaver) Cancel() {
	a.debouncer.CancelPending()
}

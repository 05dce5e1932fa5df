package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/christopherklint97/sitehours/internal/cache"
	"github.com/christopherklint97/sitehours/internal/timesheet"
)

// ErrNotFound is returned when a code has no catalog entry.
var ErrNotFound = errors.New("not found in catalog")

type Specialty struct {
	Code        string `json:"Codigo"`
	Name        string `json:"Descricao"`
	ComponentID int    `json:"SubEmpID"`
	Tag         string `json:"Tag"`
}

type Equipment struct {
	Code        string `json:"Codigo"`
	Name        string `json:"Descricao"`
	ComponentID int    `json:"SubEmpID"`
}

type Class struct {
	ID   int    `json:"ID"`
	Name string `json:"Descricao"`
	Tag  string `json:"Tag"`
}

var unclassified = Class{ID: timesheet.Unclassified, Name: "Unclassified"}

// Source fetches the raw catalog lists.
type Source interface {
	Specialties(ctx context.Context) ([]Specialty, error)
	Equipment(ctx context.Context, prefix string) ([]Equipment, error)
	Classes(ctx context.Context) ([]Class, error)
}

type Options struct {
	EquipmentPrefix string
	Retries         int
	RetryBase       time.Duration
	CacheTTL        time.Duration
	Now             func() time.Time
	Sleep           func(ctx context.Context, d time.Duration) error
	Logger          *slog.Logger
}

// Catalog loads and caches the reference lists used to validate and
// submit allocations.
type Catalog struct {
	source Source
	opts   Options
	cache  *cache.TTL[string, *Index]
	logger *slog.Logger
}

func New(source Source, opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Catalog{
		source: source,
		opts:   opts,
		cache:  cache.NewTTL[string, *Index](opts.CacheTTL, opts.Now),
		logger: opts.Logger,
	}
}

const indexKey = "catalog"

// Load returns the current catalog index, fetching it when the cached copy
// expired. Each list is fetched with bounded exponential backoff.
func (c *Catalog) Load(ctx context.Context) (*Index, error) {
	if idx, ok := c.cache.Get(indexKey); ok {
		return idx, nil
	}

	var specialties []Specialty
	if err := c.retry(ctx, "specialties", func() (err error) {
		specialties, err = c.source.Specialties(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading specialties: %w", err)
	}

	var equipment []Equipment
	if err := c.retry(ctx, "equipment", func() (err error) {
		equipment, err = c.source.Equipment(ctx, c.opts.EquipmentPrefix)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading equipment: %w", err)
	}

	var classes []Class
	if err := c.retry(ctx, "classes", func() (err error) {
		classes, err = c.source.Classes(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading classes: %w", err)
	}

	idx := NewIndex(specialties, filterPrefix(equipment, c.opts.EquipmentPrefix), classes)
	c.cache.Set(indexKey, idx)
	c.logger.Debug("catalog loaded",
		"specialties", len(specialties),
		"equipment", len(idx.equipment),
		"classes", len(classes),
	)
	return idx, nil
}

// Refresh drops the cached index so the next Load refetches.
func (c *Catalog) Refresh() {
	c.cache.Invalidate(indexKey)
}

func (c *Catalog) retry(ctx context.Context, what string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == c.opts.Retries {
			break
		}
		delay := c.opts.RetryBase << attempt
		c.logger.Debug("catalog fetch failed, retrying", "list", what, "attempt", attempt+1, "delay", delay, "error", err)
		if serr := c.opts.Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	c.logger.Error("catalog fetch failed after retries", "list", what, "attempts", c.opts.Retries+1, "error", err)
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func filterPrefix(items []Equipment, prefix string) []Equipment {
	if prefix == "" {
		return items
	}
	var out []Equipment
	for _, e := range items {
		if strings.HasPrefix(e.Code, prefix) {
			out = append(out, e)
		}
	}
	return out
}

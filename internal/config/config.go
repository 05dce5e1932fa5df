package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/christopherklint97/sitehours/internal/timecalc"
)

type Config struct {
	Backend       BackendConfig  `toml:"backend"`
	Limits        LimitsConfig   `toml:"limits"`
	Overtime      OvertimeConfig `toml:"overtime"`
	Draft         DraftConfig    `toml:"draft"`
	Loader        LoaderConfig   `toml:"loader"`
	Cache         CacheConfig    `toml:"cache"`
	Catalog       CatalogConfig  `toml:"catalog"`
	Notifications NotifyConfig   `toml:"notifications"`
	Calendar      CalendarConfig `toml:"calendar"`
}

type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	User    string `toml:"user"`
}

type LimitsConfig struct {
	SiteDayMinutes int    `toml:"site_day_minutes"`
	DayMinutes     int    `toml:"day_minutes"`
	ClockCutoff    string `toml:"clock_cutoff"` // "HH:MM"
}

// Overtime type codes sent with overtime lines. Zero means "not configured".
type OvertimeConfig struct {
	WeekdayCode int `toml:"weekday_code"`
	WeekendCode int `toml:"weekend_code"`
}

type DraftConfig struct {
	Store           string `toml:"store"` // "remote" or "local"
	DebounceSeconds int    `toml:"debounce_seconds"`
}

type LoaderConfig struct {
	WorkerChunk int `toml:"worker_chunk"`
	DayChunk    int `toml:"day_chunk"`
	Parallelism int `toml:"parallelism"`
}

type CacheConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

type CatalogConfig struct {
	EquipmentPrefix string `toml:"equipment_prefix"`
	Retries         int    `toml:"retries"`
	RetryBaseMS     int    `toml:"retry_base_ms"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type CalendarConfig struct {
	Source string `toml:"source"` // ICS URL or file path; empty uses the backend
}

func DefaultConfig() Config {
	return Config{
		Limits: LimitsConfig{
			SiteDayMinutes: 480,
			DayMinutes:     600,
			ClockCutoff:    "18:00",
		},
		Draft: DraftConfig{
			Store:           "remote",
			DebounceSeconds: 2,
		},
		Loader: LoaderConfig{
			WorkerChunk: 10,
			DayChunk:    7,
			Parallelism: 4,
		},
		Cache: CacheConfig{
			TTLMinutes: 5,
		},
		Catalog: CatalogConfig{
			Retries:     3,
			RetryBaseMS: 500,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
	}
}

// Cutoff returns the clock cutoff as an offset from midnight.
func (c *Config) Cutoff() (time.Duration, error) {
	if c.Limits.ClockCutoff == "" {
		return timecalc.DefaultCutoff, nil
	}
	d, err := timecalc.ParseTimeOfDay(c.Limits.ClockCutoff)
	if err != nil {
		return 0, fmt.Errorf("limits.clock_cutoff: %w", err)
	}
	return d, nil
}

func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Draft.DebounceSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Catalog.RetryBaseMS) * time.Millisecond
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is not set (or SITEHOURS_BASE_URL)")
	}
	if c.Limits.SiteDayMinutes <= 0 || c.Limits.DayMinutes <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	switch c.Draft.Store {
	case "remote", "local":
	default:
		return fmt.Errorf("draft.store must be \"remote\" or \"local\", got %q", c.Draft.Store)
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	return nil
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "sitehours"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SITEHOURS_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("SITEHOURS_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("SITEHOURS_USER"); v != "" {
		cfg.Backend.User = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Set writes one key of one section to the config file at path, using a
// read-modify-write so other settings are preserved.
func Set(path, section, key string, value any) error {
	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	sec, ok := cfg[section].(map[string]any)
	if !ok {
		sec = make(map[string]any)
	}
	sec[key] = value
	cfg[section] = sec

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

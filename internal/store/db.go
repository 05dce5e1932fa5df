package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/christopherklint97/sitehours/internal/draft"
)

type DB struct {
	*sql.DB
}

// Open opens the database in ~/.config/sitehours.
func Open() (*DB, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}

	dir := filepath.Join(home, ".config", "sitehours")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return OpenPath(filepath.Join(dir, "sitehours.db"))
}

func OpenPath(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &DB{db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			user TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			data BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user, year, month)
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			site_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			worker TEXT NOT NULL,
			header_id INTEGER,
			lines INTEGER NOT NULL DEFAULT 0,
			minutes INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS submissions_run ON submissions (run_id)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	return nil
}

func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Save implements draft.Store.
func (db *DB) Save(ctx context.Context, key draft.Key, data []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO drafts (user, year, month, data, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user, year, month) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key.User, key.Year, int(key.Month), data,
	)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// Load implements draft.Store.
func (db *DB) Load(ctx context.Context, key draft.Key) ([]byte, error) {
	var data []byte
	err := db.QueryRowContext(ctx,
		"SELECT data FROM drafts WHERE user = ? AND year = ? AND month = ?",
		key.User, key.Year, int(key.Month),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, draft.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	return data, nil
}

// Delete implements draft.Store.
func (db *DB) Delete(ctx context.Context, key draft.Key) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM drafts WHERE user = ? AND year = ? AND month = ?",
		key.User, key.Year, int(key.Month),
	)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS packages (
		dir TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		generator TEXT NOT NULL,
		outputs TEXT NOT NULL
	);
`

// sqliteBackend stores the cache in an SQLite database, one row per package.
// It suits caches shared by many packages of a large repository.
type sqliteBackend struct {
	path string
}

func (b sqliteBackend) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database '%s': %w", b.path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache database connection test failed for '%s': %w", b.path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema in '%s': %w", b.path, err)
	}
	return db, nil
}

func (b sqliteBackend) load() (map[string]Entry, error) {
	if _, err := os.Stat(b.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	db, err := b.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var version string
	err = db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache version from '%s': %w", b.path, err)
	}
	if version != strconv.Itoa(FormatVersion) {
		return nil, fmt.Errorf("cache %s has version %s, expected %d", b.path, version, FormatVersion)
	}

	rows, err := db.Query(`SELECT dir, source_hash, config_hash, generator, outputs FROM packages`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache '%s': %w", b.path, err)
	}
	defer rows.Close()

	packages := make(map[string]Entry)
	for rows.Next() {
		var (
			dir     string
			outputs string
			entry   Entry
		)
		if err := rows.Scan(&dir, &entry.SourceHash, &entry.ConfigHash, &entry.Generator, &outputs); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		if err := json.Unmarshal([]byte(outputs), &entry.Outputs); err != nil {
			return nil, fmt.Errorf("failed to parse outputs of %s in cache '%s': %w", dir, b.path, err)
		}
		packages[dir] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache '%s': %w", b.path, err)
	}
	return packages, nil
}

// save replaces every row in a single transaction
func (b sqliteBackend) save(packages map[string]Entry) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages`); err != nil {
		return fmt.Errorf("failed to clear cache '%s': %w", b.path, err)
	}
	for dir, entry := range packages {
		outputs, err := json.Marshal(entry.Outputs)
		if err != nil {
			return fmt.Errorf("failed to encode outputs of %s: %w", dir, err)
		}
		_, err = tx.Exec(`
			INSERT INTO packages (dir, source_hash, config_hash, generator, outputs) VALUES (?, ?, ?, ?, ?)
		`, dir, entry.SourceHash, entry.ConfigHash, entry.Generator, string(outputs))
		if err != nil {
			return fmt.Errorf("failed to record %s in cache '%s': %w", dir, b.path, err)
		}
	}
	_, err = tx.Exec(`
		INSERT INTO cache_meta (key, value) VALUES ('version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(FormatVersion))
	if err != nil {
		return fmt.Errorf("failed to record cache version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache '%s': %w", b.path, err)
	}
	return nil
}

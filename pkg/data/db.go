// Package data is the SQLite store layer: the event store read by build,
// the discriminant store it writes, and the histogram/graph store shared
// by hist and roc.
package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

// Schema names accepted by Init.
const (
	SchemaEvents = "events"
	SchemaDiscr  = "discr"
	SchemaHist   = "hist"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Init creates the store file with the given schema if it does not exist
// yet. Opening an existing file leaves its contents untouched.
func Init(path, schema string) error {
	if path == "" {
		return errors.New("store path required")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat store %s: %w", path, err)
	}

	b, err := schemaFS.ReadFile("sql/" + schema + ".sql")
	if err != nil {
		return fmt.Errorf("unknown store schema %q: %w", schema, err)
	}

	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Debug("creating store schema", "path", path, "schema", schema)
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("failed to create %s schema in %s: %w", schema, path, err)
	}
	return nil
}

// Open opens a store file, creating an empty file when missing. Use
// OpenExisting when a missing file is a configuration error.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return db, nil
}

// OpenExisting opens a store file and fails when the file does not exist.
func OpenExisting(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("store file does not exist: %s", path)
	}
	return Open(path)
}

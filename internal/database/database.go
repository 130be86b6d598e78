// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Open returns a sql.DB reference to the SQLite database at the input
// path, creating the file and any parent directories if required.
// The connection is configured for a single long-lived process: WAL
// journalling, foreign keys enforced and a generous busy timeout so
// that concurrent readers do not immediately fail while a write
// transaction is in flight.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Annotate(err, "creating database directory")
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on",
		url.PathEscape(path),
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening database at %q", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "connecting to database at %q", path)
	}
	return db, nil
}

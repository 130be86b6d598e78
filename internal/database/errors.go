// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrRetryable reports whether the input error is a transient SQLite
// failure that a fresh transaction attempt may clear.
func IsErrRetryable(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// IsErrConstraintUnique reports whether the input error was caused by a
// violation of a unique constraint or primary key.
func IsErrConstraintUnique(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

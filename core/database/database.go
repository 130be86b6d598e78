// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
)

// TxnRunner defines an interface for running transactions against the
// bot's database.
type TxnRunner interface {
	// Txn executes the input function against the database, using the
	// sqlair package. The sqlair package provides a mapping library for
	// SQL queries and statements.
	// Retry semantics are applied automatically based on transient
	// failures. This is the function that almost all downstream database
	// consumers should use.
	Txn(context.Context, func(context.Context, *sqlair.TX) error) error

	// StdTxn executes the input function against the database, within a
	// transaction that depends on the input context.
	// Retry semantics are applied automatically based on transient
	// failures.
	StdTxn(context.Context, func(context.Context, *sql.Tx) error) error
}

// TxnRunnerFactory defines a function for getting a transaction runner.
// The returned runner must not be retained beyond the scope of the
// operation it was acquired for.
type TxnRunnerFactory = func() (TxnRunner, error)

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	coredatabase "github.com/calagopus/bot/core/database"
)

const (
	retryAttempts = 10
	retryDelay    = 10 * time.Millisecond
	retryMaxDelay = time.Second
)

// txnRunner satisfies coredatabase.TxnRunner, applying retry semantics
// for transient SQLite failures around every transaction.
type txnRunner struct {
	db    *sqlair.DB
	clock clock.Clock
}

// NewTxnRunner returns a TxnRunner backed by the input database
// reference.
func NewTxnRunner(db *sql.DB, clk clock.Clock) coredatabase.TxnRunner {
	return &txnRunner{
		db:    sqlair.NewDB(db),
		clock: clk,
	}
}

// Txn executes the input function inside a sqlair transaction.
func (r *txnRunner) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return r.run(ctx, func() error {
		tx, err := r.db.Begin(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}
		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
		return errors.Trace(tx.Commit())
	})
}

// StdTxn executes the input function inside a standard library
// transaction.
func (r *txnRunner) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return r.run(ctx, func() error {
		tx, err := r.db.PlainDB().BeginTx(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}
		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
		return errors.Trace(tx.Commit())
	})
}

// run retries the input function while it fails with an error deemed
// transient, such as SQLITE_BUSY. Any other error is fatal to the
// attempt and returned as-is.
func (r *txnRunner) run(ctx context.Context, fn func() error) error {
	return retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !IsErrRetryable(err)
		},
		Attempts:    retryAttempts,
		Delay:       retryDelay,
		MaxDelay:    retryMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       r.clock,
		Stop:        ctx.Done(),
	})
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing provides a suite for state tests that need a real
// database with the bot's schema applied.
package testing

import (
	"context"
	"database/sql"

	"github.com/juju/clock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	_ "github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/calagopus/bot/core/database"
	"github.com/calagopus/bot/domain/schema"
	"github.com/calagopus/bot/internal/database"
)

// DBSuite is used to provide a schema-initialised in-memory database to
// tests.
type DBSuite struct {
	testing.IsolationSuite

	db     *sql.DB
	runner coredatabase.TxnRunner
}

// SetUpTest creates a fresh database with the bot schema applied, so
// that each test runs in isolation.
func (s *DBSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	db, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, jc.ErrorIsNil)

	// A single connection ensures every statement sees the same
	// in-memory database.
	db.SetMaxOpenConns(1)
	s.AddCleanup(func(c *gc.C) {
		c.Assert(db.Close(), jc.ErrorIsNil)
	})

	s.db = db
	s.runner = database.NewTxnRunner(db, clock.WallClock)

	err = schema.Ensure(context.Background(), s.runner)
	c.Assert(err, jc.ErrorIsNil)
}

// DB returns the raw database reference, for tests that need to seed or
// inspect rows directly.
func (s *DBSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns a runner attached to the test database.
func (s *DBSuite) TxnRunner() coredatabase.TxnRunner {
	return s.runner
}

// TxnRunnerFactory returns a factory yielding the test database runner.
func (s *DBSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		return s.runner, nil
	}
}

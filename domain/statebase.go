// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package domain holds shared plumbing for the bot's domain state
// packages.
package domain

import (
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/calagopus/bot/core/database"
)

// StateBase defines a base struct for requesting a database and holding
// a cache of prepared statements.
type StateBase struct {
	getDB coredatabase.TxnRunnerFactory

	mu    sync.Mutex
	stmts map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(getDB coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		getDB: getDB,
		stmts: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for this state.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	if st.getDB == nil {
		return nil, errors.New("nil getDB")
	}
	db, err := st.getDB()
	return db, errors.Trace(err)
}

// Prepare prepares the input query against the input type samples,
// caching the resulting statement keyed on the query text.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if stmt, ok := st.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Annotate(err, "preparing statement")
	}
	st.stmts[query] = stmt
	return stmt, nil
}

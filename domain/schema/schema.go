// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema holds the DDL for the bot's SQLite database.
package schema

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	coredatabase "github.com/calagopus/bot/core/database"
)

// DDL returns the statements required to build the bot's schema from
// scratch. Statements are idempotent so the schema can be re-applied on
// every start-up.
func DDL() []string {
	return []string{
		githubMessageDDL,
		githubMessageRepositoryIndexDDL,
		githubMessageCommitIndexDDL,
		textMessageDDL,
		textMessageMessageIndexDDL,
	}
}

// Ensure applies the schema to the database behind the input runner.
func Ensure(ctx context.Context, runner coredatabase.TxnRunner) error {
	return errors.Trace(runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range DDL() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Annotate(err, "applying schema")
			}
		}
		return nil
	}))
}

const githubMessageDDL = `
CREATE TABLE IF NOT EXISTS github_message (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    repository_id   INTEGER NOT NULL,
    message_id      TEXT NOT NULL,
    commits         TEXT NOT NULL,
    workflow_sha    TEXT NOT NULL,
    workflow_jobs   TEXT NOT NULL,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);`

const githubMessageRepositoryIndexDDL = `
CREATE INDEX IF NOT EXISTS idx_github_message_repository
ON github_message (repository_id);`

// The (repository, commit) pair correlates workflow job events back to
// the message created for their push, so it must be unique.
const githubMessageCommitIndexDDL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_github_message_commit
ON github_message (repository_id, workflow_sha);`

const textMessageDDL = `
CREATE TABLE IF NOT EXISTS text_message (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id      TEXT NOT NULL,
    message_id      TEXT,
    title           TEXT NOT NULL,
    content         TEXT NOT NULL,
    roles           TEXT NOT NULL,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);`

const textMessageMessageIndexDDL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_text_message_message
ON text_message (message_id)
WHERE message_id IS NOT NULL;`

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"encoding/json"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/calagopus/bot/core/database"
	"github.com/calagopus/bot/domain"
	"github.com/calagopus/bot/domain/githubmessage"
	githubmessageerrors "github.com/calagopus/bot/domain/githubmessage/errors"
	"github.com/calagopus/bot/internal/database"
)

// State implements the github message store.
type State struct {
	*domain.StateBase
}

// NewState returns a new State instance.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// messageRow maps the github_message table.
type messageRow struct {
	ID           int64  `db:"id"`
	RepositoryID int64  `db:"repository_id"`
	MessageID    string `db:"message_id"`
	Commits      string `db:"commits"`
	WorkflowSHA  string `db:"workflow_sha"`
	WorkflowJobs string `db:"workflow_jobs"`
}

func (r messageRow) toMessage() (githubmessage.Message, error) {
	msg := githubmessage.Message{
		ID:           r.ID,
		RepositoryID: r.RepositoryID,
		MessageID:    r.MessageID,
		WorkflowSHA:  r.WorkflowSHA,
	}
	if err := json.Unmarshal([]byte(r.Commits), &msg.Commits); err != nil {
		return githubmessage.Message{}, errors.Annotate(err, "decoding commits")
	}
	if err := json.Unmarshal([]byte(r.WorkflowJobs), &msg.Jobs); err != nil {
		return githubmessage.Message{}, errors.Annotate(err, "decoding workflow jobs")
	}
	return msg, nil
}

func rowForMessage(msg githubmessage.Message) (messageRow, error) {
	commits, err := json.Marshal(msg.Commits)
	if err != nil {
		return messageRow{}, errors.Annotate(err, "encoding commits")
	}
	jobs, err := json.Marshal(msg.Jobs)
	if err != nil {
		return messageRow{}, errors.Annotate(err, "encoding workflow jobs")
	}
	return messageRow{
		ID:           msg.ID,
		RepositoryID: msg.RepositoryID,
		MessageID:    msg.MessageID,
		Commits:      string(commits),
		WorkflowSHA:  msg.WorkflowSHA,
		WorkflowJobs: string(jobs),
	}, nil
}

// Create persists a new tracked message, returning its local id.
// The (repository, commit) correlation key is unique; a second create
// for the same key returns an error satisfying
// [githubmessageerrors.AlreadyExists].
func (s *State) Create(ctx context.Context, msg githubmessage.Message) (int64, error) {
	db, err := s.DB()
	if err != nil {
		return 0, errors.Trace(err)
	}

	row, err := rowForMessage(msg)
	if err != nil {
		return 0, errors.Trace(err)
	}

	stmt, err := s.Prepare(`
INSERT INTO github_message (repository_id, message_id, commits, workflow_sha, workflow_jobs)
VALUES ($messageRow.repository_id, $messageRow.message_id, $messageRow.commits,
        $messageRow.workflow_sha, $messageRow.workflow_jobs)`, messageRow{})
	if err != nil {
		return 0, errors.Annotate(err, "preparing insert message statement")
	}

	var id int64
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, row).Get(&outcome); err != nil {
			if database.IsErrConstraintUnique(err) {
				return githubmessageerrors.AlreadyExists
			}
			return errors.Trace(err)
		}
		var err error
		id, err = outcome.Result().LastInsertId()
		return errors.Trace(err)
	})
	if err != nil {
		return 0, errors.Annotatef(err, "creating message for repository %d commit %q",
			msg.RepositoryID, msg.WorkflowSHA)
	}
	return id, nil
}

// GetByCommit returns the tracked message for the input correlation
// key, or an error satisfying [githubmessageerrors.NotFound] when no
// message exists for it.
func (s *State) GetByCommit(ctx context.Context, repositoryID int64, sha string) (githubmessage.Message, error) {
	db, err := s.DB()
	if err != nil {
		return githubmessage.Message{}, errors.Trace(err)
	}

	row := messageRow{RepositoryID: repositoryID, WorkflowSHA: sha}

	stmt, err := s.Prepare(`
SELECT &messageRow.*
FROM   github_message
WHERE  repository_id = $messageRow.repository_id
AND    workflow_sha = $messageRow.workflow_sha`, messageRow{})
	if err != nil {
		return githubmessage.Message{}, errors.Annotate(err, "preparing select message statement")
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt, row).Get(&row)
	})
	if err != nil {
		if errors.Is(err, sqlair.ErrNoRows) {
			return githubmessage.Message{}, githubmessageerrors.NotFound
		}
		return githubmessage.Message{}, errors.Annotatef(err, "retrieving message for repository %d commit %q",
			repositoryID, sha)
	}
	msg, err := row.toMessage()
	return msg, errors.Trace(err)
}

// SetJobs replaces the accumulated workflow job state of a tracked
// message.
func (s *State) SetJobs(ctx context.Context, id int64, jobs githubmessage.JobStatuses) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	encoded, err := json.Marshal(jobs)
	if err != nil {
		return errors.Annotate(err, "encoding workflow jobs")
	}
	row := messageRow{ID: id, WorkflowJobs: string(encoded)}

	stmt, err := s.Prepare(`
UPDATE github_message
SET    workflow_jobs = $messageRow.workflow_jobs
WHERE  id = $messageRow.id`, messageRow{})
	if err != nil {
		return errors.Annotate(err, "preparing update jobs statement")
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, row).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err == nil && affected == 0 {
			err = githubmessageerrors.NotFound
		}
		return errors.Trace(err)
	})
	return errors.Annotatef(err, "updating jobs for message %d", id)
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/calagopus/bot/domain/githubmessage"
	githubmessageerrors "github.com/calagopus/bot/domain/githubmessage/errors"
	databasetesting "github.com/calagopus/bot/internal/database/testing"
)

type stateSuite struct {
	databasetesting.DBSuite

	state *State
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) SetUpTest(c *gc.C) {
	s.DBSuite.SetUpTest(c)
	s.state = NewState(s.TxnRunnerFactory())
}

func sampleMessage() githubmessage.Message {
	return githubmessage.Message{
		RepositoryID: 42,
		MessageID:    "discord-msg-1",
		Commits: []githubmessage.Commit{{
			ID:         "abcdef1234567890",
			URL:        "https://github.com/calagopus/calagopus/commit/abcdef1",
			AuthorName: "Alice",
			Message:    "fix the flux capacitor",
		}},
		WorkflowSHA: "abcdef1234567890",
	}
}

func (s *stateSuite) TestCreateAndGetByCommit(c *gc.C) {
	id, err := s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(id > 0, jc.IsTrue)

	got, err := s.state.GetByCommit(context.Background(), 42, "abcdef1234567890")
	c.Assert(err, jc.ErrorIsNil)

	want := sampleMessage()
	want.ID = id
	c.Check(got, jc.DeepEquals, want)
}

func (s *stateSuite) TestCreateDuplicateCorrelationKey(c *gc.C) {
	_, err := s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIs, githubmessageerrors.AlreadyExists)
}

func (s *stateSuite) TestCreateSameCommitDifferentRepository(c *gc.C) {
	_, err := s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIsNil)

	other := sampleMessage()
	other.RepositoryID = 43
	_, err = s.state.Create(context.Background(), other)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *stateSuite) TestGetByCommitNotFound(c *gc.C) {
	_, err := s.state.GetByCommit(context.Background(), 42, "ffffffffffffffff")
	c.Assert(err, jc.ErrorIs, githubmessageerrors.NotFound)
}

func (s *stateSuite) TestGetByCommitWrongRepository(c *gc.C) {
	_, err := s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.state.GetByCommit(context.Background(), 43, "abcdef1234567890")
	c.Assert(err, jc.ErrorIs, githubmessageerrors.NotFound)
}

func (s *stateSuite) TestSetJobsRoundTrip(c *gc.C) {
	id, err := s.state.Create(context.Background(), sampleMessage())
	c.Assert(err, jc.ErrorIsNil)

	started := time.Unix(1700000000, 0).UTC()
	var jobs githubmessage.JobStatuses
	jobs.Merge(2, "test", githubmessage.StatusInProgress, started)
	jobs.Merge(1, "build", githubmessage.StatusCompleted, started)

	err = s.state.SetJobs(context.Background(), id, jobs)
	c.Assert(err, jc.ErrorIsNil)

	got, err := s.state.GetByCommit(context.Background(), 42, "abcdef1234567890")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got.Jobs.Jobs(), jc.DeepEquals, jobs.Jobs())
}

func (s *stateSuite) TestSetJobsNotFound(c *gc.C) {
	var jobs githubmessage.JobStatuses
	err := s.state.SetJobs(context.Background(), 999, jobs)
	c.Assert(err, jc.ErrorIs, githubmessageerrors.NotFound)
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package webhook

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type eventsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&eventsSuite{})

const envelopeJSON = `
	"repository": {
		"id": 42,
		"name": "calagopus",
		"html_url": "https://github.com/calagopus/calagopus",
		"stargazers_count": 7
	},
	"organization": {
		"avatar_url": "https://avatars.example.com/org.png"
	},
	"sender": {
		"id": 1001,
		"login": "alice",
		"html_url": "https://github.com/alice"
	}`

func wantEnvelope() Envelope {
	return Envelope{
		Repository: Repository{
			ID:      42,
			Name:    "calagopus",
			HTMLURL: "https://github.com/calagopus/calagopus",
			Stars:   7,
		},
		Organization: Organization{
			AvatarURL: "https://avatars.example.com/org.png",
		},
		Sender: Sender{
			ID:      1001,
			Login:   "alice",
			HTMLURL: "https://github.com/alice",
		},
	}
}

func (s *eventsSuite) TestPing(c *gc.C) {
	event, err := ParseEvent("ping", []byte(`{"zen":"Keep it logically awesome."}`))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ping{})
}

func (s *eventsSuite) TestUnknownTypeIgnored(c *gc.C) {
	event, err := ParseEvent("deployment_status", []byte(`{}`))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ignored{Type: "deployment_status"})
}

func (s *eventsSuite) TestMalformedBody(c *gc.C) {
	_, err := ParseEvent("push", []byte(`{`))
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *eventsSuite) TestMissingOrganization(c *gc.C) {
	body := []byte(`{
		"repository": {"id": 42},
		"sender": {"id": 1001}
	}`)
	_, err := ParseEvent("push", body)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, ".*organization.*")
}

func (s *eventsSuite) TestMissingRepositoryID(c *gc.C) {
	body := []byte(`{
		"repository": {"name": "calagopus"},
		"organization": {"avatar_url": "x"},
		"sender": {"id": 1001}
	}`)
	_, err := ParseEvent("push", body)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, ".*repository.*")
}

func (s *eventsSuite) TestPush(c *gc.C) {
	body := []byte(fmt.Sprintf(`{
		%s,
		"head_commit": {"id": "abcdef1234567890"},
		"commits": [{
			"id": "abcdef1234567890",
			"url": "https://github.com/calagopus/calagopus/commit/abcdef1",
			"message": "fix the flux capacitor\n\ndetails",
			"author": {"name": "Alice"}
		}]
	}`, envelopeJSON))

	event, err := ParseEvent("push", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Push{
		Envelope: wantEnvelope(),
		HeadSHA:  "abcdef1234567890",
		Commits: []Commit{{
			ID:         "abcdef1234567890",
			URL:        "https://github.com/calagopus/calagopus/commit/abcdef1",
			AuthorName: "Alice",
			Message:    "fix the flux capacitor\n\ndetails",
		}},
	})
}

func (s *eventsSuite) TestPushWithoutHeadCommit(c *gc.C) {
	body := []byte(fmt.Sprintf(`{%s, "commits": []}`, envelopeJSON))
	event, err := ParseEvent("push", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Push{Envelope: wantEnvelope()})
}

func (s *eventsSuite) TestStarCreated(c *gc.C) {
	body := []byte(fmt.Sprintf(`{%s, "action": "created"}`, envelopeJSON))
	event, err := ParseEvent("star", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Star{Envelope: wantEnvelope(), Added: true})
}

func (s *eventsSuite) TestStarDeleted(c *gc.C) {
	body := []byte(fmt.Sprintf(`{%s, "action": "deleted"}`, envelopeJSON))
	event, err := ParseEvent("star", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Star{Envelope: wantEnvelope(), Added: false})
}

func (s *eventsSuite) TestStarUnknownActionIgnored(c *gc.C) {
	body := []byte(fmt.Sprintf(`{%s, "action": "polished"}`, envelopeJSON))
	event, err := ParseEvent("star", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ignored{Type: "star", Action: "polished"})
}

func (s *eventsSuite) TestIssueOpened(c *gc.C) {
	body := []byte(fmt.Sprintf(`{
		%s,
		"action": "opened",
		"issue": {
			"number": 17,
			"title": "things are broken",
			"html_url": "https://github.com/calagopus/calagopus/issues/17"
		}
	}`, envelopeJSON))

	event, err := ParseEvent("issues", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Issue{
		Envelope: wantEnvelope(),
		Action:   ActionOpened,
		Number:   17,
		Title:    "things are broken",
		HTMLURL:  "https://github.com/calagopus/calagopus/issues/17",
	})
}

func (s *eventsSuite) TestIssueEditedIgnored(c *gc.C) {
	body := []byte(fmt.Sprintf(`{%s, "action": "edited", "issue": {"number": 17}}`, envelopeJSON))
	event, err := ParseEvent("issues", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ignored{Type: "issues", Action: "edited"})
}

func (s *eventsSuite) TestPullRequestClosed(c *gc.C) {
	body := []byte(fmt.Sprintf(`{
		%s,
		"action": "closed",
		"number": 3,
		"pull_request": {
			"title": "add the thing",
			"html_url": "https://github.com/calagopus/calagopus/pull/3"
		}
	}`, envelopeJSON))

	event, err := ParseEvent("pull_request", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, PullRequest{
		Envelope: wantEnvelope(),
		Action:   ActionClosed,
		Number:   3,
		Title:    "add the thing",
		HTMLURL:  "https://github.com/calagopus/calagopus/pull/3",
	})
}

func (s *eventsSuite) workflowJobBody(status, conclusion string) []byte {
	return []byte(fmt.Sprintf(`{
		%s,
		"workflow_job": {
			"id": 555,
			"run_id": 777,
			"name": "build",
			"head_sha": "abcdef1234567890",
			"status": %q,
			"conclusion": %q
		}
	}`, envelopeJSON, status, conclusion))
}

func (s *eventsSuite) TestWorkflowJobInProgress(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("in_progress", ""))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, WorkflowJob{
		Envelope: wantEnvelope(),
		JobID:    555,
		RunID:    777,
		Name:     "build",
		HeadSHA:  "abcdef1234567890",
		Status:   JobInProgress,
	})
}

func (s *eventsSuite) TestWorkflowJobCompletedSuccess(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("completed", "success"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event.(WorkflowJob).Status, gc.Equals, JobCompleted)
}

func (s *eventsSuite) TestWorkflowJobCompletedSkipped(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("completed", "skipped"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event.(WorkflowJob).Status, gc.Equals, JobCompleted)
}

func (s *eventsSuite) TestWorkflowJobCompletedFailure(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("completed", "failure"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event.(WorkflowJob).Status, gc.Equals, JobFailed)
}

func (s *eventsSuite) TestWorkflowJobCompletedCancelled(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("completed", "cancelled"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event.(WorkflowJob).Status, gc.Equals, JobFailed)
}

func (s *eventsSuite) TestWorkflowJobWaitingIgnored(c *gc.C) {
	event, err := ParseEvent("workflow_job", s.workflowJobBody("waiting", ""))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ignored{Type: "workflow_job", Action: "waiting"})
}

func (s *eventsSuite) TestSponsorshipPublic(c *gc.C) {
	body := []byte(`{
		"action": "created",
		"sponsorship": {
			"maintainer": {"login": "calagopus", "avatar_url": "https://avatars.example.com/m.png"},
			"sponsor": {"login": "bob", "avatar_url": "https://avatars.example.com/b.png"},
			"privacy_level": "public",
			"tier": {"monthly_price_in_dollars": 10}
		}
	}`)

	event, err := ParseEvent("sponsorship", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, jc.DeepEquals, Sponsorship{
		MaintainerLogin:     "calagopus",
		MaintainerAvatarURL: "https://avatars.example.com/m.png",
		SponsorLogin:        "bob",
		SponsorAvatarURL:    "https://avatars.example.com/b.png",
		Public:              true,
		MonthlyDollars:      10,
	})
}

func (s *eventsSuite) TestSponsorshipPrivate(c *gc.C) {
	body := []byte(`{
		"action": "created",
		"sponsorship": {
			"maintainer": {"login": "calagopus"},
			"sponsor": {"login": "bob"},
			"privacy_level": "private",
			"tier": {"monthly_price_in_dollars": 5}
		}
	}`)

	event, err := ParseEvent("sponsorship", body)
	c.Assert(err, jc.ErrorIsNil)
	sp := event.(Sponsorship)
	c.Check(sp.Public, jc.IsFalse)
	c.Check(sp.SponsorLogin, gc.Equals, "bob")
}

func (s *eventsSuite) TestSponsorshipCancelledIgnored(c *gc.C) {
	body := []byte(`{"action": "cancelled", "sponsorship": {}}`)
	event, err := ParseEvent("sponsorship", body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event, gc.Equals, Ignored{Type: "sponsorship", Action: "cancelled"})
}

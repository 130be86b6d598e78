// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	githubmessageerrors "github.com/calagopus/bot/domain/githubmessage/errors"
	"github.com/calagopus/bot/internal/webhook"
)

const testSecret = "s3cret"

var errFailure = errors.New("boom")

type fakeEventService struct {
	*testing.Stub
}

func (f *fakeEventService) RecordPush(_ context.Context, event webhook.Push) error {
	f.AddCall("RecordPush", event)
	return f.NextErr()
}

func (f *fakeEventService) RecordWorkflowJob(_ context.Context, event webhook.WorkflowJob) error {
	f.AddCall("RecordWorkflowJob", event)
	return f.NextErr()
}

func (f *fakeEventService) NotifyStar(_ context.Context, event webhook.Star) error {
	f.AddCall("NotifyStar", event)
	return f.NextErr()
}

func (f *fakeEventService) NotifyIssue(_ context.Context, event webhook.Issue) error {
	f.AddCall("NotifyIssue", event)
	return f.NextErr()
}

func (f *fakeEventService) NotifyPullRequest(_ context.Context, event webhook.PullRequest) error {
	f.AddCall("NotifyPullRequest", event)
	return f.NextErr()
}

func (f *fakeEventService) NotifySponsorship(_ context.Context, event webhook.Sponsorship) error {
	f.AddCall("NotifySponsorship", event)
	return f.NextErr()
}

type githubSuite struct {
	testing.IsolationSuite

	stub    *testing.Stub
	service *fakeEventService
	router  http.Handler
}

var _ = gc.Suite(&githubSuite{})

func (s *githubSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &testing.Stub{}
	s.service = &fakeEventService{Stub: s.stub}
	s.router = NewRouter(NewGitHubHandler(testSecret, s.service))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *githubSuite) deliver(c *gc.C, eventType string, body []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/github", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", eventType)
	if header != "" {
		req.Header.Set("X-Hub-Signature-256", header)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *githubSuite) errorsOf(c *gc.C, rec *httptest.ResponseRecorder) []string {
	var body struct {
		Errors []string `json:"errors"`
	}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &body), jc.ErrorIsNil)
	return body.Errors
}

const signedEnvelope = `{
	"repository": {"id": 42, "name": "calagopus", "html_url": "u", "stargazers_count": 1},
	"organization": {"avatar_url": "a"},
	"sender": {"id": 1, "login": "alice", "html_url": "h"},
	"action": "created"
}`

func (s *githubSuite) TestPing(c *gc.C) {
	body := []byte(`{"zen":"Mind your words."}`)
	rec := s.deliver(c, "ping", body, sign(testSecret, body))

	c.Check(rec.Code, gc.Equals, http.StatusOK)
	c.Check(strings.TrimSpace(rec.Body.String()), gc.Equals, "{}")
	s.stub.CheckCallNames(c)
}

func (s *githubSuite) TestMissingSignature(c *gc.C) {
	rec := s.deliver(c, "ping", []byte(`{}`), "")
	c.Check(rec.Code, gc.Equals, http.StatusUnauthorized)
	c.Check(s.errorsOf(c, rec), gc.HasLen, 1)
}

func (s *githubSuite) TestBadSignature(c *gc.C) {
	body := []byte(`{}`)
	rec := s.deliver(c, "ping", body, sign("wrong", body))
	c.Check(rec.Code, gc.Equals, http.StatusUnauthorized)
}

func (s *githubSuite) TestMalformedSignature(c *gc.C) {
	rec := s.deliver(c, "ping", []byte(`{}`), "sha256=zzzz")
	c.Check(rec.Code, gc.Equals, http.StatusBadRequest)
}

func (s *githubSuite) TestMalformedPayload(c *gc.C) {
	body := []byte(`{`)
	rec := s.deliver(c, "push", body, sign(testSecret, body))
	c.Check(rec.Code, gc.Equals, http.StatusBadRequest)
	c.Check(s.errorsOf(c, rec), gc.HasLen, 1)
}

func (s *githubSuite) TestStarDispatched(c *gc.C) {
	body := []byte(signedEnvelope)
	rec := s.deliver(c, "star", body, sign(testSecret, body))

	c.Check(rec.Code, gc.Equals, http.StatusOK)
	s.stub.CheckCallNames(c, "NotifyStar")
}

func (s *githubSuite) TestUnknownEventTypeAccepted(c *gc.C) {
	body := []byte(`{}`)
	rec := s.deliver(c, "deployment_status", body, sign(testSecret, body))

	c.Check(rec.Code, gc.Equals, http.StatusOK)
	s.stub.CheckCallNames(c)
}

func (s *githubSuite) TestUncorrelatedWorkflowJobAccepted(c *gc.C) {
	s.stub.SetErrors(githubmessageerrors.NotFound)

	body := []byte(`{
		"repository": {"id": 42, "name": "calagopus"},
		"organization": {"avatar_url": "a"},
		"sender": {"id": 1},
		"workflow_job": {"id": 5, "run_id": 7, "name": "build", "head_sha": "x", "status": "queued"}
	}`)
	rec := s.deliver(c, "workflow_job", body, sign(testSecret, body))

	// A job for an untracked commit is acknowledged, not retried.
	c.Check(rec.Code, gc.Equals, http.StatusOK)
	c.Check(strings.TrimSpace(rec.Body.String()), gc.Equals, "{}")
	s.stub.CheckCallNames(c, "RecordWorkflowJob")
}

func (s *githubSuite) TestUncorrelatedWorkflowJobLoggedAtError(c *gc.C) {
	var tw loggo.TestWriter
	c.Assert(loggo.RegisterWriter("github-test", &tw), jc.ErrorIsNil)
	defer func() { _, _ = loggo.RemoveWriter("github-test") }()

	s.stub.SetErrors(githubmessageerrors.NotFound)

	body := []byte(`{
		"repository": {"id": 42, "name": "calagopus"},
		"organization": {"avatar_url": "a"},
		"sender": {"id": 1},
		"workflow_job": {"id": 5, "run_id": 7, "name": "build", "head_sha": "x", "status": "queued"}
	}`)
	rec := s.deliver(c, "workflow_job", body, sign(testSecret, body))
	c.Check(rec.Code, gc.Equals, http.StatusOK)

	// The dropped correlation must be visible to operators at the
	// default logging configuration.
	var found bool
	for _, entry := range tw.Log() {
		if entry.Level == loggo.ERROR && strings.Contains(entry.Message, "dropping workflow_job event") {
			found = true
		}
	}
	c.Check(found, jc.IsTrue)
}

func (s *githubSuite) TestMissingEventHeader(c *gc.C) {
	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign(testSecret, body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	c.Check(rec.Code, gc.Equals, http.StatusBadRequest)
	c.Check(s.errorsOf(c, rec), jc.DeepEquals, []string{"missing X-GitHub-Event header"})
	s.stub.CheckCallNames(c)
}

func (s *githubSuite) TestOversizeBodyRejected(c *gc.C) {
	body := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	rec := s.deliver(c, "push", body, "")

	c.Check(rec.Code, gc.Equals, http.StatusBadRequest)
	c.Check(s.errorsOf(c, rec), jc.DeepEquals, []string{"request body too large"})
	s.stub.CheckCallNames(c)
}

func (s *githubSuite) TestServiceFailure(c *gc.C) {
	s.stub.SetErrors(errFailure)

	body := []byte(signedEnvelope)
	rec := s.deliver(c, "star", body, sign(testSecret, body))

	c.Check(rec.Code, gc.Equals, http.StatusInternalServerError)
	c.Check(s.errorsOf(c, rec), jc.DeepEquals, []string{"internal error"})
}

func (s *githubSuite) TestRouteNotFound(c *gc.C) {
	req := httptest.NewRequest(http.MethodGet, "/api/nothing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	c.Check(rec.Code, gc.Equals, http.StatusNotFound)
	c.Check(s.errorsOf(c, rec), jc.DeepEquals, []string{"route not found"})
}

func (s *githubSuite) TestMethodNotAllowed(c *gc.C) {
	req := httptest.NewRequest(http.MethodGet, "/api/github", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	c.Check(rec.Code, gc.Equals, http.StatusMethodNotAllowed)
}

func (s *githubSuite) TestTrailingSlashTolerated(c *gc.C) {
	body := []byte(`{"zen":"ok"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/github/", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign(testSecret, body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	c.Check(rec.Code, gc.Equals, http.StatusOK)
}

func (s *githubSuite) TestRequestIDHeader(c *gc.C) {
	body := []byte(`{}`)
	rec := s.deliver(c, "ping", body, sign(testSecret, body))
	c.Check(rec.Header().Get("X-Request-Id"), gc.Not(gc.Equals), "")
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package server

import (
	"context"
	"io"
	"net/http"

	"github.com/juju/errors"

	githubmessageerrors "github.com/calagopus/bot/domain/githubmessage/errors"
	"github.com/calagopus/bot/internal/webhook"
)

// maxBodyBytes bounds webhook payload reads.
const maxBodyBytes = 1 << 20

// EventService handles classified webhook events.
type EventService interface {
	RecordPush(ctx context.Context, event webhook.Push) error
	RecordWorkflowJob(ctx context.Context, event webhook.WorkflowJob) error
	NotifyStar(ctx context.Context, event webhook.Star) error
	NotifyIssue(ctx context.Context, event webhook.Issue) error
	NotifyPullRequest(ctx context.Context, event webhook.PullRequest) error
	NotifySponsorship(ctx context.Context, event webhook.Sponsorship) error
}

// GitHubHandler verifies, classifies and dispatches webhook
// deliveries.
type GitHubHandler struct {
	secret  string
	service EventService
}

// NewGitHubHandler returns a handler verifying payloads against the
// input shared secret.
func NewGitHubHandler(secret string, service EventService) *GitHubHandler {
	return &GitHubHandler{
		secret:  secret,
		service: service,
	}
}

// ServeHTTP implements http.Handler.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrors(w, http.StatusBadRequest, "request body too large")
			return
		}
		writeErrors(w, http.StatusBadRequest, "reading request body")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if err := webhook.CheckSignature(h.secret, body, signature); err != nil {
		switch {
		case errors.Is(err, webhook.ErrMissingSignature),
			errors.Is(err, webhook.ErrSignatureMismatch):
			writeErrors(w, http.StatusUnauthorized, err.Error())
		default:
			writeErrors(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		writeErrors(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}
	event, err := webhook.ParseEvent(eventType, body)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dispatch(r.Context(), event); err != nil {
		// A workflow job for a commit nothing is tracking is
		// acknowledged so the sender does not retry, but logged
		// loudly enough that operators see the dropped correlation.
		if errors.Is(err, githubmessageerrors.NotFound) {
			logger.Errorf("dropping %s event: %v", eventType, err)
			writeAccepted(w)
			return
		}
		logger.Errorf("handling %s event: %v", eventType, err)
		writeErrors(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAccepted(w)
}

func (h *GitHubHandler) dispatch(ctx context.Context, event webhook.Event) error {
	switch e := event.(type) {
	case webhook.Ping:
		logger.Infof("webhook ping received")
		return nil
	case webhook.Ignored:
		logger.Debugf("ignoring %s event (action %q)", e.Type, e.Action)
		return nil
	case webhook.Push:
		return errors.Trace(h.service.RecordPush(ctx, e))
	case webhook.WorkflowJob:
		return errors.Trace(h.service.RecordWorkflowJob(ctx, e))
	case webhook.Star:
		return errors.Trace(h.service.NotifyStar(ctx, e))
	case webhook.Issue:
		return errors.Trace(h.service.NotifyIssue(ctx, e))
	case webhook.PullRequest:
		return errors.Trace(h.service.NotifyPullRequest(ctx, e))
	case webhook.Sponsorship:
		return errors.Trace(h.service.NotifySponsorship(ctx, e))
	default:
		return errors.Errorf("unhandled event %T", event)
	}
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"
	"sync"

	"github.com/juju/clock"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/calagopus/bot/domain/githubmessage"
	githubmessageerrors "github.com/calagopus/bot/domain/githubmessage/errors"
	"github.com/calagopus/bot/internal/dedup"
	"github.com/calagopus/bot/internal/render"
	"github.com/calagopus/bot/internal/webhook"
)

var logger = loggo.GetLogger("bot.githubmessage")

// State describes the persistence this service requires.
type State interface {
	// Create persists a new tracked message, returning its local id.
	Create(ctx context.Context, msg githubmessage.Message) (int64, error)

	// GetByCommit returns the tracked message for the input correlation
	// key, or an error satisfying
	// [github.com/calagopus/bot/domain/githubmessage/errors.NotFound]
	// when no message exists for it.
	GetByCommit(ctx context.Context, repositoryID int64, sha string) (githubmessage.Message, error)

	// SetJobs replaces the accumulated workflow job state of a tracked
	// message.
	SetJobs(ctx context.Context, id int64, jobs githubmessage.JobStatuses) error
}

// DiscordClient describes the remote message surface this service
// requires.
type DiscordClient interface {
	// SendMessage renders the payload into a new message, returning the
	// new message id.
	SendMessage(ctx context.Context, channelID string, payload render.Payload) (string, error)

	// EditMessage replaces the rendered content of an existing message.
	EditMessage(ctx context.Context, channelID, messageID string, payload render.Payload) error
}

// Config holds the dependencies and settings of the github message
// service.
type Config struct {
	State   State
	Discord DiscordClient

	// ChannelID is the channel notifications are sent to.
	ChannelID string

	// SponsorsChannelID, when set, receives sponsorship notifications
	// instead of ChannelID.
	SponsorsChannelID string

	// StarAdded and StarRemoved dampen redelivered star events. They
	// are owned by the caller and live for the process lifetime.
	StarAdded   *dedup.Cache
	StarRemoved *dedup.Cache

	Clock clock.Clock
}

// Validate returns an error if the config is not complete.
func (c Config) Validate() error {
	if c.State == nil {
		return errors.NotValidf("nil State")
	}
	if c.Discord == nil {
		return errors.NotValidf("nil Discord")
	}
	if c.ChannelID == "" {
		return errors.NotValidf("empty ChannelID")
	}
	if c.StarAdded == nil || c.StarRemoved == nil {
		return errors.NotValidf("nil dedup caches")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Service reconciles GitHub events against tracked Discord messages.
// One-shot notifications are rendered and sent directly; push and
// workflow job events are correlated through the store so that all
// activity for one commit lands in one message.
type Service struct {
	cfg Config

	// mu serialises every tracked-message read-modify-write. It is a
	// single process-wide gate across all correlation keys: webhook
	// volume is low enough that the simplicity is worth the lost
	// concurrency.
	mu sync.Mutex
}

// NewService returns a new Service.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Service{cfg: cfg}, nil
}

// RecordPush handles a push event: it renders the commit list into a
// new Discord message and, when the push carries a head commit, begins
// tracking it under the (repository, head commit) correlation key so
// later workflow job events update the same message.
func (s *Service) RecordPush(ctx context.Context, event webhook.Push) error {
	commits := transform.Slice(event.Commits, func(c webhook.Commit) githubmessage.Commit {
		return githubmessage.Commit{
			ID:         c.ID,
			URL:        c.URL,
			AuthorName: c.AuthorName,
			Message:    c.Message,
		}
	})
	payload := render.Commits(event.Repository, event.Organization, commits)

	if event.HeadSHA == "" {
		// Nothing to correlate against; notify and move on.
		_, err := s.cfg.Discord.SendMessage(ctx, s.cfg.ChannelID, payload)
		return errors.Trace(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A redelivered push for a known commit must not produce a second
	// message.
	_, err := s.cfg.State.GetByCommit(ctx, event.Repository.ID, event.HeadSHA)
	if err == nil {
		logger.Debugf("push for repository %d commit %q already tracked, ignoring",
			event.Repository.ID, event.HeadSHA)
		return nil
	} else if !errors.Is(err, githubmessageerrors.NotFound) {
		return errors.Trace(err)
	}

	// The remote message is created first; the row records its id, so a
	// row only ever exists for a message that exists.
	messageID, err := s.cfg.Discord.SendMessage(ctx, s.cfg.ChannelID, payload)
	if err != nil {
		return errors.Trace(err)
	}

	_, err = s.cfg.State.Create(ctx, githubmessage.Message{
		RepositoryID: event.Repository.ID,
		MessageID:    messageID,
		Commits:      commits,
		WorkflowSHA:  event.HeadSHA,
	})
	return errors.Annotatef(err, "tracking push for commit %q", event.HeadSHA)
}

// RecordWorkflowJob handles a workflow job status change: it merges the
// job into the tracked message for the job's commit and re-renders that
// message in place. A job for an untracked commit is an error; it never
// creates a message implicitly.
func (s *Service) RecordWorkflowJob(ctx context.Context, event webhook.WorkflowJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.cfg.State.GetByCommit(ctx, event.Repository.ID, event.HeadSHA)
	if err != nil {
		return errors.Annotatef(err, "workflow job %q for repository %d commit %q",
			event.Name, event.Repository.ID, event.HeadSHA)
	}

	msg.Jobs.Merge(event.JobID, event.Name, githubmessage.Status(event.Status), s.cfg.Clock.Now().UTC())
	if err := s.cfg.State.SetJobs(ctx, msg.ID, msg.Jobs); err != nil {
		return errors.Trace(err)
	}

	payload := render.TrackedMessage(event.Repository, event.Organization, msg, event.RunID)
	return errors.Trace(s.cfg.Discord.EditMessage(ctx, s.cfg.ChannelID, msg.MessageID, payload))
}

// NotifyStar handles a star added/removed event. GitHub redelivers
// these for a single user action, so notifications are dampened by the
// dedup caches; a suppressed duplicate is not an error.
func (s *Service) NotifyStar(ctx context.Context, event webhook.Star) error {
	cache := s.cfg.StarRemoved
	if event.Added {
		cache = s.cfg.StarAdded
	}
	if cache.SeenOrRecord(dedup.StarFingerprint(event.Repository.ID, event.Sender.ID)) {
		logger.Debugf("suppressing duplicate star event for repository %d sender %d",
			event.Repository.ID, event.Sender.ID)
		return nil
	}

	_, err := s.cfg.Discord.SendMessage(ctx, s.cfg.ChannelID, render.Star(event))
	return errors.Trace(err)
}

// NotifyIssue handles an issue opened/reopened/closed event.
func (s *Service) NotifyIssue(ctx context.Context, event webhook.Issue) error {
	_, err := s.cfg.Discord.SendMessage(ctx, s.cfg.ChannelID, render.Issue(event))
	return errors.Trace(err)
}

// NotifyPullRequest handles a pull request opened/reopened/closed
// event.
func (s *Service) NotifyPullRequest(ctx context.Context, event webhook.PullRequest) error {
	_, err := s.cfg.Discord.SendMessage(ctx, s.cfg.ChannelID, render.PullRequest(event))
	return errors.Trace(err)
}

// NotifySponsorship handles a sponsorship created event, preferring the
// dedicated sponsors channel when one is configured.
func (s *Service) NotifySponsorship(ctx context.Context, event webhook.Sponsorship) error {
	channelID := s.cfg.ChannelID
	if s.cfg.SponsorsChannelID != "" {
		channelID = s.cfg.SponsorsChannelID
	}
	_, err := s.cfg.Discord.SendMessage(ctx, channelID, render.Sponsorship(event))
	return errors.Trace(err)
}

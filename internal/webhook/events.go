// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package webhook

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Event is the closed set of webhook variants that the bot acts upon.
// The classifier decodes and validates each payload once, so that
// consumers only ever see fully typed data.
type Event interface {
	event()
}

// Ping is GitHub's delivery test event.
type Ping struct{}

func (Ping) event() {}

// Ignored represents a delivery that the bot deliberately takes no
// action on: either an event type outside the closed set, or a known
// type with an unhandled action. It is not an error.
type Ignored struct {
	Type   string
	Action string
}

func (Ignored) event() {}

// Repository identifies the repository a delivery concerns.
type Repository struct {
	ID      int64
	Name    string
	HTMLURL string
	Stars   int
}

// Organization identifies the organization a delivery concerns.
type Organization struct {
	AvatarURL string
}

// Sender identifies the user that triggered a delivery.
type Sender struct {
	ID      int64
	Login   string
	HTMLURL string
}

// Envelope carries the fields common to every repository-scoped
// delivery.
type Envelope struct {
	Repository   Repository
	Organization Organization
	Sender       Sender
}

// Commit is a single commit carried by a push delivery.
type Commit struct {
	ID         string
	URL        string
	AuthorName string
	Message    string
}

// Push is a push to a branch.
type Push struct {
	Envelope
	HeadSHA string
	Commits []Commit
}

func (Push) event() {}

// Star is a star added to or removed from a repository.
type Star struct {
	Envelope
	Added bool
}

func (Star) event() {}

// ItemAction is the subset of issue and pull request actions the bot
// notifies on.
type ItemAction string

const (
	ActionOpened   ItemAction = "opened"
	ActionReopened ItemAction = "reopened"
	ActionClosed   ItemAction = "closed"
)

// Issue is an issue being opened, reopened or closed.
type Issue struct {
	Envelope
	Action  ItemAction
	Number  int64
	Title   string
	HTMLURL string
}

func (Issue) event() {}

// PullRequest is a pull request being opened, reopened or closed.
type PullRequest struct {
	Envelope
	Action  ItemAction
	Number  int64
	Title   string
	HTMLURL string
}

func (PullRequest) event() {}

// JobStatus is the displayable state of a workflow job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// WorkflowJob is a workflow job changing status. The head SHA
// correlates the job back to the push it runs for.
type WorkflowJob struct {
	Envelope
	JobID   int64
	RunID   int64
	Name    string
	HeadSHA string
	Status  JobStatus
}

func (WorkflowJob) event() {}

// Sponsorship is a sponsorship being created. It is organization
// scoped, so carries no repository envelope.
type Sponsorship struct {
	MaintainerLogin     string
	MaintainerAvatarURL string
	SponsorLogin        string
	SponsorAvatarURL    string
	Public              bool
	MonthlyDollars      int64
}

func (Sponsorship) event() {}

// ParseEvent classifies a raw delivery into a typed event. A malformed
// body for a declared type, or a repository-scoped payload missing its
// organization, repository or sender, is a validation error. An event
// type outside the closed set is not an error; it classifies as
// Ignored.
func ParseEvent(eventType string, body []byte) (Event, error) {
	switch eventType {
	case "ping":
		return Ping{}, nil
	case "push":
		return parsePush(body)
	case "star":
		return parseStar(body)
	case "issues":
		return parseIssue(body)
	case "pull_request":
		return parsePullRequest(body)
	case "workflow_job":
		return parseWorkflowJob(body)
	case "sponsorship":
		return parseSponsorship(body)
	default:
		return Ignored{Type: eventType}, nil
	}
}

type rawRepository struct {
	ID      *int64 `json:"id"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Stars   int    `json:"stargazers_count"`
}

type rawOrganization struct {
	AvatarURL string `json:"avatar_url"`
}

type rawSender struct {
	ID      *int64 `json:"id"`
	Login   string `json:"login"`
	HTMLURL string `json:"html_url"`
}

type rawEnvelope struct {
	Repository   *rawRepository   `json:"repository"`
	Organization *rawOrganization `json:"organization"`
	Sender       *rawSender       `json:"sender"`
}

// envelope validates the fields every repository-scoped delivery must
// carry.
func (r rawEnvelope) envelope() (Envelope, error) {
	if r.Organization == nil {
		return Envelope{}, errors.NotValidf("payload missing organization information")
	}
	if r.Repository == nil || r.Repository.ID == nil {
		return Envelope{}, errors.NotValidf("payload missing repository information")
	}
	if r.Sender == nil || r.Sender.ID == nil {
		return Envelope{}, errors.NotValidf("payload missing sender information")
	}
	return Envelope{
		Repository: Repository{
			ID:      *r.Repository.ID,
			Name:    r.Repository.Name,
			HTMLURL: r.Repository.HTMLURL,
			Stars:   r.Repository.Stars,
		},
		Organization: Organization{
			AvatarURL: r.Organization.AvatarURL,
		},
		Sender: Sender{
			ID:      *r.Sender.ID,
			Login:   r.Sender.Login,
			HTMLURL: r.Sender.HTMLURL,
		},
	}, nil
}

func decode(body []byte, eventType string, into any) error {
	if err := json.Unmarshal(body, into); err != nil {
		return errors.NotValidf("malformed %s payload", eventType)
	}
	return nil
}

func parsePush(body []byte) (Event, error) {
	var raw struct {
		rawEnvelope
		HeadCommit *struct {
			ID string `json:"id"`
		} `json:"head_commit"`
		Commits []struct {
			ID      string `json:"id"`
			URL     string `json:"url"`
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"commits"`
	}
	if err := decode(body, "push", &raw); err != nil {
		return nil, errors.Trace(err)
	}
	env, err := raw.envelope()
	if err != nil {
		return nil, errors.Trace(err)
	}

	push := Push{Envelope: env}
	if raw.HeadCommit != nil {
		push.HeadSHA = raw.HeadCommit.ID
	}
	for _, c := range raw.Commits {
		push.Commits = append(push.Commits, Commit{
			ID:         c.ID,
			URL:        c.URL,
			AuthorName: c.Author.Name,
			Message:    c.Message,
		})
	}
	return push, nil
}

func parseStar(body []byte) (Event, error) {
	var raw struct {
		rawEnvelope
		Action string `json:"action"`
	}
	if err := decode(body, "star", &raw); err != nil {
		return nil, errors.Trace(err)
	}

	switch raw.Action {
	case "created", "deleted":
	default:
		return Ignored{Type: "star", Action: raw.Action}, nil
	}
	env, err := raw.envelope()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Star{Envelope: env, Added: raw.Action == "created"}, nil
}

type rawItem struct {
	Number  int64  `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

func itemAction(action string) (ItemAction, bool) {
	switch a := ItemAction(action); a {
	case ActionOpened, ActionReopened, ActionClosed:
		return a, true
	}
	return "", false
}

func parseIssue(body []byte) (Event, error) {
	var raw struct {
		rawEnvelope
		Action string   `json:"action"`
		Issue  *rawItem `json:"issue"`
	}
	if err := decode(body, "issues", &raw); err != nil {
		return nil, errors.Trace(err)
	}

	action, ok := itemAction(raw.Action)
	if !ok {
		return Ignored{Type: "issues", Action: raw.Action}, nil
	}
	env, err := raw.envelope()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if raw.Issue == nil {
		return nil, errors.NotValidf("payload missing issue information")
	}
	return Issue{
		Envelope: env,
		Action:   action,
		Number:   raw.Issue.Number,
		Title:    raw.Issue.Title,
		HTMLURL:  raw.Issue.HTMLURL,
	}, nil
}

func parsePullRequest(body []byte) (Event, error) {
	var raw struct {
		rawEnvelope
		Action      string `json:"action"`
		Number      int64  `json:"number"`
		PullRequest *struct {
			Title   string `json:"title"`
			HTMLURL string `json:"html_url"`
		} `json:"pull_request"`
	}
	if err := decode(body, "pull_request", &raw); err != nil {
		return nil, errors.Trace(err)
	}

	action, ok := itemAction(raw.Action)
	if !ok {
		return Ignored{Type: "pull_request", Action: raw.Action}, nil
	}
	env, err := raw.envelope()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if raw.PullRequest == nil {
		return nil, errors.NotValidf("payload missing pull request information")
	}
	return PullRequest{
		Envelope: env,
		Action:   action,
		Number:   raw.Number,
		Title:    raw.PullRequest.Title,
		HTMLURL:  raw.PullRequest.HTMLURL,
	}, nil
}

func parseWorkflowJob(body []byte) (Event, error) {
	var raw struct {
		rawEnvelope
		WorkflowJob *struct {
			ID         int64  `json:"id"`
			RunID      int64  `json:"run_id"`
			Name       string `json:"name"`
			HeadSHA    string `json:"head_sha"`
			Status     string `json:"status"`
			Conclusion string `json:"conclusion"`
		} `json:"workflow_job"`
	}
	if err := decode(body, "workflow_job", &raw); err != nil {
		return nil, errors.Trace(err)
	}
	env, err := raw.envelope()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if raw.WorkflowJob == nil {
		return nil, errors.NotValidf("payload missing workflow job information")
	}

	status := JobStatus(raw.WorkflowJob.Status)
	switch status {
	case JobQueued, JobInProgress:
	case JobCompleted:
		// A completed job that did not succeed displays as failed.
		switch raw.WorkflowJob.Conclusion {
		case "", "success", "skipped", "neutral":
		default:
			status = JobFailed
		}
	default:
		return Ignored{Type: "workflow_job", Action: raw.WorkflowJob.Status}, nil
	}

	return WorkflowJob{
		Envelope: env,
		JobID:    raw.WorkflowJob.ID,
		RunID:    raw.WorkflowJob.RunID,
		Name:     raw.WorkflowJob.Name,
		HeadSHA:  raw.WorkflowJob.HeadSHA,
		Status:   status,
	}, nil
}

func parseSponsorship(body []byte) (Event, error) {
	var raw struct {
		Action      string `json:"action"`
		Sponsorship *struct {
			Maintainer struct {
				Login     string `json:"login"`
				AvatarURL string `json:"avatar_url"`
			} `json:"maintainer"`
			Sponsor *struct {
				Login     string `json:"login"`
				AvatarURL string `json:"avatar_url"`
			} `json:"sponsor"`
			PrivacyLevel string `json:"privacy_level"`
			Tier         struct {
				MonthlyPriceInDollars int64 `json:"monthly_price_in_dollars"`
			} `json:"tier"`
		} `json:"sponsorship"`
	}
	if err := decode(body, "sponsorship", &raw); err != nil {
		return nil, errors.Trace(err)
	}

	if raw.Action != "created" {
		return Ignored{Type: "sponsorship", Action: raw.Action}, nil
	}
	if raw.Sponsorship == nil {
		return nil, errors.NotValidf("payload missing sponsorship information")
	}

	event := Sponsorship{
		MaintainerLogin:     raw.Sponsorship.Maintainer.Login,
		MaintainerAvatarURL: raw.Sponsorship.Maintainer.AvatarURL,
		Public:              raw.Sponsorship.PrivacyLevel == "public",
		MonthlyDollars:      raw.Sponsorship.Tier.MonthlyPriceInDollars,
	}
	if raw.Sponsorship.Sponsor != nil {
		event.SponsorLogin = raw.Sponsorship.Sponsor.Login
		event.SponsorAvatarURL = raw.Sponsorship.Sponsor.AvatarURL
	}
	return event, nil
}

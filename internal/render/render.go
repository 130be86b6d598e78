// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package render maps event and tracked-message state to display
// payloads. Everything here is a pure function of its inputs: no
// network, no store, no clock.
package render

import (
	"fmt"
	"strings"

	"github.com/calagopus/bot/domain/githubmessage"
	"github.com/calagopus/bot/domain/textmessage"
	"github.com/calagopus/bot/internal/webhook"
)

// Custom guild emoji used in rendered messages.
const (
	emojiPackage = "<:package:1150890021516234832>"
	emojiStar    = "<:star:1229766059381358623>"
	emojiStorage = "<:storage:1150889889294991381>"
	emojiHammer  = "<:hammer:1150889684227076227>"
	emojiCash    = "<:cash:1150889514236137605>"
	emojiAccept  = "<:accept:1156939740654878750>"
	emojiLoading = "<a:loading:1154135013948915793>"
	emojiDeny    = "<:deny:1156939743230173234>"
	emojiClock   = "<:clock:1150889651914158111>"
)

// LinkButton is a link-style button attached to a payload.
type LinkButton struct {
	Label string
	URL   string
}

// RoleMenu is a string select menu offering role self-assignment.
type RoleMenu struct {
	CustomID    string
	Placeholder string
	MaxValues   int
	Options     []RoleOption
}

// RoleOption is one selectable entry of a RoleMenu.
type RoleOption struct {
	Label string
	Value string
}

// Payload is the display form of an event or tracked message. It is
// ephemeral: derived entirely from its inputs and never persisted.
type Payload struct {
	Title        string
	Body         string
	ThumbnailURL string
	FooterText   string
	LinkButton   *LinkButton
	RoleMenu     *RoleMenu
}

// repositoryFooter renders the footer line identifying the repository a
// notification concerns.
func repositoryFooter(repo webhook.Repository) string {
	if repo.HTMLURL == "" {
		return repo.Name
	}
	return repo.HTMLURL
}

func commitLines(commits []githubmessage.Commit) string {
	var b strings.Builder
	for _, commit := range commits {
		sha := commit.ID
		if len(sha) > 7 {
			sha = sha[:7]
		}
		summary, _, _ := strings.Cut(commit.Message, "\n")
		fmt.Fprintf(&b, "[`%s`](%s) (%s): %s\n", sha, commit.URL, commit.AuthorName, summary)
	}
	return b.String()
}

func commitTitle(count int) string {
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s %d Commit%s pushed", emojiPackage, count, plural)
}

func statusEmoji(status githubmessage.Status) string {
	switch status {
	case githubmessage.StatusCompleted:
		return emojiAccept
	case githubmessage.StatusInProgress:
		return emojiLoading
	case githubmessage.StatusFailed:
		return emojiDeny
	default:
		return emojiClock
	}
}

// Commits renders a freshly pushed commit list, before any workflow
// activity is known.
func Commits(repo webhook.Repository, org webhook.Organization, commits []githubmessage.Commit) Payload {
	return Payload{
		Title:        commitTitle(len(commits)),
		Body:         commitLines(commits),
		ThumbnailURL: org.AvatarURL,
		FooterText:   repositoryFooter(repo),
	}
}

// TrackedMessage renders the accumulated state of a tracked message:
// its commit list plus one status line per recorded workflow job, in
// the order each job was first seen.
func TrackedMessage(repo webhook.Repository, org webhook.Organization, msg githubmessage.Message, runID int64) Payload {
	var status strings.Builder
	status.WriteString("### Workflow Status\n")
	for _, job := range msg.Jobs.Jobs() {
		fmt.Fprintf(&status, "%s **%s** <t:%d:R>\n",
			statusEmoji(job.Status), job.Name, job.Started.Unix())
	}

	return Payload{
		Title:        commitTitle(len(msg.Commits)),
		Body:         commitLines(msg.Commits) + "\n" + status.String(),
		ThumbnailURL: org.AvatarURL,
		FooterText:   repositoryFooter(repo),
		LinkButton: &LinkButton{
			Label: "View Action",
			URL:   fmt.Sprintf("%s/actions/runs/%d", repo.HTMLURL, runID),
		},
	}
}

// Star renders a star added or removed notification.
func Star(event webhook.Star) Payload {
	verb := "starred"
	if !event.Added {
		verb = "unstarred"
	}
	return Payload{
		Title: fmt.Sprintf("%s Repository %s", emojiStar, verb),
		Body: fmt.Sprintf("[**%s**](%s) %s the repository!\nThe new star count is `%d`.",
			event.Sender.Login, event.Sender.HTMLURL, verb, event.Repository.Stars),
		ThumbnailURL: event.Organization.AvatarURL,
		FooterText:   repositoryFooter(event.Repository),
	}
}

func itemVerb(action webhook.ItemAction) (string, string) {
	switch action {
	case webhook.ActionOpened:
		return "opened", "opened a new"
	case webhook.ActionReopened:
		return "reopened", "reopened a"
	default:
		return "closed", "closed a"
	}
}

// Issue renders an issue opened/reopened/closed notification.
func Issue(event webhook.Issue) Payload {
	title, verb := itemVerb(event.Action)
	return Payload{
		Title: fmt.Sprintf("%s Issue %s", emojiHammer, title),
		Body: fmt.Sprintf("[**%s**](%s) %s issue:\n[`#%d %s`](%s)",
			event.Sender.Login, event.Sender.HTMLURL, verb,
			event.Number, event.Title, event.HTMLURL),
		ThumbnailURL: event.Organization.AvatarURL,
		FooterText:   repositoryFooter(event.Repository),
	}
}

// PullRequest renders a pull request opened/reopened/closed
// notification.
func PullRequest(event webhook.PullRequest) Payload {
	title, verb := itemVerb(event.Action)
	return Payload{
		Title: fmt.Sprintf("%s Pull Request %s", emojiStorage, title),
		Body: fmt.Sprintf("[**%s**](%s) %s pull request:\n[`#%d %s`](%s)",
			event.Sender.Login, event.Sender.HTMLURL, verb,
			event.Number, event.Title, event.HTMLURL),
		ThumbnailURL: event.Organization.AvatarURL,
		FooterText:   repositoryFooter(event.Repository),
	}
}

// Sponsorship renders a sponsorship received notification. The sponsor
// is only named when the sponsorship is public.
func Sponsorship(event webhook.Sponsorship) Payload {
	body := fmt.Sprintf("**Someone** (Anonymous) sponsored us for `$%d.00`!", event.MonthlyDollars)
	thumbnail := event.MaintainerAvatarURL
	if event.SponsorLogin != "" {
		thumbnail = event.SponsorAvatarURL
		if event.Public {
			body = fmt.Sprintf("[**%s**](https://github.com/%s) sponsored us for `$%d.00`!",
				event.SponsorLogin, event.SponsorLogin, event.MonthlyDollars)
		}
	}
	return Payload{
		Title:        fmt.Sprintf("%s Sponsorship received", emojiCash),
		Body:         body,
		ThumbnailURL: thumbnail,
		FooterText:   fmt.Sprintf("https://github.com/sponsors/%s", event.MaintainerLogin),
	}
}

// RoleMenuCustomID returns the component custom id correlating a role
// menu interaction back to its text message record.
func RoleMenuCustomID(id int64) string {
	return fmt.Sprintf("text-message-roles:%d", id)
}

// TextMessage renders an operator-managed text message, attaching a
// role menu when the record offers roles.
func TextMessage(msg textmessage.Message) Payload {
	payload := Payload{
		Title: msg.Title,
		Body:  msg.Content,
	}
	if len(msg.Roles) == 0 {
		return payload
	}

	menu := &RoleMenu{
		CustomID:    RoleMenuCustomID(msg.ID),
		Placeholder: "Select your roles",
		MaxValues:   len(msg.Roles),
	}
	for _, role := range msg.Roles {
		menu.Options = append(menu.Options, RoleOption{Label: role.Name, Value: role.ID})
	}
	payload.RoleMenu = menu
	return payload
}

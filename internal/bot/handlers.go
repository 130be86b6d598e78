// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/errors"
)

// roleMenuPrefix matches the custom ids minted by the renderer for
// text message role menus.
const roleMenuPrefix = "text-message-roles:"

// contextFor returns the context interaction handlers run under.
// Gateway dispatch carries no deadline of its own.
func contextFor(*discordgo.InteractionCreate) context.Context {
	return context.Background()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var err error
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		err = b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		err = b.handleTextMessageAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		err = b.handleComponent(s, i)
	default:
		return
	}
	if err != nil {
		logger.Errorf("handling interaction: %v", err)
		b.reportFailure(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "status":
		return errors.Trace(b.handleStatus(s, i))
	case "text-message":
		return errors.Trace(b.handleTextMessage(s, i))
	default:
		logger.Warningf("unknown command %q", data.Name)
		return nil
	}
}

// handleComponent reconciles a member's roles from a role menu
// selection. The response is deferred first: role churn can exceed the
// interaction acknowledgement window.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.MessageComponentData()
	rest, ok := strings.CutPrefix(data.CustomID, roleMenuPrefix)
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return errors.NotValidf("role menu id %q", rest)
	}
	if i.Member == nil || i.Member.User == nil {
		return errors.NotValidf("role menu interaction outside a guild")
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		return errors.Annotate(err, "acknowledging role menu")
	}

	if err := b.texts.SyncRoles(contextFor(i), id, i.ChannelID, i.Member.User.ID, data.Values); err != nil {
		return errors.Trace(err)
	}

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "Roles updated.",
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return errors.Trace(err)
}

// reportFailure tells the invoking user something went wrong, using a
// followup when the interaction was already acknowledged.
func (b *Bot) reportFailure(s *discordgo.Session, i *discordgo.InteractionCreate) {
	const msg = "Something went wrong, check the logs."
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		logger.Debugf("reporting interaction failure: %v", err)
	}
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package discord wraps the discordgo session behind the narrow
// message and role surface the rest of the bot consumes.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/errors"

	"github.com/calagopus/bot/internal/render"
)

// Client calls the Discord REST API. The discordgo session is safe for
// concurrent use, and so is this wrapper.
type Client struct {
	session *discordgo.Session
}

// NewClient returns a client backed by the input session.
func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// SendMessage renders the payload into a new message in the input
// channel, returning the new message id.
func (c *Client) SendMessage(ctx context.Context, channelID string, payload render.Payload) (string, error) {
	msg, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(payload)},
		Components: buildComponents(payload),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Annotatef(err, "sending message to channel %s", channelID)
	}
	return msg.ID, nil
}

// EditMessage replaces the rendered content of an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, payload render.Payload) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	embeds := []*discordgo.MessageEmbed{buildEmbed(payload)}
	edit.Embeds = &embeds
	components := buildComponents(payload)
	edit.Components = &components

	_, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Annotatef(asNotFound(err), "editing message %s", messageID)
	}
	return nil
}

// FetchMessage checks that a stored message id still resolves,
// returning an error satisfying errors.NotFound if it does not.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) error {
	_, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Annotatef(asNotFound(err), "fetching message %s", messageID)
	}
	return nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Annotatef(asNotFound(err), "deleting message %s", messageID)
	}
	return nil
}

// AddRole grants a role to a guild member.
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	return errors.Annotatef(err, "adding role %s to user %s", roleID, userID)
}

// RemoveRole revokes a role from a guild member.
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	return errors.Annotatef(err, "removing role %s from user %s", roleID, userID)
}

// UserHasRole reports whether a guild member currently holds a role.
func (c *Client) UserHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, errors.Annotatef(err, "fetching member %s", userID)
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

// asNotFound maps Discord's unknown-message responses onto an error
// satisfying errors.NotFound, leaving every other error untouched. A
// stored message id stops resolving when an operator deletes the
// message out-of-band; callers rely on the NotFound kind to repair
// that.
func asNotFound(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) &&
		restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return errors.NewNotFound(err, "discord message")
	}
	return err
}

func buildEmbed(payload render.Payload) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       payload.Title,
		Description: payload.Body,
	}
	if payload.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: payload.ThumbnailURL}
	}
	if payload.FooterText != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: payload.FooterText}
	}
	return embed
}

func buildComponents(payload render.Payload) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	if payload.LinkButton != nil {
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Style: discordgo.LinkButton,
					Label: payload.LinkButton.Label,
					URL:   payload.LinkButton.URL,
				},
			},
		})
	}
	if menu := payload.RoleMenu; menu != nil {
		options := make([]discordgo.SelectMenuOption, 0, len(menu.Options))
		for _, opt := range menu.Options {
			options = append(options, discordgo.SelectMenuOption{
				Label: opt.Label,
				Value: opt.Value,
			})
		}
		minValues := 0
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    menu.CustomID,
					Placeholder: menu.Placeholder,
					MinValues:   &minValues,
					MaxValues:   menu.MaxValues,
					Options:     options,
				},
			},
		})
	}
	return rows
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package bot

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	"github.com/calagopus/bot/domain/textmessage"
)

// searchLimit caps autocomplete suggestion lists, matching the
// Discord maximum.
const searchLimit = 25

func adminPermission() *int64 {
	p := int64(discordgo.PermissionAdministrator)
	return &p
}

func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	messageOption := &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionInteger,
		Name:         "message",
		Description:  "The text message to act on",
		Required:     true,
		Autocomplete: true,
	}
	roleOptions := make([]*discordgo.ApplicationCommandOption, 0, 4)
	for i := 1; i <= 4; i++ {
		roleOptions = append(roleOptions, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        fmt.Sprintf("role%d", i),
			Description: "A self-assignable role offered on the message",
		})
	}

	return []*discordgo.ApplicationCommand{{
		Name:        "status",
		Description: "Report bot uptime",
	}, {
		Name:                     "text-message",
		Description:              "Manage operator text messages",
		DefaultMemberPermissions: adminPermission(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add",
			Description: "Create a text message in a channel",
			Options: append([]*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel to post the message in",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			}, {
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "Message title",
				Required:    true,
			}, {
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "content",
				Description: "Message body",
				Required:    true,
			}}, roleOptions...),
		}, {
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "update",
			Description: "Replace a text message's title and content",
			Options: []*discordgo.ApplicationCommandOption{messageOption, {
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "New title",
				Required:    true,
			}, {
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "content",
				Description: "New body",
				Required:    true,
			}},
		}, {
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "sync",
			Description: "Re-render a text message into Discord",
			Options:     []*discordgo.ApplicationCommandOption{messageOption},
		}, {
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "recreate",
			Description: "Delete and repost a text message",
			Options:     []*discordgo.ApplicationCommandOption{messageOption},
		}, {
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "delete",
			Description: "Remove a text message",
			Options:     []*discordgo.ApplicationCommandOption{messageOption},
		}},
	}}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, b.commandDefinitions())
	return errors.Annotate(err, "registering guild commands")
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	content := fmt.Sprintf("Up since %s.", humanize.Time(b.startTime))
	return errors.Trace(respondEphemeral(s, i, content))
}

func (b *Bot) handleTextMessage(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return errors.NotValidf("subcommand missing")
	}
	sub := data.Options[0]
	opts := indexOptions(sub.Options)

	ctx := contextFor(i)
	switch sub.Name {
	case "add":
		roles := collectRoles(s, i, opts)
		msg, err := b.texts.Create(ctx,
			opts["channel"].ChannelValue(nil).ID,
			opts["title"].StringValue(),
			opts["content"].StringValue(),
			roles)
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(respondEphemeral(s, i,
			fmt.Sprintf("Created text message %d (%s).", msg.ID, msg.Title)))
	case "update":
		msg, err := b.texts.Update(ctx,
			opts["message"].IntValue(),
			opts["title"].StringValue(),
			opts["content"].StringValue())
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(respondEphemeral(s, i,
			fmt.Sprintf("Updated text message %d.", msg.ID)))
	case "sync":
		msg, err := b.texts.Sync(ctx, opts["message"].IntValue())
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(respondEphemeral(s, i,
			fmt.Sprintf("Synced text message %d.", msg.ID)))
	case "recreate":
		msg, err := b.texts.Recreate(ctx, opts["message"].IntValue())
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(respondEphemeral(s, i,
			fmt.Sprintf("Recreated text message %d.", msg.ID)))
	case "delete":
		id := opts["message"].IntValue()
		if err := b.texts.Delete(ctx, id); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(respondEphemeral(s, i,
			fmt.Sprintf("Deleted text message %d.", id)))
	default:
		return errors.NotValidf("subcommand %q", sub.Name)
	}
}

// handleTextMessageAutocomplete suggests messages by title for the
// shared "message" option.
func (b *Bot) handleTextMessageAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return nil
	}
	opts := indexOptions(data.Options[0].Options)
	opt, ok := opts["message"]
	if !ok || !opt.Focused {
		return nil
	}

	prefix, _ := opt.Value.(string)
	msgs, err := b.texts.Search(contextFor(i), prefix, searchLimit)
	if err != nil {
		return errors.Trace(err)
	}

	choices := transform.Slice(msgs, func(m textmessage.Message) *discordgo.ApplicationCommandOptionChoice {
		return &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (#%d)", m.Title, m.ID),
			Value: m.ID,
		}
	})
	return errors.Trace(s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}))
}

// collectRoles gathers the optional roleN options into a RoleList,
// resolving names from the guild state where possible.
func collectRoles(s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) textmessage.RoleList {
	var roles textmessage.RoleList
	for n := 1; n <= 4; n++ {
		opt, ok := opts[fmt.Sprintf("role%d", n)]
		if !ok {
			continue
		}
		role := opt.RoleValue(s, i.GuildID)
		if role == nil {
			continue
		}
		name := role.Name
		if name == "" {
			name = "role " + strconv.Itoa(n)
		}
		if !roles.Contains(role.ID) {
			roles = append(roles, textmessage.Role{ID: role.ID, Name: name})
		}
	}
	return roles
}

func indexOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

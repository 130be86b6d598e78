// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bot wires the Discord gateway session to the application
// services: slash commands, component interactions and reactions.
package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/calagopus/bot/domain/textmessage"
)

var logger = loggo.GetLogger("bot.discord")

// TextMessageService is the operator message surface the bot drives.
type TextMessageService interface {
	Create(ctx context.Context, channelID, title, content string, roles textmessage.RoleList) (textmessage.Message, error)
	Update(ctx context.Context, id int64, title, content string) (textmessage.Message, error)
	Sync(ctx context.Context, id int64) (textmessage.Message, error)
	Recreate(ctx context.Context, id int64) (textmessage.Message, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, substring string, limit int) ([]textmessage.Message, error)
	SyncRoles(ctx context.Context, id int64, channelID, userID string, selected []string) error
}

// Config holds the bot's dependencies.
type Config struct {
	Session      *discordgo.Session
	TextMessages TextMessageService
	GuildID      string
	Clock        clock.Clock
}

// Validate returns an error if the config is unusable.
func (c Config) Validate() error {
	if c.Session == nil {
		return errors.NotValidf("nil Session")
	}
	if c.TextMessages == nil {
		return errors.NotValidf("nil TextMessages")
	}
	if c.GuildID == "" {
		return errors.NotValidf("empty GuildID")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Bot registers gateway handlers and application commands on a
// session.
type Bot struct {
	session   *discordgo.Session
	texts     TextMessageService
	guildID   string
	clock     clock.Clock
	startTime time.Time
}

// New returns a Bot ready to Start.
func New(cfg Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Bot{
		session: cfg.Session,
		texts:   cfg.TextMessages,
		guildID: cfg.GuildID,
		clock:   cfg.Clock,
	}, nil
}

// Start opens the gateway connection and registers the handlers and
// guild commands.
func (b *Bot) Start() error {
	b.startTime = b.clock.Now()
	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMessage)

	if err := b.session.Open(); err != nil {
		return errors.Annotate(err, "opening gateway session")
	}
	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return errors.Trace(err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return errors.Trace(b.session.Close())
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Infof("gateway session ready as %s#%s",
		r.User.Username, r.User.Discriminator)
}

// onMessage waves back at anyone who mentions the bot.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State.User == nil || m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	for _, u := range m.Mentions {
		if u.ID != s.State.User.ID {
			continue
		}
		if err := s.MessageReactionAdd(m.ChannelID, m.ID, "👋"); err != nil {
			logger.Debugf("adding wave reaction: %v", err)
		}
		return
	}
}

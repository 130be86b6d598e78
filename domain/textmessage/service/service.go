// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/calagopus/bot/domain/textmessage"
	"github.com/calagopus/bot/internal/render"
)

var logger = loggo.GetLogger("bot.textmessage")

// State describes the persistence this service requires.
type State interface {
	// Create persists a new text message record, returning it with its
	// local id populated.
	Create(ctx context.Context, msg textmessage.Message) (textmessage.Message, error)

	// Get returns the text message with the input id, or an error
	// satisfying
	// [github.com/calagopus/bot/domain/textmessage/errors.NotFound].
	Get(ctx context.Context, id int64) (textmessage.Message, error)

	// SearchByTitle returns up to limit messages whose title contains
	// the input substring, most recently created first.
	SearchByTitle(ctx context.Context, substring string, limit int) ([]textmessage.Message, error)

	// SetContent replaces the title and content of a text message.
	SetContent(ctx context.Context, id int64, title, content string) error

	// SetMessageID records the Discord message a record is rendered
	// into; an empty id clears it.
	SetMessageID(ctx context.Context, id int64, messageID string) error

	// Delete removes a text message record.
	Delete(ctx context.Context, id int64) error
}

// DiscordClient describes the remote surface this service requires.
// FetchMessage, EditMessage and DeleteMessage return an error
// satisfying errors.NotFound when the message id no longer resolves.
type DiscordClient interface {
	SendMessage(ctx context.Context, channelID string, payload render.Payload) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, payload render.Payload) error
	FetchMessage(ctx context.Context, channelID, messageID string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	UserHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
}

// Service manages operator-authored text messages and keeps their
// Discord renderings in step with the local records.
type Service struct {
	st      State
	discord DiscordClient
	guildID string
}

// NewService returns a new Service. The guild id scopes every role
// operation.
func NewService(st State, discord DiscordClient, guildID string) *Service {
	return &Service{
		st:      st,
		discord: discord,
		guildID: guildID,
	}
}

// Create persists a new record and renders it into its channel.
func (s *Service) Create(ctx context.Context, channelID, title, content string, roles textmessage.RoleList) (textmessage.Message, error) {
	msg, err := s.st.Create(ctx, textmessage.Message{
		ChannelID: channelID,
		Title:     title,
		Content:   content,
		Roles:     roles,
	})
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	if err := s.sync(ctx, &msg); err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	return msg, nil
}

// Update replaces a record's title and content, then re-renders it.
func (s *Service) Update(ctx context.Context, id int64, title, content string) (textmessage.Message, error) {
	msg, err := s.st.Get(ctx, id)
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	if err := s.st.SetContent(ctx, id, title, content); err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	msg.Title = title
	msg.Content = content
	if err := s.sync(ctx, &msg); err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	return msg, nil
}

// Sync re-renders a record into its Discord message, recreating the
// message if the stored id no longer resolves.
func (s *Service) Sync(ctx context.Context, id int64) (textmessage.Message, error) {
	msg, err := s.st.Get(ctx, id)
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	if err := s.sync(ctx, &msg); err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	return msg, nil
}

// Recreate deletes the record's current Discord message, if any still
// exists, and renders a fresh one.
func (s *Service) Recreate(ctx context.Context, id int64) (textmessage.Message, error) {
	msg, err := s.st.Get(ctx, id)
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}

	if msg.MessageID != "" {
		if err := s.discord.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil && !errors.IsNotFound(err) {
			return textmessage.Message{}, errors.Trace(err)
		}
		if err := s.st.SetMessageID(ctx, msg.ID, ""); err != nil {
			return textmessage.Message{}, errors.Trace(err)
		}
		msg.MessageID = ""
	}

	if err := s.sync(ctx, &msg); err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}
	return msg, nil
}

// Delete removes a record, deleting its Discord message first when it
// still resolves.
func (s *Service) Delete(ctx context.Context, id int64) error {
	msg, err := s.st.Get(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}

	if msg.MessageID != "" {
		if err := s.discord.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil && !errors.IsNotFound(err) {
			return errors.Trace(err)
		}
	}
	return errors.Trace(s.st.Delete(ctx, id))
}

// Get returns the record with the input id.
func (s *Service) Get(ctx context.Context, id int64) (textmessage.Message, error) {
	msg, err := s.st.Get(ctx, id)
	return msg, errors.Trace(err)
}

// Search returns records matching the input title substring, for the
// administrative autocomplete.
func (s *Service) Search(ctx context.Context, substring string, limit int) ([]textmessage.Message, error) {
	msgs, err := s.st.SearchByTitle(ctx, substring, limit)
	return msgs, errors.Trace(err)
}

// SyncRoles reconciles a member's roles against a selection made on a
// record's role menu. The interaction's channel must be the channel the
// record renders into; a selection relayed from anywhere else is
// rejected. Configured roles in the selection are granted; configured
// roles absent from it that the member holds are revoked. Roles outside
// the record's configured set are never touched.
func (s *Service) SyncRoles(ctx context.Context, id int64, channelID, userID string, selected []string) error {
	msg, err := s.st.Get(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	if msg.ChannelID != channelID {
		return errors.NotValidf("role menu selection from channel %q for message %d", channelID, id)
	}

	selection := set.NewStrings(selected...)
	for _, role := range msg.Roles {
		if selection.Contains(role.ID) {
			if err := s.discord.AddRole(ctx, s.guildID, userID, role.ID); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		held, err := s.discord.UserHasRole(ctx, s.guildID, userID, role.ID)
		if err != nil {
			return errors.Trace(err)
		}
		if held {
			if err := s.discord.RemoveRole(ctx, s.guildID, userID, role.ID); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// sync performs the create-or-repair-then-edit sequence. The stored
// message id is checked before editing: if the remote message has been
// deleted out from under the record, a replacement is created and its
// id persisted, rather than failing the operation.
func (s *Service) sync(ctx context.Context, msg *textmessage.Message) error {
	payload := render.TextMessage(*msg)

	if msg.MessageID != "" {
		err := s.discord.FetchMessage(ctx, msg.ChannelID, msg.MessageID)
		switch {
		case err == nil:
			err = s.discord.EditMessage(ctx, msg.ChannelID, msg.MessageID, payload)
			if err == nil || !errors.IsNotFound(err) {
				return errors.Trace(err)
			}
			// Deleted between fetch and edit; recreate below.
		case errors.IsNotFound(err):
			logger.Infof("text message %d lost its discord message %s, recreating",
				msg.ID, msg.MessageID)
		default:
			return errors.Trace(err)
		}
	}

	messageID, err := s.discord.SendMessage(ctx, msg.ChannelID, payload)
	if err != nil {
		return errors.Trace(err)
	}
	if err := s.st.SetMessageID(ctx, msg.ID, messageID); err != nil {
		return errors.Trace(err)
	}
	msg.MessageID = messageID
	return nil
}

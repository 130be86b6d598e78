// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/calagopus/bot/core/database"
	"github.com/calagopus/bot/domain"
	"github.com/calagopus/bot/domain/textmessage"
	textmessageerrors "github.com/calagopus/bot/domain/textmessage/errors"
)

// State implements the text message store.
type State struct {
	*domain.StateBase
}

// NewState returns a new State instance.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// messageRow maps the text_message table.
type messageRow struct {
	ID        int64          `db:"id"`
	ChannelID string         `db:"channel_id"`
	MessageID sql.NullString `db:"message_id"`
	Title     string         `db:"title"`
	Content   string         `db:"content"`
	Roles     string         `db:"roles"`
}

func (r messageRow) toMessage() (textmessage.Message, error) {
	msg := textmessage.Message{
		ID:        r.ID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID.String,
		Title:     r.Title,
		Content:   r.Content,
	}
	if err := json.Unmarshal([]byte(r.Roles), &msg.Roles); err != nil {
		return textmessage.Message{}, errors.Annotate(err, "decoding roles")
	}
	return msg, nil
}

// searchArg carries the arguments of a title search.
type searchArg struct {
	Pattern string `db:"pattern"`
	Limit   int    `db:"limit"`
}

// Create persists a new text message record, returning it with its
// local id populated.
func (s *State) Create(ctx context.Context, msg textmessage.Message) (textmessage.Message, error) {
	db, err := s.DB()
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}

	roles, err := json.Marshal(msg.Roles)
	if err != nil {
		return textmessage.Message{}, errors.Annotate(err, "encoding roles")
	}
	row := messageRow{
		ChannelID: msg.ChannelID,
		Title:     msg.Title,
		Content:   msg.Content,
		Roles:     string(roles),
	}

	stmt, err := s.Prepare(`
INSERT INTO text_message (channel_id, title, content, roles)
VALUES ($messageRow.channel_id, $messageRow.title, $messageRow.content, $messageRow.roles)`, messageRow{})
	if err != nil {
		return textmessage.Message{}, errors.Annotate(err, "preparing insert message statement")
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, row).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		id, err := outcome.Result().LastInsertId()
		if err != nil {
			return errors.Trace(err)
		}
		msg.ID = id
		return nil
	})
	if err != nil {
		return textmessage.Message{}, errors.Annotate(err, "creating text message")
	}
	msg.MessageID = ""
	return msg, nil
}

// Get returns the text message with the input id, or an error
// satisfying [textmessageerrors.NotFound].
func (s *State) Get(ctx context.Context, id int64) (textmessage.Message, error) {
	db, err := s.DB()
	if err != nil {
		return textmessage.Message{}, errors.Trace(err)
	}

	row := messageRow{ID: id}

	stmt, err := s.Prepare(`
SELECT &messageRow.*
FROM   text_message
WHERE  id = $messageRow.id`, messageRow{})
	if err != nil {
		return textmessage.Message{}, errors.Annotate(err, "preparing select message statement")
	}

	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt, row).Get(&row)
	})
	if err != nil {
		if errors.Is(err, sqlair.ErrNoRows) {
			return textmessage.Message{}, textmessageerrors.NotFound
		}
		return textmessage.Message{}, errors.Annotatef(err, "retrieving text message %d", id)
	}
	msg, err := row.toMessage()
	return msg, errors.Trace(err)
}

// SearchByTitle returns up to limit messages whose title contains the
// input substring, most recently created first. It serves the
// administrative autocomplete only.
func (s *State) SearchByTitle(ctx context.Context, substring string, limit int) ([]textmessage.Message, error) {
	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	arg := searchArg{Pattern: "%" + substring + "%", Limit: limit}

	stmt, err := s.Prepare(`
SELECT   &messageRow.*
FROM     text_message
WHERE    title LIKE $searchArg.pattern
ORDER BY created_at DESC
LIMIT    $searchArg.limit`, messageRow{}, searchArg{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing search message statement")
	}

	var rows []messageRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, arg).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "searching text messages for %q", substring)
	}

	msgs := make([]textmessage.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toMessage()
		if err != nil {
			return nil, errors.Trace(err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SetContent replaces the title and content of a text message.
func (s *State) SetContent(ctx context.Context, id int64, title, content string) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	row := messageRow{ID: id, Title: title, Content: content}

	stmt, err := s.Prepare(`
UPDATE text_message
SET    title = $messageRow.title, content = $messageRow.content
WHERE  id = $messageRow.id`, messageRow{})
	if err != nil {
		return errors.Annotate(err, "preparing update content statement")
	}

	return errors.Annotatef(s.exec(ctx, db, stmt, row), "updating text message %d", id)
}

// SetMessageID records the Discord message a record is rendered into.
// An empty id clears the column, severing the link to the remote
// message.
func (s *State) SetMessageID(ctx context.Context, id int64, messageID string) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	row := messageRow{ID: id, MessageID: sql.NullString{String: messageID, Valid: messageID != ""}}

	stmt, err := s.Prepare(`
UPDATE text_message
SET    message_id = $messageRow.message_id
WHERE  id = $messageRow.id`, messageRow{})
	if err != nil {
		return errors.Annotate(err, "preparing update message id statement")
	}

	return errors.Annotatef(s.exec(ctx, db, stmt, row), "updating message id for text message %d", id)
}

// Delete removes a text message record.
func (s *State) Delete(ctx context.Context, id int64) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	row := messageRow{ID: id}

	stmt, err := s.Prepare(`
DELETE FROM text_message
WHERE  id = $messageRow.id`, messageRow{})
	if err != nil {
		return errors.Annotate(err, "preparing delete message statement")
	}

	return errors.Annotatef(s.exec(ctx, db, stmt, row), "deleting text message %d", id)
}

// exec runs a statement that must affect exactly one row, mapping zero
// affected rows onto NotFound.
func (s *State) exec(ctx context.Context, db coredatabase.TxnRunner, stmt *sqlair.Statement, row messageRow) error {
	return db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, stmt, row).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err == nil && affected == 0 {
			err = textmessageerrors.NotFound
		}
		return errors.Trace(err)
	})
}

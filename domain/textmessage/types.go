// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package textmessage manages operator-authored Discord messages: a
// persisted title/content pair rendered into one Discord message per
// record, optionally carrying a role selection menu.
package textmessage

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Role is one selectable role offered by a text message.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleList is an ordered set of selectable roles. Order is preserved so
// the rendered menu is stable across edits.
type RoleList []Role

// Contains reports whether the list offers the input role id.
func (r RoleList) Contains(id string) bool {
	for _, role := range r {
		if role.ID == id {
			return true
		}
	}
	return false
}

// MarshalJSON serialises the roles as an array, preserving order. A nil
// list serialises as an empty array so the column is never NULL.
func (r RoleList) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]Role(r))
	return b, errors.Trace(err)
}

// Message is one operator-managed text message. MessageID is empty
// until the record has been rendered into a Discord message; it is the
// only link between the local row and the remote object, and the remote
// object can disappear out from under it.
type Message struct {
	ID        int64
	ChannelID string
	MessageID string
	Title     string
	Content   string
	Roles     RoleList
}

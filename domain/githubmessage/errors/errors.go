// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NotFound is raised when no tracked message exists for a
	// correlation key. A workflow job event arriving before, or
	// without, the push that creates its message surfaces this; the
	// condition cannot self-heal by retrying, so it must never create a
	// message implicitly.
	NotFound = errors.ConstError("github message not found")

	// AlreadyExists is raised when a message is created for a
	// (repository, commit) pair that already has one.
	AlreadyExists = errors.ConstError("github message already exists")
)

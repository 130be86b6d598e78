// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NotFound is raised when no text message row exists for the
	// requested id.
	NotFound = errors.ConstError("text message not found")
)

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package webhook verifies and classifies inbound GitHub webhook
// deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/juju/errors"
)

const (
	// ErrMissingSignature is raised when a delivery carries no
	// signature header at all.
	ErrMissingSignature = errors.ConstError("missing X-Hub-Signature-256 header")

	// ErrMalformedSignature is raised when the signature header is
	// present but is not a sha256-prefixed hex digest.
	ErrMalformedSignature = errors.ConstError("malformed webhook signature")

	// ErrSignatureMismatch is raised when the signature does not match
	// the digest of the delivered payload.
	ErrSignatureMismatch = errors.ConstError("invalid webhook signature")
)

const signaturePrefix = "sha256="

// CheckSignature validates that the input body was signed with the
// shared webhook secret. The header value must be a hex HMAC-SHA256
// digest of the exact raw payload bytes, prefixed with "sha256=".
// Every failure mode is closed: a missing header, a malformed digest
// and a mismatch all return an error.
func CheckSignature(secret string, body []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrMalformedSignature
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	// hmac.Equal is a constant time comparison.
	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrSignatureMismatch
	}
	return nil
}

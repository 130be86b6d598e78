// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type signatureSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&signatureSuite{})

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *signatureSuite) TestValidSignature(c *gc.C) {
	body := []byte(`{"zen":"Design for failure."}`)
	err := CheckSignature("s3cret", body, sign("s3cret", body))
	c.Assert(err, jc.ErrorIsNil)
}

func (s *signatureSuite) TestValidSignatureEmptyBody(c *gc.C) {
	err := CheckSignature("s3cret", nil, sign("s3cret", nil))
	c.Assert(err, jc.ErrorIsNil)
}

func (s *signatureSuite) TestMissingHeader(c *gc.C) {
	err := CheckSignature("s3cret", []byte("{}"), "")
	c.Assert(err, jc.ErrorIs, ErrMissingSignature)
}

func (s *signatureSuite) TestWrongPrefix(c *gc.C) {
	body := []byte("{}")
	header := "sha1=" + sign("s3cret", body)[len("sha256="):]
	err := CheckSignature("s3cret", body, header)
	c.Assert(err, jc.ErrorIs, ErrMalformedSignature)
}

func (s *signatureSuite) TestNotHex(c *gc.C) {
	err := CheckSignature("s3cret", []byte("{}"), "sha256=zzzz")
	c.Assert(err, jc.ErrorIs, ErrMalformedSignature)
}

func (s *signatureSuite) TestWrongSecret(c *gc.C) {
	body := []byte("{}")
	err := CheckSignature("s3cret", body, sign("other", body))
	c.Assert(err, jc.ErrorIs, ErrSignatureMismatch)
}

func (s *signatureSuite) TestTamperedBody(c *gc.C) {
	header := sign("s3cret", []byte(`{"a":1}`))
	err := CheckSignature("s3cret", []byte(`{"a":2}`), header)
	c.Assert(err, jc.ErrorIs, ErrSignatureMismatch)
}

func (s *signatureSuite) TestTruncatedDigest(c *gc.C) {
	body := []byte("{}")
	header := sign("s3cret", body)
	err := CheckSignature("s3cret", body, header[:len(header)-2])
	c.Assert(err, jc.ErrorIs, ErrSignatureMismatch)
}

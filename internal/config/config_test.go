// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type configSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&configSuite{})

func minimalAttrs() map[string]any {
	return map[string]any{
		"BOT_TOKEN":             "token",
		"GUILD_ID":              "guild-1",
		"GITHUB_CHANNEL_ID":     "chan-1",
		"GITHUB_WEBHOOK_SECRET": "s3cret",
	}
}

func (s *configSuite) TestDefaults(c *gc.C) {
	cfg, err := Parse(minimalAttrs())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(cfg.SponsorsChannelID, gc.Equals, "")
	c.Check(cfg.DatabasePath, gc.Equals, "bot.db")
	c.Check(cfg.BindAddress, gc.Equals, "0.0.0.0")
	c.Check(cfg.Port, gc.Equals, 8080)
	c.Check(cfg.Debug, jc.IsFalse)
}

func (s *configSuite) TestAllFields(c *gc.C) {
	attrs := minimalAttrs()
	attrs["SPONSORS_CHANNEL_ID"] = "chan-2"
	attrs["DATABASE_PATH"] = "/var/lib/bot/bot.db"
	attrs["BIND_ADDRESS"] = "127.0.0.1"
	attrs["PORT"] = "9090"
	attrs["DEBUG"] = true

	cfg, err := Parse(attrs)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(cfg.SponsorsChannelID, gc.Equals, "chan-2")
	c.Check(cfg.DatabasePath, gc.Equals, "/var/lib/bot/bot.db")
	c.Check(cfg.BindAddress, gc.Equals, "127.0.0.1")
	c.Check(cfg.Port, gc.Equals, 9090)
	c.Check(cfg.Debug, jc.IsTrue)
}

func (s *configSuite) TestMissingToken(c *gc.C) {
	attrs := minimalAttrs()
	delete(attrs, "BOT_TOKEN")
	_, err := Parse(attrs)
	c.Assert(err, gc.NotNil)
}

func (s *configSuite) TestEmptySecret(c *gc.C) {
	attrs := minimalAttrs()
	attrs["GITHUB_WEBHOOK_SECRET"] = ""
	_, err := Parse(attrs)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *configSuite) TestPortOutOfRange(c *gc.C) {
	attrs := minimalAttrs()
	attrs["PORT"] = "70000"
	_, err := Parse(attrs)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *configSuite) TestFromEnv(c *gc.C) {
	for key, value := range map[string]string{
		"BOT_TOKEN":             "token",
		"GUILD_ID":              "guild-1",
		"GITHUB_CHANNEL_ID":     "chan-1",
		"GITHUB_WEBHOOK_SECRET": "s3cret",
		"PORT":                  "9191",
		"DEBUG":                 "true",
	} {
		s.PatchEnvironment(key, value)
	}

	cfg, err := FromEnv()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg.Port, gc.Equals, 9191)
	c.Check(cfg.Debug, jc.IsTrue)
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config loads and validates the process configuration from
// the environment.
package config

import (
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/schema"
)

const (
	// Environment variable names, one per field.
	envBotToken          = "BOT_TOKEN"
	envGuildID           = "GUILD_ID"
	envGitHubChannelID   = "GITHUB_CHANNEL_ID"
	envSponsorsChannelID = "SPONSORS_CHANNEL_ID"
	envWebhookSecret     = "GITHUB_WEBHOOK_SECRET"
	envDatabasePath      = "DATABASE_PATH"
	envBindAddress       = "BIND_ADDRESS"
	envPort              = "PORT"
	envDebug             = "DEBUG"
)

// Config holds everything the process needs to run.
type Config struct {
	// BotToken authenticates the Discord session.
	BotToken string

	// GuildID is the guild all role operations are scoped to.
	GuildID string

	// GitHubChannelID receives repository event notifications.
	GitHubChannelID string

	// SponsorsChannelID receives sponsorship notifications. When
	// empty, sponsorship events fall back to GitHubChannelID.
	SponsorsChannelID string

	// WebhookSecret verifies inbound webhook signatures.
	WebhookSecret string

	// DatabasePath is the sqlite database file location.
	DatabasePath string

	// BindAddress and Port locate the webhook listener.
	BindAddress string
	Port        int

	// Debug enables debug-level logging.
	Debug bool
}

var configFields = schema.FieldMap(
	schema.Fields{
		envBotToken:          schema.String(),
		envGuildID:           schema.String(),
		envGitHubChannelID:   schema.String(),
		envSponsorsChannelID: schema.String(),
		envWebhookSecret:     schema.String(),
		envDatabasePath:      schema.String(),
		envBindAddress:       schema.String(),
		envPort:              schema.ForceInt(),
		envDebug:             schema.Bool(),
	},
	schema.Defaults{
		envSponsorsChannelID: "",
		envDatabasePath:      "bot.db",
		envBindAddress:       "0.0.0.0",
		envPort:              8080,
		envDebug:             false,
	},
)

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	raw := map[string]any{}
	for _, key := range []string{
		envBotToken,
		envGuildID,
		envGitHubChannelID,
		envSponsorsChannelID,
		envWebhookSecret,
		envDatabasePath,
		envBindAddress,
		envPort,
		envDebug,
	} {
		if v, ok := os.LookupEnv(key); ok {
			raw[key] = normalise(key, v)
		}
	}
	return Parse(raw)
}

// Parse coerces and validates a raw attribute map.
func Parse(raw map[string]any) (Config, error) {
	coerced, err := configFields.Coerce(raw, nil)
	if err != nil {
		return Config{}, errors.Annotate(err, "coercing config")
	}
	attrs := coerced.(map[string]any)

	cfg := Config{
		BotToken:          attrs[envBotToken].(string),
		GuildID:           attrs[envGuildID].(string),
		GitHubChannelID:   attrs[envGitHubChannelID].(string),
		SponsorsChannelID: attrs[envSponsorsChannelID].(string),
		WebhookSecret:     attrs[envWebhookSecret].(string),
		DatabasePath:      attrs[envDatabasePath].(string),
		BindAddress:       attrs[envBindAddress].(string),
		Port:              attrs[envPort].(int),
		Debug:             attrs[envDebug].(bool),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate returns an error if the config is unusable.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return errors.NotValidf("empty %s", envBotToken)
	}
	if c.GuildID == "" {
		return errors.NotValidf("empty %s", envGuildID)
	}
	if c.GitHubChannelID == "" {
		return errors.NotValidf("empty %s", envGitHubChannelID)
	}
	if c.WebhookSecret == "" {
		return errors.NotValidf("empty %s", envWebhookSecret)
	}
	if c.DatabasePath == "" {
		return errors.NotValidf("empty %s", envDatabasePath)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("port %d", c.Port)
	}
	return nil
}

// normalise maps raw env strings onto the types the schema expects.
func normalise(key, value string) any {
	if key != envDebug {
		return value
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

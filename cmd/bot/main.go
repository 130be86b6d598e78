// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command bot runs the GitHub notification bot: a webhook listener
// feeding a Discord gateway session.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"

	coredatabase "github.com/calagopus/bot/core/database"
	"github.com/calagopus/bot/domain/githubmessage/service"
	githubmessagestate "github.com/calagopus/bot/domain/githubmessage/state"
	"github.com/calagopus/bot/domain/schema"
	textmessageservice "github.com/calagopus/bot/domain/textmessage/service"
	textmessagestate "github.com/calagopus/bot/domain/textmessage/state"
	"github.com/calagopus/bot/internal/bot"
	"github.com/calagopus/bot/internal/config"
	"github.com/calagopus/bot/internal/database"
	"github.com/calagopus/bot/internal/dedup"
	"github.com/calagopus/bot/internal/discord"
	"github.com/calagopus/bot/internal/server"
	"github.com/calagopus/bot/internal/worker/discordbot"
	"github.com/calagopus/bot/internal/worker/httpserver"
)

var logger = loggo.GetLogger("bot.cmd")

func main() {
	var loggingConfig string
	flags := gnuflag.NewFlagSet("bot", gnuflag.ExitOnError)
	flags.StringVar(&loggingConfig, "logging-config", "", "loggo configuration string")
	flags.Parse(true, os.Args[1:])

	if err := run(loggingConfig); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}

func run(loggingConfig string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return errors.Annotate(err, "loading config")
	}
	if err := configureLogging(loggingConfig, cfg.Debug); err != nil {
		return errors.Trace(err)
	}

	clk := clock.WallClock

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return errors.Annotate(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	runner := database.NewTxnRunner(db, clk)
	if err := schema.Ensure(context.Background(), runner); err != nil {
		return errors.Annotate(err, "ensuring schema")
	}
	factory := func() (coredatabase.TxnRunner, error) { return runner, nil }

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return errors.Annotate(err, "creating discord session")
	}
	client := discord.NewClient(session)

	githubService, err := service.NewService(service.Config{
		State:             githubmessagestate.NewState(factory),
		Discord:           client,
		ChannelID:         cfg.GitHubChannelID,
		SponsorsChannelID: cfg.SponsorsChannelID,
		StarAdded:         dedup.NewDefaultCache(),
		StarRemoved:       dedup.NewDefaultCache(),
		Clock:             clk,
	})
	if err != nil {
		return errors.Trace(err)
	}
	textService := textmessageservice.NewService(
		textmessagestate.NewState(factory), client, cfg.GuildID)

	gatewayBot, err := bot.New(bot.Config{
		Session:      session,
		TextMessages: textService,
		GuildID:      cfg.GuildID,
		Clock:        clk,
	})
	if err != nil {
		return errors.Trace(err)
	}

	botWorker, err := discordbot.NewWorker(gatewayBot)
	if err != nil {
		return errors.Annotate(err, "starting gateway worker")
	}

	router := server.NewRouter(server.NewGitHubHandler(cfg.WebhookSecret, githubService))
	serverWorker, err := httpserver.NewWorker(httpserver.Config{
		Address: net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port)),
		Handler: router,
	})
	if err != nil {
		botWorker.Kill()
		_ = botWorker.Wait()
		return errors.Annotate(err, "starting http worker")
	}

	return errors.Trace(wait(botWorker, serverWorker))
}

// wait blocks until a termination signal arrives or a worker dies,
// then stops both workers and reports the first failure.
func wait(workers ...worker.Worker) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	deaths := make(chan error, len(workers))
	for _, w := range workers {
		w := w
		go func() { deaths <- w.Wait() }()
	}

	var cause error
	select {
	case sig := <-signals:
		logger.Infof("received %s, shutting down", sig)
	case cause = <-deaths:
		logger.Errorf("worker died: %v", cause)
	}

	for _, w := range workers {
		w.Kill()
	}
	for _, w := range workers {
		if err := w.Wait(); err != nil && cause == nil {
			cause = err
		}
	}
	return errors.Trace(cause)
}

func configureLogging(spec string, debug bool) error {
	if spec == "" {
		spec = "<root>=INFO"
		if debug {
			spec = "<root>=DEBUG"
		}
	}
	return errors.Annotate(loggo.ConfigureLoggers(spec), "configuring loggers")
}

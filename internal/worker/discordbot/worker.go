// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package discordbot runs the gateway bot as a worker.
package discordbot

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("bot.worker.discordbot")

// Bot is the gateway surface this worker supervises.
type Bot interface {
	Start() error
	Stop() error
}

type botWorker struct {
	tomb tomb.Tomb
	bot  Bot
}

// NewWorker opens the gateway session and keeps it alive until the
// worker is killed.
func NewWorker(bot Bot) (worker.Worker, error) {
	if bot == nil {
		return nil, errors.NotValidf("nil bot")
	}

	w := &botWorker{bot: bot}
	if err := bot.Start(); err != nil {
		return nil, errors.Trace(err)
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *botWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *botWorker) Wait() error {
	return w.tomb.Wait()
}

func (w *botWorker) loop() error {
	<-w.tomb.Dying()
	logger.Infof("closing gateway session")
	if err := w.bot.Stop(); err != nil {
		return errors.Annotate(err, "closing gateway session")
	}
	return tomb.ErrDying
}

// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package httpserver runs the webhook listener as a worker.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("bot.worker.httpserver")

// shutdownTimeout bounds the drain of in-flight requests on worker
// death.
const shutdownTimeout = 10 * time.Second

// Config holds the dependencies of the HTTP server worker.
type Config struct {
	// Address is the host:port to listen on.
	Address string

	// Handler serves every request.
	Handler http.Handler
}

// Validate returns an error if the config is unusable.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.NotValidf("empty Address")
	}
	if c.Handler == nil {
		return errors.NotValidf("nil Handler")
	}
	return nil
}

type serverWorker struct {
	tomb   tomb.Tomb
	server *http.Server
	ln     net.Listener
}

// NewWorker starts an HTTP server worker. The listener is bound before
// the worker is returned, so a port clash surfaces as a construction
// error rather than a worker death.
func NewWorker(cfg Config) (worker.Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %q", cfg.Address)
	}

	w := &serverWorker{
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln: ln,
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *serverWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *serverWorker) Wait() error {
	return w.tomb.Wait()
}

func (w *serverWorker) loop() error {
	logger.Infof("listening on %s", w.ln.Addr())

	serveErr := make(chan error, 1)
	w.tomb.Go(func() error {
		err := w.server.Serve(w.ln)
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
		return nil
	})

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Annotate(err, "serving")
		}
		return nil
	case <-w.tomb.Dying():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(ctx); err != nil {
		return errors.Annotate(err, "shutting down server")
	}
	return tomb.ErrDying
}

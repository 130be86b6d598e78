// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package server exposes the webhook ingestion endpoint.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("bot.server")

// NewRouter returns the process HTTP router. Every response body is
// JSON, including the not-found fallback.
func NewRouter(handler *GitHubHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware)

	// Both spellings accepted; a redirect would drop the POST body.
	router.Handle("/api/github", handler).Methods(http.MethodPost)
	router.Handle("/api/github/", handler).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrors(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrors(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}

// writeJSON renders v with the given status, logging rather than
// failing if the connection is already gone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("writing response: %v", err)
	}
}

// writeErrors renders the error envelope used by every failure
// response.
func writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, map[string][]string{"errors": msgs})
}

// writeAccepted renders the empty-object success body.
func writeAccepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, struct{}{})
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mediaspinner/internal/events"
	"github.com/friendsincode/mediaspinner/internal/history"
	"github.com/friendsincode/mediaspinner/internal/library"
	"github.com/friendsincode/mediaspinner/internal/logbuffer"
	"github.com/friendsincode/mediaspinner/internal/selector"
	"github.com/friendsincode/mediaspinner/internal/telemetry"
)

// API exposes HTTP handlers.
//
// The selector and history tracker are not safe for concurrent use; mu
// serializes every access to them.
type API struct {
	mu        sync.Mutex
	selector  *selector.Selector
	hist      *history.Tracker
	lib       *library.Library
	bus       *events.Bus
	logBuffer *logbuffer.Buffer
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(sel *selector.Selector, hist *history.Tracker, lib *library.Library, bus *events.Bus, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		selector:  sel,
		hist:      hist,
		lib:       lib,
		bus:       bus,
		logBuffer: logBuf,
		logger:    logger,
	}
}

// Routes mounts the API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Post("/playlist/next", a.handleNext)
	r.Get("/playlist/history", a.handleHistory)
	r.Get("/media", a.handleMedia)
	r.Get("/logs", a.handleLogs)
	r.Get("/logs/stats", a.handleLogStats)
}

type nextResponse struct {
	Path string `json:"path"`
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	sel, err := a.selector.Next()
	a.mu.Unlock()
	if err != nil {
		// Startup validation rejects empty catalogs, so this is unreachable
		// on a correctly initialized server.
		a.logger.Error().Err(err).Msg("selection failed")
		writeError(w, http.StatusInternalServerError, "selection_failed")
		return
	}

	telemetry.RecordSelection(sel.Collection, sel.Relaxation.String())

	a.logger.Info().
		Str("path", sel.Path()).
		Uint64("seq", sel.Seq).
		Str("relaxation", sel.Relaxation.String()).
		Msg("selected next item")

	a.bus.Publish(events.EventNowPlaying, events.Payload{
		"path":       sel.Path(),
		"collection": sel.Collection,
		"item":       sel.Item,
		"seq":        sel.Seq,
		"relaxation": sel.Relaxation.String(),
	})

	writeJSON(w, http.StatusOK, nextResponse{Path: sel.Path()})
}

type historyEntry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Seq  uint64 `json:"seq"`
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	a.mu.Lock()
	recent := a.hist.Recent(limit)
	a.mu.Unlock()

	out := make([]historyEntry, 0, len(recent))
	for _, e := range recent {
		out = append(out, historyEntry{ID: e.ID, Path: e.Path(), Seq: e.Seq})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (a *API) handleMedia(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		writeError(w, http.StatusBadRequest, "path_required")
		return
	}

	full, err := a.lib.Resolve(relPath)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Warn().Err(err).Str("path", relPath).Msg("media path rejected")
		writeError(w, http.StatusBadRequest, "invalid_path")
		return
	}

	http.ServeFile(w, r, full)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Limit:      500,
		Descending: true,
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = n
	}
	if r.URL.Query().Get("order") == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

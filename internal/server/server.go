/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mediaspinner/internal/api"
	"github.com/friendsincode/mediaspinner/internal/catalog"
	"github.com/friendsincode/mediaspinner/internal/config"
	"github.com/friendsincode/mediaspinner/internal/eventbus"
	"github.com/friendsincode/mediaspinner/internal/events"
	"github.com/friendsincode/mediaspinner/internal/history"
	"github.com/friendsincode/mediaspinner/internal/library"
	"github.com/friendsincode/mediaspinner/internal/logbuffer"
	"github.com/friendsincode/mediaspinner/internal/selector"
	"github.com/friendsincode/mediaspinner/internal/telemetry"
	"github.com/friendsincode/mediaspinner/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	library   *library.Library
	catalog   *catalog.Catalog
	api       *api.API
	bus       *events.Bus
	logBuffer *logbuffer.Buffer
	forwarder *eventbus.NATSForwarder

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil when
// log capture is not configured; the /logs endpoints report unavailable.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("mediaspinner-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Media responses can be large; handlers manage their own pacing.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	spin, err := config.LoadSpinConfig(s.cfg.SpinConfigPath)
	if err != nil {
		return err
	}

	s.library = library.New(s.cfg.MediaRoot, s.logger)
	scan, err := s.library.Scan()
	if err != nil {
		return err
	}

	cat, err := catalog.Build(scan, spin)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		return fmt.Errorf("no collections found under %s", s.cfg.MediaRoot)
	}
	s.catalog = cat

	seed := s.cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	retention := spin.SameMediaBackoff
	if mb := cat.MaxBackoff(); mb > retention {
		retention = mb
	}
	hist := history.NewTracker(retention)

	sel := selector.New(cat, spin.SameMediaBackoff, hist, rng, s.logger)
	s.api = api.New(sel, hist, s.library, s.bus, s.logBuffer, s.logger)

	s.logger.Info().
		Int("collections", cat.Len()).
		Int("same_media_backoff", spin.SameMediaBackoff).
		Int64("seed", seed).
		Msg("selection engine ready")

	if s.cfg.NATSURL != "" {
		forwarder, err := eventbus.NewNATSForwarder(eventbus.DefaultNATSConfig(s.cfg.NATSURL), s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("initialize nats forwarder: %w", err)
		}
		s.forwarder = forwarder
		s.DeferClose(forwarder.Close)
	}

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	if s.forwarder == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("event forwarder exited")
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`, version.Version)
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

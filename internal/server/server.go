/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the HTTP surface: status, schedule, ring
// history, logs, live events, and the manual ring/resync triggers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/belfry/internal/bell"
	"github.com/friendsincode/belfry/internal/clock"
	"github.com/friendsincode/belfry/internal/config"
	"github.com/friendsincode/belfry/internal/events"
	"github.com/friendsincode/belfry/internal/logbuffer"
	"github.com/friendsincode/belfry/internal/schedule"
	"github.com/friendsincode/belfry/internal/telemetry"
)

// ResyncFunc forces the same routine a resync checkpoint runs.
type ResyncFunc func(ctx context.Context) error

// Server bundles the HTTP listener and the background clock loop.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	db        *gorm.DB
	bus       *events.Bus
	logBuffer *logbuffer.Buffer
	clock     *clock.VirtualClock
	keeper    *schedule.Keeper
	ringer    *bell.Ringer
	resync    ResyncFunc

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires routes.
func New(cfg *config.Config, database *gorm.DB, bus *events.Bus, logBuf *logbuffer.Buffer,
	vclock *clock.VirtualClock, keeper *schedule.Keeper, ringer *bell.Ringer,
	resync ResyncFunc, logger zerolog.Logger) *Server {

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	// SSE connections outlive any sane request timeout, so the timeout
	// middleware skips them.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/events" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	s := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "server").Logger(),
		router:    router,
		db:        database,
		bus:       bus,
		logBuffer: logBuf,
		clock:     vclock,
		keeper:    keeper,
		ringer:    ringer,
		resync:    resync,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", telemetry.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule.ics", s.handleScheduleICal)
		r.Get("/history", s.handleHistory)
		r.Get("/logs", s.handleLogs)
		r.Get("/events", s.handleEvents)
		r.Post("/ring", s.handleRing)
		r.Post("/resync", s.handleResync)
	})
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler { return s.router }

// Start launches the background clock loop and the HTTP listener. It
// blocks until the listener stops.
func (s *Server) Start() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.clock.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("clock loop exited")
		}
	}()

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close shuts down the listener and stops the background loop.
func (s *Server) Close(ctx context.Context) error {
	var first error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			first = err
		}
	}
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()
	return first
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Package api exposes the machine-facing introspection surface: runtime
// status, timers, plugins, notifications, and event injection.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/journal"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/notify"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/plugin"
)

// RuntimeInfo is the runtime surface the API reads and injects into.
type RuntimeInfo interface {
	StatusString() string
	Uptime() time.Duration
	Timers() []int16
	Generate(t event.Topic, args event.Args)
	GenerateWithPriority(t event.Topic, priority uint8, args event.Args)
}

// PluginRegistry is the plugin surface the API reads.
type PluginRegistry interface {
	Describe() []plugin.Description
}

// Config holds API server configuration.
type Config struct {
	Listen string
}

// Server is the HTTP introspection server.
type Server struct {
	cfg     Config
	rt      RuntimeInfo
	plugins PluginRegistry
	hub     *notify.Hub
	jrnl    *journal.Journal
	logger  *slog.Logger
	server  *http.Server
}

// New creates an API server. plugins, hub, and jrnl may be nil; their
// endpoints degrade gracefully.
func New(cfg Config, rt RuntimeInfo, plugins PluginRegistry, hub *notify.Hub, jrnl *journal.Journal) *Server {
	return &Server{
		cfg:     cfg,
		rt:      rt,
		plugins: plugins,
		hub:     hub,
		jrnl:    jrnl,
		logger:  log.WithComponent("api"),
	}
}

// Routes returns the HTTP handler. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/timers", s.handleTimers)
		r.Get("/plugins", s.handlePlugins)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/journal", s.handleJournal)
		r.Post("/events", s.handleInjectEvent)
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled. Blocking.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.Listen)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

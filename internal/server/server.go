// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/glimpse/internal/api"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/db"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/middleware"
	"github.com/stwalsh4118/glimpse/internal/notify"
	"github.com/stwalsh4118/glimpse/internal/store"
	"github.com/stwalsh4118/glimpse/internal/viewer"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	db      *db.DB
	repos   *db.Repositories
	stories *store.Collection
	breaker *notify.Breaker
	viewers *viewer.Manager
	router  *gin.Engine
	server  *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	stories := store.NewCollection()

	breaker := notify.NewBreaker(cfg.Notify.FailureThreshold, cfg.Notify.ResetTimeout, nil)
	sink := notify.Fanout{
		notify.NewGuarded(notify.NewRecorder(repos.Stories), breaker),
		notify.Log{},
	}

	viewers, err := viewer.NewManager(viewer.Options{
		Source:   stories,
		Sink:     sink,
		Playback: cfg.Playback,
		Sessions: cfg.Sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create viewer manager: %w", err)
	}

	s := &Server{
		config:  cfg,
		db:      database,
		repos:   repos,
		stories: stories,
		breaker: breaker,
		viewers: viewers,
	}
	s.setupRouter()
	return s, nil
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(corsConfig()))

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.viewers)
	api.SetupStoryRoutes(apiGroup, s.repos.Stories, s.stories)
	api.SetupSessionRoutes(apiGroup, s.viewers)
}

// corsConfig allows all origins and exposes the request ID to browsers
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	return cfg
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// UpdatePlayback applies reloaded playback timing to sessions opened afterwards
func (s *Server) UpdatePlayback(cfg config.PlaybackConfig) {
	s.viewers.SetPlayback(cfg)
}

// Load fills the in-memory story collection from the database
func (s *Server) Load(ctx context.Context) error {
	if err := s.stories.Load(ctx, s.repos.Stories); err != nil {
		return fmt.Errorf("failed to load stories: %w", err)
	}
	logger.Log.Info().Int("stories", s.stories.Len()).Msg("Story collection loaded")
	return nil
}

// Start loads stories, starts the session reaper and serves HTTP until shutdown
func (s *Server) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	s.viewers.Start()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if err := s.viewers.Stop(); err != nil {
		logger.Log.Warn().Err(err).Msg("Viewer manager did not stop cleanly")
	}

	logger.Log.Info().
		Str("notify_breaker", s.breaker.State().String()).
		Msg("Server stopped")
	return nil
}

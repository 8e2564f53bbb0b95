// Package api wires the PulseBoard dashboard HTTP server: the gin engine,
// logging middleware, and the auth/data route table.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/pulseboard/pulseboard/internal/api/handlers/dashboard"
	"github.com/pulseboard/pulseboard/internal/api/middleware"
	"github.com/pulseboard/pulseboard/internal/buildinfo"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/whoop"
)

// shutdownTimeout bounds graceful shutdown on context cancellation.
const shutdownTimeout = 5 * time.Second

// Server is the dashboard API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	client     *whoop.Client

	mu  sync.RWMutex
	cfg *config.Config
}

// NewServer builds the engine, middleware chain and route table.
func NewServer(cfg *config.Config, client *whoop.Client) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		client: client,
		cfg:    cfg,
	}

	s.engine.Use(
		logging.GinLogrusLogger(),
		logging.GinLogrusRecovery(),
		middleware.RequestLoggingMiddleware(s.requestLogEnabled),
	)
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	h := dashboard.NewHandler(s.client)

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.Version})
	})

	// Browser redirect target of the authorization flow.
	s.engine.GET("/connect", h.Connect)

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/auth/url", h.GetAuthURL)
		v1.GET("/auth/status", h.GetAuthStatus)
		v1.POST("/auth/logout", h.PostLogout)

		v1.GET("/profile", h.GetProfile)
		v1.GET("/recovery", h.GetRecovery)
		v1.GET("/strain", h.GetStrain)
		v1.GET("/sleep", h.GetSleep)
		v1.GET("/workouts", h.GetWorkouts)

		v1.GET("/demo/weekly", h.GetDemoWeekly)
		v1.GET("/demo/sleep", h.GetDemoSleep)
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("dashboard API listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return <-errCh
	}
}

// Engine exposes the router, mainly for handler tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// UpdateConfig applies a hot-reloaded configuration: the session client gets
// new credentials and the request-log switch takes effect immediately. The
// listen port is fixed for the process lifetime.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.client.UpdateConfig(cfg)
}

func (s *Server) requestLogEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.RequestLog
}

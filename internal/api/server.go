// Package api exposes the evaluation pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/domain"
	"github.com/labsense-server/internal/feedback"
	"github.com/labsense-server/internal/middleware"
)

// Server is the HTTP API server.
type Server struct {
	cfg       *domain.Config
	log       *logrus.Logger
	evaluator domain.Evaluator
	provider  *catalog.Provider
	store     domain.EvaluationStore // optional
	feedback  feedback.Store         // optional
	router    *gin.Engine
	server    *http.Server
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithEvaluationStore exposes stored evaluation records over the API.
func WithEvaluationStore(store domain.EvaluationStore) ServerOption {
	return func(s *Server) { s.store = store }
}

// WithFeedbackStore enables the feedback endpoints.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) { s.feedback = store }
}

// NewServer wires the evaluation service and catalog provider into an HTTP
// server.
func NewServer(cfg *domain.Config, evaluator domain.Evaluator, provider *catalog.Provider, logger *logrus.Logger, opts ...ServerOption) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	s := &Server{
		cfg:       cfg,
		log:       logger,
		evaluator: evaluator,
		provider:  provider,
		router:    router,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.GET("/catalog/rules", s.handleListRules)
		v1.GET("/catalog/tests", s.handleListTests)
		v1.POST("/catalog/reload", s.handleReloadCatalog)

		if s.store != nil {
			v1.GET("/evaluations/:id", s.handleGetEvaluation)
			v1.GET("/evaluations", s.handleListEvaluations)
		}
		if s.feedback != nil {
			v1.POST("/feedback", s.handleSubmitFeedback)
			v1.GET("/feedback/stats", s.handleFeedbackStats)
		}
	}

	s.router.GET("/ws/evaluate", s.handleEvaluateStream)
}

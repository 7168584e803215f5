// Package mcp exposes the lab evaluation engine to AI agents over the
// Model Context Protocol. The server is self-contained: it needs no
// external databases and persists feedback to SQLite under the data
// directory.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/cache"
	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/config"
	"github.com/labsense-server/internal/domain"
	"github.com/labsense-server/internal/feedback"
	"github.com/labsense-server/internal/service"
)

const serverVersion = "v0.1.0"

// Server is a standalone MCP server over stdio.
type Server struct {
	config        *config.LiteConfig
	mcpServer     *mcp.Server
	provider      *catalog.Provider
	evaluator     domain.Evaluator
	feedbackStore feedback.Store
	logger        *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) error {
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates a standalone MCP server. The lab catalog comes from
// the configured SQLite file when set, otherwise the builtin catalog.
func NewServer(ctx context.Context, cfg *config.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	source, err := catalogSource(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := catalog.NewProvider(ctx, source, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	server.provider = provider

	memCache := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL, server.logger)
	server.evaluator = service.NewEvaluationService(provider, server.logger,
		service.WithCache(memCache))

	if server.feedbackStore == nil {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		server.feedbackStore = store
	}

	serverInfo := &mcp.Implementation{
		Name:    "labsense",
		Version: serverVersion,
	}
	server.mcpServer = mcp.NewServer(serverInfo, nil)
	server.registerTools()

	server.logger.WithField("catalog_fingerprint", provider.Snapshot().Fingerprint()).
		Info("MCP server initialized")
	return server, nil
}

func catalogSource(cfg *config.LiteConfig) (catalog.Source, error) {
	if cfg.CatalogPath == "" {
		return catalog.BuiltinSource{}, nil
	}
	source, err := catalog.NewSQLiteSource(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	return source, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "evaluate_labs",
		Description: "Evaluate a set of lab readings (plus optional patient " +
			"demographics) against the clinical rule catalog and return " +
			"findings, conditions, and recommended actions.",
	}, s.handleEvaluateLabs)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_rules",
		Description: "List all rules in the active clinical catalog.",
	}, s.handleListRules)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_finding",
		Description: "Look up a catalog finding by id, with its downstream conditions and actions.",
	}, s.handleGetFinding)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record whether a surfaced finding was helpful.",
	}, s.handleSubmitFeedback)
}

// Run serves MCP requests over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting labsense MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
		}
	}
	return nil
}

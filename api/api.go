package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Server is the API server for chatting through and querying the spool system.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. Collaborators are injected through the
// config to allow sharing with the CLI commands.
func NewServer(config Config, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)
	app.Get("/v1/models", s.handleListModels)
	app.Post("/v1/models/refresh", s.handleRefreshModels)
	app.Post("/v1/search", s.handleSearch)
	app.Post("/v1/documents", s.handleAttachDocument)
	app.Post("/v1/chat", s.handleChat)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

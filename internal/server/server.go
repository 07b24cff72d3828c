// Package server provides the HTTP adapter over the extraction pipeline,
// job ledger, and reporting repositories.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds HTTP server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	UploadDir    string
	MaxUploadMB  int64
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		UploadDir:    "uploads",
		MaxUploadMB:  25,
	}
}

// Server is the HTTP adapter
type Server struct {
	config     Config
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates the HTTP server around prepared handlers
func NewServer(config Config, handlers *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.MaxMultipartMemory = s.config.MaxUploadMB << 20
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Documents and jobs
		api.POST("/invoices/upload", s.handlers.UploadInvoice)
		api.GET("/jobs/:id", s.handlers.GetJob)

		// Invoices
		api.GET("/invoices", s.handlers.ListInvoices)
		api.GET("/invoices/:id", s.handlers.GetInvoice)
		api.DELETE("/invoices/:id", s.handlers.DeleteInvoice)

		// Vendors
		api.GET("/vendors", s.handlers.ListVendors)
		api.GET("/vendors/top", s.handlers.TopVendors)

		// Analytics
		api.GET("/analytics/summary", s.handlers.AnalyticsSummary)
		api.GET("/analytics/monthly", s.handlers.AnalyticsMonthly)
		api.GET("/analytics/categories", s.handlers.AnalyticsCategories)

		// Exports
		api.GET("/export/csv", s.handlers.ExportCSV)
		api.GET("/export/xlsx", s.handlers.ExportXLSX)

		// Chat
		api.POST("/chat", s.handlers.Chat)
		api.GET("/chat/history", s.handlers.ChatHistory)
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

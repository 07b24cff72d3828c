package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinshaw/invoice-intel/internal/ai"
	"github.com/kevinshaw/invoice-intel/internal/config"
	"github.com/kevinshaw/invoice-intel/internal/export"
	"github.com/kevinshaw/invoice-intel/internal/insights"
	"github.com/kevinshaw/invoice-intel/internal/jobs"
	"github.com/kevinshaw/invoice-intel/internal/pdftext"
	"github.com/kevinshaw/invoice-intel/internal/pipeline"
	"github.com/kevinshaw/invoice-intel/internal/repository"
	"github.com/kevinshaw/invoice-intel/internal/server"
	"github.com/kevinshaw/invoice-intel/internal/template"
	"github.com/kevinshaw/invoice-intel/internal/vendors"
	"github.com/kevinshaw/invoice-intel/pkg/database"
	"github.com/kevinshaw/invoice-intel/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice intelligence service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	for _, dir := range []string{cfg.Server.UploadDir, cfg.Pipeline.TemplateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("Failed to create directory",
				zap.String("dir", dir), zap.Error(err))
		}
	}

	// Repositories
	invoiceRepo := repository.NewInvoiceRepository(db, logger)
	vendorRepo := repository.NewVendorRepository(db, logger)
	cacheRepo := repository.NewParseCacheRepository(db, logger)
	jobRepo := repository.NewJobRepository(db, logger)
	analyticsRepo := repository.NewAnalyticsRepository(db, logger)
	conversationRepo := repository.NewConversationRepository(db, logger)

	// Domain services
	normalizer := vendors.NewNormalizer(cfg.Vendor.FuzzyThreshold, vendorRepo, logger)
	registry := template.NewRegistry(cfg.Pipeline.TemplateDir, logger)
	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.NearAI.BaseURL,
		APIKey:  cfg.NearAI.APIKey,
		Model:   cfg.NearAI.Model,
		Timeout: cfg.NearAI.Timeout,
	}, logger)
	reader := pdftext.NewReader(logger)

	pipe := pipeline.New(
		reader, aiClient, registry, cacheRepo,
		invoiceRepo, vendorRepo, normalizer, db,
		logger,
	)

	ledger := jobs.NewLedger(jobRepo, pipe, logger)
	worker := jobs.NewWorker(ledger, jobRepo, logger)

	exporter := export.NewExporter(logger)
	chat := insights.NewService(aiClient, analyticsRepo, vendorRepo, invoiceRepo, conversationRepo, logger)

	handlers := server.NewHandlers(
		ledger, invoiceRepo, vendorRepo, analyticsRepo,
		exporter, chat, cfg.Server.UploadDir, logger,
	)
	srv := server.NewServer(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		UploadDir:    cfg.Server.UploadDir,
		MaxUploadMB:  cfg.Server.MaxUploadMB,
	}, handlers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		logger.Fatal("Failed to start job worker", zap.Error(err))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down")
		worker.Stop()
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/service"
	"github.com/owlinhq/invoice-reconciler/internal/config"
	"github.com/owlinhq/invoice-reconciler/internal/infrastructure/persistence/repository"
	"github.com/owlinhq/invoice-reconciler/internal/infrastructure/worker"
	httpadapter "github.com/owlinhq/invoice-reconciler/internal/interfaces/http"
	"github.com/owlinhq/invoice-reconciler/pkg/database"
	"github.com/owlinhq/invoice-reconciler/pkg/utils"
)

func main() {
	// Local overrides from .env, if present.
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

	logger.Info("Starting invoice reconciliation service",
		zap.String("version", "1.0.0"),
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
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	deliveryRepo := repository.NewDeliveryNoteRepository(db.DB, logger)
	matchingRepo := repository.NewMatchingRepository(db.DB, logger)

	reconcileService := service.NewReconcileService(
		invoiceRepo,
		deliveryRepo,
		matchingRepo,
		cfg.MatchingProfile(),
		cfg.Worker.RebuildWorkers,
		utils.NewKVLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerManager := worker.NewManager(logger)
	workerManager.Register(worker.NewRebuildWorker(reconcileService, cfg.Worker.RebuildInterval, logger))
	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, reconcileService, utils.NewKVLogger(logger))

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	logger.Info("Server exited")
}

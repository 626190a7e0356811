// Command rebuild runs one matching rebuild from the command line and
// prints the result. Useful for cron jobs and backfills without going
// through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/service"
	"github.com/owlinhq/invoice-reconciler/internal/config"
	"github.com/owlinhq/invoice-reconciler/internal/infrastructure/persistence/repository"
	"github.com/owlinhq/invoice-reconciler/pkg/database"
	"github.com/owlinhq/invoice-reconciler/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	days := flag.Int("days", 0, "rebuild window in days (0 uses the configured date window)")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
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

	reconcileService := service.NewReconcileService(
		repository.NewInvoiceRepository(db.DB, logger),
		repository.NewDeliveryNoteRepository(db.DB, logger),
		repository.NewMatchingRepository(db.DB, logger),
		cfg.MatchingProfile(),
		cfg.Worker.RebuildWorkers,
		utils.NewKVLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := reconcileService.RebuildMatching(ctx, *days)
	if err != nil {
		logger.Fatal("Matching rebuild failed", zap.Error(err))
	}

	fmt.Printf("invoices processed: %d\npairs created: %d\ninvoices failed: %d\nwindow days: %d\n",
		result.InvoicesProcessed, result.PairsCreated, result.InvoicesFailed, result.DateWindowDays)
}

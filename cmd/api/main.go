package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/application/service"
	"github.com/sangkips/tillsync/internal/config"
	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/infrastructure/database"
	"github.com/sangkips/tillsync/internal/infrastructure/remote"
	"github.com/sangkips/tillsync/internal/infrastructure/repository"
	"github.com/sangkips/tillsync/internal/infrastructure/telemetry"
	"github.com/sangkips/tillsync/internal/presentation/http/handler"
	"github.com/sangkips/tillsync/internal/presentation/http/routes"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/connectivity"
	"github.com/sangkips/tillsync/pkg/printer"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := newLogger(&cfg.App)
	slog.SetDefault(logger)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tillsync exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	db, err := database.NewDB(&cfg.Store, cfg.App.Debug)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("local store ready", "driver", cfg.Store.Driver)

	clk := clock.New()

	// Repositories
	ticketRepo := repository.NewTicketRepository(db, clk)
	activeRepo := repository.NewActiveTicketRepository(db, clk)
	catalogRepo := repository.NewCatalogRepository(db, clk)
	idempotencyRepo := repository.NewIdempotencyRepository(db, clk)

	// Remote server and connectivity
	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
	}, nil)
	network := connectivity.NewPublisher(cfg.Sync.StartOnline)
	prober := connectivity.NewProber(connectivity.ProberConfig{
		URL:      cfg.Remote.HealthURL(),
		Interval: cfg.Sync.ProbeInterval,
	}, nil, clk, network, logger)

	// Services
	syncService := service.NewSyncService(ticketRepo, client, network, clk, syncOptions(&cfg.Sync), logger)
	ticketService := service.NewTicketService(activeRepo, catalogRepo, syncService, clk, logger)
	catalogService := service.NewCatalogService(catalogRepo, client, network, clk, cfg.Sync.CatalogRefreshInterval, logger)

	receiptPrinter, err := printer.New(cfg.Printer.Type, cfg.Printer.USBPath, cfg.Printer.Address)
	if err != nil {
		logger.Warn("receipt printer disabled", "error", err)
		receiptPrinter = printer.NewNullPrinter()
	}
	receiptService := service.NewReceiptService(receiptPrinter, ticketRepo, service.ReceiptConfig{
		PrinterType: cfg.Printer.Type,
		Width:       cfg.Printer.Width,
		Header: entity.ReceiptHeader{
			StoreName: cfg.Printer.StoreName,
			Address:   cfg.Printer.StoreAddress,
			Phone:     cfg.Printer.StorePhone,
		},
	}, logger)

	if restored, err := ticketService.Restore(ctx); err != nil {
		return err
	} else if restored != nil {
		logger.Info("restored active ticket", "client_ticket_id", restored.ClientTicketID, "items", restored.ItemCount())
	}

	syncService.Start(ctx)
	defer syncService.Stop()
	catalogService.Start(ctx)
	defer catalogService.Stop()
	prober.Start(ctx)
	defer prober.Stop()

	go purgeIdempotencyKeys(ctx, idempotencyRepo.DeleteExpired, logger)

	handlers := &routes.Handlers{
		Ticket:       handler.NewTicketHandler(ticketService),
		Catalog:      handler.NewCatalogHandler(catalogService),
		Sync:         handler.NewSyncHandler(syncService),
		Connectivity: handler.NewConnectivityHandler(network),
		Receipt:      handler.NewReceiptHandler(receiptService),
	}
	router := routes.Setup(ctx, handlers, &routes.Deps{
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Clock:           clk,
		Logger:          logger,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "name", cfg.App.Name, "port", port, "env", cfg.App.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Env, "production") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", cfg.Name)
}

func syncOptions(cfg *config.SyncConfig) service.SyncOptions {
	return service.SyncOptions{
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.BaseDelay,
		MaxDelay:          cfg.MaxDelay,
		Interval:          cfg.Interval,
		NetworkRetryDelay: cfg.NetworkRetryDelay,
		RetentionDays:     cfg.RetentionDays,
	}
}

// purgeIdempotencyKeys drops expired finalize replay records every hour
func purgeIdempotencyKeys(ctx context.Context, deleteExpired func(context.Context) (int64, error), logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := deleteExpired(ctx); err != nil {
			logger.Warn("failed to purge idempotency keys", "error", err)
		} else if n > 0 {
			logger.Info("purged idempotency keys", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Package main запускает HTTP-сервер сервиса торговой площадки.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mzalewska/marketplace-system/internal/bucket"
	"github.com/mzalewska/marketplace-system/internal/catalog"
	"github.com/mzalewska/marketplace-system/internal/config"
	"github.com/mzalewska/marketplace-system/internal/handler"
	"github.com/mzalewska/marketplace-system/internal/middleware"
	"github.com/mzalewska/marketplace-system/internal/session"
	"github.com/mzalewska/marketplace-system/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := storage.NewPostgresStore(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}
	defer store.Close()

	var source catalog.Source
	if cfg.CatalogAddress != "" {
		source = catalog.NewClient(cfg.CatalogAddress)
	} else {
		fixtures, err := catalog.NewFixtureSource()
		if err != nil {
			sugar.Fatalw("fixture catalog error", "error", err.Error())
		}
		source = fixtures
		sugar.Infow("catalog address not set, serving embedded offers")
	}

	offers := catalog.NewRepository(source, logger)
	bucketManager := bucket.NewManager(store, logger)
	sessions := session.NewController(store)

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(offers, bucketManager, sessions, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового переноса накопленных просмотров в каталог
	g.Go(func() error {
		offers.StartViewFlush(ctx, 10*time.Second)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

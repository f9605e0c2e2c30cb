package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/app"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/classifier"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title        Risk API
// @version      1.0
// @description  Request classification, checkout risk scoring and admin views.
// @BasePath     /
func main() {
	_ = godotenv.Load() // optional .env for local runs

	// Initialize logger
	pkg.InitLogger()
	logger := pkg.Logger

	// Handle shutdown signals (SIGINT, SIGTERM) for a K8s pod termination grace period
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, cleanup, err := app.NewApp(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("risk_api_started", zap.String("addr", application.Server.Addr))
		if err := application.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		application.Counter.Run(gctx, classifier.NewTicker(application.ResetWindow), func(sources int) {
			observability.CounterResets.Inc()
			logger.Debug("request_counts_reset", zap.Int("sources", sources))
		})
		return nil
	})

	g.Go(func() error {
		return application.Dispatcher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")
		// Timeout context for draining connections (align with K8s terminationGracePeriodSeconds)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return application.Server.Shutdown(shutdownCtx)
	})

	if err = g.Wait(); err != nil {
		logger.Error("risk_api_stopped", zap.Error(err))
	}
	cleanup()

	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

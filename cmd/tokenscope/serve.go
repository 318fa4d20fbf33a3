package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenScope/internal/config"
	"tokenScope/internal/server"
)

// runServe runs the refresh worker alongside the HTTP and WebSocket
// gateway, mirroring the single-process deployment shape.
func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, redisStore, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer redisStore.Close()

	gateway := server.New(runner, logger)

	// Forward published patches to WebSocket clients.
	messages, err := redisStore.Subscribe(ctx, cfg.Channel)
	if err != nil {
		return err
	}
	go gateway.ForwardPatches(ctx, messages)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	schedulerErr := make(chan error, 1)
	go func() {
		schedulerErr <- runScheduler(ctx, cfg.CronExpr, runner, logger)
	}()

	select {
	case err := <-serveErr:
		stop()
		return err
	case err := <-schedulerErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("gateway shutdown", zap.Error(shutdownErr))
		}
		return err
	}
}

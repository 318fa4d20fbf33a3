package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenScope/internal/config"
	"tokenScope/internal/diff"
	"tokenScope/internal/fetch"
	"tokenScope/internal/metrics"
	"tokenScope/internal/provider"
	"tokenScope/internal/refresh"
	"tokenScope/internal/store"
)

func main() {
	// Optional local overrides; missing .env is fine.
	godotenv.Load()

	root := &cobra.Command{
		Use:          "tokenscope",
		Short:        "Token pool aggregation and change notification service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background refresh worker",
		RunE:  runWorker,
	}
	addCommonFlags(runCmd)
	root.AddCommand(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker with the HTTP and WebSocket gateway",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd)
	serveCmd.Flags().String("listen", ":3000", "HTTP listen address")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("redis-url", "redis://127.0.0.1:6379", "redis URL")
	cmd.Flags().String("channel", "token_updates", "pub/sub channel for patches")
	cmd.Flags().String("cache-key", "tokens:merged", "cache key for the merged snapshot")
	cmd.Flags().Duration("cache-ttl", 45*time.Second, "snapshot cache TTL")
	cmd.Flags().String("cron", "*/15 * * * * *", "refresh schedule (with seconds)")
	cmd.Flags().Float64("threshold", 0.02, "fractional change threshold for publishing")
	cmd.Flags().Duration("cooldown", 15*time.Second, "per-token publish cooldown")
	cmd.Flags().Duration("marker-ttl", 60*time.Second, "cooldown marker TTL")
	cmd.Flags().Duration("provider-timeout", 8*time.Second, "upstream request timeout")
	cmd.Flags().Duration("retry-base", 300*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("retry-cap", 5*time.Second, "maximum retry backoff")
	cmd.Flags().Int("retry-budget", 5, "retries for non-rate-limit failures")
	cmd.Flags().Int("rate-limit-cap", 0, "retries for rate-limit responses (0 = uncapped)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runWorker(cmd *cobra.Command, _ []string) error {
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

	logger.Info("worker start",
		zap.String("cron", cfg.CronExpr),
		zap.String("cache_key", cfg.CacheKey),
		zap.String("channel", cfg.Channel),
		zap.Int("tokens", len(cfg.Tokens)),
	)

	return runScheduler(ctx, cfg.CronExpr, runner, logger)
}

// buildRunner wires the full refresh pipeline against one redis connection.
func buildRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (*refresh.Runner, *store.Redis, error) {
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	upstream := provider.NewClient(cfg.ProviderTimeout)

	engine := diff.NewEngine(diff.Config{
		Threshold: cfg.Threshold,
		Cooldown:  cfg.Cooldown,
		MarkerTTL: cfg.MarkerTTL,
		Channel:   cfg.Channel,
	}, redisStore, redisStore, logger)

	runner := refresh.NewRunner(refresh.RunConfig{
		Tokens:   cfg.Tokens,
		CacheKey: cfg.CacheKey,
		CacheTTL: cfg.CacheTTL,
		Policy: fetch.Policy{
			BaseDelay:    cfg.RetryBase,
			MaxDelay:     cfg.RetryCap,
			MaxRetries:   cfg.RetryBudget,
			RateLimitCap: cfg.RateLimitCap,
		},
	}, upstream, redisStore, engine, metrics.New(prometheus.DefaultRegisterer), logger)

	return runner, redisStore, nil
}

// runScheduler runs one immediate cycle and then refreshes on the cron
// schedule until ctx is canceled. The runner's own guard drops any tick
// that would overlap a running cycle.
func runScheduler(ctx context.Context, cronExpr string, runner *refresh.Runner, logger *zap.Logger) error {
	if _, err := runner.RunCycle(ctx); err != nil {
		logger.Warn("initial refresh", zap.Error(err))
	}

	scheduler := cron.New(cron.WithSeconds())
	_, err := scheduler.AddFunc(cronExpr, func() {
		if _, err := runner.RunCycle(ctx); err != nil {
			logger.Warn("scheduled refresh", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

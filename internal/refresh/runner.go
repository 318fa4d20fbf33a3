// Package refresh drives one end-to-end pass over the configured tokens:
// fetch, normalize, merge, aggregate, diff, publish, persist.
package refresh

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"tokenScope/internal/aggregate"
	"tokenScope/internal/diff"
	"tokenScope/internal/fetch"
	"tokenScope/internal/merge"
	"tokenScope/internal/metrics"
	"tokenScope/internal/model"
	"tokenScope/internal/normalize"
	"tokenScope/internal/store"
)

// ErrCycleInProgress is returned when a refresh is invoked while the
// previous one is still running. Ticks never overlap; the caller drops the
// invocation.
var ErrCycleInProgress = errors.New("refresh cycle already in progress")

const rateCacheTTL = 5 * time.Minute

// Upstream is the provider surface one cycle consumes.
type Upstream interface {
	FetchPools(ctx context.Context, address string) ([]byte, error)
	FetchMarketSummary(ctx context.Context, address, platform string) ([]byte, error)
	FetchRateUSD(ctx context.Context) (*float64, error)
}

// RunConfig holds runtime settings for the refresh runner.
type RunConfig struct {
	Tokens   []model.TokenConfig
	CacheKey string
	CacheTTL time.Duration
	RateKey  string
	Policy   fetch.Policy
}

func (c RunConfig) normalized() RunConfig {
	if c.CacheKey == "" {
		c.CacheKey = "tokens:merged"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 45 * time.Second
	}
	if c.RateKey == "" {
		c.RateKey = "sol:usd"
	}
	return c
}

// Runner executes refresh cycles. One runner runs at most one cycle at a
// time; overlapping invocations return ErrCycleInProgress.
type Runner struct {
	cfg       RunConfig
	upstream  Upstream
	kv        store.KV
	engine    *diff.Engine
	logger    *zap.Logger
	metrics   *metrics.Metrics
	rateCache *lru.LRU[string, float64]

	mu      sync.Mutex
	running bool
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, upstream Upstream, kv store.KV, engine *diff.Engine, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Runner{
		cfg:       cfg.normalized(),
		upstream:  upstream,
		kv:        kv,
		engine:    engine,
		logger:    logger,
		metrics:   m,
		rateCache: lru.NewLRU[string, float64](4, nil, rateCacheTTL),
	}
}

// RunCycle executes one full refresh pass and returns the cycle result.
// Per-token failures become labeled error entries; only an overlapping
// invocation is reported as an error.
func (r *Runner) RunCycle(ctx context.Context) ([]model.TokenEntry, error) {
	if !r.tryAcquire() {
		r.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil, ErrCycleInProgress
	}
	defer r.release()

	started := time.Now()
	cycleID := uuid.NewString()
	logger := r.logger.With(zap.String("cycle_id", cycleID))
	logger.Info("refresh start", zap.Int("tokens", len(r.cfg.Tokens)))

	rateUSD := r.fetchRate(ctx, logger)

	entries := make([]model.TokenEntry, 0, len(r.cfg.Tokens))
	for _, token := range r.cfg.Tokens {
		entries = append(entries, r.processToken(ctx, logger, token, rateUSD))
	}

	prev := r.loadPrevious(ctx, logger)

	patch, err := r.engine.Run(ctx, entries, prev, r.cfg.Tokens)
	if err != nil {
		logger.Warn("diff cycle", zap.Error(err))
	}
	if patch != nil {
		r.metrics.PatchesTotal.Inc()
		r.metrics.DiffsPublished.Add(float64(len(patch.Diffs)))
	}

	r.persistSnapshot(ctx, logger, entries)

	elapsed := time.Since(started)
	r.metrics.CycleDuration.Observe(elapsed.Seconds())
	r.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	logger.Info("refresh ok",
		zap.Int("tokens", len(entries)),
		zap.Duration("took", elapsed),
		zap.Duration("cache_ttl", r.cfg.CacheTTL),
	)

	return entries, nil
}

func (r *Runner) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// processToken resolves one configured token: both provider calls issued
// concurrently, the cycle suspending until the pair settles. Either call
// failing past its retry budget turns the slot into an error entry.
func (r *Runner) processToken(ctx context.Context, logger *zap.Logger, token model.TokenConfig, rateUSD *float64) model.TokenEntry {
	var (
		wg         sync.WaitGroup
		poolsRaw   []byte
		summaryRaw []byte
		poolsErr   error
		summaryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		poolsRaw, poolsErr = fetch.Do(ctx, r.policyFor("dexscreener"), logger, func(ctx context.Context) ([]byte, error) {
			return r.upstream.FetchPools(ctx, token.Address)
		})
	}()
	go func() {
		defer wg.Done()
		summaryRaw, summaryErr = fetch.Do(ctx, r.policyFor("coingecko"), logger, func(ctx context.Context) ([]byte, error) {
			return r.upstream.FetchMarketSummary(ctx, token.Address, token.Platform)
		})
	}()
	wg.Wait()

	if err := firstError(poolsErr, summaryErr); err != nil {
		logger.Warn("token refresh failed", zap.String("label", token.Label), zap.Error(err))
		r.metrics.TokenErrors.WithLabelValues(token.Label).Inc()
		return model.TokenEntry{Label: token.Label, Error: err.Error()}
	}

	pools := merge.Pools(normalize.Pools(poolsRaw))
	summary := normalize.Summary(token.Platform, summaryRaw)
	built := aggregate.BuildToken(pools, summary, rateUSD)

	return model.TokenEntry{Label: token.Label, Token: &built}
}

// fetchRate resolves the USD conversion rate: live fetch with backoff, then
// the in-process cache, then the last-known-good store key. A fresh value
// refreshes both fallbacks.
func (r *Runner) fetchRate(ctx context.Context, logger *zap.Logger) *float64 {
	rate, err := fetch.Do(ctx, r.policyFor("coingecko"), logger, func(ctx context.Context) (*float64, error) {
		return r.upstream.FetchRateUSD(ctx)
	})
	if err != nil {
		logger.Warn("rate fetch failed", zap.Error(err))
		rate = nil
	}

	if rate != nil {
		r.rateCache.Add(r.cfg.RateKey, *rate)
		value := strconv.FormatFloat(*rate, 'f', -1, 64)
		if err := r.kv.Set(ctx, r.cfg.RateKey, value, rateCacheTTL); err != nil {
			logger.Warn("persist rate", zap.Error(err))
		}
		return rate
	}

	if cached, ok := r.rateCache.Get(r.cfg.RateKey); ok {
		logger.Info("using cached rate", zap.Float64("rate_usd", cached))
		return &cached
	}

	raw, ok, err := r.kv.Get(ctx, r.cfg.RateKey)
	if err != nil {
		logger.Warn("read last-known rate", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	logger.Info("using last-known rate", zap.Float64("rate_usd", parsed))
	return &parsed
}

func (r *Runner) loadPrevious(ctx context.Context, logger *zap.Logger) []model.TokenEntry {
	raw, ok, err := r.kv.Get(ctx, r.cfg.CacheKey)
	if err != nil {
		logger.Warn("load previous snapshot", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	prev, err := store.DecodeSnapshot(raw)
	if err != nil {
		logger.Warn("previous snapshot unreadable", zap.Error(err))
		return nil
	}
	return prev
}

// persistSnapshot writes the cycle result under the cache key. Failure is
// non-fatal: the in-memory result already served this cycle.
func (r *Runner) persistSnapshot(ctx context.Context, logger *zap.Logger, entries []model.TokenEntry) {
	data, err := store.EncodeSnapshot(entries)
	if err != nil {
		logger.Warn("encode snapshot", zap.Error(err))
		return
	}
	if err := r.kv.Set(ctx, r.cfg.CacheKey, string(data), r.cfg.CacheTTL); err != nil {
		logger.Warn("persist snapshot", zap.Error(err))
	}
}

// CachedSnapshot returns the previous persisted cycle, if any.
func (r *Runner) CachedSnapshot(ctx context.Context) ([]model.TokenEntry, bool) {
	raw, ok, err := r.kv.Get(ctx, r.cfg.CacheKey)
	if err != nil || !ok {
		return nil, false
	}
	entries, err := store.DecodeSnapshot(raw)
	if err != nil {
		return nil, false
	}
	return entries, true
}

func (r *Runner) policyFor(providerName string) fetch.Policy {
	policy := r.cfg.Policy
	policy.OnRetry = func() {
		r.metrics.UpstreamRetries.WithLabelValues(providerName).Inc()
	}
	return policy
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

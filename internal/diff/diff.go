// Package diff compares a freshly computed cycle result against the
// previous cycle's snapshot and publishes an incremental patch when a token
// moved meaningfully.
package diff

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenScope/internal/model"
	"tokenScope/internal/store"
)

const markerKeyPrefix = "last_pub:"

// Config controls significance, cooldown, and publishing.
type Config struct {
	// Threshold is the fractional change that makes a movement significant.
	Threshold float64
	// Cooldown is the minimum time between two notifications for one token.
	Cooldown time.Duration
	// MarkerTTL bounds how long cooldown markers survive in the store.
	MarkerTTL time.Duration
	// Channel is the bus channel patches are published to.
	Channel string
}

// DefaultConfig mirrors the worker defaults: 2% threshold, 15s cooldown,
// 60s marker TTL.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.02,
		Cooldown:  15 * time.Second,
		MarkerTTL: 60 * time.Second,
		Channel:   "token_updates",
	}
}

func (c Config) normalized() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.02
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 15 * time.Second
	}
	if c.MarkerTTL <= 0 {
		c.MarkerTTL = 60 * time.Second
	}
	if c.Channel == "" {
		c.Channel = "token_updates"
	}
	return c
}

// Engine decides per-token significance and enforces per-token cooldowns.
type Engine struct {
	cfg    Config
	kv     store.KV
	pub    store.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine builds a diff engine over the given store and bus.
func NewEngine(cfg Config, kv store.KV, pub store.Publisher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg.normalized(),
		kv:     kv,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.now = clock
	}
	return e
}

// CanonicalKey derives the cross-cycle matching key for one entry: the
// lower-cased, trimmed token address when resolvable, else the display label.
func CanonicalKey(entry model.TokenEntry, cfg *model.TokenConfig) string {
	var addr string
	if entry.Token != nil && entry.Token.TokenAddress != nil {
		addr = *entry.Token.TokenAddress
	}
	if addr == "" && cfg != nil {
		addr = cfg.Address
	}
	if addr == "" {
		addr = entry.Label
	}

	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// Numbers extracts the comparable numeric snapshot of one entry, reading
// through the diagnostic USD sub-record. Error entries yield empty numbers.
func Numbers(entry model.TokenEntry) model.DiffNumbers {
	if entry.Token == nil {
		return model.DiffNumbers{}
	}

	token := entry.Token
	volume := token.Debug.TotalVolumeUSD
	txns := token.TransactionCount

	return model.DiffNumbers{
		PriceUSD:     token.Debug.PriceUSD,
		MarketCapUSD: token.Debug.MarketCapUSD,
		VolumeUSD:    &volume,
		Txns24:       &txns,
	}
}

// fractionalChange reports the movement between two known values. A zero
// baseline degrades to the absolute delta so a move off zero still registers.
func fractionalChange(oldV, newV float64) float64 {
	if oldV == 0 {
		return math.Abs(newV - oldV)
	}
	return math.Abs(newV-oldV) / math.Abs(oldV)
}

// Run computes the patch for one cycle, publishes it when non-empty, and
// writes cooldown markers for every published token. The returned patch is
// nil when nothing met the bar. Store failures around cooldown markers are
// non-fatal; a publish failure suppresses marker writes so the next cycle
// can retry.
func (e *Engine) Run(ctx context.Context, newEntries, prevEntries []model.TokenEntry, tokens []model.TokenConfig) (*model.Patch, error) {
	cfgByLabel := make(map[string]*model.TokenConfig, len(tokens))
	for i := range tokens {
		cfgByLabel[tokens[i].Label] = &tokens[i]
	}

	prevByKey := make(map[string]model.TokenEntry, len(prevEntries))
	for _, prev := range prevEntries {
		prevByKey[CanonicalKey(prev, cfgByLabel[prev.Label])] = prev
	}

	now := e.now()
	var diffs []model.DiffRecord

	for _, entry := range newEntries {
		if entry.Token == nil {
			// Error entries stand outside diffing: old/new unknown.
			continue
		}

		key := CanonicalKey(entry, cfgByLabel[entry.Label])
		newNums := Numbers(entry)

		var oldNums model.DiffNumbers
		if prev, ok := prevByKey[key]; ok {
			oldNums = Numbers(prev)
		}

		significant, changePct := e.significance(oldNums, newNums)
		if !significant {
			continue
		}
		if e.onCooldown(ctx, key, now) {
			continue
		}

		diffs = append(diffs, model.DiffRecord{
			Address:   key,
			Label:     entry.Label,
			Old:       oldNums,
			Next:      newNums,
			ChangePct: changePct,
		})
	}

	if len(diffs) == 0 {
		return nil, nil
	}

	patch := &model.Patch{
		Type:  "patch",
		Seq:   now.UnixMilli(),
		TS:    now.UTC().Format(time.RFC3339Nano),
		Diffs: diffs,
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	if err := e.pub.Publish(ctx, e.cfg.Channel, payload); err != nil {
		e.logger.Warn("publish patch", zap.Error(err), zap.Int("diffs", len(diffs)))
		return patch, nil
	}

	e.logger.Info("published patch", zap.Int("diffs", len(diffs)), zap.String("channel", e.cfg.Channel))

	for _, d := range diffs {
		markerKey := markerKeyPrefix + d.Address
		value := strconv.FormatInt(e.now().UnixMilli(), 10)
		if err := e.kv.Set(ctx, markerKey, value, e.cfg.MarkerTTL); err != nil {
			e.logger.Warn("write cooldown marker", zap.Error(err), zap.String("key", markerKey))
		}
	}

	return patch, nil
}

// significance applies the ordered decision rule: price comparison first,
// new-discovery second, market-cap fallback last.
func (e *Engine) significance(oldNums, newNums model.DiffNumbers) (bool, *float64) {
	switch {
	case newNums.PriceUSD != nil && oldNums.PriceUSD != nil:
		change := fractionalChange(*oldNums.PriceUSD, *newNums.PriceUSD)
		return change >= e.cfg.Threshold, &change
	case oldNums.PriceUSD == nil && newNums.PriceUSD != nil:
		// New discovery: change fraction is unrepresentable.
		return true, nil
	case newNums.MarketCapUSD != nil && oldNums.MarketCapUSD != nil:
		change := fractionalChange(*oldNums.MarketCapUSD, *newNums.MarketCapUSD)
		return change >= e.cfg.Threshold, nil
	default:
		return false, nil
	}
}

// onCooldown reports whether the token's last publish is younger than the
// cooldown window. A broken marker read fails open.
func (e *Engine) onCooldown(ctx context.Context, key string, now time.Time) bool {
	raw, ok, err := e.kv.Get(ctx, markerKeyPrefix+key)
	if err != nil {
		e.logger.Warn("read cooldown marker", zap.Error(err), zap.String("key", key))
		return false
	}
	if !ok {
		return false
	}

	lastPub, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || lastPub <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(lastPub)) < e.cfg.Cooldown
}

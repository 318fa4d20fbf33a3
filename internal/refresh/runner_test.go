package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenScope/internal/diff"
	"tokenScope/internal/fetch"
	"tokenScope/internal/model"
	"tokenScope/internal/provider"
	"tokenScope/internal/store"
)

type stubUpstream struct {
	priceUSD   float64
	rateUSD    *float64
	poolsErr   error
	summaryErr error
	rateErr    error
	noSummary  bool
}

func (s *stubUpstream) FetchPools(ctx context.Context, address string) ([]byte, error) {
	if s.poolsErr != nil {
		return nil, s.poolsErr
	}
	payload := fmt.Sprintf(`{"pairs":[{
		"pairAddress":"pool-%s",
		"dexId":"uniswap",
		"baseToken":{"symbol":"TKN","name":"Token","address":"%s"},
		"quoteToken":{"symbol":"WETH","address":"0xweth"},
		"liquidity":{"usd":1000},
		"volume":{"h24":500},
		"txns":{"h24":{"buys":2,"sells":3}},
		"priceUsd":"%v",
		"priceChange":{"h1":0.5}
	}]}`, address, address, s.priceUSD)
	return []byte(payload), nil
}

func (s *stubUpstream) FetchMarketSummary(ctx context.Context, address, platform string) ([]byte, error) {
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	if s.noSummary {
		return nil, nil
	}
	payload := fmt.Sprintf(`{
		"id":"token",
		"name":"Token",
		"symbol":"tkn",
		"platforms":{"%s":"%s"},
		"market_data":{"current_price":{"usd":%v},"market_cap":{"usd":1000000}}
	}`, platform, address, s.priceUSD)
	return []byte(payload), nil
}

func (s *stubUpstream) FetchRateUSD(ctx context.Context) (*float64, error) {
	if s.rateErr != nil {
		return nil, s.rateErr
	}
	return s.rateUSD, nil
}

func rate(v float64) *float64 { return &v }

type testHarness struct {
	runner   *Runner
	upstream *stubUpstream
	mem      *store.Memory
	clock    *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mem := store.NewMemory(clock.Now)
	upstream := &stubUpstream{priceUSD: 100, rateUSD: rate(50)}

	engine := diff.NewEngine(diff.DefaultConfig(), mem, mem, nil).WithClock(clock.Now)
	runner := NewRunner(RunConfig{
		Tokens: []model.TokenConfig{
			{Label: "TKN (ETH)", Address: "0xtkn", Platform: "ethereum"},
		},
		Policy: fetch.Policy{BaseDelay: time.Microsecond, MaxDelay: time.Microsecond, MaxRetries: 1},
	}, upstream, mem, engine, nil, nil)

	return &testHarness{runner: runner, upstream: upstream, mem: mem, clock: clock}
}

func TestRunCycleBuildsAggregates(t *testing.T) {
	h := newHarness(t)

	entries, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.NotNil(t, entry.Token)
	assert.Empty(t, entry.Error)
	require.NotNil(t, entry.Token.PriceSol)
	assert.Equal(t, 2.0, *entry.Token.PriceSol) // 100 USD at 50 USD/unit
	assert.Equal(t, 5.0, entry.Token.TransactionCount)
	require.NotNil(t, entry.Token.TokenTicker)
	assert.Equal(t, "TKN", *entry.Token.TokenTicker)

	// Snapshot persisted under the cache key.
	raw, ok, err := h.mem.Get(context.Background(), "tokens:merged")
	require.NoError(t, err)
	require.True(t, ok)
	var persisted []model.TokenEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 1)
}

func TestRunCycleTokenErrorDoesNotAbortCycle(t *testing.T) {
	h := newHarness(t)
	h.upstream.poolsErr = &provider.StatusError{Code: 400}

	entries, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Token)
	assert.NotEmpty(t, entries[0].Error)

	// An error entry still reaches the snapshot, but publishes nothing.
	assert.Empty(t, h.mem.Published())
}

func TestRunCycleRateFallsBackToLastKnownGood(t *testing.T) {
	h := newHarness(t)

	// First cycle stores the live rate.
	_, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)

	// Second cycle cannot fetch the rate but still converts via fallback.
	h.clock.Advance(20 * time.Second)
	h.upstream.rateErr = &provider.StatusError{Code: 400}
	h.upstream.priceUSD = 150

	entries, err := h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entries[0].Token)
	require.NotNil(t, entries[0].Token.PriceSol)
	assert.Equal(t, 3.0, *entries[0].Token.PriceSol)
}

func TestRunCycleOverlapGuard(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.runner.tryAcquire())
	_, err := h.runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	h.runner.release()

	_, err = h.runner.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestThreeCycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Cycle 1: first sighting publishes a discovery and arms the cooldown.
	h.upstream.priceUSD = 100
	_, err := h.runner.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, h.mem.Published(), 1)

	var patch model.Patch
	require.NoError(t, json.Unmarshal(h.mem.Published()[0].Payload, &patch))
	assert.Equal(t, "patch", patch.Type)
	require.Len(t, patch.Diffs, 1)
	assert.Nil(t, patch.Diffs[0].ChangePct)

	// Cycle 2, 1s later: 0.5% move is below the 2% threshold.
	h.clock.Advance(time.Second)
	h.upstream.priceUSD = 100.5
	_, err = h.runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, h.mem.Published(), 1)

	// Cycle 3, 20s later: 10% move with the cooldown expired.
	h.clock.Advance(20 * time.Second)
	h.upstream.priceUSD = 110.55
	_, err = h.runner.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, h.mem.Published(), 2)

	require.NoError(t, json.Unmarshal(h.mem.Published()[1].Payload, &patch))
	require.Len(t, patch.Diffs, 1)
	require.NotNil(t, patch.Diffs[0].ChangePct)
	assert.InDelta(t, 0.1, *patch.Diffs[0].ChangePct, 1e-9)
}

func TestCachedSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, ok := h.runner.CachedSnapshot(ctx)
	assert.False(t, ok)

	_, err := h.runner.RunCycle(ctx)
	require.NoError(t, err)

	entries, ok := h.runner.CachedSnapshot(ctx)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "TKN (ETH)", entries[0].Label)
}

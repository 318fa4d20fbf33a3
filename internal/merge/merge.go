// Package merge reconciles normalized pools reported by more than one
// provider for the same underlying on-chain pool.
package merge

import (
	"fmt"

	"tokenScope/internal/model"
	"tokenScope/internal/numeric"
)

// keySentinel stands in for a missing identity component so pools lacking
// a protocol or pair id still merge deterministically among themselves.
const keySentinel = "na"

// Key returns the identity key a pool merges under: (protocol, pair_id).
func Key(pool model.Pool) string {
	protocol := keySentinel
	if pool.Protocol != nil && *pool.Protocol != "" {
		protocol = *pool.Protocol
	}
	pairID := keySentinel
	if pool.PairID != nil && *pool.PairID != "" {
		pairID = *pool.PairID
	}
	return fmt.Sprintf("%s::%s", protocol, pairID)
}

// Pools deduplicates pools by identity key, reconciling colliding records.
// Liquidity, volume, and transaction counts take the maximum (nil as 0);
// prices and price changes keep the first non-nil value, earlier record
// winning. Output preserves first-seen key order. Idempotent: merging a
// merged set reproduces it.
func Pools(pools []model.Pool) []model.Pool {
	merged := make(map[string]*model.Pool, len(pools))
	order := make([]string, 0, len(pools))

	for _, pool := range pools {
		key := Key(pool)
		existing, ok := merged[key]
		if !ok {
			copied := pool
			merged[key] = &copied
			order = append(order, key)
			continue
		}
		reconcile(existing, pool)
	}

	out := make([]model.Pool, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

// reconcile folds next into existing. Different providers may under-report a
// live pool, so the higher liquidity/volume/txns figure wins; the first-seen
// provider stays authoritative for prices once a number exists.
func reconcile(existing *model.Pool, next model.Pool) {
	existing.LiquidityUSD = maxOf(existing.LiquidityUSD, next.LiquidityUSD)
	existing.VolumeH24USD = maxOf(existing.VolumeH24USD, next.VolumeH24USD)
	if next.TxnsH24 > existing.TxnsH24 {
		existing.TxnsH24 = next.TxnsH24
	}

	existing.PriceUSDPool = numeric.First(existing.PriceUSDPool, next.PriceUSDPool)
	existing.PriceChangeH1 = numeric.First(existing.PriceChangeH1, next.PriceChangeH1)
	existing.PriceChangeH6 = numeric.First(existing.PriceChangeH6, next.PriceChangeH6)
	existing.PriceChangeH24 = numeric.First(existing.PriceChangeH24, next.PriceChangeH24)
}

func maxOf(a, b *float64) *float64 {
	av := numeric.Value(a, 0)
	bv := numeric.Value(b, 0)
	if bv > av {
		av = bv
	}
	return &av
}

// Package aggregate folds a token's merged pool set and optional market
// summary into one canonical TokenAggregate.
package aggregate

import (
	"sort"

	"tokenScope/internal/model"
	"tokenScope/internal/numeric"
)

// PrimaryPool selects the pool that represents pool-level price and protocol:
// highest liquidity, ties broken by volume, then transaction count. Absent
// numbers sort lowest. Nil for an empty set.
func PrimaryPool(pools []model.Pool) *model.Pool {
	if len(pools) == 0 {
		return nil
	}

	sorted := make([]model.Pool, len(pools))
	copy(sorted, pools)

	sort.SliceStable(sorted, func(i, j int) bool {
		li := numeric.Value(sorted[i].LiquidityUSD, -1)
		lj := numeric.Value(sorted[j].LiquidityUSD, -1)
		if li != lj {
			return li > lj
		}
		vi := numeric.Value(sorted[i].VolumeH24USD, -1)
		vj := numeric.Value(sorted[j].VolumeH24USD, -1)
		if vi != vj {
			return vi > vj
		}
		return sorted[i].TxnsH24 > sorted[j].TxnsH24
	})

	return &sorted[0]
}

// ToNative converts a USD figure into native units at the given rate. Nil
// when either operand is absent or the rate is exactly zero.
func ToNative(usd *float64, rateUSD *float64) *float64 {
	if usd == nil || rateUSD == nil || *rateUSD == 0 {
		return nil
	}
	v := *usd / *rateUSD
	return &v
}

// mostCommonAddress returns the address appearing as base or quote across the
// most pools, ties broken by first-seen insertion order.
func mostCommonAddress(pools []model.Pool) *string {
	counts := make(map[string]int)
	order := make([]string, 0, len(pools)*2)

	bump := func(addr *string) {
		if addr == nil || *addr == "" {
			return
		}
		if _, seen := counts[*addr]; !seen {
			order = append(order, *addr)
		}
		counts[*addr]++
	}

	for _, p := range pools {
		bump(p.BaseAddress)
		bump(p.QuoteAddress)
	}

	var best *string
	bestCount := -1
	for _, addr := range order {
		if counts[addr] > bestCount {
			a := addr
			best = &a
			bestCount = counts[addr]
		}
	}
	return best
}

// metaForAddress resolves a token name and ticker from the first pool whose
// base or quote side matches the address.
func metaForAddress(pools []model.Pool, address *string) (name, symbol *string) {
	if address == nil {
		return nil, nil
	}
	for _, p := range pools {
		if p.BaseAddress != nil && *p.BaseAddress == *address {
			return firstString(p.BaseName, p.BaseSymbol), p.BaseSymbol
		}
		if p.QuoteAddress != nil && *p.QuoteAddress == *address {
			return firstString(p.QuoteName, p.QuoteSymbol), p.QuoteSymbol
		}
	}
	return nil, nil
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// BuildToken computes the canonical aggregate for one configured token from
// its merged pool set, an optional market summary, and a nullable USD rate
// for the native conversion unit. Pure: every missing input degrades to
// nil or 0, never an error.
func BuildToken(pools []model.Pool, summary *model.MarketSummary, rateUSD *float64) model.TokenAggregate {
	totalVolumeUSD := numeric.Sum(pools, func(p model.Pool) *float64 { return p.VolumeH24USD })
	totalLiquidityUSD := numeric.Sum(pools, func(p model.Pool) *float64 { return p.LiquidityUSD })

	var txnCount float64
	for _, p := range pools {
		txnCount += p.TxnsH24
	}

	primary := PrimaryPool(pools)

	var primaryPrice, primaryChange *float64
	var primaryProtocol *string
	if primary != nil {
		primaryPrice = primary.PriceUSDPool
		primaryProtocol = primary.Protocol
	}
	primaryChange = numeric.WeightedAverage(pools,
		func(p model.Pool) *float64 { return p.LiquidityUSD },
		func(p model.Pool) *float64 { return p.PriceChangeH1 },
	)

	var summaryPrice, summaryChange1H, marketCapUSD *float64
	var summaryAddress, summaryName, summarySymbol *string
	if summary != nil {
		summaryPrice = summary.PriceUSD
		summaryChange1H = summary.PriceChangePct1H
		marketCapUSD = summary.MarketCapUSD
		summaryAddress = summary.ContractAddress
		summaryName = summary.Name
		summarySymbol = summary.Symbol
	}

	priceUSD := numeric.First(summaryPrice, primaryPrice)
	price1HrChange := numeric.First(summaryChange1H, primaryChange)

	tokenAddress := firstString(summaryAddress, mostCommonAddress(pools))
	poolName, poolSymbol := metaForAddress(pools, tokenAddress)
	tokenName := firstString(summaryName, poolName)
	tokenTicker := firstString(summarySymbol, poolSymbol)

	return model.TokenAggregate{
		TokenAddress:     tokenAddress,
		TokenName:        tokenName,
		TokenTicker:      tokenTicker,
		PriceSol:         ToNative(priceUSD, rateUSD),
		MarketCapSol:     ToNative(marketCapUSD, rateUSD),
		VolumeSol:        numeric.Value(ToNative(&totalVolumeUSD, rateUSD), 0),
		LiquiditySol:     numeric.Value(ToNative(&totalLiquidityUSD, rateUSD), 0),
		TransactionCount: txnCount,
		Price1HrChange:   price1HrChange,
		Protocol:         primaryProtocol,
		Debug: model.USDTotals{
			PriceUSD:          priceUSD,
			MarketCapUSD:      marketCapUSD,
			TotalVolumeUSD:    totalVolumeUSD,
			TotalLiquidityUSD: totalLiquidityUSD,
		},
	}
}

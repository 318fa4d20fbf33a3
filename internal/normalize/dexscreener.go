// Package normalize maps raw provider payloads into the canonical model.
// Providers evolve their schema, so every logical field is read through an
// ordered list of candidate paths; the first present value wins. A malformed
// or absent payload yields empty output, never an error.
package normalize

import (
	"github.com/tidwall/gjson"

	"tokenScope/internal/model"
	"tokenScope/internal/numeric"
)

// SourceDexScreener tags pools normalized from the pool-data provider.
const SourceDexScreener = "dexscreener"

// Candidate paths per logical field, in priority order. Later entries cover
// historical spellings of the provider schema.
var (
	pairIdentityPaths = []string{"pairAddress", "id"}

	baseSymbolPaths  = []string{"baseToken.symbol", "baseSymbol", "base_token_symbol", "base"}
	quoteSymbolPaths = []string{"quoteToken.symbol", "quoteSymbol", "quote_token_symbol", "quote"}

	baseNamePaths  = []string{"baseToken.name", "baseName"}
	quoteNamePaths = []string{"quoteToken.name", "quoteName"}

	baseAddressPaths  = []string{"baseToken.address", "baseTokenAddress"}
	quoteAddressPaths = []string{"quoteToken.address", "quoteTokenAddress"}

	liquidityPaths = []string{"liquidity.usd", "liquidityUsd"}
	volumePaths    = []string{"volume.h24", "volume24hUsd", "volume24h"}

	buysPaths  = []string{"txns.h24.buys", "txns24h.buys"}
	sellsPaths = []string{"txns.h24.sells", "txns24h.sells"}

	poolPricePaths = []string{"priceUsd", "price.usd"}

	priceChangeH1Paths  = []string{"priceChange.h1", "priceChange1h"}
	priceChangeH6Paths  = []string{"priceChange.h6", "priceChange6h"}
	priceChangeH24Paths = []string{"priceChange.h24", "priceChange24h"}

	protocolPaths = []string{"dexId", "platformId", "protocol"}
)

// Pools normalizes one raw pool-data payload into canonical Pool records,
// order-preserving and de-duplicated by pair identity (first occurrence wins).
func Pools(raw []byte) []model.Pool {
	pools := []model.Pool{}
	if len(raw) == 0 {
		return pools
	}

	pairs := gjson.GetBytes(raw, "pairs")
	if !pairs.IsArray() {
		return pools
	}

	seen := make(map[string]struct{})
	for _, pair := range pairs.Array() {
		if !pair.IsObject() {
			continue
		}

		pairID := stringAt(pair, pairIdentityPaths)
		if pairID != nil {
			if _, dup := seen[*pairID]; dup {
				continue
			}
			seen[*pairID] = struct{}{}
		}

		buys := numeric.Value(numberAt(pair, buysPaths), 0)
		sells := numeric.Value(numberAt(pair, sellsPaths), 0)

		pools = append(pools, model.Pool{
			Source:         SourceDexScreener,
			PairID:         pairID,
			Protocol:       stringAt(pair, protocolPaths),
			BaseSymbol:     stringAt(pair, baseSymbolPaths),
			QuoteSymbol:    stringAt(pair, quoteSymbolPaths),
			BaseName:       stringAt(pair, baseNamePaths),
			QuoteName:      stringAt(pair, quoteNamePaths),
			BaseAddress:    stringAt(pair, baseAddressPaths),
			QuoteAddress:   stringAt(pair, quoteAddressPaths),
			LiquidityUSD:   numberAt(pair, liquidityPaths),
			VolumeH24USD:   numberAt(pair, volumePaths),
			TxnsH24:        buys + sells,
			PriceUSDPool:   numberAt(pair, poolPricePaths),
			PriceChangeH1:  numberAt(pair, priceChangeH1Paths),
			PriceChangeH6:  numberAt(pair, priceChangeH6Paths),
			PriceChangeH24: numberAt(pair, priceChangeH24Paths),
		})
	}

	return pools
}

// numberAt tries each candidate path and returns the first finite number.
// String-typed numbers are tolerated.
func numberAt(node gjson.Result, paths []string) *float64 {
	for _, path := range paths {
		field := node.Get(path)
		if !field.Exists() {
			continue
		}
		if v := numeric.Num(field.Value()); v != nil {
			return v
		}
	}
	return nil
}

// stringAt tries each candidate path and returns the first non-empty string.
func stringAt(node gjson.Result, paths []string) *string {
	for _, path := range paths {
		field := node.Get(path)
		if field.Type != gjson.String {
			continue
		}
		if field.Str == "" {
			continue
		}
		s := field.Str
		return &s
	}
	return nil
}

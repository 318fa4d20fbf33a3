package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenScope/internal/model"
	"tokenScope/internal/numeric"
)

func strPtr(s string) *string { return &s }

func TestToNative(t *testing.T) {
	got := ToNative(numeric.Float(200), numeric.Float(50))
	require.NotNil(t, got)
	assert.Equal(t, 4.0, *got)

	assert.Nil(t, ToNative(numeric.Float(200), numeric.Float(0)))
	assert.Nil(t, ToNative(nil, numeric.Float(50)))
	assert.Nil(t, ToNative(numeric.Float(200), nil))
}

func TestPrimaryPoolSelection(t *testing.T) {
	pools := []model.Pool{
		{PairID: strPtr("low"), LiquidityUSD: numeric.Float(50)},
		{PairID: strPtr("quiet"), LiquidityUSD: numeric.Float(100), VolumeH24USD: numeric.Float(10)},
		{PairID: strPtr("busy"), LiquidityUSD: numeric.Float(100), VolumeH24USD: numeric.Float(90)},
	}

	primary := PrimaryPool(pools)
	require.NotNil(t, primary)
	assert.Equal(t, "busy", *primary.PairID)
}

func TestPrimaryPoolTxnsTieBreakAndNilsSortLowest(t *testing.T) {
	pools := []model.Pool{
		{PairID: strPtr("none")},
		{PairID: strPtr("a"), LiquidityUSD: numeric.Float(10), VolumeH24USD: numeric.Float(5), TxnsH24: 2},
		{PairID: strPtr("b"), LiquidityUSD: numeric.Float(10), VolumeH24USD: numeric.Float(5), TxnsH24: 8},
	}

	primary := PrimaryPool(pools)
	require.NotNil(t, primary)
	assert.Equal(t, "b", *primary.PairID)

	assert.Nil(t, PrimaryPool(nil))
}

func TestBuildTokenPrefersSummary(t *testing.T) {
	pools := []model.Pool{
		{
			PairID:        strPtr("p1"),
			Protocol:      strPtr("uniswap"),
			BaseAddress:   strPtr("0xaaa"),
			BaseSymbol:    strPtr("AAA"),
			LiquidityUSD:  numeric.Float(1000),
			VolumeH24USD:  numeric.Float(500),
			TxnsH24:       12,
			PriceUSDPool:  numeric.Float(1.5),
			PriceChangeH1: numeric.Float(0.9),
		},
	}
	summary := &model.MarketSummary{
		Name:             strPtr("Alpha"),
		Symbol:           strPtr("AAA"),
		ContractAddress:  strPtr("0xaaa"),
		PriceUSD:         numeric.Float(2.0),
		MarketCapUSD:     numeric.Float(4000),
		PriceChangePct1H: numeric.Float(0.25),
	}

	agg := BuildToken(pools, summary, numeric.Float(100))

	require.NotNil(t, agg.PriceSol)
	assert.Equal(t, 0.02, *agg.PriceSol)
	require.NotNil(t, agg.MarketCapSol)
	assert.Equal(t, 40.0, *agg.MarketCapSol)
	assert.Equal(t, 5.0, agg.VolumeSol)
	assert.Equal(t, 10.0, agg.LiquiditySol)
	assert.Equal(t, 12.0, agg.TransactionCount)
	require.NotNil(t, agg.Price1HrChange)
	assert.Equal(t, 0.25, *agg.Price1HrChange)
	assert.Equal(t, "uniswap", *agg.Protocol)
	assert.Equal(t, "Alpha", *agg.TokenName)
	assert.Equal(t, 2.0, *agg.Debug.PriceUSD)
}

func TestBuildTokenFallsBackToPools(t *testing.T) {
	pools := []model.Pool{
		{
			PairID:        strPtr("p1"),
			Protocol:      strPtr("raydium"),
			BaseAddress:   strPtr("0xaaa"),
			BaseName:      strPtr("Alpha"),
			BaseSymbol:    strPtr("AAA"),
			QuoteAddress:  strPtr("0xbbb"),
			LiquidityUSD:  numeric.Float(100),
			PriceUSDPool:  numeric.Float(3.0),
			PriceChangeH1: numeric.Float(0.1),
		},
		{
			PairID:        strPtr("p2"),
			Protocol:      strPtr("orca"),
			BaseAddress:   strPtr("0xaaa"),
			QuoteAddress:  strPtr("0xccc"),
			LiquidityUSD:  numeric.Float(300),
			PriceUSDPool:  numeric.Float(3.1),
			PriceChangeH1: numeric.Float(0.5),
		},
	}

	agg := BuildToken(pools, nil, numeric.Float(1))

	// Most liquid pool drives price and protocol.
	require.NotNil(t, agg.PriceSol)
	assert.Equal(t, 3.1, *agg.PriceSol)
	assert.Equal(t, "orca", *agg.Protocol)

	// Liquidity-weighted 1h change: (100*0.1 + 300*0.5) / 400.
	require.NotNil(t, agg.Price1HrChange)
	assert.InDelta(t, 0.4, *agg.Price1HrChange, 1e-12)

	// 0xaaa appears in both pools, so it wins identity.
	require.NotNil(t, agg.TokenAddress)
	assert.Equal(t, "0xaaa", *agg.TokenAddress)
	assert.Equal(t, "Alpha", *agg.TokenName)
	assert.Equal(t, "AAA", *agg.TokenTicker)

	// No summary means no market cap.
	assert.Nil(t, agg.MarketCapSol)
	assert.Nil(t, agg.Debug.MarketCapUSD)
}

func TestBuildTokenDegradesWithoutInputs(t *testing.T) {
	agg := BuildToken(nil, nil, nil)

	assert.Nil(t, agg.TokenAddress)
	assert.Nil(t, agg.PriceSol)
	assert.Nil(t, agg.MarketCapSol)
	assert.Nil(t, agg.Price1HrChange)
	assert.Nil(t, agg.Protocol)
	assert.Equal(t, 0.0, agg.VolumeSol)
	assert.Equal(t, 0.0, agg.LiquiditySol)
	assert.Equal(t, 0.0, agg.TransactionCount)
}

func TestBuildTokenZeroRateKeepsTotalsAtZero(t *testing.T) {
	pools := []model.Pool{
		{PairID: strPtr("p1"), LiquidityUSD: numeric.Float(100), VolumeH24USD: numeric.Float(40), PriceUSDPool: numeric.Float(2)},
	}

	agg := BuildToken(pools, nil, numeric.Float(0))

	assert.Nil(t, agg.PriceSol)
	assert.Equal(t, 0.0, agg.VolumeSol)
	assert.Equal(t, 0.0, agg.LiquiditySol)
	// USD diagnostics survive even when conversion is unavailable.
	assert.Equal(t, 40.0, agg.Debug.TotalVolumeUSD)
	assert.Equal(t, 100.0, agg.Debug.TotalLiquidityUSD)
	require.NotNil(t, agg.Debug.PriceUSD)
	assert.Equal(t, 2.0, *agg.Debug.PriceUSD)
}

func TestMostCommonAddressFirstSeenTieBreak(t *testing.T) {
	pools := []model.Pool{
		{BaseAddress: strPtr("0xfirst"), QuoteAddress: strPtr("0xsecond")},
		{BaseAddress: strPtr("0xsecond"), QuoteAddress: strPtr("0xfirst")},
	}

	got := mostCommonAddress(pools)
	require.NotNil(t, got)
	assert.Equal(t, "0xfirst", *got)
}

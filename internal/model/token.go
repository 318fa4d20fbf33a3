package model

// USDTotals carries the pre-conversion USD figures behind a TokenAggregate,
// kept for diffing and diagnostics.
type USDTotals struct {
	PriceUSD          *float64 `json:"price_usd"`
	MarketCapUSD      *float64 `json:"market_cap_usd"`
	TotalVolumeUSD    float64  `json:"total_volume_usd"`
	TotalLiquidityUSD float64  `json:"total_liquidity_usd"`
}

// TokenAggregate is the canonical cross-pool, cross-provider merged view of
// one configured token for one refresh cycle. Built fresh every cycle and
// never mutated in place.
type TokenAggregate struct {
	TokenAddress     *string   `json:"token_address"`
	TokenName        *string   `json:"token_name"`
	TokenTicker      *string   `json:"token_ticker"`
	PriceSol         *float64  `json:"price_sol"`
	MarketCapSol     *float64  `json:"market_cap_sol"`
	VolumeSol        float64   `json:"volume_sol"`
	LiquiditySol     float64   `json:"liquidity_sol"`
	TransactionCount float64   `json:"transaction_count"`
	Price1HrChange   *float64  `json:"price_1hr_change"`
	Protocol         *string   `json:"protocol"`
	Debug            USDTotals `json:"_debug"`
}

// TokenEntry is one configured token's slot in a cycle result: either an
// aggregate or a labeled error, never both.
type TokenEntry struct {
	Label string          `json:"label"`
	Token *TokenAggregate `json:"token,omitempty"`
	Error string          `json:"error,omitempty"`
}

// TokenConfig describes one configured token: a display label, an on-chain
// address, and the market provider's platform identifier.
type TokenConfig struct {
	Label    string `json:"label" yaml:"label"`
	Address  string `json:"address" yaml:"address"`
	Platform string `json:"platform" yaml:"platform"`
}

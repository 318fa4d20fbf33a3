package model

// Pool is one liquidity pool/trading pair as reported by a data provider,
// normalized into the canonical shape. Numeric fields are either a finite
// number or nil, never NaN or a non-numeric string.
type Pool struct {
	Source         string   `json:"source"`
	PairID         *string  `json:"pair_id"`
	Protocol       *string  `json:"protocol"`
	BaseSymbol     *string  `json:"base_symbol"`
	QuoteSymbol    *string  `json:"quote_symbol"`
	BaseName       *string  `json:"base_name"`
	QuoteName      *string  `json:"quote_name"`
	BaseAddress    *string  `json:"base_address"`
	QuoteAddress   *string  `json:"quote_address"`
	LiquidityUSD   *float64 `json:"liquidity_usd"`
	VolumeH24USD   *float64 `json:"volume_h24_usd"`
	TxnsH24        float64  `json:"txns_h24"`
	PriceUSDPool   *float64 `json:"price_usd_pool"`
	PriceChangeH1  *float64 `json:"price_change_h1"`
	PriceChangeH6  *float64 `json:"price_change_h6"`
	PriceChangeH24 *float64 `json:"price_change_h24"`
}

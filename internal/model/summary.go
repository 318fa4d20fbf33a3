package model

// MarketSummary carries token-level facts from the market-data provider.
// Absence of the whole record is a valid state; every consumer tolerates nil.
type MarketSummary struct {
	ID                *string  `json:"id"`
	Name              *string  `json:"name"`
	Symbol            *string  `json:"symbol"`
	ContractAddress   *string  `json:"contract_address"`
	Decimals          *float64 `json:"decimals"`
	PriceUSD          *float64 `json:"price_usd"`
	MarketCapUSD      *float64 `json:"market_cap_usd"`
	PriceChangePct1H  *float64 `json:"price_change_percentage_1h"`
	PriceChangePct24H *float64 `json:"price_change_percentage_24h"`
	PriceChangePct7D  *float64 `json:"price_change_percentage_7d"`
}

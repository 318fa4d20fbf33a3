package model

// DiffNumbers is the comparable numeric snapshot of one token entry.
type DiffNumbers struct {
	PriceUSD     *float64 `json:"price_usd"`
	MarketCapUSD *float64 `json:"market_cap_usd"`
	VolumeUSD    *float64 `json:"volume_usd"`
	Txns24       *float64 `json:"txns24"`
}

// DiffRecord reports one token whose values moved meaningfully between two
// refresh cycles.
type DiffRecord struct {
	Address   string      `json:"address"`
	Label     string      `json:"label"`
	Old       DiffNumbers `json:"old"`
	Next      DiffNumbers `json:"next"`
	ChangePct *float64    `json:"changePct"`
}

// Patch is one published change notification. Seq increases monotonically
// across cycles (wall-clock based).
type Patch struct {
	Type  string       `json:"type"`
	Seq   int64        `json:"seq"`
	TS    string       `json:"ts"`
	Diffs []DiffRecord `json:"diffs"`
}

package normalize

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"tokenScope/internal/model"
)

// Summary extracts the token-level market summary from a raw market-data
// payload. Returns nil for an absent or malformed payload; absence is a
// valid state for every downstream consumer.
func Summary(platform string, raw []byte) *model.MarketSummary {
	if len(raw) == 0 {
		return nil
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil
	}

	if platform == "" {
		platform = "ethereum"
	}
	escaped := escapePathKey(platform)

	contractPaths := []string{
		fmt.Sprintf("platforms.%s", escaped),
		fmt.Sprintf("detail_platforms.%s.contract_address", escaped),
		"contract_address",
	}

	summary := &model.MarketSummary{
		ID:              stringAt(root, []string{"id"}),
		Name:            stringAt(root, []string{"name"}),
		Symbol:          upper(stringAt(root, []string{"symbol"})),
		ContractAddress: stringAt(root, contractPaths),
		Decimals:        numberAt(root, []string{fmt.Sprintf("detail_platforms.%s.decimal_place", escaped)}),
		PriceUSD:        numberAt(root, []string{"market_data.current_price.usd"}),
		MarketCapUSD:    numberAt(root, []string{"market_data.market_cap.usd"}),
		PriceChangePct1H: numberAt(root, []string{
			"market_data.price_change_percentage_1h_in_currency.usd",
			"market_data.price_change_percentage_1h",
		}),
		PriceChangePct24H: numberAt(root, []string{
			"market_data.price_change_percentage_24h_in_currency.usd",
			"market_data.price_change_percentage_24h",
		}),
		PriceChangePct7D: numberAt(root, []string{
			"market_data.price_change_percentage_7d_in_currency.usd",
			"market_data.price_change_percentage_7d",
		}),
	}

	return summary
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	u := strings.ToUpper(*s)
	return &u
}

// escapePathKey guards platform identifiers containing path metacharacters.
func escapePathKey(key string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return replacer.Replace(key)
}

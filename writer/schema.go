package writer

import "github.com/polyrabbit/market-collector/dapplooker"

var (
	tokenInfoColumns = []string{"id", "symbol", "name", "chain", "ecosystem", "address"}
	technicalColumns = []string{"support", "resistance", "rsi", "sma"}

	// Filled from whichever dynamic section carries the key
	marketDataColumns = []string{
		"usd_price", "mcap", "fdv", "volume_24h", "total_liquidity",
		"price_change_percentage_1h", "price_change_percentage_24h",
		"price_change_percentage_7d", "price_change_percentage_30d",
		"volume_change_percentage_7d", "volume_change_percentage_30d",
		"mcap_change_percentage_7d", "mcap_change_percentage_30d",
		"price_high_24h", "price_ath", "circulating_supply", "total_supply",
	}
	insightColumns = []string{
		// Token holder insights
		"total_holder_count", "holder_count_change_percentage_24h",
		"fifty_percentage_holding_wallet_count",
		"first_100_buyers_initial_bought",
		"first_100_buyers_initial_bought_percentage",
		"first_100_buyers_current_holding",
		"first_100_buyers_current_holding_percentage",
		"top_10_holder_balance", "top_10_holder_percentage",
		"top_50_holder_balance", "top_50_holder_percentage",
		"top_100_holder_balance", "top_100_holder_percentage",
		// Smart money insights
		"top_25_holder_buy_24h", "top_25_holder_sold_24h",
		// Dev wallet insights
		"wallet_address", "wallet_balance",
		"dev_wallet_total_holding_percentage",
		"dev_wallet_outflow_txs_count_24h",
		"dev_wallet_outflow_amount_24h",
		"fresh_wallet", "dev_sold", "dev_sold_percentage",
		"bundle_wallet_count", "bundle_wallet_supply_percentage",
		// Social metrics
		"mindshare_3d", "mindshare_change_percentage_3d",
		"impression_count_3d", "impression_count_change_percentage_3d",
		"engagement_count_3d", "engagement_count_change_percentage_3d",
		"follower_count_3d", "smart_follower_count_3d",
		"mindshare_7d", "mindshare_change_percentage_7d",
		"impression_count_7d", "impression_count_change_percentage_7d",
		"engagement_count_7d", "engagement_count_change_percentage_7d",
		"follower_count_7d", "smart_follower_count_7d",
	}

	dynamicSections = []string{
		dapplooker.SectionHolders,
		dapplooker.SectionSmartMoney,
		dapplooker.SectionDevWallet,
		dapplooker.SectionTokenMetrics,
		dapplooker.SectionSocial,
	}

	MissingTokenColumns = []string{"symbol", "chain", "timestamp", "reason"}
)

// MarketColumns returns the fixed header of the market data CSV.
func MarketColumns() []string {
	var columns []string
	columns = append(columns, tokenInfoColumns...)
	columns = append(columns, marketDataColumns...)
	columns = append(columns, technicalColumns...)
	columns = append(columns, insightColumns...)
	columns = append(columns, dapplooker.FieldLastUpdatedAt)
	return columns
}

package model

import "time"

// PositionType classifies an entry in PortfolioSnapshot.Positions.
type PositionType string

const (
	PositionCDP       PositionType = "cdp"
	PositionLending   PositionType = "lending"
	PositionLiquidity PositionType = "liquidity"
)

// Position is a flattened view of any invested position.
type Position struct {
	ID       string       `json:"id"`
	Protocol string       `json:"protocol"`
	Type     PositionType `json:"type"`
	Value    float64      `json:"value"`
}

// AssetAmount is one side of a CDP (collateral or debt).
type AssetAmount struct {
	Symbol   string  `json:"symbol"`
	Amount   string  `json:"amount"`
	ValueUSD float64 `json:"valueUSD"`
}

// CDPPosition is a collateralized debt position.
type CDPPosition struct {
	ID               string      `json:"id"`
	Protocol         string      `json:"protocol"`
	Owner            string      `json:"owner,omitempty"`
	Collateral       AssetAmount `json:"collateral"`
	Debt             AssetAmount `json:"debt"`
	HealthFactor     float64     `json:"healthFactor"`
	LiquidationPrice float64     `json:"liquidationPrice"`
	CollateralRatio  float64     `json:"collateralRatio"`
	CreatedAt        time.Time   `json:"createdAt"`
	LastUpdated      time.Time   `json:"lastUpdated"`
}

// LendingPosition is a supplied asset earning APY (percent).
type LendingPosition struct {
	ID       string  `json:"id"`
	Protocol string  `json:"protocol"`
	Symbol   string  `json:"symbol"`
	Amount   string  `json:"amount"`
	Value    float64 `json:"value"`
	APY      float64 `json:"apy"`
}

// WalletBalance is an idle token balance.
type WalletBalance struct {
	Symbol string  `json:"symbol"`
	Amount string  `json:"amount"`
	Value  float64 `json:"value"`
}

// MarketQuote holds live market data for one symbol.
type MarketQuote struct {
	Price      float64 `json:"price"`
	Change24h  float64 `json:"change24h"`
	Volatility float64 `json:"volatility"`
}

// MarketData maps a token symbol to its quote.
type MarketData map[string]MarketQuote

// PortfolioSnapshot is the input of a single health analysis.
type PortfolioSnapshot struct {
	UserID              string            `json:"userId"`
	TotalValue          float64           `json:"totalValue"`
	Positions           []Position        `json:"positions"`
	CDPPositions        []CDPPosition     `json:"cdpPositions"`
	LendingPositions    []LendingPosition `json:"lendingPositions"`
	WalletBalances      []WalletBalance   `json:"walletBalances"`
	MarketData          MarketData        `json:"marketData"`
	HasComplexPositions bool              `json:"hasComplexPositions"`
}

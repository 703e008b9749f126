package portfolio

import (
	"context"
	"time"

	"CDPShield/internal/model"
)

const demoOwner = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb"

// DemoCDPs returns the two moonwell positions used to seed an empty store.
func DemoCDPs(now time.Time) []model.CDPPosition {
	day := 24 * time.Hour
	return []model.CDPPosition{
		{
			ID: "cdp-1", Protocol: "moonwell", Owner: demoOwner,
			Collateral:   model.AssetAmount{Symbol: "ETH", Amount: "2.5", ValueUSD: 8750},
			Debt:         model.AssetAmount{Symbol: "USDC", Amount: "5000", ValueUSD: 5000},
			HealthFactor: 1.28, LiquidationPrice: 2780, CollateralRatio: 175,
			CreatedAt: now.Add(-7 * day), LastUpdated: now,
		},
		{
			ID: "cdp-2", Protocol: "moonwell", Owner: demoOwner,
			Collateral:   model.AssetAmount{Symbol: "WETH", Amount: "1.2", ValueUSD: 4200},
			Debt:         model.AssetAmount{Symbol: "USDC", Amount: "1800", ValueUSD: 1800},
			HealthFactor: 2.1, LiquidationPrice: 2100, CollateralRatio: 233,
			CreatedAt: now.Add(-14 * day), LastUpdated: now,
		},
	}
}

// DemoMarketData is the fallback quote set when nothing has been collected yet.
func DemoMarketData() model.MarketData {
	return model.MarketData{
		"ETH":  {Price: 3500, Change24h: 2.5, Volatility: 0.05},
		"USDC": {Price: 1, Change24h: 0.01, Volatility: 0.001},
		"WETH": {Price: 3500, Change24h: 2.5, Volatility: 0.05},
	}
}

// StaticHoldings serves the same holdings to every user.
type StaticHoldings struct {
	Data Holdings
}

// DemoHoldings returns the demo lending positions and wallet balances.
func DemoHoldings() *StaticHoldings {
	return &StaticHoldings{Data: Holdings{
		Lending: []model.LendingPosition{
			{ID: "lending-1", Protocol: "moonwell", Symbol: "USDC", Amount: "3000", Value: 3000, APY: 4.2},
			{ID: "lending-2", Protocol: "moonwell", Symbol: "ETH", Amount: "0.5", Value: 1750, APY: 2.1},
		},
		Wallet: []model.WalletBalance{
			{Symbol: "USDC", Amount: "2340", Value: 2340},
			{Symbol: "ETH", Amount: "0.15", Value: 525},
		},
	}}
}

func (s *StaticHoldings) Holdings(_ context.Context, _ string) (Holdings, error) {
	return Holdings{
		Lending: append([]model.LendingPosition(nil), s.Data.Lending...),
		Wallet:  append([]model.WalletBalance(nil), s.Data.Wallet...),
	}, nil
}

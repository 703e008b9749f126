// Package portfolio assembles the snapshot the health engine scores.
package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CDPShield/internal/model"
)

// ComplexPositionThreshold is the CDP count above which a portfolio is complex.
const ComplexPositionThreshold = 3

// Holdings are the non-CDP assets of a user.
type Holdings struct {
	Lending []model.LendingPosition
	Wallet  []model.WalletBalance
}

// HoldingsSource loads a user's lending positions and wallet balances.
type HoldingsSource interface {
	Holdings(ctx context.Context, userID string) (Holdings, error)
}

// PositionSource lists the tracked CDP positions.
type PositionSource interface {
	List() []model.CDPPosition
}

// MarketSource returns the current quotes.
type MarketSource interface {
	MarketData() model.MarketData
}

// Builder combines positions, holdings and quotes into a snapshot.
type Builder struct {
	positions PositionSource
	holdings  HoldingsSource
	market    MarketSource
	// Revalue reprices lending and wallet amounts from current quotes.
	Revalue bool
	log     zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(positions PositionSource, holdings HoldingsSource, market MarketSource, log zerolog.Logger) *Builder {
	return &Builder{
		positions: positions,
		holdings:  holdings,
		market:    market,
		log:       log.With().Str("component", "portfolio").Logger(),
	}
}

// Build returns the snapshot for userID.
func (b *Builder) Build(ctx context.Context, userID string) (*model.PortfolioSnapshot, error) {
	h, err := b.holdings.Holdings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load holdings for %s: %w", userID, err)
	}
	md := b.market.MarketData()
	if b.Revalue {
		b.revalue(&h, md)
	}
	return Assemble(userID, b.positions.List(), h, md), nil
}

// Assemble computes the derived snapshot fields from its parts.
func Assemble(userID string, cdps []model.CDPPosition, h Holdings, md model.MarketData) *model.PortfolioSnapshot {
	snap := &model.PortfolioSnapshot{
		UserID:              userID,
		Positions:           make([]model.Position, 0, len(cdps)+len(h.Lending)),
		CDPPositions:        cdps,
		LendingPositions:    h.Lending,
		WalletBalances:      h.Wallet,
		MarketData:          md,
		HasComplexPositions: len(cdps) > ComplexPositionThreshold,
	}
	for _, c := range cdps {
		snap.TotalValue += c.Collateral.ValueUSD
		snap.Positions = append(snap.Positions, model.Position{
			ID: c.ID, Protocol: c.Protocol, Type: model.PositionCDP, Value: c.Collateral.ValueUSD,
		})
	}
	for _, l := range h.Lending {
		snap.TotalValue += l.Value
		snap.Positions = append(snap.Positions, model.Position{
			ID: l.ID, Protocol: l.Protocol, Type: model.PositionLending, Value: l.Value,
		})
	}
	for _, w := range h.Wallet {
		snap.TotalValue += w.Value
	}
	return snap
}

func (b *Builder) revalue(h *Holdings, md model.MarketData) {
	for i := range h.Lending {
		if v, ok := b.valueOf(h.Lending[i].Symbol, h.Lending[i].Amount, md); ok {
			h.Lending[i].Value = v
		}
	}
	for i := range h.Wallet {
		if v, ok := b.valueOf(h.Wallet[i].Symbol, h.Wallet[i].Amount, md); ok {
			h.Wallet[i].Value = v
		}
	}
}

func (b *Builder) valueOf(symbol, amount string, md model.MarketData) (float64, bool) {
	q, ok := md[strings.ToUpper(symbol)]
	if !ok || q.Price <= 0 {
		return 0, false
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Str("amount", amount).Msg("unparseable amount, keeping stored value")
		return 0, false
	}
	return amt.Mul(decimal.NewFromFloat(q.Price)).Round(2).InexactFloat64(), true
}

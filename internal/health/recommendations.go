package health

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"CDPShield/internal/model"
)

const (
	idleThresholdUSD = 500
	idleDepositAPY   = 4.2
	lowAPYThreshold  = 3
	targetAPY        = 6
)

// Recommend returns at most MaxRecommendations items ordered by priority
// rank, then by ID.
func Recommend(p *model.PortfolioSnapshot) []model.Recommendation {
	var recs []model.Recommendation
	recs = append(recs, liquidationRisks(p)...)
	recs = append(recs, idleFunds(p)...)
	recs = append(recs, concentrations(p)...)
	recs = append(recs, lowAPYs(p)...)
	recs = append(recs, volatility(p)...)

	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i].Priority.Rank(), recs[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return recs[i].ID < recs[j].ID
	})
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

func liquidationRisks(p *model.PortfolioSnapshot) []model.Recommendation {
	var recs []model.Recommendation
	for i, pos := range p.CDPPositions {
		hf := toFixed(pos.HealthFactor, 2)
		name := strings.ToUpper(pos.Protocol)

		var (
			priority    model.Priority
			title, desc string
			impact      string
		)
		switch {
		case pos.HealthFactor < 1.1:
			priority = model.PriorityUrgent
			title = fmt.Sprintf("CRITICAL: %s position at extreme risk", name)
			desc = fmt.Sprintf("Health factor %s is critically low! Liquidation imminent", hf)
			if q, ok := p.MarketData[pos.Collateral.Symbol]; ok && q.Price > 0 {
				drop := (1 - pos.LiquidationPrice/q.Price) * 100
				desc += fmt.Sprintf(" if %s drops %s%%", pos.Collateral.Symbol, toFixed(drop, 1))
			}
			desc += "."
			impact = "-80% liquidation risk"
		case pos.HealthFactor < 1.3:
			priority = model.PriorityUrgent
			title = fmt.Sprintf("HIGH RISK: %s liquidation warning", name)
			desc = fmt.Sprintf("Health factor %s is dangerously low. Consider adding collateral or repaying debt.", hf)
			impact = "-60% liquidation risk"
		case pos.HealthFactor < 1.5:
			priority = model.PriorityUrgent
			title = fmt.Sprintf("MODERATE RISK: %s needs monitoring", name)
			desc = fmt.Sprintf("Health factor %s is below safe threshold (1.5). Market volatility could trigger liquidation.", hf)
			impact = "-40% liquidation risk"
		case pos.HealthFactor < 2.0:
			priority = model.PriorityInsight
			title = fmt.Sprintf("Consider improving %s health factor", name)
			desc = fmt.Sprintf("Health factor %s could be higher for better safety margin.", hf)
			impact = "Increase safety buffer"
		default:
			continue
		}

		recs = append(recs, model.Recommendation{
			ID:          fmt.Sprintf("risk-%s-%d", pos.ID, i),
			Priority:    priority,
			Title:       title,
			Description: desc,
			Impact:      model.Impact{Type: model.ImpactRiskReduction, Value: impact},
			Action: &model.Action{
				Label: "Reduce Leverage",
				Link:  "/adjust?position=" + pos.ID,
			},
		})
	}
	return recs
}

func idleFunds(p *model.PortfolioSnapshot) []model.Recommendation {
	var recs []model.Recommendation
	for i, b := range p.WalletBalances {
		if b.Value <= idleThresholdUSD {
			continue
		}
		yearly := b.Value * idleDepositAPY / 100
		recs = append(recs, model.Recommendation{
			ID:          fmt.Sprintf("idle-%d", i),
			Priority:    model.PriorityOpportunity,
			Title:       fmt.Sprintf("%s idle funds: $%s", b.Symbol, humanize.Commaf(math.Round(b.Value*1000)/1000)),
			Description: fmt.Sprintf("Your %s is earning 0%%. Deposit to Moonwell to earn ~%.1f%% APY.", b.Symbol, idleDepositAPY),
			Impact:      model.Impact{Type: model.ImpactYieldIncrease, Value: fmt.Sprintf("+$%s/year", toFixed(yearly, 0))},
			Action: &model.Action{
				Label:  "Deposit to Moonwell",
				Link:   "/deposit",
				Params: map[string]string{"symbol": b.Symbol, "amount": b.Amount},
			},
		})
	}
	return recs
}

func concentrations(p *model.PortfolioSnapshot) []model.Recommendation {
	var recs []model.Recommendation
	protocols, share := protocolDistribution(p)
	for _, name := range protocols {
		ratio := share[name]
		if ratio <= 0.7 {
			continue
		}
		pct := toFixed(ratio*100, 0)
		recs = append(recs, model.Recommendation{
			ID:          "concentration-" + name,
			Priority:    model.PriorityInsight,
			Title:       fmt.Sprintf("High concentration in %s: %s%%", name, pct),
			Description: fmt.Sprintf("%s%% of your portfolio is in %s. Consider diversifying to reduce protocol-specific risk.", pct, name),
			Impact:      model.Impact{Type: model.ImpactEfficiency, Value: "Reduce correlation risk"},
		})
	}
	return recs
}

func lowAPYs(p *model.PortfolioSnapshot) []model.Recommendation {
	var recs []model.Recommendation
	for i, lp := range p.LendingPositions {
		if lp.APY >= lowAPYThreshold {
			continue
		}
		apy := toFixed(lp.APY, 2)
		gain := (targetAPY - lp.APY) * lp.Value / 100
		recs = append(recs, model.Recommendation{
			ID:          fmt.Sprintf("low-apy-%d", i),
			Priority:    model.PriorityOpportunity,
			Title:       fmt.Sprintf("Low APY on %s: %s%%", lp.Symbol, apy),
			Description: fmt.Sprintf("Your %s is only earning %s%%. Consider moving to higher yield protocols.", lp.Symbol, apy),
			Impact:      model.Impact{Type: model.ImpactYieldIncrease, Value: fmt.Sprintf("Potential +%s/year", toFixed(gain, 0))},
		})
	}
	return recs
}

func volatility(p *model.PortfolioSnapshot) []model.Recommendation {
	highVol := false
	for _, q := range p.MarketData {
		if q.Volatility > 0.5 {
			highVol = true
			break
		}
	}
	if !highVol || meanHealthFactor(p, 3) >= 2.0 {
		return nil
	}
	return []model.Recommendation{{
		ID:          "volatility-warning",
		Priority:    model.PriorityInsight,
		Title:       "High market volatility detected",
		Description: "Market volatility is elevated. Consider increasing health factor above 2.0 for safety.",
		Impact:      model.Impact{Type: model.ImpactRiskReduction, Value: "Protect from volatility"},
	}}
}

// toFixed formats x with the given decimals, rounding halves away from zero.
func toFixed(x float64, decimals int) string {
	pow := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(x*pow)/pow, 'f', decimals, 64)
}

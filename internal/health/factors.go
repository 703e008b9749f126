package health

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"CDPShield/internal/model"
)

// scoreRisk scores liquidation safety from CDP health factors.
// Weight: 0.5
// A portfolio without CDPs carries no liquidation risk and scores 100.
func scoreRisk(p *model.PortfolioSnapshot) float64 {
	if len(p.CDPPositions) == 0 {
		return 100
	}
	hfs := healthFactors(p)
	avgHF := stat.Mean(hfs, nil)

	score := clamp((avgHF-1)*50+50, 0, 100)

	if averageVolatility(p) > 0.5 && avgHF < 2.0 {
		score *= 0.8
	}

	// A single position near liquidation dominates the portfolio.
	if floats.Min(hfs) < 1.2 {
		score = math.Min(score, 30)
	}
	return score
}

// scoreEfficiency scores how productively capital is deployed.
// Weight: 0.3
func scoreEfficiency(p *model.PortfolioSnapshot) float64 {
	var avgAPY float64
	if len(p.LendingPositions) > 0 {
		apys := make([]float64, len(p.LendingPositions))
		for i, lp := range p.LendingPositions {
			apys[i] = lp.APY
		}
		avgAPY = stat.Mean(apys, nil)
	}
	score := math.Min(100, avgAPY*15)

	total := denominator(p.TotalValue)

	var idle float64
	for _, b := range p.WalletBalances {
		idle += b.Value
	}
	if idleRatio := idle / total; idleRatio > 0.2 {
		score *= 1 - idleRatio*0.5
	}

	var invested float64
	for _, pos := range p.Positions {
		invested += pos.Value
	}
	utilization := invested / total
	score *= 0.5 + utilization*0.5

	return clamp(score, 0, 100)
}

// scoreDiversification scores protocol spread and asset-type variety.
// Weight: 0.2
func scoreDiversification(p *model.PortfolioSnapshot) float64 {
	protocols, share := protocolDistribution(p)
	score := math.Min(100, float64(len(protocols))*25)

	if len(protocols) > 0 {
		maxConcentration := math.Inf(-1)
		for _, name := range protocols {
			maxConcentration = math.Max(maxConcentration, share[name])
		}
		switch {
		case maxConcentration > 0.7:
			score *= 0.5
		case maxConcentration > 0.5:
			score *= 0.7
		}
	}

	types := make(map[model.PositionType]struct{})
	for _, pos := range p.Positions {
		types[pos.Type] = struct{}{}
	}
	score += float64(len(types)) * 10

	return math.Min(100, score)
}

func healthFactors(p *model.PortfolioSnapshot) []float64 {
	hfs := make([]float64, len(p.CDPPositions))
	for i, c := range p.CDPPositions {
		hfs[i] = c.HealthFactor
	}
	return hfs
}

// meanHealthFactor returns the mean CDP health factor, or def without CDPs.
func meanHealthFactor(p *model.PortfolioSnapshot, def float64) float64 {
	if len(p.CDPPositions) == 0 {
		return def
	}
	return stat.Mean(healthFactors(p), nil)
}

// averageVolatility is summed in symbol order so repeated calls agree bit for bit.
func averageVolatility(p *model.PortfolioSnapshot) float64 {
	if len(p.MarketData) == 0 {
		return 0
	}
	vols := make([]float64, 0, len(p.MarketData))
	for _, sym := range sortedSymbols(p.MarketData) {
		vols = append(vols, p.MarketData[sym].Volatility)
	}
	return stat.Mean(vols, nil)
}

// protocolDistribution returns protocols in first-seen order and each
// protocol's fraction of total value.
func protocolDistribution(p *model.PortfolioSnapshot) ([]string, map[string]float64) {
	total := denominator(p.TotalValue)
	var order []string
	share := make(map[string]float64)
	for _, pos := range p.Positions {
		if _, seen := share[pos.Protocol]; !seen {
			order = append(order, pos.Protocol)
		}
		share[pos.Protocol] += pos.Value / total
	}
	return order, share
}

func sortedSymbols(md model.MarketData) []string {
	syms := make([]string, 0, len(md))
	for s := range md {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// denominator floors a zero total at 1 to avoid dividing by zero.
func denominator(total float64) float64 {
	if total == 0 {
		return 1
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

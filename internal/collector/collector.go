package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"CDPShield/internal/calculator"
	"CDPShield/internal/model"
)

// VolatilityWindow is the number of daily bars used for volatility.
const VolatilityWindow = 30

// Collector orchestrates data fetching and quote computation.
type Collector struct {
	Fetcher Fetcher
	Symbols []string
	log     zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, symbols []string, log zerolog.Logger) *Collector {
	return &Collector{
		Fetcher: fetcher,
		Symbols: symbols,
		log:     log.With().Str("component", "collector").Str("source", fetcher.Name()).Logger(),
	}
}

// Collect fetches every symbol and computes its quote. A symbol that fails
// is logged and left out; an error is returned only if all of them fail.
func (c *Collector) Collect(ctx context.Context) (model.MarketData, error) {
	md := make(model.MarketData, len(c.Symbols))
	var errs []error
	for _, sym := range c.Symbols {
		q, err := c.quote(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("symbol", sym).Msg("skipping symbol")
			errs = append(errs, err)
			continue
		}
		md[strings.ToUpper(sym)] = q
	}
	if len(md) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("collect market data: %w", errors.Join(errs...))
	}
	return md, nil
}

func (c *Collector) quote(ctx context.Context, symbol string) (model.MarketQuote, error) {
	price, err := c.Fetcher.FetchCurrentPrice(ctx, symbol)
	if err != nil {
		return model.MarketQuote{}, fmt.Errorf("fetch current price: %w", err)
	}
	q := model.MarketQuote{Price: price}

	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, VolatilityWindow+1)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("daily bars unavailable, quote without change and volatility")
		return q, nil
	}

	if ch, err := calculator.CalculateChange24h(bars); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("24h change calculation failed, defaulting to 0")
	} else {
		q.Change24h = ch
	}
	if vol, err := calculator.CalculateVolatility(bars); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("volatility calculation failed, defaulting to 0")
	} else {
		q.Volatility = vol
	}
	return q, nil
}

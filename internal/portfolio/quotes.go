package portfolio

import (
	"strings"
	"sync"
	"time"

	"CDPShield/internal/model"
)

// PriceSource answers spot prices for symbols the collector did not cover.
type PriceSource interface {
	PriceFloat(symbol string) (float64, bool)
}

// QuoteBook keeps the latest collected market data.
type QuoteBook struct {
	mu        sync.RWMutex
	data      model.MarketData
	updatedAt time.Time
	fallback  PriceSource
	symbols   []string
}

// NewQuoteBook creates a book seeded with initial. fallback may be nil;
// when set, symbols missing from the collected data are priced from it.
func NewQuoteBook(initial model.MarketData, fallback PriceSource, symbols []string) *QuoteBook {
	return &QuoteBook{data: initial, fallback: fallback, symbols: symbols}
}

// Update replaces the collected data. Symbols absent from md keep their
// previous quote.
func (b *QuoteBook) Update(md model.MarketData, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make(model.MarketData, len(b.data)+len(md))
	for k, v := range b.data {
		next[k] = v
	}
	for k, v := range md {
		next[strings.ToUpper(k)] = v
	}
	b.data = next
	b.updatedAt = at
}

// UpdatedAt returns when Update last ran.
func (b *QuoteBook) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// MarketData returns a copy of the current quotes.
func (b *QuoteBook) MarketData() model.MarketData {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(model.MarketData, len(b.data)+len(b.symbols))
	for k, v := range b.data {
		out[k] = v
	}
	if b.fallback != nil {
		for _, s := range b.symbols {
			s = strings.ToUpper(s)
			if _, ok := out[s]; ok {
				continue
			}
			if p, ok := b.fallback.PriceFloat(s); ok {
				out[s] = model.MarketQuote{Price: p}
			}
		}
	}
	return out
}

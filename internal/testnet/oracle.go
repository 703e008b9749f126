// Package testnet is an in-process stand-in for the mock price oracle and
// faucet tokens deployed on the demo network.
package testnet

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Revert reasons. They match the contract messages so clients can show them verbatim.
var (
	ErrInvalidToken   = errors.New("Invalid token")
	ErrInvalidPrice   = errors.New("Invalid price")
	ErrNotOwner       = errors.New("Ownable: caller is not the owner")
	ErrLengthMismatch = errors.New("Length mismatch")
	ErrPriceNotSet    = errors.New("Price not set")
)

// StalenessThreshold is how long a price stays fresh.
const StalenessThreshold = time.Hour

// PriceOracle holds owner-set USD prices per token.
type PriceOracle struct {
	mu      sync.RWMutex
	owner   string
	prices  map[string]decimal.Decimal
	updated map[string]time.Time
	now     func() time.Time
}

// NewPriceOracle creates an oracle owned by owner.
func NewPriceOracle(owner string, now func() time.Time) *PriceOracle {
	if now == nil {
		now = time.Now
	}
	return &PriceOracle{
		owner:   owner,
		prices:  make(map[string]decimal.Decimal),
		updated: make(map[string]time.Time),
		now:     now,
	}
}

// Owner returns the oracle owner.
func (o *PriceOracle) Owner() string { return o.owner }

func tokenKey(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// SetPrice sets the price of token. Only the owner may call it.
func (o *PriceOracle) SetPrice(caller, token string, price decimal.Decimal) error {
	if caller != o.owner {
		return ErrNotOwner
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setLocked(token, price)
}

// SetPrices sets several prices at once. Nothing is written if any entry is invalid.
func (o *PriceOracle) SetPrices(caller string, tokens []string, prices []decimal.Decimal) error {
	if caller != o.owner {
		return ErrNotOwner
	}
	if len(tokens) != len(prices) {
		return ErrLengthMismatch
	}
	for i, t := range tokens {
		if err := validatePrice(t, prices[i]); err != nil {
			return err
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, t := range tokens {
		_ = o.setLocked(t, prices[i])
	}
	return nil
}

func validatePrice(token string, price decimal.Decimal) error {
	if tokenKey(token) == "" {
		return ErrInvalidToken
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

func (o *PriceOracle) setLocked(token string, price decimal.Decimal) error {
	if err := validatePrice(token, price); err != nil {
		return err
	}
	k := tokenKey(token)
	o.prices[k] = price
	o.updated[k] = o.now()
	return nil
}

// GetPrice returns the price of token.
func (o *PriceOracle) GetPrice(token string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[tokenKey(token)]
	if !ok {
		return decimal.Zero, ErrPriceNotSet
	}
	return p, nil
}

// GetPrices returns the prices of tokens in order.
func (o *PriceOracle) GetPrices(tokens []string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(tokens))
	for i, t := range tokens {
		p, err := o.GetPrice(t)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// LastUpdate returns when token was last priced, or the zero time.
func (o *PriceOracle) LastUpdate(token string) time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.updated[tokenKey(token)]
}

// IsPriceStale reports whether token is unpriced or older than StalenessThreshold.
func (o *PriceOracle) IsPriceStale(token string) bool {
	last := o.LastUpdate(token)
	if last.IsZero() {
		return true
	}
	return o.now().Sub(last) > StalenessThreshold
}

// Symbols lists every priced token.
func (o *PriceOracle) Symbols() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.prices))
	for k := range o.prices {
		out = append(out, k)
	}
	return out
}

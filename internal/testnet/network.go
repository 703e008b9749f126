package testnet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"CDPShield/internal/model"
)

// ErrUnknownToken is returned for a symbol with no deployed token.
var ErrUnknownToken = errors.New("unknown token")

// DefaultOwner deploys the demo contracts.
const DefaultOwner = "deployer"

// Network groups the oracle and the faucet tokens.
type Network struct {
	Oracle *PriceOracle
	tokens map[string]*Token
}

// NewNetwork creates an empty network with an oracle owned by owner.
func NewNetwork(owner string, now func() time.Time) *Network {
	return &Network{
		Oracle: NewPriceOracle(owner, now),
		tokens: make(map[string]*Token),
	}
}

// Deploy registers t under its symbol.
func (n *Network) Deploy(t *Token) {
	n.tokens[tokenKey(t.Symbol)] = t
}

// Token looks up a deployed token.
func (n *Network) Token(symbol string) (*Token, error) {
	t, ok := n.tokens[tokenKey(symbol)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownToken)
	}
	return t, nil
}

// Tokens returns deployed symbols, sorted.
func (n *Network) Tokens() []string {
	out := make([]string, 0, len(n.tokens))
	for s := range n.tokens {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NewDemoNetwork deploys USDC, WETH and DAI with their faucet limits and
// seeds the oracle at $1, $2500 and $1.
func NewDemoNetwork(now func() time.Time) *Network {
	n := NewNetwork(DefaultOwner, now)
	d := decimal.NewFromInt
	n.Deploy(NewToken("Mock USD Coin", "USDC", 6, DefaultOwner, d(1_000_000), d(10_000), now))
	n.Deploy(NewToken("Mock Wrapped Ether", "WETH", 18, DefaultOwner, d(1_000), d(10), now))
	n.Deploy(NewToken("Mock DAI Stablecoin", "DAI", 18, DefaultOwner, d(1_000_000), d(10_000), now))
	_ = n.Oracle.SetPrices(DefaultOwner,
		[]string{"USDC", "WETH", "DAI"},
		[]decimal.Decimal{d(1), d(2500), d(1)})
	return n
}

// PriceFloat returns the oracle price as a float, aliasing ETH to WETH.
func (n *Network) PriceFloat(symbol string) (float64, bool) {
	p, err := n.Oracle.GetPrice(symbol)
	if errors.Is(err, ErrPriceNotSet) && strings.EqualFold(symbol, "ETH") {
		p, err = n.Oracle.GetPrice("WETH")
	}
	if err != nil {
		return 0, false
	}
	return p.InexactFloat64(), true
}

// quoteAliases maps a deployed token to the market symbol that prices it.
var quoteAliases = map[string]string{"WETH": "ETH"}

// PublishQuotes pushes collected prices for deployed tokens into the oracle
// as owner and returns how many were updated.
func (n *Network) PublishQuotes(md model.MarketData) (int, error) {
	var (
		tokens []string
		prices []decimal.Decimal
	)
	for _, sym := range n.Tokens() {
		q, ok := md[sym]
		if !ok {
			if alias, has := quoteAliases[sym]; has {
				q, ok = md[alias]
			}
		}
		if !ok || q.Price <= 0 {
			continue
		}
		tokens = append(tokens, sym)
		prices = append(prices, decimal.NewFromFloat(q.Price))
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	if err := n.Oracle.SetPrices(n.Oracle.Owner(), tokens, prices); err != nil {
		return 0, fmt.Errorf("publish quotes: %w", err)
	}
	return len(tokens), nil
}

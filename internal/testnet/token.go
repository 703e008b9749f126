package testnet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDailyLimitReached   = errors.New("Daily mint limit reached")
	ErrInsufficientBalance = errors.New("ERC20: transfer amount exceeds balance")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// FaucetWindow is the period after the first claim during which the daily
// limit applies.
const FaucetWindow = 24 * time.Hour

// Token is a mintable test token with a per-account daily faucet.
type Token struct {
	Name     string
	Symbol   string
	Decimals int32

	mu          sync.Mutex
	owner       string
	dailyLimit  decimal.Decimal
	balances    map[string]decimal.Decimal
	totalSupply decimal.Decimal
	minted      map[string]decimal.Decimal
	windowStart map[string]time.Time
	now         func() time.Time
}

// NewToken creates a token and mints initialSupply to owner.
func NewToken(name, symbol string, decimals int32, owner string, initialSupply, dailyLimit decimal.Decimal, now func() time.Time) *Token {
	if now == nil {
		now = time.Now
	}
	t := &Token{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		owner:       owner,
		dailyLimit:  dailyLimit,
		balances:    make(map[string]decimal.Decimal),
		minted:      make(map[string]decimal.Decimal),
		windowStart: make(map[string]time.Time),
		now:         now,
	}
	if initialSupply.IsPositive() {
		t.creditLocked(owner, initialSupply)
	}
	return t
}

func (t *Token) normalize(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Truncate(t.Decimals)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

func (t *Token) creditLocked(account string, amount decimal.Decimal) {
	t.balances[account] = t.balances[account].Add(amount)
	t.totalSupply = t.totalSupply.Add(amount)
}

// Mint creates amount for to. Owner only.
func (t *Token) Mint(caller, to string, amount decimal.Decimal) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	amount, err := t.normalize(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.creditLocked(to, amount)
	return nil
}

// Faucet mints the daily limit to caller. The window opens on the first
// claim and closes FaucetWindow later.
func (t *Token) Faucet(caller string) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if start, ok := t.windowStart[caller]; !ok || now.Sub(start) >= FaucetWindow {
		t.windowStart[caller] = now
		t.minted[caller] = decimal.Zero
	}
	amount := t.dailyLimit
	if t.minted[caller].Add(amount).GreaterThan(t.dailyLimit) || !amount.IsPositive() {
		return decimal.Zero, ErrDailyLimitReached
	}
	t.minted[caller] = t.minted[caller].Add(amount)
	t.creditLocked(caller, amount)
	return amount, nil
}

// Burn destroys amount from caller's balance.
func (t *Token) Burn(caller string, amount decimal.Decimal) error {
	amount, err := t.normalize(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balances[caller].LessThan(amount) {
		return fmt.Errorf("burn %s %s: %w", amount, t.Symbol, ErrInsufficientBalance)
	}
	t.balances[caller] = t.balances[caller].Sub(amount)
	t.totalSupply = t.totalSupply.Sub(amount)
	return nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to string, amount decimal.Decimal) error {
	amount, err := t.normalize(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balances[caller].LessThan(amount) {
		return fmt.Errorf("transfer %s %s: %w", amount, t.Symbol, ErrInsufficientBalance)
	}
	t.balances[caller] = t.balances[caller].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

func (t *Token) BalanceOf(account string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account]
}

func (t *Token) TotalSupply() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSupply
}

// DailyMinted returns how much account has claimed in its current window.
func (t *Token) DailyMinted(account string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minted[account]
}

func (t *Token) DailyMintLimit() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyLimit
}

// SetDailyMintLimit changes the faucet amount. Owner only.
func (t *Token) SetDailyMintLimit(caller string, limit decimal.Decimal) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	if limit.IsNegative() {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dailyLimit = limit
	return nil
}

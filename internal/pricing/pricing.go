// Package pricing quotes market prices for players and computes the amount
// returned when a player is sold back to the market.
//
// The upstream provider has no price of its own: the quote is generated per
// lookup. A quote is therefore only meaningful for the single transaction
// that requested it.
//
// All monetary values are decimal millions.
package pricing

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRange is returned when a random range is empty or non-positive.
	ErrInvalidRange = errors.New("pricing: price range must satisfy 0 < min <= max")

	// ErrInvalidPrice is returned for a fixed price that is not positive.
	ErrInvalidPrice = errors.New("pricing: price must be positive")

	two   = decimal.NewFromInt(2)
	three = decimal.NewFromInt(3)
)

// Default bounds of the generated market price, inclusive.
const (
	DefaultMin int64 = 5
	DefaultMax int64 = 9
)

// Pricer quotes the current market price of a player.
type Pricer interface {
	Quote(playerID string) decimal.Decimal
}

// RandomPricer draws a uniform integer price in [min, max] on every call.
// It is safe for concurrent use.
type RandomPricer struct {
	min, max int64
	mu       sync.Mutex
	rng      *rand.Rand
}

// NewRandomPricer creates a pricer over the inclusive range [min, max].
// The seed makes sequences reproducible in tests.
func NewRandomPricer(min, max int64, seed uint64) (*RandomPricer, error) {
	if min <= 0 || max < min {
		return nil, ErrInvalidRange
	}
	return &RandomPricer{
		min: min,
		max: max,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Quote returns a fresh price; successive calls for the same player differ.
func (p *RandomPricer) Quote(_ string) decimal.Decimal {
	p.mu.Lock()
	n := p.rng.Int64N(p.max-p.min+1) + p.min
	p.mu.Unlock()
	return decimal.NewFromInt(n)
}

// FixedPricer quotes the same price for every player.
type FixedPricer struct {
	price decimal.Decimal
}

// NewFixedPricer creates a pricer that always returns price, which must be a
// positive whole number.
func NewFixedPricer(price decimal.Decimal) (*FixedPricer, error) {
	if !price.IsPositive() || !price.IsInteger() {
		return nil, ErrInvalidPrice
	}
	return &FixedPricer{price: price}, nil
}

// Quote returns the configured price.
func (p *FixedPricer) Quote(_ string) decimal.Decimal {
	return p.price
}

// TablePricer quotes per-player prices from a table, falling back to
// another pricer for unknown players.
type TablePricer struct {
	prices   map[string]decimal.Decimal
	fallback Pricer
}

// NewTablePricer creates a table-driven pricer.
func NewTablePricer(prices map[string]decimal.Decimal, fallback Pricer) *TablePricer {
	return &TablePricer{prices: prices, fallback: fallback}
}

// Quote returns the tabled price or the fallback quote.
func (p *TablePricer) Quote(playerID string) decimal.Decimal {
	if price, ok := p.prices[playerID]; ok {
		return price
	}
	return p.fallback.Quote(playerID)
}

// ResalePrice is the amount credited when a player is sold to the market:
// two thirds of the current price, rounded half up to a whole million.
func ResalePrice(price decimal.Decimal) decimal.Decimal {
	return price.Mul(two).Div(three).Round(0)
}

// Package market is the league transaction engine: the roster ledger, budget
// accounts, lineup register and offer broker, plus their HTTP handlers and
// the WebSocket activity hub.
//
// Every mutation runs inside one store transaction, so ownership, balance,
// lineup and activity log change together or not at all. Reference data is
// read once per operation before the transaction starts and that snapshot
// (price included) is used throughout.
//
// All monetary values use shopspring/decimal, never float64.
package market

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/metrics"
	"github.com/lecfantasy/league-engine/internal/refdata"
	"github.com/lecfantasy/league-engine/internal/rostercap"
	"github.com/lecfantasy/league-engine/internal/store"
)

// Defaults for Config.
const (
	DefaultStartingBalance = 75
	DefaultOfferTTL        = 48 * time.Hour
	DefaultMatchday        = 1
)

// minOfferPrice is the smallest price an offer may carry.
var minOfferPrice = decimal.NewFromInt(1)

// Config holds the engine's tunables.
type Config struct {
	// StartingBalance is credited when a user joins a league.
	StartingBalance decimal.Decimal
	// OfferTTL is how long a pending offer stays acceptable.
	OfferTTL time.Duration
	// EnforceCapsOnTrade applies the roster caps to the buyer when an offer
	// is accepted. Off by default: trades have never been capped.
	EnforceCapsOnTrade bool
}

// DefaultConfig returns the standard league rules.
func DefaultConfig() Config {
	return Config{
		StartingBalance: decimal.NewFromInt(DefaultStartingBalance),
		OfferTTL:        DefaultOfferTTL,
	}
}

// Engine executes league operations against a Store.
type Engine struct {
	store   store.Store
	refs    refdata.Provider
	limiter *rostercap.Limiter
	cfg     Config
	hub     *ActivityHub // optional
	now     func() time.Time
	newID   func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHub publishes committed activity to hub.
func WithHub(hub *ActivityHub) Option {
	return func(e *Engine) { e.hub = hub }
}

// WithClock replaces time.Now. Used by tests to move across offer deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine. A nil limiter selects the default caps.
func NewEngine(st store.Store, refs refdata.Provider, limiter *rostercap.Limiter, cfg Config, opts ...Option) *Engine {
	if limiter == nil {
		limiter = rostercap.Default()
	}
	if !cfg.StartingBalance.IsPositive() {
		cfg.StartingBalance = decimal.NewFromInt(DefaultStartingBalance)
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = DefaultOfferTTL
	}
	e := &Engine{
		store:   st,
		refs:    refs,
		limiter: limiter,
		cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// observe records latency and, for rule failures, the rejection kind.
func (e *Engine) observe(op string, start time.Time, err error) {
	metrics.ObserveOperation(op, start)
	if err == nil {
		return
	}
	if re, ok := AsRuleError(err); ok {
		metrics.RuleRejections.WithLabelValues(re.Kind.Error()).Inc()
		log.WithFields(log.Fields{"op": op, "kind": re.Kind.Error()}).Debug(re.Message)
		return
	}
	log.WithError(err).WithField("op", op).Error("operation failed")
}

func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

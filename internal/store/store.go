// Package store defines the persistence interface for the league engine.
// Implementations include PostgreSQL (source of truth) and in-memory (for
// testing and development).
//
// Every mutation happens inside WithTx. Compound-uniqueness invariants are
// enforced by the implementation, never by a read-then-write in the caller:
// a second insert of the same key fails with ErrDuplicate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lecfantasy/league-engine/internal/model"
)

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrNegativeBalance is returned when a write would leave an account
	// below zero. The engine checks sufficiency first; this is the backstop.
	ErrNegativeBalance = errors.New("store: negative balance")
)

// OfferQuery filters ListOffers. Empty fields match everything.
type OfferQuery struct {
	LeagueID string
	UserID   string // seller or buyer
	Status   model.OfferStatus
}

// Reader holds the queries available both inside and outside a transaction.
type Reader interface {
	// GetAccount retrieves a budget account or ErrNotFound.
	GetAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error)

	// GetOwnership retrieves one ownership or ErrNotFound.
	GetOwnership(ctx context.Context, userID, leagueID, playerID string) (*model.Ownership, error)

	// ListOwnerships returns a user's holdings in a league, oldest first.
	ListOwnerships(ctx context.Context, userID, leagueID string) ([]model.Ownership, error)

	// ListLineup returns the occupied slots for one matchday.
	ListLineup(ctx context.Context, userID, leagueID string, matchday int) ([]model.LineupSlot, error)

	// GetOffer retrieves an offer or ErrNotFound.
	GetOffer(ctx context.Context, id string) (*model.Offer, error)

	// ListOffers returns offers matching q, newest first.
	ListOffers(ctx context.Context, q OfferQuery) ([]model.Offer, error)

	// ListTransactions returns a league's activity log, newest first.
	ListTransactions(ctx context.Context, leagueID string) ([]model.Transaction, error)
}

// Tx is a single atomic unit of work. Nothing written through a Tx is
// visible to other callers until WithTx commits it.
type Tx interface {
	Reader

	// CreateAccount inserts a budget account; ErrDuplicate if it exists.
	CreateAccount(ctx context.Context, acct *model.BudgetAccount) error

	// LockAccount retrieves an account and holds it exclusively until the
	// transaction ends. Callers locking several accounts must lock in
	// ascending userID order.
	LockAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error)

	// SetMoney overwrites a locked account's balance. Negative balances are
	// rejected by the storage layer.
	SetMoney(ctx context.Context, userID, leagueID string, money decimal.Decimal) error

	// InsertOwnership creates an ownership; ErrDuplicate if the
	// (user, league, player) triple already exists.
	InsertOwnership(ctx context.Context, o *model.Ownership) error

	// DeleteOwnership removes an ownership; ErrNotFound if absent.
	DeleteOwnership(ctx context.Context, userID, leagueID, playerID string) error

	// UpsertLineupSlot writes the occupant of (user, league, position, matchday).
	UpsertLineupSlot(ctx context.Context, slot *model.LineupSlot) error

	// DeleteLineupSlotsForPlayer clears every slot, on any matchday, held by
	// the player for that user and league. Returns the number removed.
	DeleteLineupSlotsForPlayer(ctx context.Context, userID, leagueID, playerID string) (int, error)

	// InsertOffer persists a new offer.
	InsertOffer(ctx context.Context, o *model.Offer) error

	// LockOffer retrieves an offer and holds it exclusively until the
	// transaction ends.
	LockOffer(ctx context.Context, id string) (*model.Offer, error)

	// SetOfferStatus records a transition; resolvedAt is stored alongside.
	SetOfferStatus(ctx context.Context, id string, status model.OfferStatus, resolvedAt time.Time) error

	// ExpireOffers marks every pending offer whose deadline is before now
	// as expired and returns how many changed.
	ExpireOffers(ctx context.Context, now time.Time) (int, error)

	// InsertTransaction appends an activity log entry.
	InsertTransaction(ctx context.Context, t *model.Transaction) error
}

// Store is the persistence interface. PostgreSQL is the source of truth.
type Store interface {
	Reader

	// WithTx runs fn inside one atomic unit. If fn returns an error every
	// write it made is discarded and the error is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

package market

import (
	"context"
	"fmt"
	"time"

	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/store"
)

// EventType names a committed change pushed to activity subscribers.
type EventType string

const (
	EventPurchase      EventType = "purchase"
	EventSale          EventType = "sale"
	EventTrade         EventType = "trade"
	EventOfferCreated  EventType = "offer_created"
	EventOfferRejected EventType = "offer_rejected"
	EventOfferExpired  EventType = "offer_expired"
)

// Event is one activity push. Exactly one of Transaction and Offer is set.
type Event struct {
	Type        EventType          `json:"type"`
	LeagueID    string             `json:"league_id"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Offer       *model.Offer       `json:"offer,omitempty"`
	At          time.Time          `json:"at"`
}

// record appends t to the activity log inside tx, assigning id and time.
func (e *Engine) record(ctx context.Context, tx store.Tx, t *model.Transaction, at time.Time) error {
	t.ID = e.newID()
	t.CreatedAt = at
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("record %s: %w", t.Type, err)
	}
	return nil
}

func (e *Engine) publishTransaction(t *model.Transaction) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(Event{
		Type:        EventType(t.Type),
		LeagueID:    t.LeagueID,
		Transaction: t,
		At:          t.CreatedAt,
	})
}

func (e *Engine) publishOffer(typ EventType, o *model.Offer, at time.Time) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(Event{Type: typ, LeagueID: o.LeagueID, Offer: o, At: at})
}

// Transactions returns a league's activity log, newest first.
func (e *Engine) Transactions(ctx context.Context, userID, leagueID string) (txs []model.Transaction, err error) {
	start := time.Now()
	defer func() { e.observe("transactions", start, err) }()

	if err := e.requireParticipant(ctx, userID, leagueID); err != nil {
		return nil, err
	}
	txs, err = e.store.ListTransactions(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return txs, nil
}

func (e *Engine) requireParticipant(ctx context.Context, userID, leagueID string) error {
	_, err := e.store.GetAccount(ctx, userID, leagueID)
	if notFound(err) {
		return rule(ErrNotParticipant, map[string]any{"user_id": userID, "league_id": leagueID},
			"user %s has not joined league %s", userID, leagueID)
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	return nil
}

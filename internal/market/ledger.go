package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/metrics"
	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/pricing"
	"github.com/lecfantasy/league-engine/internal/refdata"
	"github.com/lecfantasy/league-engine/internal/rostercap"
	"github.com/lecfantasy/league-engine/internal/store"
)

// Receipt is returned by operations that move money.
type Receipt struct {
	Transaction model.Transaction `json:"transaction"`
	// Balance is the acting user's balance after the operation.
	Balance decimal.Decimal `json:"balance"`
}

// JoinLeague opens a budget account with the starting balance.
func (e *Engine) JoinLeague(ctx context.Context, userID, leagueID string) (acct *model.BudgetAccount, err error) {
	start := time.Now()
	defer func() { e.observe("join", start, err) }()

	acct = &model.BudgetAccount{
		UserID:   userID,
		LeagueID: leagueID,
		Money:    e.cfg.StartingBalance,
		JoinedAt: e.clock(),
	}
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, acct)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, rule(ErrAlreadyJoined, map[string]any{"user_id": userID, "league_id": leagueID},
			"user %s already joined league %s", userID, leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("join league: %w", err)
	}

	log.WithFields(log.Fields{
		"user":    userID,
		"league":  leagueID,
		"balance": acct.Money.String(),
	}).Info("user joined league")
	return acct, nil
}

// Buy acquires playerID from the market at its current price.
func (e *Engine) Buy(ctx context.Context, userID, leagueID, playerID string) (r *Receipt, err error) {
	start := time.Now()
	defer func() { e.observe("buy", start, err) }()

	ref, err := e.lookup(ctx, playerID)
	if err != nil {
		return nil, err
	}

	var t model.Transaction
	var balance decimal.Decimal
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := lockAccount(ctx, tx, userID, leagueID)
		if err != nil {
			return err
		}

		if _, err := tx.GetOwnership(ctx, userID, leagueID, playerID); err == nil {
			return alreadyOwned(userID, leagueID, playerID)
		} else if !notFound(err) {
			return fmt.Errorf("get ownership: %w", err)
		}

		owned, err := tx.ListOwnerships(ctx, userID, leagueID)
		if err != nil {
			return fmt.Errorf("list ownerships: %w", err)
		}
		target := rostercap.Holding{Team: ref.Team, Role: ref.Role}
		if err := e.checkCaps(target, owned, playerID); err != nil {
			return err
		}

		if err := debit(ctx, tx, acct, ref.Price); err != nil {
			return err
		}

		now := e.clock()
		err = tx.InsertOwnership(ctx, &model.Ownership{
			UserID:        userID,
			LeagueID:      leagueID,
			PlayerID:      playerID,
			Team:          ref.Team,
			Role:          ref.Role,
			PurchasePrice: ref.Price,
			PurchaseDate:  now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return alreadyOwned(userID, leagueID, playerID)
		}
		if err != nil {
			return fmt.Errorf("insert ownership: %w", err)
		}

		t = model.Transaction{
			Type:       model.TxPurchase,
			LeagueID:   leagueID,
			PlayerID:   playerID,
			PlayerName: ref.Name,
			PlayerTeam: ref.Team,
			PlayerRole: ref.Role,
			Price:      ref.Price,
			UserID:     userID,
		}
		balance = acct.Money
		return e.record(ctx, tx, &t, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchasesTotal.Inc()
	log.WithFields(log.Fields{
		"user":    userID,
		"league":  leagueID,
		"player":  playerID,
		"price":   ref.Price.String(),
		"balance": balance.String(),
	}).Info("player bought")
	e.publishTransaction(&t)

	return &Receipt{Transaction: t, Balance: balance}, nil
}

// Sell returns playerID to the market for two thirds of its current price
// and clears every lineup slot it occupied.
func (e *Engine) Sell(ctx context.Context, userID, leagueID, playerID string) (r *Receipt, err error) {
	start := time.Now()
	defer func() { e.observe("sell", start, err) }()

	// A player that dropped out of the catalog can still be sold, priced
	// from the ownership snapshot.
	ref, lookupErr := e.lookup(ctx, playerID)
	if lookupErr != nil && !errors.Is(lookupErr, ErrPlayerNotFound) {
		return nil, lookupErr
	}
	known := lookupErr == nil

	var t model.Transaction
	var balance decimal.Decimal
	var cleared int
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := lockAccount(ctx, tx, userID, leagueID)
		if err != nil {
			return err
		}

		o, err := tx.GetOwnership(ctx, userID, leagueID, playerID)
		if notFound(err) {
			return rule(ErrNotOwned, map[string]any{"player_id": playerID},
				"player %s is not on your roster", playerID)
		}
		if err != nil {
			return fmt.Errorf("get ownership: %w", err)
		}

		if !known {
			ref = refFromOwnership(o)
		}
		price := pricing.ResalePrice(ref.Price)

		// Slots reference the ownership, so they go first.
		if cleared, err = tx.DeleteLineupSlotsForPlayer(ctx, userID, leagueID, playerID); err != nil {
			return fmt.Errorf("clear lineup: %w", err)
		}
		if err := tx.DeleteOwnership(ctx, userID, leagueID, playerID); err != nil {
			return fmt.Errorf("delete ownership: %w", err)
		}
		if err := credit(ctx, tx, acct, price); err != nil {
			return err
		}

		t = model.Transaction{
			Type:       model.TxSale,
			LeagueID:   leagueID,
			PlayerID:   playerID,
			PlayerName: ref.Name,
			PlayerTeam: o.Team,
			PlayerRole: o.Role,
			Price:      price,
			UserID:     userID,
		}
		balance = acct.Money
		return e.record(ctx, tx, &t, e.clock())
	})
	if err != nil {
		return nil, err
	}

	metrics.SalesTotal.Inc()
	log.WithFields(log.Fields{
		"user":         userID,
		"league":       leagueID,
		"player":       playerID,
		"price":        t.Price.String(),
		"balance":      balance.String(),
		"lineup_slots": cleared,
	}).Info("player sold")
	e.publishTransaction(&t)

	return &Receipt{Transaction: t, Balance: balance}, nil
}

// Roster returns the user's balance and holdings, oldest purchase first.
func (e *Engine) Roster(ctx context.Context, userID, leagueID string) (roster *model.Roster, err error) {
	start := time.Now()
	defer func() { e.observe("roster", start, err) }()

	acct, err := e.store.GetAccount(ctx, userID, leagueID)
	if notFound(err) {
		return nil, rule(ErrNotParticipant, map[string]any{"user_id": userID, "league_id": leagueID},
			"user %s has not joined league %s", userID, leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	owned, err := e.store.ListOwnerships(ctx, userID, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list ownerships: %w", err)
	}
	refs, err := e.catalog(ctx)
	if err != nil {
		return nil, err
	}

	roster = &model.Roster{
		UserID:   userID,
		LeagueID: leagueID,
		Money:    acct.Money,
		Players:  make([]model.RosterEntry, 0, len(owned)),
	}
	for i := range owned {
		o := &owned[i]
		ref, ok := refs[o.PlayerID]
		if !ok {
			ref = refFromOwnership(o)
		}
		roster.Players = append(roster.Players, model.RosterEntry{
			PlayerRef:     ref,
			PurchasePrice: o.PurchasePrice,
			PurchaseDate:  o.PurchaseDate,
		})
	}
	return roster, nil
}

func (e *Engine) checkCaps(target rostercap.Holding, owned []model.Ownership, playerID string) error {
	err := e.limiter.Check(target, rostercap.HoldingsOf(owned))
	var v *rostercap.Violation
	if errors.As(err, &v) {
		return fromViolation(v, playerID)
	}
	return err
}

// lookup snapshots one player from the reference data provider.
func (e *Engine) lookup(ctx context.Context, playerID string) (model.PlayerRef, error) {
	ref, err := e.refs.LookupPlayer(ctx, playerID)
	if errors.Is(err, refdata.ErrNotFound) {
		return model.PlayerRef{}, rule(ErrPlayerNotFound, map[string]any{"player_id": playerID},
			"player %s does not exist", playerID)
	}
	if err != nil {
		return model.PlayerRef{}, fmt.Errorf("lookup player %s: %w", playerID, err)
	}
	return ref, nil
}

// catalog indexes the current player list by id.
func (e *Engine) catalog(ctx context.Context) (map[string]model.PlayerRef, error) {
	players, err := e.refs.ListPlayers(ctx, refdata.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	idx := make(map[string]model.PlayerRef, len(players))
	for _, p := range players {
		idx[p.ID] = p
	}
	return idx, nil
}

// refFromOwnership stands in for a player missing from the catalog.
func refFromOwnership(o *model.Ownership) model.PlayerRef {
	return model.PlayerRef{
		ID:    o.PlayerID,
		Name:  o.PlayerID,
		Team:  o.Team,
		Role:  o.Role,
		Price: o.PurchasePrice,
	}
}

func alreadyOwned(userID, leagueID, playerID string) *RuleError {
	return rule(ErrAlreadyOwned, map[string]any{"user_id": userID, "league_id": leagueID, "player_id": playerID},
		"player %s is already on your roster", playerID)
}

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
	"github.com/lecfantasy/league-engine/internal/rostercap"
	"github.com/lecfantasy/league-engine/internal/store"
)

// OfferRequest proposes selling an owned player to another participant.
type OfferRequest struct {
	LeagueID     string          `json:"-"`
	SellerUserID string          `json:"-"`
	PlayerID     string          `json:"player_id"`
	BuyerUserID  string          `json:"buyer_user_id"`
	Price        decimal.Decimal `json:"price"`
}

// CreateOffer records a pending offer. The player is not reserved: the
// seller may still sell or trade it, which is re-checked on accept.
func (e *Engine) CreateOffer(ctx context.Context, req OfferRequest) (offer *model.Offer, err error) {
	start := time.Now()
	defer func() { e.observe("create_offer", start, err) }()

	if err := validateOffer(req); err != nil {
		return nil, err
	}

	now := e.clock()
	offer = &model.Offer{
		ID:           e.newID(),
		PlayerID:     req.PlayerID,
		LeagueID:     req.LeagueID,
		SellerUserID: req.SellerUserID,
		BuyerUserID:  req.BuyerUserID,
		Price:        req.Price,
		Status:       model.OfferPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(e.cfg.OfferTTL),
	}
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		for _, user := range []string{req.SellerUserID, req.BuyerUserID} {
			if _, err := tx.GetAccount(ctx, user, req.LeagueID); notFound(err) {
				return rule(ErrNotParticipant, map[string]any{"user_id": user, "league_id": req.LeagueID},
					"user %s has not joined league %s", user, req.LeagueID)
			} else if err != nil {
				return fmt.Errorf("get account: %w", err)
			}
		}

		if _, err := tx.GetOwnership(ctx, req.SellerUserID, req.LeagueID, req.PlayerID); notFound(err) {
			return rule(ErrNotOwned, map[string]any{"player_id": req.PlayerID},
				"player %s is not on your roster", req.PlayerID)
		} else if err != nil {
			return fmt.Errorf("get ownership: %w", err)
		}

		if err := tx.InsertOffer(ctx, offer); err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OffersTotal.WithLabelValues(string(model.OfferPending)).Inc()
	log.WithFields(log.Fields{
		"offer":  offer.ID,
		"league": offer.LeagueID,
		"player": offer.PlayerID,
		"seller": offer.SellerUserID,
		"buyer":  offer.BuyerUserID,
		"price":  offer.Price.String(),
	}).Info("offer created")
	e.publishOffer(EventOfferCreated, offer, now)
	return offer, nil
}

func validateOffer(req OfferRequest) error {
	switch {
	case req.PlayerID == "":
		return rule(ErrInvalidOffer, nil, "player_id is required")
	case req.BuyerUserID == "":
		return rule(ErrInvalidOffer, nil, "buyer_user_id is required")
	case req.BuyerUserID == req.SellerUserID:
		return rule(ErrInvalidOffer, map[string]any{"buyer_user_id": req.BuyerUserID},
			"cannot make an offer to yourself")
	case !req.Price.IsInteger():
		return rule(ErrInvalidOffer, map[string]any{"price": req.Price},
			"price %s must be a whole number of millions", req.Price)
	case req.Price.LessThan(minOfferPrice):
		return rule(ErrInvalidOffer, map[string]any{"price": req.Price, "minimum": minOfferPrice},
			"price %s is below the minimum of %s", req.Price, minOfferPrice)
	}
	return nil
}

// AcceptOffer settles a pending offer: ownership moves from seller to buyer
// and the price moves from buyer to seller, in one transaction. Only the
// designated buyer may accept.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, actingUserID string) (r *Receipt, err error) {
	start := time.Now()
	defer func() { e.observe("accept_offer", start, err) }()

	// Read once outside the transaction for the player snapshot; the offer
	// itself is re-read under lock.
	peek, err := e.store.GetOffer(ctx, offerID)
	if notFound(err) {
		return nil, offerNotFound(offerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	ref, err := e.lookup(ctx, peek.PlayerID)
	if err != nil && !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	var (
		t       model.Transaction
		balance decimal.Decimal
		expired *model.Offer
	)
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOffer(ctx, offerID)
		if notFound(err) {
			return offerNotFound(offerID)
		}
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		if o.BuyerUserID != actingUserID {
			return rule(ErrNotAuthorizedForOffer, map[string]any{"offer_id": o.ID},
				"only the buyer of offer %s can accept it", o.ID)
		}
		if o.Status != model.OfferPending {
			return offerClosed(o)
		}

		now := e.clock()
		if o.ExpiredAt(now) {
			if err := tx.SetOfferStatus(ctx, o.ID, model.OfferExpired, now); err != nil {
				return fmt.Errorf("expire offer: %w", err)
			}
			o.Status = model.OfferExpired
			expired = o
			return nil
		}

		accts, err := lockPair(ctx, tx, o.LeagueID, o.SellerUserID, o.BuyerUserID)
		if err != nil {
			return err
		}
		buyer, seller := accts[o.BuyerUserID], accts[o.SellerUserID]

		if buyer.Money.LessThan(o.Price) {
			return rule(ErrInsufficientFunds, map[string]any{
				"balance":   buyer.Money,
				"required":  o.Price,
				"shortfall": o.Price.Sub(buyer.Money),
			}, "balance %s is below the offer price %s", buyer.Money, o.Price)
		}

		held, err := tx.GetOwnership(ctx, o.SellerUserID, o.LeagueID, o.PlayerID)
		if notFound(err) {
			return rule(ErrSellerNoLongerOwns, map[string]any{"offer_id": o.ID, "player_id": o.PlayerID},
				"seller %s no longer owns player %s", o.SellerUserID, o.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("get seller ownership: %w", err)
		}

		if _, err := tx.GetOwnership(ctx, o.BuyerUserID, o.LeagueID, o.PlayerID); err == nil {
			return alreadyOwned(o.BuyerUserID, o.LeagueID, o.PlayerID)
		} else if !notFound(err) {
			return fmt.Errorf("get buyer ownership: %w", err)
		}

		if e.cfg.EnforceCapsOnTrade {
			owned, err := tx.ListOwnerships(ctx, o.BuyerUserID, o.LeagueID)
			if err != nil {
				return fmt.Errorf("list ownerships: %w", err)
			}
			if err := e.checkCaps(rostercap.Holding{Team: held.Team, Role: held.Role}, owned, o.PlayerID); err != nil {
				return err
			}
		}

		if _, err := tx.DeleteLineupSlotsForPlayer(ctx, o.SellerUserID, o.LeagueID, o.PlayerID); err != nil {
			return fmt.Errorf("clear seller lineup: %w", err)
		}
		if err := tx.DeleteOwnership(ctx, o.SellerUserID, o.LeagueID, o.PlayerID); err != nil {
			return fmt.Errorf("delete seller ownership: %w", err)
		}
		err = tx.InsertOwnership(ctx, &model.Ownership{
			UserID:        o.BuyerUserID,
			LeagueID:      o.LeagueID,
			PlayerID:      o.PlayerID,
			Team:          held.Team,
			Role:          held.Role,
			PurchasePrice: o.Price,
			PurchaseDate:  now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return alreadyOwned(o.BuyerUserID, o.LeagueID, o.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("insert buyer ownership: %w", err)
		}

		if err := debit(ctx, tx, buyer, o.Price); err != nil {
			return err
		}
		if err := credit(ctx, tx, seller, o.Price); err != nil {
			return err
		}
		if err := tx.SetOfferStatus(ctx, o.ID, model.OfferCompleted, now); err != nil {
			return fmt.Errorf("complete offer: %w", err)
		}

		name := ref.Name
		if name == "" {
			name = o.PlayerID
		}
		t = model.Transaction{
			Type:         model.TxTrade,
			LeagueID:     o.LeagueID,
			PlayerID:     o.PlayerID,
			PlayerName:   name,
			PlayerTeam:   held.Team,
			PlayerRole:   held.Role,
			Price:        o.Price,
			SellerUserID: o.SellerUserID,
			BuyerUserID:  o.BuyerUserID,
			OfferID:      o.ID,
		}
		balance = buyer.Money
		return e.record(ctx, tx, &t, now)
	})
	if err != nil {
		return nil, err
	}

	if expired != nil {
		e.offerExpired(expired)
		return nil, rule(ErrOfferExpired, map[string]any{"offer_id": expired.ID, "expires_at": expired.ExpiresAt},
			"offer %s expired at %s", expired.ID, expired.ExpiresAt.Format(time.RFC3339))
	}

	metrics.OffersTotal.WithLabelValues(string(model.OfferCompleted)).Inc()
	log.WithFields(log.Fields{
		"offer":   t.OfferID,
		"league":  t.LeagueID,
		"player":  t.PlayerID,
		"seller":  t.SellerUserID,
		"buyer":   t.BuyerUserID,
		"price":   t.Price.String(),
		"balance": balance.String(),
	}).Info("offer accepted")
	e.publishTransaction(&t)

	return &Receipt{Transaction: t, Balance: balance}, nil
}

// RejectOffer closes a pending offer with no other effect. Either party may
// reject.
func (e *Engine) RejectOffer(ctx context.Context, offerID, actingUserID string) (offer *model.Offer, err error) {
	start := time.Now()
	defer func() { e.observe("reject_offer", start, err) }()

	var expired bool
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOffer(ctx, offerID)
		if notFound(err) {
			return offerNotFound(offerID)
		}
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		if o.BuyerUserID != actingUserID && o.SellerUserID != actingUserID {
			return rule(ErrNotAuthorizedForOffer, map[string]any{"offer_id": o.ID},
				"offer %s is not yours to reject", o.ID)
		}
		if o.Status != model.OfferPending {
			return offerClosed(o)
		}

		now := e.clock()
		status := model.OfferRejected
		if o.ExpiredAt(now) {
			status, expired = model.OfferExpired, true
		}
		if err := tx.SetOfferStatus(ctx, o.ID, status, now); err != nil {
			return fmt.Errorf("set offer status: %w", err)
		}
		o.Status = status
		o.ResolvedAt = &now
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		e.offerExpired(offer)
		return nil, rule(ErrOfferExpired, map[string]any{"offer_id": offer.ID, "expires_at": offer.ExpiresAt},
			"offer %s expired at %s", offer.ID, offer.ExpiresAt.Format(time.RFC3339))
	}

	metrics.OffersTotal.WithLabelValues(string(model.OfferRejected)).Inc()
	log.WithFields(log.Fields{
		"offer": offer.ID,
		"by":    actingUserID,
	}).Info("offer rejected")
	e.publishOffer(EventOfferRejected, offer, *offer.ResolvedAt)
	return offer, nil
}

// ListOffers returns the user's pending offers in a league split by
// direction. Offers found past their deadline are marked expired and left
// out.
func (e *Engine) ListOffers(ctx context.Context, userID, leagueID string) (inbox *model.OfferInbox, err error) {
	start := time.Now()
	defer func() { e.observe("list_offers", start, err) }()

	if err := e.requireParticipant(ctx, userID, leagueID); err != nil {
		return nil, err
	}

	inbox = &model.OfferInbox{Incoming: []model.Offer{}, Outgoing: []model.Offer{}}
	var lapsed []model.Offer
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		offers, err := tx.ListOffers(ctx, store.OfferQuery{
			LeagueID: leagueID,
			UserID:   userID,
			Status:   model.OfferPending,
		})
		if err != nil {
			return fmt.Errorf("list offers: %w", err)
		}

		now := e.clock()
		for _, o := range offers {
			if o.ExpiredAt(now) {
				if err := tx.SetOfferStatus(ctx, o.ID, model.OfferExpired, now); err != nil {
					return fmt.Errorf("expire offer: %w", err)
				}
				o.Status = model.OfferExpired
				lapsed = append(lapsed, o)
				continue
			}
			if o.BuyerUserID == userID {
				inbox.Incoming = append(inbox.Incoming, o)
			} else {
				inbox.Outgoing = append(inbox.Outgoing, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range lapsed {
		e.offerExpired(&lapsed[i])
	}
	return inbox, nil
}

// ExpireOffers marks every overdue pending offer expired. It is idempotent
// and safe to run concurrently with request traffic.
func (e *Engine) ExpireOffers(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { e.observe("expire_offers", start, err) }()

	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.ExpireOffers(ctx, e.clock())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("expire offers: %w", err)
	}
	if n > 0 {
		metrics.OffersTotal.WithLabelValues(string(model.OfferExpired)).Add(float64(n))
		log.WithField("count", n).Info("expired overdue offers")
	}
	return n, nil
}

func (e *Engine) offerExpired(o *model.Offer) {
	metrics.OffersTotal.WithLabelValues(string(model.OfferExpired)).Inc()
	log.WithFields(log.Fields{
		"offer":      o.ID,
		"expires_at": o.ExpiresAt,
	}).Info("offer expired")
	e.publishOffer(EventOfferExpired, o, e.clock())
}

// lockPair locks both parties' accounts in ascending user id order.
func lockPair(ctx context.Context, tx store.Tx, leagueID, a, b string) (map[string]*model.BudgetAccount, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	out := make(map[string]*model.BudgetAccount, 2)
	for _, user := range []string{first, second} {
		acct, err := lockAccount(ctx, tx, user, leagueID)
		if err != nil {
			return nil, err
		}
		out[user] = acct
	}
	return out, nil
}

func offerNotFound(id string) *RuleError {
	return rule(ErrOfferNotFound, map[string]any{"offer_id": id}, "offer %s does not exist", id)
}

func offerClosed(o *model.Offer) *RuleError {
	return rule(ErrOfferClosed, map[string]any{"offer_id": o.ID, "status": o.Status},
		"offer %s is already %s", o.ID, o.Status)
}

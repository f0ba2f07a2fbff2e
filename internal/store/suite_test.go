package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/store"
)

var (
	errBoom = errors.New("boom")
	t0      = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// runStoreSuite exercises the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("AccountLifecycle", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 75)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateAccount(ctx, &model.BudgetAccount{UserID: "alice", LeagueID: "lec", Money: money(75), JoinedAt: t0})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.LockAccount(ctx, "alice", "lec"); err != nil {
				return err
			}
			return tx.SetMoney(ctx, "alice", "lec", money(12))
		}))

		acct, err := st.GetAccount(ctx, "alice", "lec")
		require.NoError(t, err)
		assert.True(t, acct.Money.Equal(money(12)))

		_, err = st.GetAccount(ctx, "bob", "lec")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("NegativeBalanceRejected", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 5)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.SetMoney(ctx, "alice", "lec", money(-1))
		})
		assert.ErrorIs(t, err, store.ErrNegativeBalance)

		acct, err := st.GetAccount(ctx, "alice", "lec")
		require.NoError(t, err)
		assert.True(t, acct.Money.Equal(money(5)))
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 75)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.InsertOwnership(ctx, ownership("alice", "lec", "caps", "G2", model.RoleMid)); err != nil {
				return err
			}
			if err := tx.SetMoney(ctx, "alice", "lec", money(67)); err != nil {
				return err
			}
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		owned, err := st.ListOwnerships(ctx, "alice", "lec")
		require.NoError(t, err)
		assert.Empty(t, owned)

		acct, err := st.GetAccount(ctx, "alice", "lec")
		require.NoError(t, err)
		assert.True(t, acct.Money.Equal(money(75)))
	})

	t.Run("OwnershipUniqueness", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 75)
		seedAccount(t, st, "bob", "lec", 75)

		insert := func(user string) error {
			return st.WithTx(ctx, func(tx store.Tx) error {
				return tx.InsertOwnership(ctx, ownership(user, "lec", "caps", "G2", model.RoleMid))
			})
		}
		require.NoError(t, insert("alice"))
		assert.ErrorIs(t, insert("alice"), store.ErrDuplicate)
		// A different user may hold the same player in the same league.
		require.NoError(t, insert("bob"))

		o, err := st.GetOwnership(ctx, "alice", "lec", "caps")
		require.NoError(t, err)
		assert.Equal(t, "G2", o.Team)
		assert.Equal(t, model.RoleMid, o.Role)
		assert.True(t, o.PurchasePrice.Equal(money(8)))

		err = st.WithTx(ctx, func(tx store.Tx) error {
			return tx.DeleteOwnership(ctx, "alice", "lec", "nobody")
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("OwnershipsOldestFirst", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 75)

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			for i, id := range []string{"a", "b", "c"} {
				o := ownership("alice", "lec", id, "T"+id, model.Roles[i])
				o.PurchaseDate = t0.Add(time.Duration(i) * time.Minute)
				if err := tx.InsertOwnership(ctx, o); err != nil {
					return err
				}
			}
			return nil
		}))

		owned, err := st.ListOwnerships(ctx, "alice", "lec")
		require.NoError(t, err)
		require.Len(t, owned, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{owned[0].PlayerID, owned[1].PlayerID, owned[2].PlayerID})
	})

	t.Run("LineupUpsertAndCascade", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		seedAccount(t, st, "alice", "lec", 75)

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			for _, o := range []*model.Ownership{
				ownership("alice", "lec", "caps", "G2", model.RoleMid),
				ownership("alice", "lec", "humanoid", "FNC", model.RoleMid),
			} {
				if err := tx.InsertOwnership(ctx, o); err != nil {
					return err
				}
			}
			for _, s := range []*model.LineupSlot{
				{UserID: "alice", LeagueID: "lec", Position: model.RoleMid, Matchday: 1, PlayerID: "caps"},
				{UserID: "alice", LeagueID: "lec", Position: model.RoleMid, Matchday: 2, PlayerID: "caps"},
				{UserID: "alice", LeagueID: "lec", Position: model.RoleMid, Matchday: 1, PlayerID: "humanoid"},
			} {
				if err := tx.UpsertLineupSlot(ctx, s); err != nil {
					return err
				}
			}
			return nil
		}))

		md1, err := st.ListLineup(ctx, "alice", "lec", 1)
		require.NoError(t, err)
		require.Len(t, md1, 1)
		assert.Equal(t, "humanoid", md1[0].PlayerID)

		var removed int
		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			removed, err = tx.DeleteLineupSlotsForPlayer(ctx, "alice", "lec", "caps")
			return err
		}))
		assert.Equal(t, 1, removed)

		md2, err := st.ListLineup(ctx, "alice", "lec", 2)
		require.NoError(t, err)
		assert.Empty(t, md2)
	})

	t.Run("OffersAndExpiry", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		fresh := offer("o1", "alice", "bob", t0)
		stale := offer("o2", "alice", "carol", t0.Add(-72*time.Hour))
		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.InsertOffer(ctx, fresh); err != nil {
				return err
			}
			return tx.InsertOffer(ctx, stale)
		}))

		bobs, err := st.ListOffers(ctx, store.OfferQuery{LeagueID: "lec", UserID: "bob"})
		require.NoError(t, err)
		require.Len(t, bobs, 1)
		assert.Equal(t, "o1", bobs[0].ID)

		all, err := st.ListOffers(ctx, store.OfferQuery{LeagueID: "lec", UserID: "alice"})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "o1", all[0].ID, "newest first")

		var n int
		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			n, err = tx.ExpireOffers(ctx, t0.Add(time.Hour))
			return err
		}))
		assert.Equal(t, 1, n)

		got, err := st.GetOffer(ctx, "o2")
		require.NoError(t, err)
		assert.Equal(t, model.OfferExpired, got.Status)
		require.NotNil(t, got.ResolvedAt)

		pending, err := st.ListOffers(ctx, store.OfferQuery{Status: model.OfferPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "o1", pending[0].ID)

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.LockOffer(ctx, "o1"); err != nil {
				return err
			}
			return tx.SetOfferStatus(ctx, "o1", model.OfferRejected, t0.Add(time.Minute))
		}))
		got, err = st.GetOffer(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, model.OfferRejected, got.Status)

		_, err = st.GetOffer(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("TransactionsNewestFirst", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			for i, typ := range []model.TransactionType{model.TxPurchase, model.TxSale, model.TxTrade} {
				err := tx.InsertTransaction(ctx, &model.Transaction{
					ID:        string(typ),
					Type:      typ,
					LeagueID:  "lec",
					PlayerID:  "caps",
					Price:     money(8),
					CreatedAt: t0.Add(time.Duration(i) * time.Second),
				})
				if err != nil {
					return err
				}
			}
			return nil
		}))

		txs, err := st.ListTransactions(ctx, "lec")
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, model.TxTrade, txs[0].Type)
		assert.Equal(t, model.TxPurchase, txs[2].Type)

		other, err := st.ListTransactions(ctx, "lcs")
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func seedAccount(t *testing.T, st store.Store, user, league string, balance int64) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateAccount(context.Background(), &model.BudgetAccount{
			UserID:   user,
			LeagueID: league,
			Money:    money(balance),
			JoinedAt: t0,
		})
	})
	require.NoError(t, err)
}

func ownership(user, league, player, team string, role model.Role) *model.Ownership {
	return &model.Ownership{
		UserID:        user,
		LeagueID:      league,
		PlayerID:      player,
		Team:          team,
		Role:          role,
		PurchasePrice: money(8),
		PurchaseDate:  t0,
	}
}

func offer(id, seller, buyer string, created time.Time) *model.Offer {
	return &model.Offer{
		ID:           id,
		PlayerID:     "caps",
		LeagueID:     "lec",
		SellerUserID: seller,
		BuyerUserID:  buyer,
		Price:        money(10),
		Status:       model.OfferPending,
		CreatedAt:    created,
		ExpiresAt:    created.Add(48 * time.Hour),
	}
}

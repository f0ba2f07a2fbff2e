package market_test

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/market"
	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/refdata"
)

// TestInvariantsUnderRandomOperations drives a random mix of operations
// and checks the roster, budget and lineup invariants after every step.
func TestInvariantsUnderRandomOperations(t *testing.T) {
	cfg := market.DefaultConfig()
	cfg.EnforceCapsOnTrade = true
	env := newTestEnv(t, cfg, map[string]int64{"caps": 9, "humanoid": 5, "t1-top": 6, "t2-mid": 7})
	ctx := context.Background()

	users := []string{"u0", "u1", "u2", "u3"}
	env.join(t, users...)

	catalog, err := env.refs.ListPlayers(ctx, refdata.Filter{})
	require.NoError(t, err)
	positions := []string{"top", "jungle", "mid", "adc", "bottom", "support"}

	rng := rand.New(rand.NewPCG(7, 11))
	var offers []string
	for step := 0; step < 400; step++ {
		user := users[rng.IntN(len(users))]
		player := catalog[rng.IntN(len(catalog))].ID

		var err error
		switch rng.IntN(6) {
		case 0, 1:
			_, err = env.engine.Buy(ctx, user, league, player)
		case 2:
			_, err = env.engine.Sell(ctx, user, league, player)
		case 3:
			_, err = env.engine.SetStarter(ctx, market.StarterRequest{
				UserID: user, LeagueID: league, PlayerID: player,
				Position: positions[rng.IntN(len(positions))], Matchday: 1 + rng.IntN(3),
			})
		case 4:
			var o *model.Offer
			o, err = env.engine.CreateOffer(ctx, market.OfferRequest{
				LeagueID: league, SellerUserID: user, BuyerUserID: users[rng.IntN(len(users))],
				PlayerID: player, Price: d(int64(1 + rng.IntN(15))),
			})
			if err == nil {
				offers = append(offers, o.ID)
			}
		case 5:
			if len(offers) == 0 {
				continue
			}
			id := offers[rng.IntN(len(offers))]
			if rng.IntN(4) == 0 {
				_, err = env.engine.RejectOffer(ctx, id, user)
			} else {
				_, err = env.engine.AcceptOffer(ctx, id, user)
			}
		}
		if err != nil {
			_, isRule := market.AsRuleError(err)
			require.True(t, isRule, "step %d: unexpected infrastructure error: %v", step, err)
		}
		if step%50 == 0 {
			env.clock.Advance(12 * time.Hour)
		}

		checkInvariants(t, env, users)
	}
}

func checkInvariants(t *testing.T, env *testEnv, users []string) {
	t.Helper()
	ctx := context.Background()

	for _, u := range users {
		acct, err := env.store.GetAccount(ctx, u, league)
		require.NoError(t, err)
		require.False(t, acct.Money.IsNegative(), "%s has negative balance %s", u, acct.Money)

		owned, err := env.store.ListOwnerships(ctx, u, league)
		require.NoError(t, err)
		require.LessOrEqual(t, len(owned), 10)

		seen := map[string]bool{}
		perTeam := map[string]int{}
		perRole := map[model.Role]int{}
		for _, o := range owned {
			require.False(t, seen[o.PlayerID], "%s owns %s twice", u, o.PlayerID)
			seen[o.PlayerID] = true
			perTeam[strings.ToUpper(o.Team)]++
			perRole[o.Role]++
		}
		for team, n := range perTeam {
			assert.LessOrEqual(t, n, 2, "%s holds %d players from %s", u, n, team)
		}
		for role, n := range perRole {
			assert.LessOrEqual(t, n, 2, "%s holds %d players at %s", u, n, role)
		}

		for md := 1; md <= 3; md++ {
			slots, err := env.store.ListLineup(ctx, u, league, md)
			require.NoError(t, err)
			for _, s := range slots {
				o, err := env.store.GetOwnership(ctx, u, league, s.PlayerID)
				require.NoError(t, err, "%s starts %s without owning it", u, s.PlayerID)
				require.Equal(t, o.Role, s.Position)
			}
		}
	}
}

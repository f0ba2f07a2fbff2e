package market_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/market"
	"github.com/lecfantasy/league-engine/internal/model"
)

func starter(user, player, pos string, matchday int) market.StarterRequest {
	return market.StarterRequest{UserID: user, LeagueID: league, PlayerID: player, Position: pos, Matchday: matchday}
}

func TestSetStarter_PositionMismatchKeepsLineup(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "caps", "bb")
	ctx := context.Background()

	_, err := env.engine.SetStarter(ctx, starter("alice", "caps", "mid", 1))
	require.NoError(t, err)

	_, err = env.engine.SetStarter(ctx, starter("alice", "bb", "mid", 1))
	re := assertRule(t, err, market.ErrPositionMismatch)
	assert.Equal(t, model.RoleTop, re.Details["player_role"])
	assert.Equal(t, model.RoleMid, re.Details["position"])

	lineup, err := env.engine.GetLineup(ctx, "alice", league, 1)
	require.NoError(t, err)
	require.Len(t, lineup, 1)
	assert.Equal(t, "caps", lineup[0].ID)
	assert.Equal(t, model.RoleMid, lineup[0].Position)
}

func TestSetStarter_Idempotent(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "caps")
	ctx := context.Background()

	first, err := env.engine.SetStarter(ctx, starter("alice", "caps", "mid", 3))
	require.NoError(t, err)
	second, err := env.engine.SetStarter(ctx, starter("alice", "caps", "mid", 3))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	slots, err := env.store.ListLineup(ctx, "alice", league, 3)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestSetStarter_DisplacesPreviousOccupant(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "caps", "humanoid")
	ctx := context.Background()

	_, err := env.engine.SetStarter(ctx, starter("alice", "caps", "mid", 1))
	require.NoError(t, err)
	_, err = env.engine.SetStarter(ctx, starter("alice", "humanoid", "MID", 1))
	require.NoError(t, err)

	lineup, err := env.engine.GetLineup(ctx, "alice", league, 1)
	require.NoError(t, err)
	require.Len(t, lineup, 1)
	assert.Equal(t, "humanoid", lineup[0].ID)
	// Displaced, not sold.
	assert.ElementsMatch(t, []string{"caps", "humanoid"}, env.owned(t, "alice"))
}

func TestSetStarter_DefaultMatchday(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "caps")

	slot, err := env.engine.SetStarter(context.Background(), starter("alice", "caps", "mid", 0))
	require.NoError(t, err)
	assert.Equal(t, market.DefaultMatchday, slot.Matchday)
}

func TestSetStarter_BottomMeansADC(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "hans")

	slot, err := env.engine.SetStarter(context.Background(), starter("alice", "hans", "Bottom", 1))
	require.NoError(t, err)
	assert.Equal(t, model.RoleADC, slot.Position)
}

func TestSetStarter_Errors(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "caps")
	ctx := context.Background()

	tests := []struct {
		name string
		req  market.StarterRequest
		kind error
	}{
		{"not owned", starter("alice", "humanoid", "mid", 1), market.ErrNotOwned},
		{"unknown position", starter("alice", "caps", "coach", 1), market.ErrInvalidPosition},
		{"negative matchday", starter("alice", "caps", "mid", -1), market.ErrInvalidMatchday},
		{"not participant", starter("bob", "caps", "mid", 1), market.ErrNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.SetStarter(ctx, tt.req)
			assertRule(t, err, tt.kind)
		})
	}
}

func TestGetLineup_OmitsVacantSlotsInPositionOrder(t *testing.T) {
	env := defaultEnv(t)
	env.join(t, "alice")
	env.buy(t, "alice", "labrov", "caps", "bb")
	ctx := context.Background()

	for _, req := range []market.StarterRequest{
		starter("alice", "labrov", "support", 1),
		starter("alice", "caps", "mid", 1),
		starter("alice", "bb", "top", 1),
	} {
		_, err := env.engine.SetStarter(ctx, req)
		require.NoError(t, err)
	}

	lineup, err := env.engine.GetLineup(ctx, "alice", league, 1)
	require.NoError(t, err)
	require.Len(t, lineup, 3)
	assert.Equal(t, []model.Role{model.RoleTop, model.RoleMid, model.RoleSupport},
		[]model.Role{lineup[0].Position, lineup[1].Position, lineup[2].Position})
	assert.Equal(t, "BrokenBlade", lineup[0].Name)
	assert.Equal(t, 1, lineup[0].Matchday)

	empty, err := env.engine.GetLineup(ctx, "alice", league, 7)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

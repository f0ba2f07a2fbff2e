package market_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecfantasy/league-engine/internal/market"
	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/pricing"
	"github.com/lecfantasy/league-engine/internal/refdata"
	"github.com/lecfantasy/league-engine/internal/store"
)

const league = "lec-2025"

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(dt time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(dt)
	c.mu.Unlock()
}

// fillerTeams returns five teams T1..T5 with one player per role, ids like
// "t3-mid", used to build rosters that hit the total cap without hitting
// the team or role caps.
func fillerTeams() []refdata.Team {
	var teams []refdata.Team
	for i := 1; i <= 5; i++ {
		code := fmt.Sprintf("T%d", i)
		team := refdata.Team{ID: "id-" + code, Code: code, Name: "Team " + code, HomeLeague: "LEC"}
		for _, role := range model.Roles {
			id := fmt.Sprintf("%s-%s", strings.ToLower(code), role)
			team.Players = append(team.Players, refdata.Player{ID: id, Name: id, Role: role})
		}
		teams = append(teams, team)
	}
	return teams
}

func testCatalog() *refdata.StaticSource {
	teams := []refdata.Team{
		{ID: "t-g2", Code: "G2", Name: "G2 Esports", HomeLeague: "LEC", Players: []refdata.Player{
			{ID: "bb", Name: "BrokenBlade", Role: model.RoleTop},
			{ID: "skewmond", Name: "SkewMond", Role: model.RoleJungle},
			{ID: "caps", Name: "Caps", Role: model.RoleMid},
			{ID: "hans", Name: "Hans Sama", Role: model.RoleADC},
			{ID: "labrov", Name: "Labrov", Role: model.RoleSupport},
		}},
		{ID: "t-fnc", Code: "FNC", Name: "Fnatic", HomeLeague: "LEC", Players: []refdata.Player{
			{ID: "oscarinin", Name: "Oscarinin", Role: model.RoleTop},
			{ID: "razork", Name: "Razork", Role: model.RoleJungle},
			{ID: "humanoid", Name: "Humanoid", Role: model.RoleMid},
			{ID: "upset", Name: "Upset", Role: model.RoleADC},
			{ID: "alvaro", Name: "Alvaro", Role: model.RoleSupport},
		}},
		{ID: "t-kc", Code: "KC", Name: "Karmine Corp", HomeLeague: "LEC", Players: []refdata.Player{
			{ID: "canna", Name: "Canna", Role: model.RoleTop},
			{ID: "yike", Name: "Yike", Role: model.RoleJungle},
			{ID: "vladi", Name: "Vladi", Role: model.RoleMid},
			{ID: "caliste", Name: "Caliste", Role: model.RoleADC},
			{ID: "targamas", Name: "Targamas", Role: model.RoleSupport},
		}},
		{ID: "t-test", Code: "TST", Name: "Test Team", HomeLeague: "LEC", Players: []refdata.Player{
			{ID: "ben01", Name: "Ben01", Role: model.RoleSupport},
		}},
	}
	return refdata.NewStaticSource(append(teams, fillerTeams()...)...)
}

type testEnv struct {
	engine *market.Engine
	store  *store.MemoryStore
	refs   *refdata.Service
	clock  *fakeClock
}

// newTestEnv builds an engine over an isolated memory store. Every player
// costs 8 unless listed in prices.
func newTestEnv(t *testing.T, cfg market.Config, prices map[string]int64, opts ...market.Option) *testEnv {
	t.Helper()

	fixed, err := pricing.NewFixedPricer(d(8))
	require.NoError(t, err)
	table := make(map[string]decimal.Decimal, len(prices))
	for id, p := range prices {
		table[id] = d(p)
	}
	refs := refdata.NewService(testCatalog(), pricing.NewTablePricer(table, fixed),
		refdata.Options{League: "LEC", Reserved: "Ben01"})

	clock := &fakeClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	ms := store.NewMemoryStore()
	opts = append([]market.Option{market.WithClock(clock.Now)}, opts...)
	engine := market.NewEngine(ms, refs, nil, cfg, opts...)

	return &testEnv{engine: engine, store: ms, refs: refs, clock: clock}
}

func defaultEnv(t *testing.T) *testEnv {
	return newTestEnv(t, market.DefaultConfig(), nil)
}

func (e *testEnv) join(t *testing.T, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := e.engine.JoinLeague(context.Background(), u, league)
		require.NoError(t, err)
	}
}

func (e *testEnv) buy(t *testing.T, user string, players ...string) {
	t.Helper()
	for _, p := range players {
		_, err := e.engine.Buy(context.Background(), user, league, p)
		require.NoError(t, err, "buy %s", p)
	}
}

func (e *testEnv) money(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	acct, err := e.store.GetAccount(context.Background(), user, league)
	require.NoError(t, err)
	return acct.Money
}

func (e *testEnv) setMoney(t *testing.T, user string, amount int64) {
	t.Helper()
	err := e.store.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.SetMoney(context.Background(), user, league, d(amount))
	})
	require.NoError(t, err)
}

func (e *testEnv) owned(t *testing.T, user string) []string {
	t.Helper()
	owned, err := e.store.ListOwnerships(context.Background(), user, league)
	require.NoError(t, err)
	ids := make([]string, len(owned))
	for i, o := range owned {
		ids[i] = o.PlayerID
	}
	return ids
}

func (e *testEnv) offer(t *testing.T, seller, buyer, player string, price int64) *model.Offer {
	t.Helper()
	o, err := e.engine.CreateOffer(context.Background(), market.OfferRequest{
		LeagueID:     league,
		SellerUserID: seller,
		BuyerUserID:  buyer,
		PlayerID:     player,
		Price:        d(price),
	})
	require.NoError(t, err)
	return o
}

func assertMoney(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want balance %d, got %s", want, got)
}

// assertRule checks err is a *RuleError of the given kind.
func assertRule(t *testing.T, err error, kind error) *market.RuleError {
	t.Helper()
	require.ErrorIs(t, err, kind)
	re, ok := market.AsRuleError(err)
	require.True(t, ok, "expected *RuleError, got %T", err)
	assert.NotEmpty(t, re.Message)
	return re
}

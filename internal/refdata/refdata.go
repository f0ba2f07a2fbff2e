// Package refdata is the reference data provider: canonical player records
// (identity, team, role, quoted price) built from the upstream esports API.
//
// Upstream player objects are inconsistent (summonerName vs name, image
// fallbacks, "bottom" vs "adc"). They are normalized once, here; nothing
// downstream sees the raw shape.
package refdata

import (
	"context"
	"errors"

	"github.com/lecfantasy/league-engine/internal/model"
)

// ErrNotFound is returned when a player id is unknown, belongs to a team
// outside the configured league, or is the reserved identity.
var ErrNotFound = errors.New("refdata: player not found")

// Filter narrows ListPlayers. Empty fields match everything.
type Filter struct {
	Team string     // team code or team id
	Role model.Role // canonical role
}

// Provider is the read-only lookup the engine consumes. Prices may differ
// between calls; callers snapshot one lookup per transaction.
type Provider interface {
	LookupPlayer(ctx context.Context, playerID string) (model.PlayerRef, error)
	ListPlayers(ctx context.Context, f Filter) ([]model.PlayerRef, error)
}

// Team is a normalized upstream team with its roster. It carries no prices.
type Team struct {
	ID         string   `json:"id"`
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	HomeLeague string   `json:"home_league"`
	Players    []Player `json:"players"`
}

// Player is a normalized upstream player.
type Player struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	FullName string     `json:"full_name,omitempty"`
	Role     model.Role `json:"role"`
	ImageURL string     `json:"image_url,omitempty"`
}

// TeamSource yields the full normalized team list.
type TeamSource interface {
	Teams(ctx context.Context) ([]Team, error)
}

// Package rostercap enforces the acquisition caps on a user's roster in a
// league: a total size limit plus per-team and per-role limits.
package rostercap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lecfantasy/league-engine/internal/model"
)

var (
	// ErrRosterFull is returned when the roster already holds MaxTotal players.
	ErrRosterFull = errors.New("roster_full")

	// ErrTeamCapExceeded is returned when the roster already holds MaxPerTeam
	// players from the target player's team.
	ErrTeamCapExceeded = errors.New("team_cap_exceeded")

	// ErrPositionCapExceeded is returned when the roster already holds
	// MaxPerRole players of the target player's role.
	ErrPositionCapExceeded = errors.New("position_cap_exceeded")
)

// Default caps.
const (
	DefaultMaxTotal   = 10
	DefaultMaxPerTeam = 2
	DefaultMaxPerRole = 2
)

// Holding is the part of an owned player the caps look at.
type Holding struct {
	Team string
	Role model.Role
}

// Violation describes which cap a prospective acquisition would break.
// It unwraps to one of the sentinel errors above.
type Violation struct {
	Kind  error
	Key   string // team code or role; empty for the total cap
	Count int    // holdings already counted against the cap
	Limit int
}

func (v *Violation) Error() string {
	switch v.Kind {
	case ErrRosterFull:
		return fmt.Sprintf("roster already holds %d of %d players; sell a player before buying a new one", v.Count, v.Limit)
	case ErrTeamCapExceeded:
		return fmt.Sprintf("roster already holds %d players from %s (maximum %d)", v.Count, v.Key, v.Limit)
	case ErrPositionCapExceeded:
		return fmt.Sprintf("roster already holds %d players for the %s position (maximum %d)", v.Count, v.Key, v.Limit)
	}
	return v.Kind.Error()
}

func (v *Violation) Unwrap() error { return v.Kind }

// Limiter checks prospective acquisitions against roster caps.
type Limiter struct {
	MaxTotal   int
	MaxPerTeam int
	MaxPerRole int
}

// NewLimiter creates a limiter. Non-positive limits fall back to defaults.
func NewLimiter(maxTotal, maxPerTeam, maxPerRole int) *Limiter {
	if maxTotal < 1 {
		maxTotal = DefaultMaxTotal
	}
	if maxPerTeam < 1 {
		maxPerTeam = DefaultMaxPerTeam
	}
	if maxPerRole < 1 {
		maxPerRole = DefaultMaxPerRole
	}
	return &Limiter{
		MaxTotal:   maxTotal,
		MaxPerTeam: maxPerTeam,
		MaxPerRole: maxPerRole,
	}
}

// Default returns a limiter with the standard 10 / 2 / 2 caps.
func Default() *Limiter {
	return NewLimiter(DefaultMaxTotal, DefaultMaxPerTeam, DefaultMaxPerRole)
}

// Check reports whether target may join a roster that already contains
// current. Returns nil, or a *Violation for the first cap that is hit,
// checked in the order total, team, role.
//
// Team codes compare case-insensitively.
func (l *Limiter) Check(target Holding, current []Holding) error {
	if len(current) >= l.MaxTotal {
		return &Violation{Kind: ErrRosterFull, Count: len(current), Limit: l.MaxTotal}
	}

	var sameTeam, sameRole int
	for _, h := range current {
		if strings.EqualFold(h.Team, target.Team) {
			sameTeam++
		}
		if h.Role == target.Role {
			sameRole++
		}
	}

	if sameTeam >= l.MaxPerTeam {
		return &Violation{Kind: ErrTeamCapExceeded, Key: target.Team, Count: sameTeam, Limit: l.MaxPerTeam}
	}
	if sameRole >= l.MaxPerRole {
		return &Violation{Kind: ErrPositionCapExceeded, Key: string(target.Role), Count: sameRole, Limit: l.MaxPerRole}
	}
	return nil
}

// HoldingsOf projects ownerships onto the fields the caps use.
func HoldingsOf(owned []model.Ownership) []Holding {
	out := make([]Holding, len(owned))
	for i, o := range owned {
		out[i] = Holding{Team: o.Team, Role: o.Role}
	}
	return out
}

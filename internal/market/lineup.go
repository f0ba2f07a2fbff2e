package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/position"
	"github.com/lecfantasy/league-engine/internal/store"
)

// StarterRequest assigns an owned player to a lineup slot.
type StarterRequest struct {
	UserID   string `json:"-"`
	LeagueID string `json:"-"`
	PlayerID string `json:"player_id"`
	Position string `json:"position"`
	Matchday int    `json:"matchday,omitempty"` // 0 means DefaultMatchday
}

// board is one user's lineup for one matchday: a player id per canonical
// position, empty when the slot is vacant.
type board [len(model.Roles)]string

func boardOf(slots []model.LineupSlot) board {
	var b board
	for _, s := range slots {
		if i := s.Position.Index(); i >= 0 {
			b[i] = s.PlayerID
		}
	}
	return b
}

// starters lists the occupied slots in position order, resolved against refs.
func (b board) starters(matchday int, refs map[string]model.PlayerRef, owned map[string]*model.Ownership) []model.Starter {
	out := []model.Starter{}
	for i, playerID := range b {
		if playerID == "" {
			continue
		}
		ref, ok := refs[playerID]
		if !ok {
			if o, held := owned[playerID]; held {
				ref = refFromOwnership(o)
			} else {
				ref = model.PlayerRef{ID: playerID, Name: playerID, Role: model.Roles[i]}
			}
		}
		out = append(out, model.Starter{PlayerRef: ref, Position: model.Roles[i], Matchday: matchday})
	}
	return out
}

func normalizeMatchday(md int) (int, error) {
	switch {
	case md == 0:
		return DefaultMatchday, nil
	case md < 0:
		return 0, rule(ErrInvalidMatchday, map[string]any{"matchday": md}, "matchday must be positive, got %d", md)
	}
	return md, nil
}

// SetStarter places an owned player in the slot for its position, displacing
// any previous occupant of that slot. Repeating the call is a no-op.
func (e *Engine) SetStarter(ctx context.Context, req StarterRequest) (slot *model.LineupSlot, err error) {
	start := time.Now()
	defer func() { e.observe("set_starter", start, err) }()

	pos, err := position.Parse(req.Position)
	if err != nil {
		return nil, rule(ErrInvalidPosition, map[string]any{"position": req.Position},
			"unknown position %q", req.Position)
	}
	matchday, err := normalizeMatchday(req.Matchday)
	if err != nil {
		return nil, err
	}

	slot = &model.LineupSlot{
		UserID:   req.UserID,
		LeagueID: req.LeagueID,
		Position: pos,
		Matchday: matchday,
		PlayerID: req.PlayerID,
	}
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := lockAccount(ctx, tx, req.UserID, req.LeagueID); err != nil {
			return err
		}

		o, err := tx.GetOwnership(ctx, req.UserID, req.LeagueID, req.PlayerID)
		if notFound(err) {
			return rule(ErrNotOwned, map[string]any{"player_id": req.PlayerID},
				"player %s is not on your roster", req.PlayerID)
		}
		if err != nil {
			return fmt.Errorf("get ownership: %w", err)
		}

		if !strings.EqualFold(string(o.Role), string(pos)) {
			return rule(ErrPositionMismatch, map[string]any{
				"player_id":   req.PlayerID,
				"player_role": o.Role,
				"position":    pos,
			}, "player %s plays %s and cannot start at %s", req.PlayerID, o.Role, pos)
		}

		if err := tx.UpsertLineupSlot(ctx, slot); err != nil {
			return fmt.Errorf("upsert lineup slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user":     req.UserID,
		"league":   req.LeagueID,
		"player":   req.PlayerID,
		"position": pos,
		"matchday": matchday,
	}).Info("starter set")
	return slot, nil
}

// GetLineup returns the occupied slots for a matchday with player data
// merged in. Vacant positions are omitted.
func (e *Engine) GetLineup(ctx context.Context, userID, leagueID string, matchday int) (starters []model.Starter, err error) {
	start := time.Now()
	defer func() { e.observe("get_lineup", start, err) }()

	matchday, err = normalizeMatchday(matchday)
	if err != nil {
		return nil, err
	}
	if err := e.requireParticipant(ctx, userID, leagueID); err != nil {
		return nil, err
	}

	slots, err := e.store.ListLineup(ctx, userID, leagueID, matchday)
	if err != nil {
		return nil, fmt.Errorf("list lineup: %w", err)
	}
	if len(slots) == 0 {
		return []model.Starter{}, nil
	}

	refs, err := e.catalog(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := e.store.ListOwnerships(ctx, userID, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list ownerships: %w", err)
	}
	byID := make(map[string]*model.Ownership, len(owned))
	for i := range owned {
		byID[owned[i].PlayerID] = &owned[i]
	}

	return boardOf(slots).starters(matchday, refs, byID), nil
}

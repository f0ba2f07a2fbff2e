package refdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/pricing"
)

// Options configures Service.
type Options struct {
	// League restricts the catalog to teams whose home league has this
	// name. Empty means every team.
	League string
	// Reserved is a player name excluded from every lookup and listing.
	Reserved string
}

// Service implements Provider over a TeamSource, quoting a fresh price from
// the Pricer on every call.
type Service struct {
	src    TeamSource
	pricer pricing.Pricer
	opts   Options
}

// NewService creates a reference data provider.
func NewService(src TeamSource, pricer pricing.Pricer, opts Options) *Service {
	return &Service{src: src, pricer: pricer, opts: opts}
}

// LookupPlayer returns the player with a freshly quoted price, or
// ErrNotFound.
func (s *Service) LookupPlayer(ctx context.Context, playerID string) (model.PlayerRef, error) {
	teams, err := s.src.Teams(ctx)
	if err != nil {
		return model.PlayerRef{}, fmt.Errorf("loading teams: %w", err)
	}

	for _, t := range teams {
		if !s.inLeague(t) {
			continue
		}
		for _, p := range t.Players {
			if p.ID == playerID && !s.reserved(p) {
				return s.ref(t, p), nil
			}
		}
	}
	return model.PlayerRef{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
}

// ListPlayers returns every matching player in catalog order.
func (s *Service) ListPlayers(ctx context.Context, f Filter) ([]model.PlayerRef, error) {
	teams, err := s.src.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading teams: %w", err)
	}

	players := []model.PlayerRef{}
	for _, t := range teams {
		if !s.inLeague(t) {
			continue
		}
		if f.Team != "" && !strings.EqualFold(t.Code, f.Team) && t.ID != f.Team {
			continue
		}
		for _, p := range t.Players {
			if s.reserved(p) {
				continue
			}
			if f.Role != "" && p.Role != f.Role {
				continue
			}
			players = append(players, s.ref(t, p))
		}
	}
	return players, nil
}

func (s *Service) inLeague(t Team) bool {
	return s.opts.League == "" || strings.EqualFold(t.HomeLeague, s.opts.League)
}

func (s *Service) reserved(p Player) bool {
	return s.opts.Reserved != "" && (p.Name == s.opts.Reserved || p.ID == s.opts.Reserved)
}

func (s *Service) ref(t Team, p Player) model.PlayerRef {
	return model.PlayerRef{
		ID:       p.ID,
		Name:     p.Name,
		FullName: p.FullName,
		Team:     t.Code,
		TeamName: t.Name,
		TeamID:   t.ID,
		Role:     p.Role,
		ImageURL: p.ImageURL,
		Price:    s.pricer.Quote(p.ID),
	}
}

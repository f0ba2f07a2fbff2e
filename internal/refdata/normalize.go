package refdata

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/position"
)

func normalizeTeams(raw []apiTeam) []Team {
	teams := make([]Team, 0, len(raw))
	for _, t := range raw {
		team := Team{
			ID:   t.ID,
			Code: strings.TrimSpace(t.Code),
			Name: t.Name,
		}
		if t.HomeLeague != nil {
			team.HomeLeague = t.HomeLeague.Name
		}
		for _, p := range t.Players {
			if player, ok := normalizePlayer(p); ok {
				team.Players = append(team.Players, player)
			}
		}
		teams = append(teams, team)
	}
	return teams
}

// normalizePlayer resolves the upstream fallbacks. Players without a lane
// (coaches, "none") cannot be fielded and are dropped.
func normalizePlayer(p apiPlayer) (Player, bool) {
	role, err := position.Parse(p.Role)
	if err != nil {
		log.WithFields(log.Fields{
			"player": p.ID,
			"role":   p.Role,
		}).Debug("skipping player without a lineup role")
		return Player{}, false
	}

	return Player{
		ID:       p.ID,
		Name:     firstNonEmpty(p.SummonerName, p.Name, p.ID),
		FullName: strings.TrimSpace(p.FirstName + " " + p.LastName),
		Role:     role,
		ImageURL: firstNonEmpty(p.Image, p.ProfilePhotoURL),
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

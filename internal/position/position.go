// Package position parses lane tokens into canonical roles.
//
// Upstream data and older clients disagree on the name of the bottom lane
// carry ("adc", "bottom", "bot"). The canonical token is "adc"; every synonym
// is resolved here so nothing past the boundary has to accept more than one.
package position

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lecfantasy/league-engine/internal/model"
)

// ErrUnknownRole is returned for a token that names no lane.
var ErrUnknownRole = errors.New("position: unknown role")

// synonyms maps every accepted lowercase token to its canonical role.
var synonyms = map[string]model.Role{
	"top":     model.RoleTop,
	"jungle":  model.RoleJungle,
	"jng":     model.RoleJungle,
	"mid":     model.RoleMid,
	"middle":  model.RoleMid,
	"adc":     model.RoleADC,
	"bottom":  model.RoleADC,
	"bot":     model.RoleADC,
	"support": model.RoleSupport,
	"sup":     model.RoleSupport,
	"utility": model.RoleSupport,
}

// Parse resolves a lane token, case-insensitively, to its canonical role.
func Parse(token string) (model.Role, error) {
	role, ok := synonyms[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return "", fmt.Errorf("%w: %q (expected top, jungle, mid, adc or support)", ErrUnknownRole, token)
	}
	return role, nil
}

// Valid reports whether r is one of the five canonical roles.
func Valid(r model.Role) bool {
	return r.Index() >= 0
}

package refdata

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
)

// StaticSource serves a fixed team list. Used in tests and, seeded from
// SeedSource, when no API key is configured.
type StaticSource struct {
	teams []Team
}

// NewStaticSource creates a source over the given teams.
func NewStaticSource(teams ...Team) *StaticSource {
	return &StaticSource{teams: teams}
}

// Teams returns a copy of the configured teams.
func (s *StaticSource) Teams(_ context.Context) ([]Team, error) {
	return slices.Clone(s.teams), nil
}

//go:embed seed/lec.json
var seedLEC []byte

// SeedSource returns a static source with a built-in LEC roster snapshot.
func SeedSource() (*StaticSource, error) {
	var teams []Team
	if err := json.Unmarshal(seedLEC, &teams); err != nil {
		return nil, fmt.Errorf("decode seed roster: %w", err)
	}
	return NewStaticSource(teams...), nil
}

package refdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultCacheTTL bounds how stale the cached team list may get.
const DefaultCacheTTL = 5 * time.Minute

const teamsKeyPrefix = "refdata:teams:"

// CachedSource wraps a primary TeamSource with a Redis read-through cache.
// Only team data is cached; prices are attached per lookup by Service.
// Redis failures fall through to the primary.
type CachedSource struct {
	primary TeamSource
	rdb     *redis.Client
	ttl     time.Duration
	key     string
}

// NewCachedSource creates a cached wrapper around a primary source. scope
// separates cache entries of differently configured deployments.
func NewCachedSource(primary TeamSource, rdb *redis.Client, ttl time.Duration, scope string) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		key:     teamsKey(scope),
	}
}

// Teams checks Redis first then falls back to the primary.
func (s *CachedSource) Teams(ctx context.Context) ([]Team, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == nil {
		if teams, err := decodeTeams(data); err == nil {
			return teams, nil
		}
	} else if err != redis.Nil {
		log.WithError(err).Warn("refdata cache read failed")
	}

	teams, err := s.primary.Teams(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := encodeTeams(teams); err == nil {
		if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
			log.WithError(err).Warn("refdata cache write failed")
		}
	}
	return teams, nil
}

// Invalidate drops the cached team list.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func teamsKey(scope string) string {
	if scope == "" {
		scope = "all"
	}
	return teamsKeyPrefix + scope
}

func encodeTeams(teams []Team) ([]byte, error) {
	return json.Marshal(teams)
}

func decodeTeams(data []byte) ([]Team, error) {
	var teams []Team
	if err := json.Unmarshal(data, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

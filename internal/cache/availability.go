// Package cache keeps journey availability projections in Redis so that
// repeated seat-map reads skip the ticket scan.  Every failure degrades
// to a cache miss; MySQL stays the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/train-station/internal/config"
	"github.com/iliyamo/train-station/internal/reservation"
)

// AvailabilityCache implements reservation.Cache on top of Redis.  A nil
// *AvailabilityCache, or one without a client, never hits.
type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

var _ reservation.Cache = (*AvailabilityCache)(nil)

// NewAvailabilityCache returns nil when caching is disabled or rdb is nil,
// so callers can pass the result straight to reservation.WithCache after
// a nil check.
func NewAvailabilityCache(cfg config.CacheConfig, rdb *redis.Client) *AvailabilityCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

// generationTTL outlives any read-through by far; an expired generation
// only drops entries written before it expired.
const generationTTL = 24 * time.Hour

// setIfCurrent stores a projection only while the journey generation is
// still the one the reader saw before loading from MySQL.  A commit that
// invalidated the journey in between has moved the generation on, so
// the older projection is discarded instead of cached.
var setIfCurrent = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or '0'
if cur ~= ARGV[1] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Key returns the Redis key holding the projection of journeyID.
func (c *AvailabilityCache) Key(journeyID uint64) string {
	return c.prefix + ":availability:" + strconv.FormatUint(journeyID, 10)
}

func (c *AvailabilityCache) genKey(journeyID uint64) string {
	return c.Key(journeyID) + ":gen"
}

// Get returns the cached projection and the journey generation current
// at the time of the lookup.  The generation is reported on a miss too
// so the caller can hand it back to Set.
func (c *AvailabilityCache) Get(ctx context.Context, journeyID uint64) (*reservation.Availability, uint64, bool) {
	if c == nil || c.rdb == nil {
		return nil, 0, false
	}
	vals, err := c.rdb.MGet(ctx, c.Key(journeyID), c.genKey(journeyID)).Result()
	if err != nil || len(vals) != 2 {
		log.Printf("cache: get journey %d: %v", journeyID, err)
		return nil, 0, false
	}
	var gen uint64
	if g, ok := vals[1].(string); ok {
		gen, _ = strconv.ParseUint(g, 10, 64)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var a reservation.Availability
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		log.Printf("cache: decode journey %d: %v", journeyID, err)
		return nil, gen, false
	}
	if a.TakenSeats == nil {
		a.TakenSeats = map[int][]int{}
	}
	return &a, gen, true
}

// Set caches a if the journey is still at generation gen.
func (c *AvailabilityCache) Set(ctx context.Context, a *reservation.Availability, gen uint64) {
	if c == nil || c.rdb == nil || a == nil {
		return
	}
	bs, err := json.Marshal(a)
	if err != nil {
		return
	}
	keys := []string{c.Key(a.JourneyID), c.genKey(a.JourneyID)}
	err = setIfCurrent.Run(ctx, c.rdb, keys, strconv.FormatUint(gen, 10), string(bs), c.ttl.Milliseconds()).Err()
	if err != nil {
		log.Printf("cache: set journey %d: %v", a.JourneyID, err)
	}
}

// Invalidate moves the generation of every given journey forward and
// deletes its projection.  It uses a fresh context so that a cancelled
// request still clears the entries of an order it committed.
func (c *AvailabilityCache) Invalidate(_ context.Context, journeyIDs ...uint64) {
	if c == nil || c.rdb == nil || len(journeyIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range journeyIDs {
			p.Incr(ctx, c.genKey(id))
			p.Expire(ctx, c.genKey(id), generationTTL)
			p.Del(ctx, c.Key(id))
		}
		return nil
	})
	if err != nil {
		log.Printf("cache: invalidate %v: %v", journeyIDs, err)
	}
}

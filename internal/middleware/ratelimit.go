package middleware

import (
    "bytes"
    "encoding/json"
    "fmt"
    "io"
    "math"
    "net/http"
    "sort"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/train-station/internal/config"
)

// maxOrderBody caps how much of an order body the limiter reads.
const maxOrderBody = 1 << 20

// spendSeats checks every bucket in KEYS before touching any of them, so
// an order is charged on all its journeys or on none.
//
//  ARGV[1] now in ms        ARGV[2] seat budget
//  ARGV[3] refill in ms     ARGV[4] idle ttl in ms
//  ARGV[4+i] seats charged to KEYS[i]
//
// Returns {1, lowest remaining} or {0, ms until the order fits}.
var spendSeats = redis.NewScript(`
local now = tonumber(ARGV[1])
local budget = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local left, stamp = {}, {}
local wait = 0
for i, key in ipairs(KEYS) do
    local st = redis.call('HMGET', key, 'seats', 'stamp_ms')
    local seats = tonumber(st[1]) or budget
    local ts = tonumber(st[2]) or now
    local back = math.floor(math.max(0, now - ts) / refill)
    if back > 0 then
        seats = math.min(budget, seats + back)
        ts = ts + back * refill
    end
    local cost = tonumber(ARGV[4 + i])
    if seats < cost then
        local w = (cost - seats) * refill - (now - ts)
        if w > wait then wait = w end
    end
    left[i] = seats - cost
    stamp[i] = ts
end
if wait > 0 then
    return {0, wait}
end

local lowest = budget
for i, key in ipairs(KEYS) do
    redis.call('HSET', key, 'seats', left[i], 'stamp_ms', stamp[i])
    redis.call('PEXPIRE', key, ttl)
    if left[i] < lowest then lowest = left[i] end
end
return {1, lowest}
`)

// seatLimiter charges order placement by the number of tickets in the
// order rather than by request.
type seatLimiter struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
    now func() time.Time
}

// NewSeatLimiter guards POST /v1/orders with Redis seat buckets.  It is
// a no-op when disabled or when rdb is nil, and lets orders through if
// Redis fails.  Orders that do not fit get 429 with a Retry-After
// header naming when they would.
func NewSeatLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    l := &seatLimiter{cfg: cfg, rdb: rdb, now: time.Now}
    return l.middleware
}

func (l *seatLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        journeys, err := peekJourneys(c)
        if err != nil || len(journeys) == 0 {
            // The handler answers malformed and empty orders.
            return next(c)
        }
        keys, costs := seatBuckets(l.cfg, ownerKey(c), journeys)

        args := make([]interface{}, 0, 4+len(costs))
        args = append(args,
            l.now().UnixMilli(),
            l.cfg.SeatBudget,
            l.cfg.RefillEvery.Milliseconds(),
            l.cfg.IdleTTL().Milliseconds(),
        )
        for _, n := range costs {
            args = append(args, n)
        }

        res, err := spendSeats.Run(c.Request().Context(), l.rdb, keys, args...).Int64Slice()
        if err != nil || len(res) != 2 {
            if l.cfg.Debug {
                c.Logger().Warnf("[ratelimit] seat buckets %v unavailable: %v", keys, err)
            }
            return next(c)
        }

        h := c.Response().Header()
        h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.SeatBudget))
        if res[0] == 1 {
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            return next(c)
        }

        secs := int(math.Ceil(float64(res[1]) / 1000.0))
        h.Set("X-RateLimit-Remaining", "0")
        h.Set("Retry-After", strconv.Itoa(secs))
        if l.cfg.Debug {
            c.Logger().Infof("[ratelimit] block %v costs=%v retry=%dms", keys, costs, res[1])
        }
        return c.JSON(http.StatusTooManyRequests, echo.Map{
            "error":       "too many seats booked, retry later",
            "code":        "too_many_requests",
            "retry_after": secs,
        })
    }
}

// peekJourneys returns the journey of every ticket in the order body and
// puts the body back for the handler.
func peekJourneys(c echo.Context) ([]uint64, error) {
    req := c.Request()
    if req.Body == nil {
        return nil, nil
    }
    raw, err := io.ReadAll(io.LimitReader(req.Body, maxOrderBody))
    _ = req.Body.Close()
    req.Body = io.NopCloser(bytes.NewReader(raw))
    if err != nil {
        return nil, err
    }
    var body struct {
        Tickets []struct {
            Journey uint64 `json:"journey"`
        } `json:"tickets"`
    }
    if err := json.Unmarshal(raw, &body); err != nil {
        return nil, err
    }
    out := make([]uint64, len(body.Tickets))
    for i, t := range body.Tickets {
        out[i] = t.Journey
    }
    return out, nil
}

// seatBuckets maps an order onto bucket keys and the seats charged to
// each.  A single owner bucket is charged the whole order; per-journey
// buckets are charged the tickets on their journey, keys in ascending
// journey order.  No bucket is charged more than the budget, so an
// order larger than the budget needs a full bucket instead of failing
// forever.
func seatBuckets(cfg config.RateLimitConfig, owner string, journeys []uint64) ([]string, []int) {
    base := fmt.Sprintf("%s:seats:owner:%s", cfg.Prefix, owner)
    clamp := func(n int) int {
        if n > cfg.SeatBudget {
            return cfg.SeatBudget
        }
        return n
    }
    if !cfg.PerJourney {
        return []string{base}, []int{clamp(len(journeys))}
    }

    perJourney := make(map[uint64]int, len(journeys))
    for _, j := range journeys {
        perJourney[j]++
    }
    ids := make([]uint64, 0, len(perJourney))
    for j := range perJourney {
        ids = append(ids, j)
    }
    sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

    keys := make([]string, len(ids))
    costs := make([]int, len(ids))
    for i, j := range ids {
        keys[i] = base + ":journey:" + strconv.FormatUint(j, 10)
        costs[i] = clamp(perJourney[j])
    }
    return keys, costs
}

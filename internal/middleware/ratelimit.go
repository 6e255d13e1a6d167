package middleware

import (
    "context"
    "fmt"
    "log"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/watch-party/internal/config"
)

// bucketScript refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key      = KEYS[1]
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local every    = tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])

local st     = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(st[1]) or capacity
local last   = tonumber(st[2]) or now

if every > 0 and refill > 0 and now > last then
    local n = math.floor((now - last) / every)
    if n > 0 then
        tokens = math.min(capacity, tokens + n * refill)
        last = last + n * every
    end
end

local allowed, wait = 0, 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', key, ttl)
return { allowed, tokens, wait }
`)

// decision is the outcome of one token request.
type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// tokenBucket is a Redis-backed token bucket shared by every replica.
type tokenBucket struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
    now func() time.Time
}

func (b *tokenBucket) take(ctx context.Context, key string) (decision, error) {
    vals, err := bucketScript.Run(ctx, b.rdb, []string{key},
        b.now().UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL/time.Second),
    ).Slice()
    if err != nil {
        return decision{}, err
    }
    if len(vals) != 3 {
        return decision{}, fmt.Errorf("unexpected script result %#v", vals)
    }
    return decision{
        allowed:   asInt64(vals[0]) == 1,
        remaining: asInt64(vals[1]),
        retry:     time.Duration(asInt64(vals[2])) * time.Millisecond,
    }, nil
}

// NewTokenBucket limits requests with a Redis-backed token bucket.  Buckets
// are keyed per cfg.KeyStrategy; for membership routes the "user_route"
// strategy gives every client its own bucket per endpoint.  Redis errors
// let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    b := &tokenBucket{cfg: cfg, rdb: rdb, now: time.Now}
    return b.middleware
}

func (b *tokenBucket) middleware(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        key := buildRateKey(b.cfg, c)
        d, err := b.take(c.Request().Context(), key)
        if err != nil {
            if b.cfg.Debug {
                log.Printf("ratelimit: key=%s: %v", key, err)
            }
            return next(c)
        }

        h := c.Response().Header()
        h.Set("X-RateLimit-Limit", strconv.Itoa(b.cfg.Capacity))
        h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
        if b.cfg.Debug {
            h.Set("X-RateLimit-Key", key)
        }
        if d.allowed {
            return next(c)
        }

        secs := int(math.Ceil(d.retry.Seconds()))
        h.Set("Retry-After", strconv.Itoa(secs))
        return c.JSON(http.StatusTooManyRequests, echo.Map{
            "error":       "rate limit exceeded",
            "code":        "too_many_requests",
            "retryable":   true,
            "retry_after": secs,
        })
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := userID(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}

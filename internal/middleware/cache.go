package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/watch-party/internal/config"
)

// captureWriter tees the response into buf until limit bytes have been
// seen; overflow marks the response as too large to cache.
type captureWriter struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int64
    overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.overflow {
        if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
            cw.overflow = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// Cache groups.  Writes to parties drop every cached party listing, and so on.
const (
    CacheGroupParties = "parties"
    CacheGroupMovies  = "movies"
)

// Build a stable cache key honoring prefix/group/strategy.
func cacheKeyFrom(cfg config.CacheConfig, group string, c echo.Context) string {
    r := c.Request()
    method := r.Method
    route := r.URL.Path
    query := r.URL.RawQuery

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", route)
    case "method_route":
        parts = append(parts, "method", method, "route", route)
    case "method_route_query":
        parts = append(parts, "method", method, "route", route, "q", query)
    default: // "route_query"
        parts = append(parts, "route", route, "q", query)
    }

    tail := strings.Join(parts[1:], ":")
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%s:%x", parts[0], group, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    total := 4 + 4 + len(hdrJSON) + len(body)
    out := make([]byte, total)
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if 8+hlen > len(bs) || hlen < 0 {
        return 0, nil, nil, false
    }
    var hdr http.Header
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    } else {
        hdr = make(http.Header)
    }
    body = bs[8+hlen:]
    return status, hdr, body, true
}

// responseCache serves one cache group.
type responseCache struct {
    cfg   config.CacheConfig
    rdb   *redis.Client
    group string
    ttl   time.Duration
}

// NewRedisCache caches successful responses of the wrapped routes under
// group.  It stores headers and body so a HIT is byte-identical to the MISS
// that filled it.  Responses larger than cfg.MaxBodyBytes are not stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, group string) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    rc := &responseCache{cfg: cfg, rdb: rdb, group: group, ttl: cfg.TTLFor(group)}
    if rc.ttl <= 0 {
        rc.ttl = 30 * time.Second
    }
    return rc.middleware
}

func (rc *responseCache) middleware(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
            return next(c)
        }
        key := cacheKeyFrom(rc.cfg, rc.group, c)
        if rc.serveHit(c, key) {
            return nil
        }

        cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
        c.Response().Writer = cw
        c.Response().Header().Set("X-Cache", "MISS")
        if err := next(c); err != nil {
            return err
        }
        if cw.status == http.StatusOK && !cw.overflow {
            rc.store(key, c.Response().Header().Clone(), cw.buf.Bytes())
        }
        return nil
    }
}

// serveHit writes the cached response for key, if any.
func (rc *responseCache) serveHit(c echo.Context, key string) bool {
    bs, err := rc.rdb.Get(c.Request().Context(), key).Bytes()
    if err != nil {
        if !errors.Is(err, redis.Nil) {
            log.Printf("cache: get %s failed: %v", rc.group, err)
        }
        return false
    }
    status, hdr, body, ok := decodePayload(bs)
    if !ok {
        return false
    }
    out := c.Response().Header()
    for k, vals := range hdr {
        if strings.EqualFold(k, "Content-Length") {
            continue
        }
        for _, v := range vals {
            out.Add(k, v)
        }
    }
    out.Set("X-Cache", "HIT")
    c.Response().WriteHeader(status)
    if len(body) > 0 {
        _, _ = c.Response().Write(body)
    }
    return true
}

// store runs detached from the request so a client hanging up does not
// drop the entry.
func (rc *responseCache) store(key string, hdr http.Header, body []byte) {
    hdr.Del("X-Cache")
    payload, err := encodePayload(http.StatusOK, hdr, body)
    if err != nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    if err := rc.rdb.SetEx(ctx, key, payload, rc.ttl).Err(); err != nil {
        log.Printf("cache: set %s failed: %v", rc.group, err)
    }
}


// CacheInvalidator drops cached responses after writes.  A nil
// *CacheInvalidator is valid and does nothing.
type CacheInvalidator struct {
    cfg config.CacheConfig
    rdb *redis.Client
}

// NewCacheInvalidator returns nil when caching is off.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client) *CacheInvalidator {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return &CacheInvalidator{cfg: cfg, rdb: rdb}
}

// Invalidate deletes every entry of the given groups.  Keys are found with
// SCAN so Redis is never blocked by KEYS.  Failures are logged only; stale
// entries still expire after the TTL.
func (ci *CacheInvalidator) Invalidate(ctx context.Context, groups ...string) {
    if ci == nil {
        return
    }
    for _, g := range groups {
        var cursor uint64
        for {
            keys, next, err := ci.rdb.Scan(ctx, cursor, ci.cfg.Prefix+":"+g+":*", 100).Result()
            if err != nil {
                log.Printf("cache: scan %s failed: %v", g, err)
                break
            }
            if len(keys) > 0 {
                if err := ci.rdb.Del(ctx, keys...).Err(); err != nil {
                    log.Printf("cache: delete %s failed: %v", g, err)
                }
            }
            if next == 0 {
                break
            }
            cursor = next
        }
    }
}

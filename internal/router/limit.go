package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// LimiterConfig is a token bucket per client key.
type LimiterConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one in-memory token bucket per client IP.
type RateLimiter struct {
	conf    LimiterConfig
	mu      sync.Mutex
	buckets map[string]*keyLimiter
}

// NewRateLimiter starts a janitor that drops idle buckets until ctx is done.
func NewRateLimiter(ctx context.Context, conf LimiterConfig) *RateLimiter {
	if conf.IdleTTL <= 0 {
		conf.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{conf: conf, buckets: make(map[string]*keyLimiter)}
	go rl.janitor(ctx)
	return rl
}

func (rl *RateLimiter) janitor(ctx context.Context) {
	ticker := time.NewTicker(rl.conf.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.conf.IdleTTL {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.conf.RPS), rl.conf.Burst)
	rl.buckets[key] = &keyLimiter{limiter: lim, lastSeen: now}
	return lim
}

// Middleware answers 429 with Retry-After once a client drains its bucket.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.limiter(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				utilities.WriteJSON(w, http.StatusTooManyRequests, utilities.ErrorBody{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// QuotaRule caps authenticated requests per user over a fixed window.
type QuotaRule struct {
	Limit  int
	Window time.Duration
}

// Quota counts requests per authenticated user in redis. It must run after
// auth.Require. Anonymous requests and redis outages pass through.
func Quota(rdb *redis.Client, rule QuotaRule, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rdb == nil || rule.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := "quota:user:" + userID
			// INCR and EXPIRE NX run as one MULTI so a counter can never be
			// left without a window
			var incr *redis.IntCmd
			var ttl *redis.DurationCmd
			_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				pipe.ExpireNX(ctx, key, rule.Window)
				ttl = pipe.TTL(ctx, key)
				return nil
			})
			if err != nil {
				logger.Warnw("quota check skipped", "user_id", userID, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			n := incr.Val()
			if n > int64(rule.Limit) {
				if left := ttl.Val(); left > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(left.Seconds())+1))
				}
				utilities.WriteJSON(w, http.StatusTooManyRequests, utilities.ErrorBody{Error: "usage quota exceeded"})
				return
			}
			w.Header().Set("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
			next.ServeHTTP(w, r)
		})
	}
}

package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL 超过该时长没有请求的 IP 会被清理
	limiterIdleTTL = 10 * time.Minute
	sweepInterval  = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端 IP 限流
type RateLimiter struct {
	visitors  map[string]*visitor
	mu        sync.Mutex
	r         rate.Limit
	b         int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(conf config.RateLimit) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		r:         rate.Limit(conf.RequestsPerSecond),
		b:         conf.Burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweep(now)
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep 清理空闲的 IP, 调用方需持有锁
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// Limit 超出限额时返回 429
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := helper.GetClientIP(r)
		if !rl.getLimiter(ip).Allow() {
			helper.Debug(helper.LogTypeAPI, "请求过于频繁: %s %s", ip, r.URL.Path)
			helper.ReturnJSON(w, http.StatusTooManyRequests, errorBody{Error: "请求过于频繁，请稍后再试"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

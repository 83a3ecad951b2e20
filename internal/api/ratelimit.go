package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter admits up to limit requests per client IP in each fixed
// window. Idle clients are swept on a later request, so nothing runs in
// the background.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter allows limit requests per window for each IP.
func NewRateLimiter(limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  per,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// Take consumes one request for ip. When refused it returns how long until
// the window reopens.
func (rl *RateLimiter) Take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, ok := rl.clients[ip]
	if !ok || now.Sub(w.start) >= rl.window {
		w = &window{start: now}
		rl.clients[ip] = w
	}
	if w.used >= rl.limit {
		return false, w.start.Add(rl.window).Sub(now)
	}
	w.used++
	return true, 0
}

// sweep drops clients idle for two windows, at most once per window.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for ip, w := range rl.clients {
		if now.Sub(w.start) > 2*rl.window {
			delete(rl.clients, ip)
		}
	}
}

// Middleware answers 429 with Retry-After once a client is over the limit.
// chi's RealIP has already rewritten RemoteAddr for proxied requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := rl.Take(clientIP(r))
		if !ok {
			secs := int(retry/time.Second) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

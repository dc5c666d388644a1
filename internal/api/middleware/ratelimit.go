package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

type visitors struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byIP  map[string]*limiterEntry
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	le, ok := v.byIP[ip]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.byIP[ip] = le
	}
	le.last = now
	return le.limiter.AllowN(now, 1)
}

func (v *visitors) gc(idle time.Duration, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, e := range v.byIP {
		if now.Sub(e.last) > idle {
			delete(v.byIP, k)
		}
	}
}

func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies a per-IP token bucket. Idle buckets are dropped after
// ten minutes.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	v := &visitors{rps: rate.Limit(rps), burst: burst, byIP: map[string]*limiterEntry{}}
	gcTicker := time.NewTicker(5 * time.Minute)
	go func() {
		for now := range gcTicker.C {
			v.gc(10*time.Minute, now)
		}
	}()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.allow(getIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				deny(w, http.StatusTooManyRequests, "rate_limited", http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit allows Requests per Window from one client address. A zero
// Requests disables the limit.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

const (
	tooManyRequests = "Too many requests from this IP, please try again later."
	tooManyUploads  = "Too many uploads from this IP, please try again later."
)

// ipLimiter keeps one token bucket per client address. Buckets hold Requests
// tokens and refill over Window; idle buckets are swept once per window.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	message string
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	bucket *rate.Limiter
	seen   time.Time
}

// newIPLimiter returns nil when cfg disables limiting.
func newIPLimiter(cfg RateLimit, message string) *ipLimiter {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &ipLimiter{
		limit:   rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:   cfg.Requests,
		window:  cfg.Window,
		message: message,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

func (l *ipLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for k, c := range l.clients {
			if now.Sub(c.seen) >= l.window {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	return c.bucket.AllowN(now, 1)
}

// middleware rejects requests over the limit with 429.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: l.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ipLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return l.middleware(next).ServeHTTP
}

// clientAddr is the request's remote host without the port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

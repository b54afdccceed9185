package router

import (
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/jonboulle/clockwork"
)

// RateLimitedMessage is written to connections refused by the limiter.
const RateLimitedMessage = "rate limit exceeded\n"

type ipBucket struct {
	tokens float64
	last   time.Time
}

type limiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[string]ipBucket
}

func (l *limiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = ipBucket{tokens: l.burst, last: now}
	}
	if elapsed := now.Sub(bucket.last).Seconds(); elapsed > 0 {
		bucket.tokens = min(bucket.tokens+elapsed*l.rate, l.burst)
		bucket.last = now
	}
	if bucket.tokens < 1 {
		l.buckets[ip] = bucket
		return false
	}
	bucket.tokens--
	l.buckets[ip] = bucket
	return true
}

// RateLimitMiddleware admits new connections per remote IP through a token
// bucket refilled at perSecond and capped at burst.
func RateLimitMiddleware(perSecond, burst int, clock clockwork.Clock, logger *log.Logger) wish.Middleware {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = perSecond
	}
	l := &limiter{rate: float64(perSecond), burst: float64(burst), buckets: map[string]ipBucket{}}

	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			now := clock.Now()
			ip := remoteIP(s)
			if !l.allow(ip, now) {
				logger.Warn("connection throttled", "event", "rate_limit_throttled", "remote", ip)
				_, _ = s.Write([]byte(RateLimitedMessage))
				_ = s.Exit(1)
				return
			}
			next(s)
		}
	}
}

func remoteIP(s ssh.Session) string {
	remote := s.RemoteAddr()
	if remote == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		return remote.String()
	}
	if host == "" {
		return "unknown"
	}
	return host
}

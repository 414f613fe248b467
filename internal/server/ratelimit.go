package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitIdleTTL       = 10 * time.Minute
	rateLimitSweepInterval = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientRateLimiter keeps one token bucket per client address.
type clientRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	clock     func() time.Time
	lastSweep time.Time
}

func newClientRateLimiter(requestsPerSecond float64, burst int, clock func() time.Time) *clientRateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &clientRateLimiter{
		clients:   make(map[string]*clientLimiter),
		limit:     rate.Limit(requestsPerSecond),
		burst:     burst,
		clock:     clock,
		lastSweep: clock(),
	}
}

func (l *clientRateLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.lastSweep) >= rateLimitSweepInterval {
		for key, client := range l.clients {
			if now.Sub(client.lastSeen) >= rateLimitIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	client, ok := l.clients[clientKey]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientKey] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

func (l *clientRateLimiter) middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.allow(clientIP) {
			logger.Info("request rate limited",
				zap.String("client_ip", clientIP),
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

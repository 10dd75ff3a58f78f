package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		}
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.ErrorContext(ctx, "http request completed", fields...)
		case status >= 400:
			logger.WarnContext(ctx, "http request completed", fields...)
		default:
			logger.InfoContext(ctx, "http request completed", fields...)
		}
	}
}

// maxTrackedClients bounds the limiter table. Idle entries are evicted once
// it is reached.
const (
	maxTrackedClients = 10000
	clientIdleAfter   = 10 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies one token bucket per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{clients: make(map[string]*client), limit: rate.Limit(rps), burst: burst}
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) >= maxTrackedClients {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > clientIdleAfter {
				delete(l.clients, k)
			}
		}
	}
	cl, ok := l.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (l *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			err := apperr.New(apperr.KindThrottled, "http.RateLimit", "Too many requests, slow down")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody(err))
			return
		}
		c.Next()
	}
}

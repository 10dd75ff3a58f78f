// Package session assigns every browser an opaque user identifier and keeps
// it in a signed session.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sh3r4rd/mycloud/internal/config"
)

// Key is both the session value and the gin context key holding the user ID.
const Key = "user_id"

const redisPoolSize = 10

// NewStore builds the session backend selected by cfg.Store.
func NewStore(cfg config.SessionConfig) (sessions.Store, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is not set")
	}
	var store sessions.Store
	switch cfg.Store {
	case config.SessionRedis:
		rs, err := redis.NewStore(redisPoolSize, "tcp", cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, []byte(cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		store = rs
	case config.SessionCookie, "":
		store = cookie.NewStore([]byte(cfg.Secret))
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// Identity ensures the session carries a user ID, minting one on first visit.
// When the new ID cannot be saved the request continues without one and
// handlers that need it reject the request.
func Identity(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if id, ok := sess.Get(Key).(string); ok && id != "" {
			c.Set(Key, id)
			c.Next()
			return
		}

		id := uuid.NewString()
		sess.Set(Key, id)
		if err := sess.Save(); err != nil {
			logger.WarnContext(c.Request.Context(), "session save failed", "error", err)
			c.Next()
			return
		}
		logger.DebugContext(c.Request.Context(), "session created", "user_id", id)
		c.Set(Key, id)
		c.Next()
	}
}

// UserID returns the identity set by Identity.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(Key)
	return id, id != ""
}

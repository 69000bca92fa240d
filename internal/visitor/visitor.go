// Package visitor gives every browser a stable anonymous id, carried in a
// cookie, that keys its settings, last destination and proxy sessions.
package visitor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

const contextKey = "visitor_id"

// Options configures the cookie.
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Middleware reuses a valid id from the cookie or issues a new one, and
// stores it on the gin and request contexts.
func Middleware(opts Options) gin.HandlerFunc {
	if opts.CookieName == "" {
		opts.CookieName = "sp_vid"
	}
	maxAge := int(opts.MaxAge / time.Second)

	return func(c *gin.Context) {
		id, err := c.Cookie(opts.CookieName)
		if err != nil || !valid(id) {
			id = uuid.NewString()
		}

		// refresh on every response so the year-long expiry slides
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     opts.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   maxAge,
			Secure:   opts.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		c.Set(contextKey, id)
		c.Request = c.Request.WithContext(logger.WithVisitorID(c.Request.Context(), id))
		c.Next()
	}
}

func valid(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 4 && len(id) == 36
}

// ID returns the visitor id set by Middleware, or "" outside it.
func ID(c *gin.Context) string {
	return c.GetString(contextKey)
}

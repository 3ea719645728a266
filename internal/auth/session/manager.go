package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carebridge/internal/config"
)

const (
	DefaultCookieName = "_sid"

	bearerPrefix = "Bearer "
)

// Manager moves session tokens between the client and the auth service.
// Browsers carry the token in an HttpOnly cookie; API clients send it as a
// bearer credential.
type Manager struct {
	cookieName string
	secure     bool
	ttl        time.Duration
	now        func() time.Time
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		ttl:        cfg.SessionTTL,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken prefers the cookie and falls back to the Authorization header.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(m.cookieName); err == nil {
		if token = strings.TrimSpace(token); token != "" {
			return token, true
		}
	}
	return bearerToken(c.GetHeader("Authorization"))
}

// Set writes the session cookie. A zero expiry falls back to the configured
// session TTL.
func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	if expiresAt.IsZero() && m.ttl > 0 {
		expiresAt = m.now().Add(m.ttl)
	}
	maxAge := int(expiresAt.Sub(m.now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/stretchr/testify/assert"
)

func newContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestReadTokenPrefersCookie(t *testing.T) {
	m := NewManager(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	c, _ := newContext(req)

	token, ok := m.ReadToken(c)
	assert.True(t, ok)
	assert.Equal(t, "from-cookie", token)
}

func TestReadTokenFallsBackToBearer(t *testing.T) {
	m := NewManager(config.Config{})
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":      {header: "Bearer abc", token: "abc", ok: true},
		"lower case":  {header: "bearer abc", token: "abc", ok: true},
		"empty token": {header: "Bearer   ", ok: false},
		"basic":       {header: "Basic abc", ok: false},
		"missing":     {header: "", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			c, _ := newContext(req)

			token, ok := m.ReadToken(c)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestSetUsesTTLWhenExpiryMissing(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(config.Config{SessionTTL: time.Hour, AuthCookieSecure: true})
	m.now = func() time.Time { return now }
	c, w := newContext(httptest.NewRequest(http.MethodPost, "/", nil))

	m.Set(c, "tok", time.Time{})

	cookies := w.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		assert.Equal(t, DefaultCookieName, cookies[0].Name)
		assert.Equal(t, 3600, cookies[0].MaxAge)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
	}
}

package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carebridge/internal/auditcontext"
	"github.com/smallbiznis/carebridge/internal/identity"
	"github.com/smallbiznis/carebridge/pkg/log/ctxlogger"
)

const contextUserIDKey = "user_id"

// RequestMeta stores the client address and user agent for audit entries.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auditcontext.WithRequestMeta(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthRequired resolves the session cookie, or a bearer token for API
// clients, into the caller identity every workflow reads.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessionToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, session.UserID)
		ctx := identity.WithUser(c.Request.Context(), session.UserID)
		c.Request = c.Request.WithContext(ctxlogger.ContextWithActor(ctx, session.UserID.String()))
		c.Next()
	}
}

func (s *Server) sessionToken(c *gin.Context) (string, bool) {
	return s.sessions.ReadToken(c)
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	raw, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := raw.(snowflake.ID)
	return userID, ok && userID != 0
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return id, nil
}

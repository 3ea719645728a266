package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
)

// authorizeCurrentOrg resolves the caller's organization and checks the
// role policy for object and action within it.
func (s *Server) authorizeCurrentOrg(c *gin.Context, object string, action string) (snowflake.ID, error) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		return 0, ErrUnauthorized
	}

	profile, err := s.profileSvc.Current(c.Request.Context())
	if err != nil {
		return 0, err
	}
	if profile.OrganizationID == nil {
		return 0, organizationdomain.ErrNoOrganization
	}

	orgID := *profile.OrganizationID
	if err := s.authzSvc.AuthorizeUser(c.Request.Context(), userID, orgID, object, action); err != nil {
		return 0, err
	}
	return orgID, nil
}

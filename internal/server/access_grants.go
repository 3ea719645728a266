package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	accessgrantdomain "github.com/smallbiznis/carebridge/internal/accessgrant/domain"
)

type RequestAccessRequest struct {
	ShareToken  string   `json:"share_token"`
	Message     string   `json:"message"`
	Permissions []string `json:"permissions"`
}

type ApproveAccessRequest struct {
	Permissions   []string `json:"permissions"`
	ExpiresInDays *int     `json:"expires_in_days"`
}

type DenyAccessRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RequestAccess(c *gin.Context) {
	var req RequestAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.accessGrantSvc.Request(c.Request.Context(), accessgrantdomain.RequestAccess{
		ShareToken:  req.ShareToken,
		Message:     req.Message,
		Permissions: toPermissions(req.Permissions),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyGranted {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (s *Server) ListMyAccessGrants(c *gin.Context) {
	views, err := s.accessGrantSvc.ListMine(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) ListPendingAccessGrants(c *gin.Context) {
	views, err := s.accessGrantSvc.ListPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) ListPatientAccessGrants(c *gin.Context) {
	patientID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views, err := s.accessGrantSvc.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) ApproveAccessGrant(c *gin.Context) {
	grantID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ApproveAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	grant, err := s.accessGrantSvc.Approve(c.Request.Context(), grantID, accessgrantdomain.ApproveRequest{
		Permissions:   toPermissions(req.Permissions),
		ExpiresInDays: req.ExpiresInDays,
	})
	s.respondGrant(c, grant, err)
}

func (s *Server) DenyAccessGrant(c *gin.Context) {
	grantID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req DenyAccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	grant, err := s.accessGrantSvc.Deny(c.Request.Context(), grantID, req.Reason)
	s.respondGrant(c, grant, err)
}

func (s *Server) RevokeAccessGrant(c *gin.Context) {
	grantID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	grant, err := s.accessGrantSvc.Revoke(c.Request.Context(), grantID)
	s.respondGrant(c, grant, err)
}

func (s *Server) respondGrant(c *gin.Context, grant *accessgrantdomain.TokenAccessGrant, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": grant})
}

func toPermissions(raw []string) []accessgrantdomain.Permission {
	if raw == nil {
		return nil
	}
	out := make([]accessgrantdomain.Permission, 0, len(raw))
	for _, p := range raw {
		out = append(out, accessgrantdomain.Permission(p))
	}
	return out
}

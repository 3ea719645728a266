package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	partnershipdomain "github.com/smallbiznis/carebridge/internal/partnership/domain"
)

type CreatePartnershipRequest struct {
	PartnerEmail string `json:"partner_email"`
}

type RespondPartnershipRequest struct {
	Token string `json:"token"`
}

func (s *Server) CreatePartnership(c *gin.Context) {
	var req CreatePartnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.partnershipSvc.Create(c.Request.Context(), partnershipdomain.CreateRequest{
		PartnerEmail: req.PartnerEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListPartnerships(c *gin.Context) {
	views, err := s.partnershipSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) AcceptPartnership(c *gin.Context) {
	var req RespondPartnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partnership, err := s.partnershipSvc.Accept(c.Request.Context(), req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": partnership})
}

func (s *Server) RejectPartnership(c *gin.Context) {
	var req RespondPartnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partnership, err := s.partnershipSvc.Reject(c.Request.Context(), req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": partnership})
}

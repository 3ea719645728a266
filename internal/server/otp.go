package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type VerifyOTPRequest struct {
	Code string `json:"code"`
}

func (s *Server) GenerateOTP(c *gin.Context) {
	result, err := s.otpSvc.Generate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.otpSvc.Verify(c.Request.Context(), req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ResendOTP(c *gin.Context) {
	result, err := s.otpSvc.Resend(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) OTPStatus(c *gin.Context) {
	result, err := s.otpSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

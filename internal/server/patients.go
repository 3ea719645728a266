package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	accessgrantdomain "github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	patientdomain "github.com/smallbiznis/carebridge/internal/patient/domain"
)

type CreatePatientRequest struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	DateOfBirth         string `json:"date_of_birth"`
	MedicalRecordNumber string `json:"medical_record_number"`
}

type CreateShareRequest struct {
	ExpiresInDays *int `json:"expires_in_days"`
}

func (s *Server) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var dob *time.Time
	if raw := strings.TrimSpace(req.DateOfBirth); raw != "" {
		parsed, err := time.Parse(dateOnlyLayout, raw)
		if err != nil {
			AbortWithError(c, newValidationError("date_of_birth", "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD"))
			return
		}
		dob = &parsed
	}

	patient, err := s.patientSvc.Create(c.Request.Context(), patientdomain.CreateRequest{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		DateOfBirth:         dob,
		MedicalRecordNumber: req.MedicalRecordNumber,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": patient})
}

func (s *Server) GetPatient(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	patient, err := s.patientSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": patient})
}

func (s *Server) CreatePatientShare(c *gin.Context) {
	patientID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.accessGrantSvc.CreateShare(c.Request.Context(), patientID, accessgrantdomain.CreateShareRequest{
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) RevokePatientShare(c *gin.Context) {
	shareID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.accessGrantSvc.RevokeShare(c.Request.Context(), shareID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

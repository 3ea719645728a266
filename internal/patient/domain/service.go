package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Patient, error)
	// Get returns the patient to members of the owning organization and to
	// holders of an approved grant with the view permission.
	Get(ctx context.Context, id snowflake.ID) (*Patient, error)
}

// AccessChecker decides cross-organization read access.
type AccessChecker interface {
	CheckAccess(ctx context.Context, patientID snowflake.ID, permission string) (bool, error)
}

type CreateRequest struct {
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	DateOfBirth         *time.Time `json:"date_of_birth"`
	MedicalRecordNumber string     `json:"medical_record_number"`
}

var (
	ErrPatientNotFound = errs.New(errs.KindNotFound, "patient not found")
	ErrInvalidName     = errs.New(errs.KindInvalidArgument, "first and last name are required")
	ErrNoOrganization  = errs.New(errs.KindNotFound, "you do not belong to an organization")
)

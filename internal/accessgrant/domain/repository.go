package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateShare(ctx context.Context, share *PatientShare) error
	FindShareByID(ctx context.Context, id snowflake.ID) (*PatientShare, error)
	FindShareByToken(ctx context.Context, token string) (*PatientShare, error)
	ShareTokenExists(ctx context.Context, token string) (bool, error)
	DeactivateShare(ctx context.Context, id snowflake.ID, fields map[string]any) error

	CreateGrant(ctx context.Context, grant *TokenAccessGrant) error
	FindGrantByID(ctx context.Context, id snowflake.ID) (*TokenAccessGrant, error)
	// ListActiveForRequester returns active pending or approved grants of one
	// requester on one patient.
	ListActiveForRequester(ctx context.Context, patientID, userID snowflake.ID) ([]TokenAccessGrant, error)
	// Transition applies fields only while the grant is still in from. It
	// reports false when another writer moved the grant first.
	Transition(ctx context.Context, id snowflake.ID, from Status, fields map[string]any) (bool, error)
	ListByPatient(ctx context.Context, patientID snowflake.ID) ([]TokenAccessGrant, error)
	ListByRequester(ctx context.Context, userID snowflake.ID) ([]TokenAccessGrant, error)
	ListPendingForGrantor(ctx context.Context, orgID snowflake.ID) ([]TokenAccessGrant, error)
}

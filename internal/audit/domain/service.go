package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	ActionOrganizationCreated    = "organization.created"
	ActionMemberRemoved          = "organization.member_removed"
	ActionInvitationIssued       = "invitation.issued"
	ActionInvitationAccepted     = "invitation.accepted"
	ActionInvitationCancelled    = "invitation.cancelled"
	ActionPartnershipCreated     = "partnership.created"
	ActionPartnershipAccepted    = "partnership.accepted"
	ActionPartnershipRejected    = "partnership.rejected"
	ActionPasswordResetRequested = "password_reset.requested"
	ActionPasswordResetCompleted = "password_reset.completed"
	ActionOTPVerified            = "otp.verified"
	ActionShareCreated           = "patient_share.created"
	ActionShareRevoked           = "patient_share.revoked"
	ActionGrantRequested         = "access_grant.requested"
	ActionGrantApproved          = "access_grant.approved"
	ActionGrantDenied            = "access_grant.denied"
	ActionGrantRevoked           = "access_grant.revoked"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// WithTx writes entries through tx so they commit with the workflow.
	WithTx(tx *gorm.DB) Service
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)

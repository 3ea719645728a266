package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMessageLength = 1000

func (s *service) Request(ctx context.Context, req domain.RequestAccess) (*domain.RequestResult, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.HasOrganization() {
		return nil, domain.ErrNoOrganization
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantRequest); err != nil {
		return nil, err
	}

	share, err := s.repo.FindShareByToken(ctx, token.Normalize(token.KindShare, req.ShareToken))
	if err != nil {
		s.metrics.RecordWorkflowFailure(ctx, "access_grant", "share_not_found")
		return nil, err
	}
	if !share.IsActive {
		return nil, domain.ErrShareNotFound
	}
	now := s.clock.Now()
	if v := s.policies.For(token.KindShare).Evaluate(share, now); !v.Valid {
		s.metrics.RecordWorkflowFailure(ctx, "access_grant", "share_expired")
		return nil, domain.ErrShareExpired
	}
	if share.OrganizationID == orgID {
		return nil, domain.ErrSameOrganization
	}
	patient, err := s.patient(ctx, share.PatientID)
	if err != nil {
		return nil, err
	}

	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	message := truncateMessage(strings.TrimSpace(req.Message), maxMessageLength)

	release, err := s.guard.Acquire(ctx, fmt.Sprintf("grant:%s:%s", patient.ID, profile.UserID))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.ListActiveForRequester(ctx, patient.ID, profile.UserID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Pending() {
			return nil, domain.ErrGrantPending
		}
	}
	for i := range existing {
		if existing[i].Live(now) {
			return &domain.RequestResult{Grant: &existing[i], AlreadyGranted: true}, nil
		}
	}

	shareID := share.ID
	grant := &domain.TokenAccessGrant{
		ID:                s.genID.Generate(),
		PatientID:         patient.ID,
		ShareID:           &shareID,
		GrantorOrgID:      patient.OrganizationID,
		RequestedByUserID: profile.UserID,
		RequestedByOrgID:  orgID,
		GrantedToUserID:   profile.UserID,
		GrantedToOrgID:    orgID,
		Status:            domain.StatusPending,
		Permissions:       perms,
		Message:           message,
		RequestedAt:       now,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateGrant(ctx, grant); err != nil {
			return err
		}
		return s.audit(ctx, tx, grant.GrantorOrgID, auditdomain.ActionGrantRequested, "access_grant", grant.ID, map[string]any{
			"patient_id":       patient.ID.String(),
			"requester_org_id": orgID.String(),
			"permissions":      permissionStrings(perms),
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGrantTransition(ctx, string(domain.StatusPending))

	s.notifyRequested(ctx, grant, profile)
	return &domain.RequestResult{Grant: grant}, nil
}

func (s *service) Approve(ctx context.Context, grantID snowflake.ID, req domain.ApproveRequest) (*domain.TokenAccessGrant, error) {
	grant, err := s.repo.FindGrantByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	profile, err := s.owner(ctx, grant.GrantorOrgID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantDecide, domain.ErrGrantNotFound)
	if err != nil {
		return nil, err
	}
	if !grant.Pending() {
		return nil, domain.ErrNotPending
	}

	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	expiresAt, err := s.daysFromNow(req.ExpiresInDays)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fields := map[string]any{
		"status":      domain.StatusApproved,
		"permissions": perms,
		"granted_at":  now,
		"decided_by":  profile.UserID,
		"updated_at":  now,
	}
	if expiresAt != nil {
		fields["expires_at"] = *expiresAt
	}
	err = s.transition(ctx, grant, domain.StatusPending, fields, domain.ErrNotPending, auditdomain.ActionGrantApproved, map[string]any{
		"patient_id":  grant.PatientID.String(),
		"permissions": permissionStrings(perms),
		"expires_at":  formatTime(expiresAt),
	})
	if err != nil {
		return nil, err
	}

	grant.Status = domain.StatusApproved
	grant.Permissions = perms
	grant.ExpiresAt = expiresAt
	grant.GrantedAt = &now
	grant.DecidedBy = &profile.UserID
	grant.UpdatedAt = now

	s.notifyDecided(ctx, grant)
	return grant, nil
}

func (s *service) Deny(ctx context.Context, grantID snowflake.ID, reason string) (*domain.TokenAccessGrant, error) {
	grant, err := s.repo.FindGrantByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	profile, err := s.owner(ctx, grant.GrantorOrgID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantDecide, domain.ErrGrantNotFound)
	if err != nil {
		return nil, err
	}
	if !grant.Pending() {
		return nil, domain.ErrNotPending
	}

	reason = strings.TrimSpace(reason)
	now := s.clock.Now()
	err = s.transition(ctx, grant, domain.StatusPending, map[string]any{
		"status":        domain.StatusDenied,
		"denied_at":     now,
		"denial_reason": reason,
		"decided_by":    profile.UserID,
		"is_active":     false,
		"updated_at":    now,
	}, domain.ErrNotPending, auditdomain.ActionGrantDenied, map[string]any{
		"patient_id": grant.PatientID.String(),
		"reason":     reason,
	})
	if err != nil {
		return nil, err
	}

	grant.Status = domain.StatusDenied
	grant.DeniedAt = &now
	grant.DenialReason = reason
	grant.DecidedBy = &profile.UserID
	grant.IsActive = false
	grant.UpdatedAt = now

	s.notifyDecided(ctx, grant)
	return grant, nil
}

func (s *service) Revoke(ctx context.Context, grantID snowflake.ID) (*domain.TokenAccessGrant, error) {
	grant, err := s.repo.FindGrantByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.owner(ctx, grant.GrantorOrgID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantRevoke, domain.ErrGrantNotFound); err != nil {
		return nil, err
	}
	if !grant.IsActive || grant.Status != domain.StatusApproved {
		return nil, domain.ErrNotApproved
	}

	now := s.clock.Now()
	err = s.transition(ctx, grant, domain.StatusApproved, map[string]any{
		"status":     domain.StatusRevoked,
		"revoked_at": now,
		"is_active":  false,
		"updated_at": now,
	}, domain.ErrNotApproved, auditdomain.ActionGrantRevoked, map[string]any{
		"patient_id": grant.PatientID.String(),
	})
	if err != nil {
		return nil, err
	}

	grant.Status = domain.StatusRevoked
	grant.RevokedAt = &now
	grant.IsActive = false
	grant.UpdatedAt = now

	s.notifyDecided(ctx, grant)
	return grant, nil
}

// transition moves grant out of from and records the audit entry in the
// same transaction. lost is returned when a concurrent writer won.
func (s *service) transition(ctx context.Context, grant *domain.TokenAccessGrant, from domain.Status, fields map[string]any, lost error, action string, metadata map[string]any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, grant.ID, from, fields)
		if err != nil {
			return err
		}
		if !ok {
			return lost
		}
		return s.audit(ctx, tx, grant.GrantorOrgID, action, "access_grant", grant.ID, metadata)
	})
	if err != nil {
		return err
	}
	if to, ok := fields["status"].(domain.Status); ok {
		s.metrics.RecordGrantTransition(ctx, string(to))
	}
	return nil
}

func (s *service) notifyRequested(ctx context.Context, grant *domain.TokenAccessGrant, requester *profiledomain.UserProfile) {
	logger := log.With(ctx, s.log)
	members, err := s.profileSvc.ListMembers(ctx, grant.GrantorOrgID)
	if err != nil {
		logger.Warn("access request reviewers not resolved", zap.String("grant_id", grant.ID.String()), zap.Error(err))
		return
	}

	requesterOrg := ""
	if org, err := s.orgSvc.GetByID(ctx, grant.RequestedByOrgID); err == nil {
		requesterOrg = org.Name
	}
	for _, member := range members {
		if !member.Role.CanManage() {
			continue
		}
		_, err := s.dispatcher.Schedule(ctx, notificationdomain.KindAccessRequested, notificationdomain.Payload{
			"to":                     member.Email,
			"requester_email":        requester.Email,
			"requester_organization": requesterOrg,
			"message":                grant.Message,
			"link":                   s.baseURL + "/access-grants/pending",
		})
		if err != nil {
			logger.Warn("access request notification not scheduled",
				zap.String("grant_id", grant.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *service) notifyDecided(ctx context.Context, grant *domain.TokenAccessGrant) {
	logger := log.With(ctx, s.log)
	requester, err := s.profileSvc.GetByUserID(ctx, grant.RequestedByUserID)
	if err != nil {
		logger.Warn("access decision recipient not resolved", zap.String("grant_id", grant.ID.String()), zap.Error(err))
		return
	}
	_, err = s.dispatcher.Schedule(ctx, notificationdomain.KindAccessDecided, notificationdomain.Payload{
		"to":         requester.Email,
		"status":     string(grant.Status),
		"reason":     grant.DenialReason,
		"expires_at": formatTime(grant.ExpiresAt),
	})
	if err != nil {
		logger.Warn("access decision notification not scheduled",
			zap.String("grant_id", grant.ID.String()),
			zap.Error(err),
		)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// truncateMessage cuts message to at most limit bytes without splitting a
// UTF-8 sequence.
func truncateMessage(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return strings.ToValidUTF8(message[:cut], "")
}

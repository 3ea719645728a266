package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/smallbiznis/carebridge/internal/invitation/domain"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/ratelimit"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reasonNotFound = "not_found"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config `optional:"true"`
	Repo       domain.Repository
	ProfileSvc profiledomain.Service
	OrgSvc     orgdomain.Service
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
	Dispatcher notificationdomain.Dispatcher
	Policies   *token.Policies
	Guard      ratelimit.IssuanceGuard `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	baseURL    string
	repo       domain.Repository
	profileSvc profiledomain.Service
	orgSvc     orgdomain.Service
	authz      authorization.Service
	auditSvc   auditdomain.Service
	dispatcher notificationdomain.Dispatcher
	policies   *token.Policies
	guard      ratelimit.IssuanceGuard
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("invitation.service"),
		baseURL:    p.Config.BaseURL,
		repo:       p.Repo,
		profileSvc: p.ProfileSvc,
		orgSvc:     p.OrgSvc,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
		policies:   p.Policies,
		guard:      ratelimit.OrNoop(p.Guard),
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.db = tx
	clone.repo = s.repo.WithTx(tx)
	clone.profileSvc = s.profileSvc.WithTx(tx)
	clone.orgSvc = s.orgSvc.WithTx(tx)
	clone.auditSvc = s.auditSvc.WithTx(tx)
	return &clone
}

func (s *service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssueResult, error) {
	inviter, orgID, err := s.admin(ctx, authorization.ActionInvitationIssue)
	if err != nil {
		return nil, err
	}

	switch req.Role {
	case profiledomain.RoleAdmin, profiledomain.RoleMember, profiledomain.RoleViewer:
	default:
		return nil, domain.ErrInvalidRole
	}
	email, err := profiledomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	release, err := s.guard.Acquire(ctx, fmt.Sprintf("invitation:%s:%s", orgID, email))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.profileSvc.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.InOrganization(orgID) {
		return nil, domain.ErrAlreadyMember
	}

	now := s.clock.Now()
	policy := s.policies.For(token.KindInvitation)
	open, err := s.repo.ListOpen(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if policy.Evaluate(&open[i], now).Valid {
			return nil, domain.ErrAlreadyInvited
		}
	}

	code, err := token.GenerateUnique(ctx, token.KindInvitation, s.repo.TokenExists)
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}

	inv := &domain.MemberInvitation{
		ID:             s.genID.Generate(),
		OrganizationID: orgID,
		Email:          email,
		Role:           req.Role,
		Token:          code,
		InvitedBy:      inviter.UserID,
		ExpiresAt:      *policy.ExpiresAt(now),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, inv); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errs.New(errs.KindAlreadyExists, "invitation code collision, please retry")
			}
			return err
		}
		targetID := inv.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionInvitationIssued, "invitation", &targetID, map[string]any{
			"email": email,
			"role":  string(req.Role),
			"token": code,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx, string(token.KindInvitation))

	scheduled := s.notify(ctx, inv, inviter)
	return &domain.IssueResult{Invitation: inv, Token: code, NotificationScheduled: scheduled}, nil
}

// notify is fire-and-forget. The invitation stays valid when scheduling fails.
func (s *service) notify(ctx context.Context, inv *domain.MemberInvitation, inviter *profiledomain.UserProfile) bool {
	orgName := ""
	if org, err := s.orgSvc.GetByID(ctx, inv.OrganizationID); err == nil {
		orgName = org.Name
	}
	inviterName := inviter.FullName()
	if inviterName == "" {
		inviterName = inviter.Email
	}

	_, err := s.dispatcher.Schedule(ctx, notificationdomain.KindInvitation, notificationdomain.Payload{
		"to":                inv.Email,
		"inviter_name":      inviterName,
		"organization_name": orgName,
		"role":              string(inv.Role),
		"token":             inv.Token,
		"link":              s.baseURL + "/invitations/" + inv.Token,
		"expires_at":        inv.ExpiresAt.Format(time.RFC1123),
	})
	if err != nil {
		s.log.Warn("invitation notification not scheduled",
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *service) Accept(ctx context.Context, code string) (*domain.MemberInvitation, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.FindByToken(ctx, token.Normalize(token.KindInvitation, code))
	if err != nil {
		s.metrics.RecordWorkflowFailure(ctx, "invitation", "not_found")
		return nil, err
	}
	now := s.clock.Now()
	switch {
	case !inv.IsActive:
		return nil, domain.ErrInvitationNotFound
	case inv.IsUsed:
		s.metrics.RecordWorkflowFailure(ctx, "invitation", "used")
		return nil, domain.ErrInvitationUsed
	case s.policies.For(token.KindInvitation).Evaluate(inv, now).Reason == token.ReasonExpired:
		s.metrics.RecordWorkflowFailure(ctx, "invitation", "expired")
		return nil, domain.ErrInvitationExpired
	case inv.Email != profile.Email:
		s.metrics.RecordWorkflowFailure(ctx, "invitation", "email_mismatch")
		return nil, domain.ErrEmailMismatch
	case profile.HasOrganization():
		return nil, domain.ErrAlreadyInOrg
	}

	orgID := inv.OrganizationID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profileSvc.WithTx(tx).JoinOrganization(ctx, profile.UserID, orgID, inv.Role); err != nil {
			return err
		}
		ok, err := s.repo.WithTx(tx).MarkUsed(ctx, inv.ID, profile.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvitationUsed
		}
		targetID := inv.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionInvitationAccepted, "invitation", &targetID, map[string]any{
			"email": inv.Email,
			"role":  string(inv.Role),
		})
	})
	if err != nil {
		return nil, err
	}

	inv.IsUsed = true
	inv.UsedBy = &profile.UserID
	inv.UsedAt = &now
	inv.UpdatedAt = now

	s.log.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("user_id", profile.UserID.String()),
	)
	return inv, nil
}

func (s *service) Cancel(ctx context.Context, invitationID snowflake.ID) error {
	_, orgID, err := s.admin(ctx, authorization.ActionInvitationCancel)
	if err != nil {
		return err
	}
	inv, err := s.repo.FindByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != orgID {
		return domain.ErrNotAdmin
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Deactivate(ctx, inv.ID, now); err != nil {
			return err
		}
		targetID := inv.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionInvitationCancelled, "invitation", &targetID, map[string]any{
			"email": inv.Email,
		})
	})
}

func (s *service) List(ctx context.Context) ([]domain.View, error) {
	_, orgID, err := s.admin(ctx, authorization.ActionInvitationView)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]domain.View, 0, len(items))
	for i := range items {
		views = append(views, domain.View{MemberInvitation: items[i], Status: items[i].StatusAt(now)})
	}
	return views, nil
}

func (s *service) Lookup(ctx context.Context, code string) (*domain.LookupResult, error) {
	normalized := token.Normalize(token.KindInvitation, code)
	if !token.Matches(token.KindInvitation, normalized) {
		return &domain.LookupResult{Reason: reasonNotFound}, nil
	}
	inv, err := s.repo.FindByToken(ctx, normalized)
	if errors.Is(err, domain.ErrInvitationNotFound) {
		return &domain.LookupResult{Reason: reasonNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	status := inv.StatusAt(s.clock.Now())
	if status == domain.StatusCancelled {
		return &domain.LookupResult{Reason: reasonNotFound}, nil
	}
	res := &domain.LookupResult{
		Valid:     status == domain.StatusPending,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: &inv.ExpiresAt,
	}
	if !res.Valid {
		res.Reason = string(status)
	}
	if org, err := s.orgSvc.GetByID(ctx, inv.OrganizationID); err == nil {
		res.OrganizationName = org.Name
	}
	return res, nil
}

// admin resolves the caller's organization. Callers without one, or
// without the capability, fail InsufficientPermissions.
func (s *service) admin(ctx context.Context, action string) (*profiledomain.UserProfile, snowflake.ID, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !profile.HasOrganization() {
		return nil, 0, domain.ErrNotAdmin
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectInvitation, action); err != nil {
		s.metrics.RecordWorkflowFailure(ctx, "invitation", "forbidden")
		return nil, 0, err
	}
	return profile, orgID, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/errs"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	"github.com/smallbiznis/carebridge/internal/partnership/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ProfileSvc profiledomain.Service
	OrgSvc     orgdomain.Service
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
	Dispatcher notificationdomain.Dispatcher
	Policies   *token.Policies
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	profileSvc profiledomain.Service
	orgSvc     orgdomain.Service
	authz      authorization.Service
	auditSvc   auditdomain.Service
	dispatcher notificationdomain.Dispatcher
	policies   *token.Policies
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("partnership.service"),
		repo:       p.Repo,
		profileSvc: p.ProfileSvc,
		orgSvc:     p.OrgSvc,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
		policies:   p.Policies,
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResult, error) {
	profile, orgID, err := s.member(ctx, authorization.ActionPartnershipCreate)
	if err != nil {
		return nil, err
	}
	org, err := s.orgSvc.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	code, err := token.GenerateUnique(ctx, token.KindPartnership, s.repo.TokenExists)
	if err != nil {
		return nil, fmt.Errorf("generate partnership token: %w", err)
	}

	now := s.clock.Now()
	policy := s.policies.For(token.KindPartnership)
	p := &domain.Partnership{
		ID:              s.genID.Generate(),
		RequestingOrgID: orgID,
		PartnerEmail:    strings.ToLower(strings.TrimSpace(req.PartnerEmail)),
		Token:           code,
		Status:          domain.StatusPending,
		ExpiresAt:       *policy.ExpiresAt(now),
		CreatedBy:       profile.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, p); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errs.New(errs.KindAlreadyExists, "partnership code collision, please retry")
			}
			return err
		}
		targetID := p.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionPartnershipCreated, "partnership", &targetID, map[string]any{
			"token":         code,
			"partner_email": p.PartnerEmail,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx, string(token.KindPartnership))

	scheduled := false
	if p.PartnerEmail != "" {
		_, err := s.dispatcher.Schedule(ctx, notificationdomain.KindPartnership, notificationdomain.Payload{
			"to":                p.PartnerEmail,
			"organization_name": org.Name,
			"token":             code,
			"expires_at":        p.ExpiresAt.Format(time.RFC1123),
		})
		if err != nil {
			s.log.Warn("partnership notification not scheduled",
				zap.String("partnership_id", p.ID.String()),
				zap.Error(err),
			)
		} else {
			scheduled = true
		}
	}

	return &domain.CreateResult{Partnership: p, Token: code, NotificationScheduled: scheduled}, nil
}

func (s *service) Accept(ctx context.Context, code string) (*domain.Partnership, error) {
	return s.respond(ctx, code, domain.StatusAccepted, auditdomain.ActionPartnershipAccepted)
}

func (s *service) Reject(ctx context.Context, code string) (*domain.Partnership, error) {
	return s.respond(ctx, code, domain.StatusRejected, auditdomain.ActionPartnershipRejected)
}

func (s *service) respond(ctx context.Context, code string, status domain.Status, action string) (*domain.Partnership, error) {
	profile, orgID, err := s.member(ctx, authorization.ActionPartnershipRespond)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByToken(ctx, token.Normalize(token.KindPartnership, code))
	if err != nil {
		s.metrics.RecordWorkflowFailure(ctx, "partnership", "not_found")
		return nil, err
	}

	now := s.clock.Now()
	switch v := s.policies.For(token.KindPartnership).Evaluate(p, now); {
	case v.Reason == token.ReasonExpired:
		return nil, domain.ErrPartnershipExpired
	case !v.Valid:
		return nil, domain.ErrPartnershipUsed
	}
	if p.RequestingOrgID == orgID {
		return nil, domain.ErrSelfPartnership
	}
	if status == domain.StatusAccepted {
		exists, err := s.repo.AcceptedBetween(ctx, p.RequestingOrgID, orgID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrAlreadyPartners
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Respond(ctx, p.ID, status, orgID, profile.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPartnershipUsed
		}
		targetID := p.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, action, "partnership", &targetID, map[string]any{
			"requesting_org_id": p.RequestingOrgID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	p.Status = status
	p.PartnerOrgID = &orgID
	p.RespondedBy = &profile.UserID
	p.RespondedAt = &now
	p.UpdatedAt = now
	return p, nil
}

func (s *service) List(ctx context.Context) ([]domain.View, error) {
	_, orgID, err := s.member(ctx, authorization.ActionPartnershipView)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]domain.View, 0, len(items))
	for i := range items {
		views = append(views, domain.View{Partnership: items[i], EffectiveStatus: items[i].EffectiveStatus(now)})
	}
	return views, nil
}

// member resolves the caller's organization and checks action against it.
func (s *service) member(ctx context.Context, action string) (*profiledomain.UserProfile, snowflake.ID, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !profile.HasOrganization() {
		return nil, 0, domain.ErrNoOrganization
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectPartnership, action); err != nil {
		if errors.Is(err, errs.ErrInsufficientPermissions) {
			s.metrics.RecordWorkflowFailure(ctx, "partnership", "forbidden")
		}
		return nil, 0, err
	}
	return profile, orgID, nil
}

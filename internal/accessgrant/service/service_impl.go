package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	patientdomain "github.com/smallbiznis/carebridge/internal/patient/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/ratelimit"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxExpiryDays bounds share and grant horizons to ten years.
const maxExpiryDays = 3650

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config `optional:"true"`
	Repo       domain.Repository
	Patients   repository.Repository[patientdomain.Patient]
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
	patients   repository.Repository[patientdomain.Patient]
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
		log:        p.Log.Named("accessgrant.service"),
		baseURL:    p.Config.BaseURL,
		repo:       p.Repo,
		patients:   p.Patients,
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

func (s *service) patient(ctx context.Context, id snowflake.ID) (*patientdomain.Patient, error) {
	patient, err := s.patients.FindOne(ctx, &patientdomain.Patient{ID: id, IsActive: true})
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}
	return patient, nil
}

// owner resolves the caller as a member of orgID holding action. Callers
// outside orgID see NotFound so foreign records stay invisible.
func (s *service) owner(ctx context.Context, orgID snowflake.ID, object, action string, notFound error) (*profiledomain.UserProfile, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.InOrganization(orgID) {
		return nil, notFound
	}
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, object, action); err != nil {
		s.metrics.RecordWorkflowFailure(ctx, "access_grant", "forbidden")
		return nil, err
	}
	return profile, nil
}

func (s *service) audit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) error {
	id := targetID.String()
	return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, action, targetType, &id, metadata)
}

func (s *service) daysFromNow(days *int) (*time.Time, error) {
	if days == nil {
		return nil, nil
	}
	if *days <= 0 || *days > maxExpiryDays {
		return nil, domain.ErrInvalidExpiryDays
	}
	t := s.clock.Now().Add(time.Duration(*days) * 24 * time.Hour)
	return &t, nil
}

func permissionStrings(perms domain.PermissionSet) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

// normalizePermissions validates requested and falls back to view.
func normalizePermissions(requested []domain.Permission) (domain.PermissionSet, error) {
	if len(requested) == 0 {
		return domain.PermissionSet{domain.PermissionView}, nil
	}
	seen := make(map[domain.Permission]struct{}, len(requested))
	set := make(domain.PermissionSet, 0, len(requested))
	for _, p := range requested {
		if !p.Valid() {
			return nil, domain.ErrInvalidPermission
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		set = append(set, p)
	}
	return set, nil
}

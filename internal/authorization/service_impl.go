package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectInvitation  = "invitation"
	ObjectMember      = "member"
	ObjectPartnership = "partnership"
	ObjectPatient     = "patient"
	ObjectShare       = "patient_share"
	ObjectAccessGrant = "access_grant"
	ObjectAuditLog    = "audit_log"
)

const (
	ActionInvitationIssue  = "invitation.issue"
	ActionInvitationCancel = "invitation.cancel"
	ActionInvitationView   = "invitation.view"

	ActionMemberView   = "member.view"
	ActionMemberRemove = "member.remove"

	ActionPartnershipCreate  = "partnership.create"
	ActionPartnershipRespond = "partnership.respond"
	ActionPartnershipView    = "partnership.view"

	ActionPatientCreate = "patient.create"
	ActionPatientView   = "patient.view"

	ActionShareCreate = "patient_share.create"
	ActionShareRevoke = "patient_share.revoke"

	ActionAccessGrantRequest = "access_grant.request"
	ActionAccessGrantDecide  = "access_grant.decide"
	ActionAccessGrantRevoke  = "access_grant.revoke"
	ActionAccessGrantView    = "access_grant.view"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer persists policies through the gorm adapter. A nil db keeps
// them in memory.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	} else {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) AuthorizeUser(ctx context.Context, userID snowflake.ID, orgID snowflake.ID, object string, action string) error {
	if userID == 0 {
		return ErrInvalidActor
	}
	if orgID == 0 {
		return ErrForbidden
	}
	return s.Authorize(ctx, "user:"+userID.String(), orgID.String(), object, action)
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		parsedOrgID, err := snowflake.ParseString(orgID)
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

// roleForUser reads membership from the profile so a role change takes
// effect on the next check.
func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM user_profiles
		 WHERE organization_id = ? AND user_id = ? AND is_active = ?
		 LIMIT 1`,
		orgID,
		userID,
		true,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	s.audit(ctx, "authorization.denied", actorType, actorID, orgID, object, action)
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	s.audit(ctx, "authorization.granted", actorType, actorID, orgID, object, action)
}

func (s *ServiceImpl) audit(ctx context.Context, event string, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, event, "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	return action == ActionAuditLogView
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	manage := [][]string{
		{ObjectInvitation, ActionInvitationIssue},
		{ObjectInvitation, ActionInvitationCancel},
		{ObjectInvitation, ActionInvitationView},
		{ObjectMember, ActionMemberView},
		{ObjectMember, ActionMemberRemove},
		{ObjectPartnership, ActionPartnershipCreate},
		{ObjectPartnership, ActionPartnershipRespond},
		{ObjectPartnership, ActionPartnershipView},
		{ObjectPatient, ActionPatientCreate},
		{ObjectPatient, ActionPatientView},
		{ObjectShare, ActionShareCreate},
		{ObjectShare, ActionShareRevoke},
		{ObjectAccessGrant, ActionAccessGrantRequest},
		{ObjectAccessGrant, ActionAccessGrantDecide},
		{ObjectAccessGrant, ActionAccessGrantRevoke},
		{ObjectAccessGrant, ActionAccessGrantView},
		{ObjectAuditLog, ActionAuditLogView},
	}

	var policies [][]string
	for _, role := range []string{"role:owner", "role:admin"} {
		for _, rule := range manage {
			policies = append(policies, []string{role, rule[0], rule[1]})
		}
	}
	policies = append(policies,
		// Members work with patients but cannot decide on disclosure.
		[]string{"role:member", ObjectMember, ActionMemberView},
		[]string{"role:member", ObjectPartnership, ActionPartnershipView},
		[]string{"role:member", ObjectPatient, ActionPatientCreate},
		[]string{"role:member", ObjectPatient, ActionPatientView},
		[]string{"role:member", ObjectShare, ActionShareCreate},
		[]string{"role:member", ObjectAccessGrant, ActionAccessGrantRequest},
		[]string{"role:member", ObjectAccessGrant, ActionAccessGrantView},

		// Viewers are read-only.
		[]string{"role:viewer", ObjectMember, ActionMemberView},
		[]string{"role:viewer", ObjectPatient, ActionPatientView},
		[]string{"role:viewer", ObjectAccessGrant, ActionAccessGrantRequest},
		[]string{"role:viewer", ObjectAccessGrant, ActionAccessGrantView},

		[]string{"role:system", ObjectAccessGrant, ActionAccessGrantView},
		[]string{"role:system", ObjectAuditLog, ActionAuditLogView},
	)

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

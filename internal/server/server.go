package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/carebridge/internal/accessgrant"
	accessgrantdomain "github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	"github.com/smallbiznis/carebridge/internal/audit"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/auth"
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/auth/session"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/invitation"
	invitationdomain "github.com/smallbiznis/carebridge/internal/invitation/domain"
	"github.com/smallbiznis/carebridge/internal/notification"
	obsmiddleware "github.com/smallbiznis/carebridge/internal/observability/logger"
	obstracing "github.com/smallbiznis/carebridge/internal/observability/tracing"
	"github.com/smallbiznis/carebridge/internal/organization"
	organizationdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	"github.com/smallbiznis/carebridge/internal/otp"
	otpdomain "github.com/smallbiznis/carebridge/internal/otp/domain"
	"github.com/smallbiznis/carebridge/internal/partnership"
	partnershipdomain "github.com/smallbiznis/carebridge/internal/partnership/domain"
	"github.com/smallbiznis/carebridge/internal/passwordreset"
	passwordresetdomain "github.com/smallbiznis/carebridge/internal/passwordreset/domain"
	"github.com/smallbiznis/carebridge/internal/patient"
	patientdomain "github.com/smallbiznis/carebridge/internal/patient/domain"
	"github.com/smallbiznis/carebridge/internal/profile"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/providers"
	"github.com/smallbiznis/carebridge/internal/ratelimit"
	"github.com/smallbiznis/carebridge/internal/signup"
	signupdomain "github.com/smallbiznis/carebridge/internal/signup/domain"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(telemetry.NewDefaultMetrics),
	fx.Provide(registerGin),
	token.Module,
	authorization.Module,
	audit.Module,
	auth.Module,
	profile.Module,
	organization.Module,
	invitation.Module,
	passwordreset.Module,
	otp.Module,
	partnership.Module,
	patient.Module,
	accessgrant.Module,
	signup.Module,
	providers.Module,
	notification.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           cfg.Environment == "development",
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())
	r.Use(RequestMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	return NewEngine(cfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	authsvc          authdomain.Service
	sessions         *session.Manager
	authzSvc         authorization.Service
	auditSvc         auditdomain.Service
	profileSvc       profiledomain.Service
	organizationSvc  organizationdomain.Service
	invitationSvc    invitationdomain.Service
	passwordResetSvc passwordresetdomain.Service
	otpSvc           otpdomain.Service
	partnershipSvc   partnershipdomain.Service
	patientSvc       patientdomain.Service
	accessGrantSvc   accessgrantdomain.Service
	signupsvc        signupdomain.Service
	publicLimiter    *ratelimit.PublicLimiter
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Authsvc          authdomain.Service
	Sessions         *session.Manager
	AuthzSvc         authorization.Service
	AuditSvc         auditdomain.Service
	ProfileSvc       profiledomain.Service
	OrganizationSvc  organizationdomain.Service
	InvitationSvc    invitationdomain.Service
	PasswordResetSvc passwordresetdomain.Service
	OTPSvc           otpdomain.Service
	PartnershipSvc   partnershipdomain.Service
	PatientSvc       patientdomain.Service
	AccessGrantSvc   accessgrantdomain.Service
	SignupSvc        signupdomain.Service
	PublicLimiter    *ratelimit.PublicLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		authsvc:          p.Authsvc,
		sessions:         p.Sessions,
		authzSvc:         p.AuthzSvc,
		auditSvc:         p.AuditSvc,
		profileSvc:       p.ProfileSvc,
		organizationSvc:  p.OrganizationSvc,
		invitationSvc:    p.InvitationSvc,
		passwordResetSvc: p.PasswordResetSvc,
		otpSvc:           p.OTPSvc,
		partnershipSvc:   p.PartnershipSvc,
		patientSvc:       p.PatientSvc,
		accessGrantSvc:   p.AccessGrantSvc,
		signupsvc:        p.SignupSvc,
		publicLimiter:    p.PublicLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerPublicRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.publicLimiter.Middleware("auth.signup"), s.Signup)
	auth.POST("/login", s.publicLimiter.Middleware("auth.login"), s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)

	reset := auth.Group("/password/reset")
	{
		reset.POST("", s.publicLimiter.Middleware("auth.password_reset"), s.RequestPasswordReset)
		reset.POST("/complete", s.publicLimiter.Middleware("auth.password_reset_complete"), s.CompletePasswordReset)
		reset.GET("/:token", s.publicLimiter.Middleware("auth.password_reset_verify"), s.VerifyPasswordReset)
	}
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/invitations/:token", s.publicLimiter.Middleware("invitation.lookup"), s.LookupInvitation)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- OTP --------
	api.POST("/otp", s.GenerateOTP)
	api.POST("/otp/verify", s.VerifyOTP)
	api.POST("/otp/resend", s.ResendOTP)
	api.GET("/otp/status", s.OTPStatus)

	// -------- Organizations --------
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations/current", s.GetCurrentOrganization)
	api.GET("/organizations/members", s.ListMembers)
	api.DELETE("/organizations/members/:user_id", s.RemoveMember)

	// -------- Invitations --------
	api.POST("/invitations", s.IssueInvitation)
	api.GET("/invitations", s.ListInvitations)
	api.DELETE("/invitations/:id", s.CancelInvitation)
	api.POST("/invitations/accept", s.AcceptInvitation)

	// -------- Partnerships --------
	api.POST("/partnerships", s.CreatePartnership)
	api.GET("/partnerships", s.ListPartnerships)
	api.POST("/partnerships/accept", s.AcceptPartnership)
	api.POST("/partnerships/reject", s.RejectPartnership)

	// -------- Patients & shares --------
	api.POST("/patients", s.CreatePatient)
	api.GET("/patients/:id", s.GetPatient)
	api.POST("/patients/:id/shares", s.CreatePatientShare)
	api.GET("/patients/:id/access-grants", s.ListPatientAccessGrants)
	api.DELETE("/shares/:id", s.RevokePatientShare)

	// -------- Access grants --------
	api.POST("/access-grants", s.RequestAccess)
	api.GET("/access-grants", s.ListMyAccessGrants)
	api.GET("/access-grants/pending", s.ListPendingAccessGrants)
	api.POST("/access-grants/:id/approve", s.ApproveAccessGrant)
	api.POST("/access-grants/:id/deny", s.DenyAccessGrant)
	api.POST("/access-grants/:id/revoke", s.RevokeAccessGrant)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

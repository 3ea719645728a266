//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/logger"
	"github.com/smallbiznis/carebridge/internal/migration"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/smallbiznis/carebridge/internal/observability"
	"github.com/smallbiznis/carebridge/internal/server"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fx.App
	server  *server.Server
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resetDatabase(t, env.db)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_InvitedSignupJoinsOrganization(t *testing.T) {
	resetDatabase(t, env.db)

	owner := newHTTPClient()
	signupUser(t, owner, map[string]any{
		"email":             "owner@northside.example",
		"password":          "correct-horse",
		"first_name":        "Olive",
		"last_name":         "Owner",
		"organization_name": "Northside Clinic",
	})

	resp, body := doJSON(t, owner, http.MethodPost, env.baseURL+"/api/invitations", map[string]any{
		"email": "bob@northside.example",
		"role":  "member",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue invitation failed: %d: %s", resp.StatusCode, string(body))
	}
	var issued struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &issued); err != nil {
		t.Fatalf("decode invitation: %v", err)
	}
	if issued.Token == "" {
		t.Fatalf("expected invitation token in response")
	}
	if n := countRows(t, env.db, "notification_jobs", "kind = ?", string(notificationdomain.KindInvitation)); n != 1 {
		t.Fatalf("expected one invitation email queued, got %d", n)
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/invitations/"+url.PathEscape(issued.Token), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup invitation failed: %d: %s", resp.StatusCode, string(body))
	}

	bob := newHTTPClient()
	signupUser(t, bob, map[string]any{
		"email":            "bob@northside.example",
		"password":         "battery-staple",
		"first_name":       "Bob",
		"last_name":        "Member",
		"invitation_token": issued.Token,
	})

	resp, body = doJSON(t, bob, http.MethodGet, env.baseURL+"/auth/me", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me failed: %d: %s", resp.StatusCode, string(body))
	}
	var me struct {
		Profile struct {
			Role           string `json:"role"`
			OrganizationID string `json:"organization_id"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Profile.Role != "member" || me.Profile.OrganizationID == "" {
		t.Fatalf("expected member of the inviting organization, got %+v", me.Profile)
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/auth/signup", map[string]any{
		"email":            "bob@northside.example",
		"password":         "battery-staple",
		"invitation_token": issued.Token,
	}, nil)
	if resp.StatusCode < http.StatusBadRequest {
		t.Fatalf("expected reused invitation to be rejected, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, owner, http.MethodGet, env.baseURL+"/api/organizations/members", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list members failed: %d: %s", resp.StatusCode, string(body))
	}
	var members struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members.Data) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members.Data))
	}
}

func TestE2E_PasswordResetThroughOutbox(t *testing.T) {
	resetDatabase(t, env.db)

	signupUser(t, newHTTPClient(), map[string]any{
		"email":             "reset@southside.example",
		"password":          "first-password",
		"organization_name": "Southside Clinic",
	})

	for _, email := range []string{"reset@southside.example", "nobody@southside.example"} {
		resp, body := doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/auth/password/reset", map[string]any{
			"email": email,
		}, nil)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("reset request for %s: %d: %s", email, resp.StatusCode, string(body))
		}
	}

	link := latestPayloadValue(t, notificationdomain.KindPasswordReset, "reset@southside.example", "link")
	resetToken := link[strings.LastIndex(link, "/")+1:]
	if resetToken == "" {
		t.Fatalf("reset link carries no token: %q", link)
	}

	resp, body := doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/auth/password/reset/"+url.PathEscape(resetToken), nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"valid":true`) {
		t.Fatalf("verify reset link: %d: %s", resp.StatusCode, string(body))
	}

	complete := map[string]any{"token": resetToken, "new_password": "second-password"}
	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/auth/password/reset/complete", complete, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete reset: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/auth/password/reset/"+url.PathEscape(resetToken), nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"recently_used":true`) {
		t.Fatalf("expected reset link inside grace window: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/auth/login", map[string]any{
		"email":    "reset@southside.example",
		"password": "first-password",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected old password to fail, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/auth/login", map[string]any{
		"email":    "reset@southside.example",
		"password": "second-password",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_OTPVerification(t *testing.T) {
	resetDatabase(t, env.db)

	client := newHTTPClient()
	signupUser(t, client, map[string]any{
		"email":             "otp@eastside.example",
		"password":          "otp-password",
		"organization_name": "Eastside Clinic",
	})

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/otp/verify", map[string]any{"code": "000000x"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected wrong code to be rejected, got %d: %s", resp.StatusCode, string(body))
	}

	code := latestPayloadValue(t, notificationdomain.KindOTP, "otp@eastside.example", "code")
	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/otp/verify", map[string]any{"code": code}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify otp: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/api/otp/status", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"state":"verified"`) {
		t.Fatalf("expected verified otp status: %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_AuditLog(t *testing.T) {
	resetDatabase(t, env.db)

	client := newHTTPClient()
	signupUser(t, client, map[string]any{
		"email":             "audit@westside.example",
		"password":          "audit-password",
		"organization_name": "Westside Clinic",
	})

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/invitations", map[string]any{
		"email": "carol@westside.example",
		"role":  "viewer",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue invitation failed: %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, client, http.MethodGet, env.baseURL+"/api/audit-logs?target_type=invitation", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list audit logs failed: %d: %s", resp.StatusCode, string(body))
	}
	var logs struct {
		Data []struct {
			Action string `json:"action"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("decode audit logs: %v", err)
	}
	if len(logs.Data) == 0 {
		t.Fatalf("expected invitation audit entries")
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv    *server.Server
		dbConn *gorm.DB
		cfg    config.Config
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		logger.Module,
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		server.Module,
		fx.Populate(&srv, &dbConn, &cfg),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
		app.Stop(context.Background())
		return nil, fmt.Errorf("expected postgres db, got %s", cfg.DBType)
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		server:  srv,
		db:      dbConn,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("APP_ENV", "test")
	setEnvIfEmpty("HTTP_PORT", "0")
	setEnvIfEmpty("AUTH_COOKIE_SECURE", "false")
	setEnvIfEmpty("EMAIL_PROVIDER", "noop")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("SEED_DEMO", "false")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := truncateAllTables(dbConn); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// truncateAllTables keeps the migration ledger and the casbin policies.
func truncateAllTables(dbConn *gorm.DB) error {
	type tableRow struct {
		Name string `gorm:"column:tablename"`
	}
	var rows []tableRow
	if err := dbConn.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename NOT IN ('schema_migrations', 'casbin_rule')`,
	).Scan(&rows).Error; err != nil {
		return err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		tables = append(tables, `"`+row.Name+`"`)
	}
	if len(tables) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	return dbConn.Exec(stmt).Error
}

func signupUser(t *testing.T, client *http.Client, req map[string]any) {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/auth/signup", req, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup failed: %d: %s", resp.StatusCode, string(body))
	}

	baseURL, err := url.Parse(env.baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, cookie := range client.Jar.Cookies(baseURL) {
		if cookie.Name == "_sid" && strings.TrimSpace(cookie.Value) != "" {
			return
		}
	}
	t.Fatalf("expected session cookie after signup")
}

// latestPayloadValue reads a field from the newest queued email of kind to
// the given recipient.
func latestPayloadValue(t *testing.T, kind notificationdomain.Kind, to, key string) string {
	t.Helper()

	var job notificationdomain.NotificationJob
	err := env.db.
		Where("kind = ?", string(kind)).
		Where("payload->>'to' = ?", to).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		t.Fatalf("find %s notification for %s: %v", kind, to, err)
	}
	value, _ := job.Payload[key].(string)
	if value == "" {
		t.Fatalf("%s notification has no %q", kind, key)
	}
	return value
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func doJSON(t *testing.T, client *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 15 * time.Second,
		Jar:     jar,
	}
}

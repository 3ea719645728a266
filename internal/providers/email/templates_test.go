package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderInvitationUsesOrganizationSubject(t *testing.T) {
	subject, body, err := Render("invitation", map[string]any{
		"organization_name": "Harbor Clinic",
		"inviter_name":      "Alice",
		"role":              "member",
		"token":             "ABCD-EFGH-IJKL-MNOP",
		"link":              "https://app.example/invite",
		"expires_at":        "2025-03-08",
	})
	require.NoError(t, err)
	assert.Equal(t, "You're invited to join Harbor Clinic", subject)
	assert.Contains(t, body, "ABCD-EFGH-IJKL-MNOP")
}

func TestRenderSubjectOverrideAndUnknownTemplate(t *testing.T) {
	subject, _, err := Render("otp", map[string]any{"code": "123456", "subject": "Login code"})
	require.NoError(t, err)
	assert.Equal(t, "Login code", subject)

	_, _, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestLogProviderRendersBeforeLogging(t *testing.T) {
	p := NewLogProvider(zap.NewNop())
	assert.NoError(t, p.SendTemplate(context.Background(), []string{"a@example.com"}, "password_reset", map[string]any{"email": "a@example.com"}))
	assert.Error(t, p.SendTemplate(context.Background(), []string{"a@example.com"}, "nope", nil))
}

package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var defaultSubjects = map[string]string{
	"invitation":       "You're invited to join a care team",
	"password_reset":   "Reset your password",
	"otp":              "Your verification code",
	"access_requested": "A patient record access request needs your review",
	"access_decided":   "Your patient record access request was reviewed",
	"partnership":      "An organization wants to partner with you",
}

// Render executes templateName with data. A "subject" entry in data
// overrides the template's default subject.
func Render(templateName string, data map[string]any) (string, string, error) {
	tmpl := templates.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("email: unknown template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject := defaultSubjects[templateName]
	if subj, ok := data["subject"].(string); ok && subj != "" {
		subject = subj
	} else if templateName == "invitation" {
		if orgName, ok := data["organization_name"].(string); ok && orgName != "" {
			subject = fmt.Sprintf("You're invited to join %s", orgName)
		}
	}
	if subject == "" {
		subject = "Notification from CareBridge"
	}
	return subject, body.String(), nil
}

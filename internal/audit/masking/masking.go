// Package masking redacts credentials before they reach the audit log.
package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"token":       {},
	"share_token": {},
	"code":        {},
	"password":    {},
}

// MaskSecret redacts a secret while keeping a four character suffix.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// Redact returns a copy of metadata with sensitive string values masked.
func Redact(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}

	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := sensitiveKeys[strings.ToLower(trimmedKey)]; ok {
			if s, isString := value.(string); isString {
				out[trimmedKey] = MaskSecret(s)
				continue
			}
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmedKey] = Redact(nested)
			continue
		}
		out[trimmedKey] = value
	}
	return out
}

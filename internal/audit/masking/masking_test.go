package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("123456"))
	assert.Equal(t, "****MNOP", MaskSecret("ABCD-EFGH-IJKL-MNOP"))
}

func TestRedactOnlyTouchesSensitiveKeys(t *testing.T) {
	out := Redact(map[string]any{
		"token":  "ABCD-EFGH-IJKL-MNOP",
		"email":  "bob@x.com",
		"nested": map[string]any{"code": "123456"},
		"count":  3,
	})
	assert.Equal(t, "****MNOP", out["token"])
	assert.Equal(t, "bob@x.com", out["email"])
	assert.Equal(t, map[string]any{"code": "****"}, out["nested"])
	assert.Equal(t, 3, out["count"])
}

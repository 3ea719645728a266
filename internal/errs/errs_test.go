package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := New(KindExpired, "invitation expired")
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrAlreadyUsed)
	assert.Equal(t, "invitation expired", err.Error())
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("accept: %w", New(KindEmailMismatch, "email differs"))
	assert.Equal(t, KindEmailMismatch, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

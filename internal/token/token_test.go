package token

import (
	"context"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormats(t *testing.T) {
	cases := []struct {
		kind    Kind
		pattern string
	}{
		{KindInvitation, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`},
		{KindShare, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`},
		{KindPartnership, `^[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`},
		{KindPasswordReset, `^[A-Za-z0-9]{32}$`},
		{KindOTP, `^[1-9][0-9]{5}$`},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			re := regexp.MustCompile(tc.pattern)
			for i := 0; i < 200; i++ {
				tok, err := Generate(tc.kind)
				require.NoError(t, err)
				assert.Regexp(t, re, tok)
				assert.True(t, Matches(tc.kind, tok), tok)
			}
		})
	}
}

func TestGenerateOTPRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := Generate(KindOTP)
		require.NoError(t, err)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	_, err := Generate(Kind("bogus"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMatchesRejectsWrongShape(t *testing.T) {
	assert.False(t, Matches(KindInvitation, "ABCD-EFGH-IJKL"))
	assert.False(t, Matches(KindInvitation, "abcd-efgh-ijkl-mnop"))
	assert.False(t, Matches(KindPartnership, "ABCD-EFGH-IJKL-MNOP"))
	assert.False(t, Matches(KindPasswordReset, "short"))
	assert.False(t, Matches(KindOTP, "012345"))
	assert.False(t, Matches(KindOTP, "12345a"))
}

func TestNormalizeUppercasesGroupedKinds(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", Normalize(KindInvitation, " abcd-efgh-ijkl-mnop "))
	assert.Equal(t, "aBc", Normalize(KindPasswordReset, " aBc "))
}

func TestGenerateUniqueRetriesUntilFree(t *testing.T) {
	calls := 0
	tok, err := GenerateUnique(context.Background(), KindInvitation, func(ctx context.Context, token string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, Matches(KindInvitation, tok))
}

func TestGenerateUniqueIsBounded(t *testing.T) {
	calls := 0
	_, err := GenerateUnique(context.Background(), KindShare, func(ctx context.Context, token string) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrTokenSpaceExhausted)
	assert.Equal(t, MaxGenerateAttempts, calls)
}

func TestGenerateUniqueStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := GenerateUnique(ctx, KindOTP, func(ctx context.Context, token string) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

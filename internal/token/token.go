// Package token generates and validates the human-shareable tokens that back
// invitations, partnerships, patient shares, password resets and OTPs.
package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

type Kind string

const (
	KindInvitation    Kind = "invitation"
	KindPartnership   Kind = "partnership"
	KindShare         Kind = "share"
	KindPasswordReset Kind = "password_reset"
	KindOTP           Kind = "otp"
)

const (
	upperAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	mixedAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digits            = "0123456789"
)

// MaxGenerateAttempts bounds GenerateUnique.
const MaxGenerateAttempts = 10

var (
	ErrUnknownKind         = errors.New("token_unknown_kind")
	ErrTokenSpaceExhausted = errors.New("token_space_exhausted")
)

// Format describes the user-facing shape of a token kind.
type Format struct {
	Alphabet  string
	Groups    int
	GroupSize int
}

// Length is the number of alphabet characters, excluding separators.
func (f Format) Length() int {
	return f.Groups * f.GroupSize
}

var formats = map[Kind]Format{
	KindInvitation:    {Alphabet: upperAlphanumeric, Groups: 4, GroupSize: 4},
	KindShare:         {Alphabet: upperAlphanumeric, Groups: 4, GroupSize: 4},
	KindPartnership:   {Alphabet: upperAlphanumeric, Groups: 4, GroupSize: 5},
	KindPasswordReset: {Alphabet: mixedAlphanumeric, Groups: 1, GroupSize: 32},
	KindOTP:           {Alphabet: digits, Groups: 1, GroupSize: 6},
}

func FormatOf(kind Kind) (Format, bool) {
	f, ok := formats[kind]
	return f, ok
}

// Generate returns a fresh token of the given kind. It has no side effects
// and does not check for collisions.
func Generate(kind Kind) (string, error) {
	if kind == KindOTP {
		return generateOTP()
	}

	f, ok := formats[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	groups := make([]string, 0, f.Groups)
	for g := 0; g < f.Groups; g++ {
		group, err := randomString(f.Alphabet, f.GroupSize)
		if err != nil {
			return "", err
		}
		groups = append(groups, group)
	}
	return strings.Join(groups, "-"), nil
}

// generateOTP draws uniformly from 100000-999999 so codes never carry a
// leading zero.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// Matches reports whether s has the exact format of kind.
func Matches(kind Kind, s string) bool {
	f, ok := formats[kind]
	if !ok {
		return false
	}
	groups := strings.Split(s, "-")
	if len(groups) != f.Groups {
		return false
	}
	for _, group := range groups {
		if len(group) != f.GroupSize {
			return false
		}
		for i := 0; i < len(group); i++ {
			if strings.IndexByte(f.Alphabet, group[i]) < 0 {
				return false
			}
		}
	}
	if kind == KindOTP && s[0] == '0' {
		return false
	}
	return true
}

// Normalize trims and, for case-insensitive kinds, upper-cases user input.
func Normalize(kind Kind, s string) string {
	s = strings.TrimSpace(s)
	switch kind {
	case KindInvitation, KindShare, KindPartnership:
		return strings.ToUpper(s)
	default:
		return s
	}
}

// ExistsFunc reports whether a token is already taken in the caller's store.
type ExistsFunc func(ctx context.Context, token string) (bool, error)

// GenerateUnique retries Generate until exists reports the candidate free,
// giving up after MaxGenerateAttempts.
func GenerateUnique(ctx context.Context, kind Kind, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxGenerateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := Generate(kind)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrTokenSpaceExhausted, kind, MaxGenerateAttempts)
}

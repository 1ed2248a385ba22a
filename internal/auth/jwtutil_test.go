package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/congo_points/internal/account"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")
	id := account.MustParse(alice)

	signed, err := tokens.Sign(id, time.Minute)
	require.NoError(t, err)

	got, err := tokens.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestTokensRejectWrongSecret(t *testing.T) {
	signed, err := NewTokens("one").Sign(account.MustParse(alice), time.Minute)
	require.NoError(t, err)

	_, err = NewTokens("two").Parse(signed)
	require.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
}

func TestTokensRejectExpired(t *testing.T) {
	tokens := NewTokens("test-secret")
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	signed, err := tokens.Sign(account.MustParse(alice), time.Minute)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRequireSecret(t *testing.T) {
	_, err := NewTokens("").Sign(account.MustParse(alice), time.Minute)
	require.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewTokens("").Parse("a.b.c")
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokensRejectGarbage(t *testing.T) {
	_, err := NewTokens("test-secret").Parse("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"core_bank/internal/domain"
)

const testSecret = "test-secret-with-enough-entropy"

func TestTokens_IssueVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	token, err := tokens.Issue(42, domain.RoleTeller, "user3")
	require.NoError(t, err)

	id, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id.UserID)
	assert.Equal(t, domain.RoleTeller, id.Role)
	assert.Equal(t, "user3", id.Username)
}

func TestTokens_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokens(testSecret, 0).TTL())
	assert.Equal(t, 2*time.Hour, DefaultTokenTTL)
}

func TestTokens_Expired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokens(testSecret, 2*time.Hour).WithClock(func() time.Time { return issuedAt })
	token, err := issuer.Issue(1, domain.RoleClient, "user1")
	require.NoError(t, err)

	// One second before expiry the token is still good.
	before := issuer.WithClock(func() time.Time { return issuedAt.Add(2*time.Hour - time.Second) })
	_, err = before.Verify(token)
	require.NoError(t, err)

	after := issuer.WithClock(func() time.Time { return issuedAt.Add(2*time.Hour + time.Minute) })
	_, err = after.Verify(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
}

func TestTokens_Invalid(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	good, err := tokens.Issue(7, domain.RoleClient, "user1")
	require.NoError(t, err)

	otherSecret, err := NewTokens("another-secret", time.Hour).Issue(7, domain.RoleClient, "user1")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 7,
		Role:   domain.RoleTeller,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		Role:   domain.RoleClient,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	i := len(good) - 10
	flip := byte('A')
	if good[i] == flip {
		flip = 'B'
	}
	tampered := good[:i] + string(flip) + good[i+1:]

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"tampered":       tampered,
		"other secret":   otherSecret,
		"alg none":       noneAlg,
		"missing expiry": noExpiry,
		"missing role":   noRole,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			id, err := tokens.Verify(token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}
}

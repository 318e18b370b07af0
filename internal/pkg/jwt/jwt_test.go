package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGenerateAndValidate(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	s := NewSigner("test-secret", "c5isr-identity", fixedNow(now))

	token, issued, err := s.GenerateAccessToken("analyst", "SOC_ANALYST", "SECRET", "mfa", 30*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Subject)
	assert.Equal(t, "SOC_ANALYST", claims.Role)
	assert.Equal(t, "SECRET", claims.Clearance)
	assert.Equal(t, "mfa", claims.AuthLevel)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, now.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateExpired(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	current := now
	s := NewSigner("test-secret", "c5isr-identity", func() time.Time { return current })

	token, _, err := s.GenerateAccessToken("analyst", "SOC_ANALYST", "SECRET", "mfa", time.Minute)
	require.NoError(t, err)

	current = now.Add(2 * time.Minute)
	_, err = s.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsTampering(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	s := NewSigner("test-secret", "c5isr-identity", fixedNow(now))
	other := NewSigner("other-secret", "c5isr-identity", fixedNow(now))
	foreign := NewSigner("test-secret", "someone-else", fixedNow(now))

	token, _, err := other.GenerateAccessToken("commander", "COMMANDER", "TOP_SECRET", "mfa", time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	token, _, err = foreign.GenerateAccessToken("commander", "COMMANDER", "TOP_SECRET", "mfa", time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = s.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	s := NewSigner("test-secret", "c5isr-identity", fixedNow(now))

	claims := &Claims{
		Role:      "COMMANDER",
		Clearance: "TOP_SECRET",
		AuthLevel: "mfa",
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "intruder",
			Issuer:    "c5isr-identity",
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGenerateRefusesEmptySecret(t *testing.T) {
	s := NewSigner("", "c5isr-identity", nil)

	_, _, err := s.GenerateAccessToken("analyst", "SOC_ANALYST", "SECRET", "mfa", time.Minute)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

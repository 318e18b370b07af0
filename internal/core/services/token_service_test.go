package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/jwt"
)

func TestTokenIssueAndVerify(t *testing.T) {
	f := newFixture(t)
	analyst, err := f.repo.GetByUsername(context.Background(), "analyst")
	require.NoError(t, err)

	issued, err := f.tokens.Issue(analyst, domain.AuthLevelMFA)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, issued.TokenType)
	assert.Equal(t, 1800, issued.ExpiresIn)

	claims, err := f.tokens.Verify(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Subject)
	assert.Equal(t, domain.RoleSOCAnalyst, claims.Role)
	assert.Equal(t, domain.ClearanceSecret, claims.Clearance)
	assert.Equal(t, domain.AuthLevelMFA, claims.AuthLevel)
	assert.Equal(t, issued.Claims.TokenID, claims.TokenID)
}

func TestTokenVerifyExpired(t *testing.T) {
	f := newFixture(t)
	analyst, err := f.repo.GetByUsername(context.Background(), "analyst")
	require.NoError(t, err)

	issued, err := f.tokens.Issue(analyst, domain.AuthLevelPassword)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	_, err = f.tokens.Verify(issued.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestTokenVerifyRejectsForeignAndBadClaims(t *testing.T) {
	f := newFixture(t)

	other := jwt.NewSigner("other-secret", "c5isr-identity", f.clock.Now)
	foreign, _, err := other.GenerateAccessToken("analyst", "SOC_ANALYST", "SECRET", "mfa", time.Minute)
	require.NoError(t, err)
	_, err = f.tokens.Verify(foreign)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	same := jwt.NewSigner("test-secret", "c5isr-identity", f.clock.Now)
	badRole, _, err := same.GenerateAccessToken("analyst", "ADMIN", "SECRET", "mfa", time.Minute)
	require.NoError(t, err)
	_, err = f.tokens.Verify(badRole)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	badLevel, _, err := same.GenerateAccessToken("analyst", "SOC_ANALYST", "SECRET", "root", time.Minute)
	require.NoError(t, err)
	_, err = f.tokens.Verify(badLevel)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = f.tokens.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenIssueRejectsUnknownLevel(t *testing.T) {
	f := newFixture(t)
	analyst, err := f.repo.GetByUsername(context.Background(), "analyst")
	require.NoError(t, err)

	_, err = f.tokens.Issue(analyst, domain.AuthLevel("root"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

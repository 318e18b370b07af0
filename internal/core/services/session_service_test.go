package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/password"
)

func issueFor(t *testing.T, f *fixture, username string, level domain.AuthLevel) *IssuedToken {
	t.Helper()
	identity, err := f.repo.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	token, err := f.tokens.Issue(identity, level)
	require.NoError(t, err)
	return token
}

func TestSessionRegisterAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"redteam", "commander", "analyst"} {
		_, err := f.sessions.Register(ctx, RegisterInput{
			Token:     issueFor(t, f, name, domain.AuthLevelMFA),
			Origin:    "10.0.0.1",
			Trust:     85,
			AuthLevel: domain.AuthLevelMFA,
		})
		require.NoError(t, err)
	}

	sessions, err := f.sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "analyst", sessions[0].Username)
	assert.Equal(t, "commander", sessions[1].Username)
	assert.Equal(t, "redteam", sessions[2].Username)
	assert.True(t, sessions[0].MFAVerified)
	assert.Equal(t, 85, sessions[0].DeviceTrustScore)
	assert.Len(t, sessions[0].TokenFingerprint, 16)
}

func TestSessionLatestWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Register(ctx, RegisterInput{Token: issueFor(t, f, "analyst", domain.AuthLevelMFA), AuthLevel: domain.AuthLevelMFA})
	require.NoError(t, err)
	second := issueFor(t, f, "analyst", domain.AuthLevelPassword)
	_, err = f.sessions.Register(ctx, RegisterInput{Token: second, AuthLevel: domain.AuthLevelPassword})
	require.NoError(t, err)

	got, err := f.sessions.Get(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, password.Fingerprint(second.AccessToken), got.TokenFingerprint)
	assert.False(t, got.MFAVerified)
	assert.Equal(t, domain.AuthLevelPassword, got.AuthLevel)
}

func TestSessionExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Register(ctx, RegisterInput{Token: issueFor(t, f, "analyst", domain.AuthLevelMFA), AuthLevel: domain.AuthLevelMFA})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)

	sessions, err := f.sessions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.sessions.Get(ctx, "analyst")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

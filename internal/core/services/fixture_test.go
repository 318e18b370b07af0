package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"c5isr-identity/internal/adapters/persistence/repositories"
	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/config"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/jwt"
	"c5isr-identity/internal/pkg/totp"
)

var testEpoch = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *clock.Fake
	kv        *store.MemoryKV
	authLog   *store.MemoryEventLog
	accessLog *store.MemoryEventLog
	repo      repositories.IdentityRepository
	verifier  *totp.Verifier

	lockout  *LockoutService
	trust    *DeviceTrustService
	mfa      *MFAService
	tokens   *TokenService
	sessions *SessionService
	audit    *AuditService
	policy   *PolicyService
	auth     *AuthService
}

type fixtureOptions struct {
	lockout config.LockoutConfig
	auth    AuthOptions
}

func newFixture(t *testing.T, mutators ...func(*fixtureOptions)) *fixture {
	t.Helper()

	opts := fixtureOptions{
		lockout: config.LockoutConfig{
			MaxAttempts: 5,
			Duration:    300 * time.Second,
			Scope:       config.LockoutScopeOriginIdentity,
		},
		auth: AuthOptions{LegacyEnabled: true},
	}
	for _, m := range mutators {
		m(&opts)
	}

	clk := clock.NewFake(testEpoch)
	f := &fixture{
		clock:     clk,
		kv:        store.NewMemoryKV(clk),
		authLog:   store.NewMemoryEventLog(200),
		accessLog: store.NewMemoryEventLog(500),
		repo:      repositories.NewMemoryIdentityRepository(),
		verifier:  totp.NewVerifier(totp.DefaultIssuer, totp.DefaultSkew),
	}
	require.NoError(t, config.NewSeeder(f.repo, bcrypt.MinCost).Run(context.Background()))

	f.lockout = NewLockoutService(f.kv, clk, opts.lockout)
	f.trust = NewDeviceTrustService(config.TrustConfig{
		TrustedOrigins: []string{"localhost", "127.0.0.1"},
		KnownClients:   []string{"Chrome", "Firefox", "Safari"},
	})
	f.mfa = NewMFAService(f.kv, clk, f.verifier, 120*time.Second)
	f.tokens = NewTokenService(jwt.NewSigner("test-secret", "c5isr-identity", clk.Now), 30*time.Minute)
	f.sessions = NewSessionService(f.kv, clk)
	f.audit = NewAuditService(f.authLog, f.accessLog, clk)
	f.policy = NewPolicyService()
	f.auth = NewAuthService(AuthDeps{
		Identities: f.repo,
		Lockout:    f.lockout,
		Trust:      f.trust,
		MFA:        f.mfa,
		Tokens:     f.tokens,
		Sessions:   f.sessions,
		Audit:      f.audit,
		Verifier:   f.verifier,
		Clock:      clk,
	}, opts.auth)
	return f
}

// code returns the current TOTP code of a seeded identity
func (f *fixture) code(t *testing.T, username string) string {
	t.Helper()
	for _, seed := range config.ReferenceIdentities {
		if seed.Username == username {
			c, err := f.verifier.Code(seed.TOTPSecret, f.clock.Now())
			require.NoError(t, err)
			return c
		}
	}
	t.Fatalf("no seed identity %q", username)
	return ""
}

func (f *fixture) authEvents(t *testing.T) int {
	t.Helper()
	n, err := f.authLog.Len(context.Background())
	require.NoError(t, err)
	return n
}

func browser() TrustContext {
	return TrustContext{
		UserAgent: "Mozilla/5.0 Chrome/120.0",
		Origin:    "http://localhost:3000",
		Secure:    true,
		At:        testEpoch,
	}
}

package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/totp"
)

// ============================================================
// MFA Service - pending second-factor challenges
// ============================================================

const mfaKeyPrefix = "mfa:pending:"

// MFAService brokers the single pending challenge per identity between
// step 1 and step 2
type MFAService struct {
	kv       store.KV
	clock    clock.Clock
	verifier *totp.Verifier
	ttl      time.Duration
}

// NewMFAService creates a new MFA broker
func NewMFAService(kv store.KV, clk clock.Clock, verifier *totp.Verifier, ttl time.Duration) *MFAService {
	return &MFAService{kv: kv, clock: clk, verifier: verifier, ttl: ttl}
}

// TTL returns the lifetime of a pending challenge
func (s *MFAService) TTL() time.Duration {
	return s.ttl
}

// Begin opens a pending challenge for username, superseding any earlier one
func (s *MFAService) Begin(ctx context.Context, username, origin string) (*domain.PendingMFASession, error) {
	session := &domain.PendingMFASession{
		ChallengeToken: newChallengeToken(),
		ExpiresAt:      s.clock.Now().Add(s.ttl),
		Origin:         origin,
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	// Stored past expiry so a late step 2 reports EXPIRED rather than NONE
	if err := s.kv.Put(ctx, mfaKeyPrefix+username, raw, 2*s.ttl); err != nil {
		return nil, fmt.Errorf("store mfa challenge: %w", err)
	}
	return session, nil
}

// Pending returns the open challenge for username
func (s *MFAService) Pending(ctx context.Context, username string) (*domain.PendingMFASession, error) {
	_, session, err := s.load(ctx, username)
	return session, err
}

// Complete consumes the pending challenge when both the challenge token
// and the TOTP code check out. Mismatches leave the challenge open for
// retry; only one caller can consume a given challenge.
func (s *MFAService) Complete(ctx context.Context, username, challenge, code, secret string) (*domain.PendingMFASession, error) {
	key := mfaKeyPrefix + username

	raw, session, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if now.After(session.ExpiresAt) {
		if _, err := s.kv.CompareAndDelete(ctx, key, raw); err != nil {
			return nil, fmt.Errorf("drop expired mfa challenge: %w", err)
		}
		return nil, domain.ErrMFASessionExpired
	}

	if subtle.ConstantTimeCompare([]byte(session.ChallengeToken), []byte(challenge)) != 1 {
		return nil, domain.ErrInvalidMFAChallenge
	}
	if secret == "" {
		return nil, domain.ErrTOTPNotConfigured
	}
	if !s.verifier.Validate(code, secret, now) {
		return nil, domain.ErrInvalidTOTPCode
	}

	deleted, err := s.kv.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return nil, fmt.Errorf("consume mfa challenge: %w", err)
	}
	if !deleted {
		// consumed or superseded while we were verifying
		return nil, domain.ErrNoPendingMFASession
	}
	return session, nil
}

func (s *MFAService) load(ctx context.Context, username string) ([]byte, *domain.PendingMFASession, error) {
	raw, err := s.kv.Get(ctx, mfaKeyPrefix+username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, domain.ErrNoPendingMFASession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load mfa challenge: %w", err)
	}

	var session domain.PendingMFASession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil, fmt.Errorf("decode mfa challenge: %w", err)
	}
	return raw, &session, nil
}

// newChallengeToken returns 32 hex chars of random material
func newChallengeToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

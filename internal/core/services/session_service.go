package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/password"
)

const sessionKeyPrefix = "session:"

// SessionService mirrors issued tokens for operators. It is observational
// only; nothing on the authorization path reads it.
type SessionService struct {
	kv    store.KV
	clock clock.Clock
}

// NewSessionService creates a new session registry
func NewSessionService(kv store.KV, clk clock.Clock) *SessionService {
	return &SessionService{kv: kv, clock: clk}
}

// RegisterInput describes an issuance to record
type RegisterInput struct {
	Token     *IssuedToken
	Origin    string
	Trust     int
	AuthLevel domain.AuthLevel
}

// Register records the latest session for the token subject
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*domain.ActiveSession, error) {
	claims := in.Token.Claims
	session := &domain.ActiveSession{
		Username:         claims.Subject,
		TokenFingerprint: password.Fingerprint(in.Token.AccessToken),
		LoginTime:        s.clock.Now(),
		Origin:           in.Origin,
		DeviceTrustScore: in.Trust,
		MFAVerified:      in.AuthLevel == domain.AuthLevelMFA,
		AuthLevel:        in.AuthLevel,
		ExpiresAt:        claims.ExpiresAt,
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	ttl := session.ExpiresAt.Sub(session.LoginTime)
	if ttl <= 0 {
		return session, nil
	}
	if err := s.kv.Put(ctx, sessionKeyPrefix+session.Username, raw, ttl); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return session, nil
}

// Get returns the active session of username
func (s *SessionService) Get(ctx context.Context, username string) (*domain.ActiveSession, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session domain.ActiveSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// List returns every live session sorted by username
func (s *SessionService) List(ctx context.Context) ([]*domain.ActiveSession, error) {
	entries, err := s.kv.Scan(ctx, sessionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.clock.Now()
	sessions := make([]*domain.ActiveSession, 0, len(entries))
	for key, raw := range entries {
		var session domain.ActiveSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", strings.TrimPrefix(key, sessionKeyPrefix), err)
		}
		if !now.Before(session.ExpiresAt) {
			continue
		}
		sessions = append(sessions, &session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Username < sessions[j].Username
	})
	return sessions, nil
}

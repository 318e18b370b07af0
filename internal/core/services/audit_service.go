package services

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/clock"
)

// ============================================================
// Audit Service - bounded auth and access streams
// ============================================================

// Stream names an audit stream
type Stream string

const (
	// StreamAuth holds step1, step2, legacy and enrollment events
	StreamAuth Stream = "auth"
	// StreamAccess holds policy evaluations and enforcement decisions
	StreamAccess Stream = "access"
)

// DefaultTrustScore is used for risk scoring when no device context exists
const DefaultTrustScore = 50

// Auth event action tags
const (
	ActionCredVerified = "CRED_VERIFIED"
	ActionLoginFail    = "LOGIN_FAIL"
	ActionLoginLocked  = "LOGIN_LOCKED"
	ActionMFAFail      = "MFA_FAIL"
	ActionMFAExpired   = "MFA_EXPIRED"
	ActionLoginSuccess = "LOGIN_SUCCESS"
	ActionLegacyToken  = "LEGACY_TOKEN"
	ActionLegacyFail   = "LEGACY_FAIL"
	ActionTOTPEnroll   = "TOTP_ENROLL"
	ActionPolicyEval   = "POLICY_EVALUATE"
)

// AuditEntry is the caller-supplied part of an audit event
type AuditEntry struct {
	Actor    string
	Action   string
	Resource string
	Decision domain.Decision
	Details  string
	Origin   string
	// Trust is the device trust score, nil when unknown
	Trust *int
}

// AuditStats are decision totals since process start
type AuditStats struct {
	Permits int64 `json:"permits"`
	Denies  int64 `json:"denies"`
	Total   int64 `json:"total"`
}

// AuditService appends security events to bounded streams
type AuditService struct {
	streams map[Stream]store.EventLog
	clock   clock.Clock

	permits atomic.Int64
	denies  atomic.Int64
}

// NewAuditService creates a new audit service
func NewAuditService(auth, access store.EventLog, clk clock.Clock) *AuditService {
	return &AuditService{
		streams: map[Stream]store.EventLog{
			StreamAuth:   auth,
			StreamAccess: access,
		},
		clock: clk,
	}
}

// Record appends one event. A failing backend is logged, never surfaced:
// the security decision already made stands.
func (s *AuditService) Record(ctx context.Context, stream Stream, e AuditEntry) domain.AuditEvent {
	trust := DefaultTrustScore
	if e.Trust != nil {
		trust = *e.Trust
	}

	evt := domain.AuditEvent{
		Timestamp: s.clock.Now(),
		Actor:     e.Actor,
		Action:    e.Action,
		Resource:  e.Resource,
		Decision:  e.Decision,
		Details:   e.Details,
		Origin:    e.Origin,
		RiskScore: RiskScore(e.Decision, trust),
	}

	if stream == StreamAccess {
		if e.Decision == domain.DecisionPermit {
			s.permits.Add(1)
		} else {
			s.denies.Add(1)
		}
	}

	logStream, ok := s.streams[stream]
	if !ok {
		log.Printf("⚠️ Audit stream %q not configured, dropping %s", stream, e.Action)
		return evt
	}

	stored, err := logStream.Append(ctx, evt)
	if err != nil {
		log.Printf("❌ Audit append failed [%s/%s]: %v", stream, e.Action, err)
		return evt
	}
	return stored
}

// Recent returns a newest-first page of stream and its current length
func (s *AuditService) Recent(ctx context.Context, stream Stream, offset, limit int) ([]domain.AuditEvent, int, error) {
	logStream, ok := s.streams[stream]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown audit stream %q", domain.ErrInvalidInput, stream)
	}

	events, err := logStream.Recent(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("read audit stream: %w", err)
	}
	total, err := logStream.Len(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read audit stream: %w", err)
	}
	return events, total, nil
}

// Capacity returns the bound of stream
func (s *AuditService) Capacity(stream Stream) int {
	if l, ok := s.streams[stream]; ok {
		return l.Capacity()
	}
	return 0
}

// Stats returns access decision totals
func (s *AuditService) Stats() AuditStats {
	p, d := s.permits.Load(), s.denies.Load()
	return AuditStats{Permits: p, Denies: d, Total: p + d}
}

// RiskScore derives a risk score from the decision and trust score.
// Permits land in 0..15, denials in 60..95; lower trust scores higher.
func RiskScore(decision domain.Decision, trust int) int {
	distrust := 100 - clamp(trust, 0, 100)
	if decision == domain.DecisionPermit {
		return distrust * 15 / 100
	}
	return 60 + distrust*35/100
}

// intPtr is a helper for optional trust scores
func intPtr(v int) *int {
	return &v
}

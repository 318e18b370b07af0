package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"c5isr-identity/internal/core/domain"
)

// AccessRequest is one enforcement question: may the token holder perform
// action on a resource of the given classification
type AccessRequest struct {
	Claims         *domain.AccessClaims
	Resource       string
	Classification domain.Clearance
	Action         domain.Action
	Origin         string
}

// EnforcementService is the policy enforcement point. It never permits on
// a decider failure.
type EnforcementService struct {
	decider PolicyDecider
	audit   *AuditService
	stepUp  bool
}

// NewEnforcementService creates a new enforcement point. With stepUp set,
// password-level tokens are refused for write and execute.
func NewEnforcementService(decider PolicyDecider, audit *AuditService, stepUp bool) *EnforcementService {
	return &EnforcementService{decider: decider, audit: audit, stepUp: stepUp}
}

// Authorize returns the permitting decision, or an error wrapping
// ErrMFARequired, ErrPolicyDenied or ErrIdentityProviderUnavailable.
// Exactly one access event is recorded per call.
func (s *EnforcementService) Authorize(ctx context.Context, req AccessRequest) (domain.PolicyDecision, error) {
	record := func(d domain.PolicyDecision) {
		s.audit.Record(ctx, StreamAccess, AuditEntry{
			Actor:    req.Claims.Subject,
			Action:   fmt.Sprintf("%s:%s", req.Action, req.Classification),
			Resource: req.Resource,
			Decision: d.Decision,
			Details:  d.Reason,
			Origin:   req.Origin,
		})
	}

	if s.stepUp && req.Claims.AuthLevel != domain.AuthLevelMFA && req.Action != domain.ActionRead {
		d := domain.PolicyDecision{Decision: domain.DecisionDeny, Reason: "MFA verified token required"}
		record(d)
		return d, domain.ErrMFARequired
	}

	d, err := s.decider.Decide(ctx, domain.PolicyRequest{
		SubjectRole:            req.Claims.Role,
		SubjectClearance:       req.Claims.Clearance,
		ResourceClassification: req.Classification,
		Action:                 req.Action,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrIdentityProviderUnavailable, err)
		}
		log.Printf("❌ Policy decision failed for %s on %s: %v", req.Claims.Subject, req.Resource, err)
		d = domain.PolicyDecision{Decision: domain.DecisionDeny, Reason: "Identity provider unavailable"}
		record(d)
		return d, err
	}

	record(d)
	if !d.Permitted() {
		return d, &domain.PolicyDeniedError{Reason: d.Reason}
	}
	return d, nil
}

package services

import (
	"context"

	"c5isr-identity/internal/core/domain"
)

// ============================================================
// Policy Service - zero-trust Policy Decision Point
// ============================================================

// Decision reasons
const (
	ReasonInsufficientClearance = "Insufficient Clearance"
	ReasonExecuteNotAuthorized  = "Role not authorized for execute"
	ReasonPolicyPassed          = "Policy checks passed"
	ReasonMalformedRequest      = "Malformed policy request"
)

// executeRoles may perform execute actions
var executeRoles = map[domain.Role]bool{
	domain.RoleCommander: true,
	domain.RoleRedTeam:   true,
}

// Rule is an additional policy check evaluated after the built-in
// clearance and role checks. Returning a decision stops evaluation.
type Rule interface {
	Name() string
	Description() string
	Evaluate(req domain.PolicyRequest) *domain.PolicyDecision
}

// RuleInfo describes one active rule
type RuleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BuiltIn     bool   `json:"built_in"`
}

// PolicyService evaluates policy requests. It holds no mutable state and
// performs no I/O.
type PolicyService struct {
	rules []Rule
}

// NewPolicyService creates a new PDP with optional extension rules
func NewPolicyService(rules ...Rule) *PolicyService {
	return &PolicyService{rules: rules}
}

// Evaluate decides req. Clearance is checked before role, so an
// under-cleared commander is denied regardless of role.
func (s *PolicyService) Evaluate(req domain.PolicyRequest) domain.PolicyDecision {
	if !req.SubjectRole.Valid() || !req.SubjectClearance.Valid() || !req.ResourceClassification.Valid() {
		return deny(ReasonMalformedRequest)
	}
	if _, err := domain.ParseAction(string(req.Action)); err != nil {
		return deny(ReasonMalformedRequest)
	}

	// no read up
	if !req.SubjectClearance.Dominates(req.ResourceClassification) {
		return deny(ReasonInsufficientClearance)
	}

	if req.Action == domain.ActionExecute && !executeRoles[req.SubjectRole] {
		return deny(ReasonExecuteNotAuthorized)
	}

	for _, rule := range s.rules {
		if d := rule.Evaluate(req); d != nil {
			return *d
		}
	}

	return domain.PolicyDecision{Decision: domain.DecisionPermit, Reason: ReasonPolicyPassed}
}

// Decide implements PolicyDecider for an in-process enforcement point
func (s *PolicyService) Decide(_ context.Context, req domain.PolicyRequest) (domain.PolicyDecision, error) {
	return s.Evaluate(req), nil
}

// Rules lists the active rule catalogue in evaluation order
func (s *PolicyService) Rules() []RuleInfo {
	out := []RuleInfo{
		{Name: "clearance", Description: "Subject clearance must dominate resource classification (no read up)", BuiltIn: true},
		{Name: "execute-role", Description: "Only COMMANDER and RED_TEAM may execute", BuiltIn: true},
	}
	for _, r := range s.rules {
		out = append(out, RuleInfo{Name: r.Name(), Description: r.Description()})
	}
	return out
}

func deny(reason string) domain.PolicyDecision {
	return domain.PolicyDecision{Decision: domain.DecisionDeny, Reason: reason}
}

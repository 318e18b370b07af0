package services

import (
	"context"

	"c5isr-identity/internal/core/domain"
)

// PolicyDecider is the port an enforcement point asks for decisions.
// PolicyService answers in-process; pdpclient.Client answers over HTTP.
// Any error must be treated as a deny.
type PolicyDecider interface {
	Decide(ctx context.Context, req domain.PolicyRequest) (domain.PolicyDecision, error)
}

// TokenVerifier verifies bearer tokens for the enforcement point
type TokenVerifier interface {
	Verify(token string) (*domain.AccessClaims, error)
}

// Compile-time checks
var (
	_ PolicyDecider = (*PolicyService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrNoPendingMFASession = errors.New("no pending mfa session")
	ErrMFASessionExpired   = errors.New("mfa session expired")
	ErrInvalidMFAChallenge = errors.New("invalid mfa challenge token")
	ErrInvalidTOTPCode     = errors.New("invalid totp code")
	ErrTOTPNotConfigured   = errors.New("totp not configured for identity")
	ErrLegacyDisabled      = errors.New("legacy token exchange disabled")
)

// Token errors
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Authorization errors
var (
	ErrPolicyDenied                = errors.New("policy denied")
	ErrMFARequired                 = errors.New("mfa verified token required")
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")
)

// AccountLockedError carries the lock state back to the caller
type AccountLockedError struct {
	RemainingSeconds int
	Attempts         int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked due to %d failed attempts, retry in %d seconds", e.Attempts, e.RemainingSeconds)
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// InvalidCredentialsError reports how many attempts remain before lockout
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempt(s) remaining before lockout", e.AttemptsRemaining)
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// PolicyDeniedError carries the PDP reason
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return "access denied: " + e.Reason
}

func (e *PolicyDeniedError) Unwrap() error { return ErrPolicyDenied }

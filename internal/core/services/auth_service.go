package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"c5isr-identity/internal/adapters/persistence/repositories"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/password"
	"c5isr-identity/internal/pkg/totp"
)

// Step statuses returned to clients
const (
	StatusCredentialsVerified = "CREDENTIALS_VERIFIED"
	StatusAuthenticated       = "AUTHENTICATED"
)

// AuthOptions toggles optional behaviour of the auth flow
type AuthOptions struct {
	LegacyEnabled bool
	// MFAFailuresTripLockout counts invalid TOTP codes as lockout failures
	MFAFailuresTripLockout bool
}

// AuthDeps wires the collaborators of AuthService
type AuthDeps struct {
	Identities repositories.IdentityRepository
	Lockout    *LockoutService
	Trust      *DeviceTrustService
	MFA        *MFAService
	Tokens     *TokenService
	Sessions   *SessionService
	Audit      *AuditService
	Verifier   *totp.Verifier
	Clock      clock.Clock
}

// AuthService orchestrates the two-step login, the legacy token exchange
// and TOTP enrollment
type AuthService struct {
	AuthDeps
	opts AuthOptions
}

// NewAuthService creates a new auth service
func NewAuthService(deps AuthDeps, opts AuthOptions) *AuthService {
	return &AuthService{AuthDeps: deps, opts: opts}
}

// Step1Input represents the credential step input
type Step1Input struct {
	Username string
	Password string
	ClientIP string
	Device   TrustContext
}

// MFADelivery tells the client how to obtain the second factor
type MFADelivery struct {
	Method  string `json:"method"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// Step1Result is returned once credentials check out
type Step1Result struct {
	Step         int                 `json:"step"`
	Status       string              `json:"status"`
	MFARequired  bool                `json:"mfa_required"`
	SessionToken string              `json:"session_token"`
	DeviceTrust  *domain.DeviceTrust `json:"device_trust"`
	TOTPEnrolled bool                `json:"totp_enrolled"`
	MFADelivery  MFADelivery         `json:"mfa_delivery"`
	Username     string              `json:"username"`
	FullName     string              `json:"full_name"`
	Role         domain.Role         `json:"role"`
	Clearance    domain.Clearance    `json:"clearance"`
	ExpiresIn    int                 `json:"expires_in"`
}

// Step2Input represents the second-factor step input
type Step2Input struct {
	Username  string
	Code      string
	Challenge string
	ClientIP  string
	Device    TrustContext
}

// Step2Result carries the issued token
type Step2Result struct {
	Step        int                 `json:"step"`
	Status      string              `json:"status"`
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int                 `json:"expires_in"`
	AuthLevel   domain.AuthLevel    `json:"auth_level"`
	DeviceTrust *domain.DeviceTrust `json:"device_trust"`
	User        *domain.UserSummary `json:"user"`
}

// LegacyInput represents the single-step token exchange input
type LegacyInput struct {
	Username string
	Password string
	ClientIP string
	Device   TrustContext
}

// Enrollment is the provisioning material for an authenticator app
type Enrollment struct {
	Username string
	URI      string
	QR       image.Image
}

// Step1 verifies credentials and opens a pending MFA challenge
func (s *AuthService) Step1(ctx context.Context, in Step1Input) (*Step1Result, error) {
	identity, err := s.checkCredentials(ctx, "auth/step1", ActionLoginFail, ActionLoginLocked, in.Username, in.Password, in.ClientIP)
	if err != nil {
		return nil, err
	}

	trust := s.Trust.Evaluate(in.Device)

	pending, err := s.MFA.Begin(ctx, identity.Username, in.ClientIP)
	if err != nil {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    identity.Username,
			Action:   ActionLoginFail,
			Resource: "auth/step1",
			Decision: domain.DecisionDeny,
			Details:  "MFA challenge could not be opened",
			Origin:   in.ClientIP,
		})
		return nil, err
	}

	s.Audit.Record(ctx, StreamAuth, AuditEntry{
		Actor:    identity.Username,
		Action:   ActionCredVerified,
		Resource: "auth/step1",
		Decision: domain.DecisionPermit,
		Details:  fmt.Sprintf("MFA required. TOTP enrolled: %t. Trust: %d.", identity.TOTPEnrolled, trust.Score),
		Origin:   in.ClientIP,
		Trust:    intPtr(trust.Score),
	})

	return &Step1Result{
		Step:         1,
		Status:       StatusCredentialsVerified,
		MFARequired:  identity.MFAEnabled,
		SessionToken: pending.ChallengeToken,
		DeviceTrust:  trust,
		TOTPEnrolled: identity.TOTPEnrolled,
		MFADelivery: MFADelivery{
			Method:  "TOTP-SHA1",
			Channel: "Authenticator App",
			Status:  "AWAITING_CODE",
		},
		Username:  identity.Username,
		FullName:  identity.FullName,
		Role:      identity.Role,
		Clearance: identity.Clearance,
		ExpiresIn: int(s.MFA.TTL().Seconds()),
	}, nil
}

// Step2 completes the pending challenge and issues an mfa-level token
func (s *AuthService) Step2(ctx context.Context, in Step2Input) (*Step2Result, error) {
	fail := func(action, details string, err error) (*Step2Result, error) {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    in.Username,
			Action:   action,
			Resource: "auth/step2",
			Decision: domain.DecisionDeny,
			Details:  details,
			Origin:   in.ClientIP,
		})
		return nil, err
	}

	if s.opts.MFAFailuresTripLockout {
		status, err := s.Lockout.Check(ctx, s.Lockout.Key(in.ClientIP, in.Username))
		if err != nil {
			return fail(ActionMFAFail, "Lockout check failed", err)
		}
		if status.Locked {
			return fail(ActionLoginLocked, fmt.Sprintf("Account locked. %ds remaining", status.RemainingSeconds), &domain.AccountLockedError{
				RemainingSeconds: status.RemainingSeconds,
				Attempts:         status.Attempts,
			})
		}
	}

	identity, err := s.Identities.GetByUsername(ctx, in.Username)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return fail(ActionMFAFail, "No pending MFA session", domain.ErrNoPendingMFASession)
	}
	if err != nil {
		return fail(ActionMFAFail, "Identity lookup failed", err)
	}

	pending, err := s.MFA.Complete(ctx, in.Username, in.Challenge, in.Code, identity.TOTPSecret)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoPendingMFASession):
		return fail(ActionMFAFail, "No pending MFA session", err)
	case errors.Is(err, domain.ErrMFASessionExpired):
		return fail(ActionMFAExpired, "MFA session expired", err)
	case errors.Is(err, domain.ErrInvalidMFAChallenge):
		return fail(ActionMFAFail, "Invalid session token", err)
	case errors.Is(err, domain.ErrTOTPNotConfigured):
		return fail(ActionMFAFail, "TOTP not configured", err)
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		if s.opts.MFAFailuresTripLockout {
			if _, lerr := s.Lockout.RecordFailure(ctx, s.Lockout.Key(in.ClientIP, in.Username)); lerr != nil {
				log.Printf("⚠️ Lockout update failed for %s: %v", in.Username, lerr)
			}
		}
		return fail(ActionMFAFail, "Invalid TOTP code", err)
	default:
		return fail(ActionMFAFail, "MFA verification error", err)
	}

	// The challenge is spent from here on. A storage failure below means the
	// operator starts again at step 1; a code is never accepted twice.
	updated, err := s.Identities.RecordLogin(ctx, identity.Username, s.Clock.Now())
	if err != nil {
		return fail(ActionMFAFail, "Login bookkeeping failed", err)
	}

	s.clearLockout(ctx, in.Username, in.ClientIP, pending.Origin)

	token, err := s.Tokens.Issue(updated, domain.AuthLevelMFA)
	if err != nil {
		return fail(ActionMFAFail, "Token issuance failed", err)
	}

	trust := s.Trust.Evaluate(in.Device)
	s.register(ctx, token, in.ClientIP, trust.Score, domain.AuthLevelMFA)

	s.Audit.Record(ctx, StreamAuth, AuditEntry{
		Actor:    updated.Username,
		Action:   ActionLoginSuccess,
		Resource: "auth/step2",
		Decision: domain.DecisionPermit,
		Details:  fmt.Sprintf("Full auth complete. TOTP verified. Trust: %d.", trust.Score),
		Origin:   in.ClientIP,
		Trust:    intPtr(trust.Score),
	})
	log.Printf("✅ %s authenticated (mfa) from %s", updated.Username, in.ClientIP)

	return &Step2Result{
		Step:        2,
		Status:      StatusAuthenticated,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		AuthLevel:   domain.AuthLevelMFA,
		DeviceTrust: trust,
		User:        updated.Summary(),
	}, nil
}

// LegacyToken exchanges credentials for a password-level token, bypassing
// MFA. Enforcement points can refuse such tokens for MFA-gated actions.
func (s *AuthService) LegacyToken(ctx context.Context, in LegacyInput) (*IssuedToken, error) {
	if !s.opts.LegacyEnabled {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    in.Username,
			Action:   ActionLegacyFail,
			Resource: "token",
			Decision: domain.DecisionDeny,
			Details:  "Legacy token exchange disabled",
			Origin:   in.ClientIP,
		})
		return nil, domain.ErrLegacyDisabled
	}

	identity, err := s.checkCredentials(ctx, "token", ActionLegacyFail, ActionLegacyFail, in.Username, in.Password, in.ClientIP)
	if err != nil {
		return nil, err
	}

	s.clearLockout(ctx, identity.Username, in.ClientIP)

	token, err := s.Tokens.Issue(identity, domain.AuthLevelPassword)
	if err != nil {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    identity.Username,
			Action:   ActionLegacyFail,
			Resource: "token",
			Decision: domain.DecisionDeny,
			Details:  "Token issuance failed",
			Origin:   in.ClientIP,
		})
		return nil, err
	}

	trust := s.Trust.Evaluate(in.Device)
	s.register(ctx, token, in.ClientIP, trust.Score, domain.AuthLevelPassword)

	s.Audit.Record(ctx, StreamAuth, AuditEntry{
		Actor:    identity.Username,
		Action:   ActionLegacyToken,
		Resource: "token",
		Decision: domain.DecisionPermit,
		Details:  "Single-step token issued without MFA",
		Origin:   in.ClientIP,
		Trust:    intPtr(trust.Score),
	})
	log.Printf("⚠️ Legacy password-level token issued to %s", identity.Username)

	return token, nil
}

// Me returns the safe summary of the token subject
func (s *AuthService) Me(ctx context.Context, claims *domain.AccessClaims) (*domain.UserSummary, error) {
	identity, err := s.Identities.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return identity.Summary(), nil
}

// Enroll returns the provisioning URI and QR image for username and marks
// the identity enrolled. Once enrolled, the secret is only re-issued to an
// mfa-level token; a password alone must never yield the second factor.
func (s *AuthService) Enroll(ctx context.Context, username string, level domain.AuthLevel, clientIP string, qrSize int) (*Enrollment, error) {
	identity, err := s.Identities.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if identity.TOTPSecret == "" {
		return nil, domain.ErrTOTPNotConfigured
	}
	if identity.TOTPEnrolled && level != domain.AuthLevelMFA {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    identity.Username,
			Action:   ActionTOTPEnroll,
			Resource: "auth/totp/qr",
			Decision: domain.DecisionDeny,
			Details:  fmt.Sprintf("Re-enrollment refused for %s-level token", level),
			Origin:   clientIP,
		})
		return nil, domain.ErrMFARequired
	}

	uri, err := s.Verifier.ProvisioningURI(identity.Username, identity.TOTPSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTOTPNotConfigured, err)
	}
	img, err := s.Verifier.QRImage(identity.Username, identity.TOTPSecret, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}

	if err := s.Identities.MarkTOTPEnrolled(ctx, identity.Username); err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, StreamAuth, AuditEntry{
		Actor:    identity.Username,
		Action:   ActionTOTPEnroll,
		Resource: "auth/totp/qr",
		Decision: domain.DecisionPermit,
		Details:  "Provisioning QR issued",
		Origin:   clientIP,
	})

	return &Enrollment{Username: identity.Username, URI: uri, QR: img}, nil
}

// checkCredentials runs the lockout-guarded password check shared by
// step 1 and the legacy exchange. Every failure is audited under failAction.
func (s *AuthService) checkCredentials(ctx context.Context, resource, failAction, lockAction, username, secret, clientIP string) (*domain.Identity, error) {
	audit := func(action, details string) {
		s.Audit.Record(ctx, StreamAuth, AuditEntry{
			Actor:    username,
			Action:   action,
			Resource: resource,
			Decision: domain.DecisionDeny,
			Details:  details,
			Origin:   clientIP,
		})
	}

	key := s.Lockout.Key(clientIP, username)

	status, err := s.Lockout.Check(ctx, key)
	if err != nil {
		audit(failAction, "Lockout check failed")
		return nil, err
	}
	if status.Locked {
		audit(lockAction, fmt.Sprintf("Account locked. %ds remaining", status.RemainingSeconds))
		return nil, &domain.AccountLockedError{
			RemainingSeconds: status.RemainingSeconds,
			Attempts:         status.Attempts,
		}
	}

	identity, err := s.Identities.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
		audit(failAction, "Identity lookup failed")
		return nil, err
	}

	var reason string
	switch {
	case identity == nil:
		password.VerifyUnknown(secret)
		reason = "User not found"
	case identity.Disabled:
		reason = "Identity disabled"
	case !password.Verify(secret, identity.PasswordHash):
		reason = "Wrong password"
	}
	if reason == "" {
		return identity, nil
	}

	rec, err := s.Lockout.RecordFailure(ctx, key)
	if err != nil {
		audit(failAction, reason)
		return nil, err
	}
	remaining := s.Lockout.Remaining(rec)
	audit(failAction, fmt.Sprintf("%s. %d attempts remaining", reason, remaining))

	return nil, &domain.InvalidCredentialsError{AttemptsRemaining: remaining}
}

// clearLockout drops the lockout records for the current and step-1 origins
func (s *AuthService) clearLockout(ctx context.Context, username string, origins ...string) {
	seen := map[string]bool{}
	for _, origin := range origins {
		key := s.Lockout.Key(origin, username)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.Lockout.Clear(ctx, key); err != nil {
			log.Printf("⚠️ Lockout clear failed for %s: %v", username, err)
		}
	}
}

func (s *AuthService) register(ctx context.Context, token *IssuedToken, clientIP string, trust int, level domain.AuthLevel) {
	_, err := s.Sessions.Register(ctx, RegisterInput{
		Token:     token,
		Origin:    clientIP,
		Trust:     trust,
		AuthLevel: level,
	})
	if err != nil {
		log.Printf("⚠️ Session registry update failed for %s: %v", token.Claims.Subject, err)
	}
}

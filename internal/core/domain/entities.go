package domain

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Roles & Clearance
// ============================================================

// Role is the closed set of operator roles
type Role string

const (
	RoleCommander  Role = "COMMANDER"
	RoleSOCAnalyst Role = "SOC_ANALYST"
	RoleSoldier    Role = "SOLDIER"
	RoleRedTeam    Role = "RED_TEAM"
)

// ParseRole converts a wire value into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleCommander, RoleSOCAnalyst, RoleSoldier, RoleRedTeam:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Valid reports whether r is one of the declared roles
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// UnmarshalText rejects roles outside the closed set
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Clearance is a level of the clearance lattice.
// Subject clearance and resource classification share the same scale.
type Clearance uint8

const (
	ClearanceUnclassified Clearance = iota
	ClearanceConfidential
	ClearanceSecret
	ClearanceTopSecret
)

var clearanceNames = [...]string{
	ClearanceUnclassified: "UNCLASSIFIED",
	ClearanceConfidential: "CONFIDENTIAL",
	ClearanceSecret:       "SECRET",
	ClearanceTopSecret:    "TOP_SECRET",
}

// Clearances lists every level in ascending order
func Clearances() []Clearance {
	return []Clearance{ClearanceUnclassified, ClearanceConfidential, ClearanceSecret, ClearanceTopSecret}
}

// ParseClearance converts a wire value into a Clearance
func ParseClearance(s string) (Clearance, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, " ", "_")
	for i, n := range clearanceNames {
		if n == name {
			return Clearance(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown clearance %q", ErrInvalidInput, s)
}

// Valid reports whether c is inside the lattice
func (c Clearance) Valid() bool {
	return int(c) < len(clearanceNames)
}

// Level returns the position of c in the total order
func (c Clearance) Level() int {
	return int(c)
}

// Dominates reports whether c is at least as high as other
func (c Clearance) Dominates(other Clearance) bool {
	return c >= other
}

func (c Clearance) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Clearance(%d)", uint8(c))
	}
	return clearanceNames[c]
}

// MarshalText encodes the clearance by name
func (c Clearance) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: clearance %d out of range", ErrInvalidInput, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText rejects levels outside the lattice
func (c *Clearance) UnmarshalText(b []byte) error {
	parsed, err := ParseClearance(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Action is the operation requested on a resource
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionExecute Action = "execute"
)

// ParseAction converts a wire value into an Action
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionRead, ActionWrite, ActionExecute:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, s)
}

// UnmarshalText rejects actions outside the closed set
func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AuthLevel is the trust level a token was issued at
type AuthLevel string

const (
	// AuthLevelPassword tokens come from the legacy single-step exchange
	AuthLevelPassword AuthLevel = "password"
	// AuthLevelMFA tokens come from the full two-step flow
	AuthLevelMFA AuthLevel = "mfa"
)

// Valid reports whether l is a known level
func (l AuthLevel) Valid() bool {
	return l == AuthLevelPassword || l == AuthLevelMFA
}

// Decision is the outcome of a policy evaluation
type Decision string

const (
	DecisionPermit Decision = "PERMIT"
	DecisionDeny   Decision = "DENY"
)

// RiskLevel bands a device trust score
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ============================================================
// Identity
// ============================================================

// Identity is a provisioned operator account
type Identity struct {
	Username     string
	FullName     string
	PasswordHash string
	Role         Role
	Clearance    Clearance
	MFAEnabled   bool
	TOTPEnrolled bool
	TOTPSecret   string
	Disabled     bool
	LastLogin    *time.Time
	LoginCount   int
}

// UserSummary is the non-sensitive view of an Identity
type UserSummary struct {
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	Clearance    Clearance  `json:"clearance"`
	MFAEnabled   bool       `json:"mfa_enabled"`
	TOTPEnrolled bool       `json:"totp_enrolled"`
	LastLogin    *time.Time `json:"last_login"`
	LoginCount   int        `json:"login_count"`
}

// Summary strips secrets from the identity
func (i *Identity) Summary() *UserSummary {
	return &UserSummary{
		Username:     i.Username,
		FullName:     i.FullName,
		Role:         i.Role,
		Clearance:    i.Clearance,
		MFAEnabled:   i.MFAEnabled,
		TOTPEnrolled: i.TOTPEnrolled,
		LastLogin:    i.LastLogin,
		LoginCount:   i.LoginCount,
	}
}

// ============================================================
// Lockout
// ============================================================

// LockoutRecord counts failures for one lockout key
type LockoutRecord struct {
	Attempts    int        `json:"attempts"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// LockedAt reports whether the record holds an active lock at now
func (r *LockoutRecord) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// ExpiredAt reports whether a lock existed and has lapsed at now
func (r *LockoutRecord) ExpiredAt(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// LockStatus is the result of a lockout check
type LockStatus struct {
	Locked           bool `json:"locked"`
	RemainingSeconds int  `json:"remaining_seconds"`
	Attempts         int  `json:"attempts"`
}

// ============================================================
// MFA & Sessions
// ============================================================

// PendingMFASession binds a step-1 success to a step-2 attempt
type PendingMFASession struct {
	ChallengeToken string    `json:"challenge_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	Origin         string    `json:"origin"`
}

// ActiveSession mirrors an issued token for operators
type ActiveSession struct {
	Username         string    `json:"username"`
	TokenFingerprint string    `json:"token_hash"`
	LoginTime        time.Time `json:"login_time"`
	Origin           string    `json:"ip"`
	DeviceTrustScore int       `json:"device_trust_score"`
	MFAVerified      bool      `json:"mfa_verified"`
	AuthLevel        AuthLevel `json:"auth_level"`
	ExpiresAt        time.Time `json:"expires"`
}

// AccessClaims are the verified contents of an access token
type AccessClaims struct {
	Subject   string    `json:"sub"`
	Role      Role      `json:"role"`
	Clearance Clearance `json:"clearance"`
	AuthLevel AuthLevel `json:"auth_level"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

// ============================================================
// Device Trust
// ============================================================

// TrustFactor is one contribution to a device trust score
type TrustFactor struct {
	Factor string `json:"factor"`
	Impact string `json:"impact"`
	Status string `json:"status"`
}

// DeviceTrust is the advisory trust assessment of a request
type DeviceTrust struct {
	Score     int           `json:"score"`
	RiskLevel RiskLevel     `json:"risk_level"`
	Factors   []TrustFactor `json:"factors"`
	UserAgent string        `json:"user_agent"`
}

// ============================================================
// Policy
// ============================================================

// PolicyRequest asks whether a subject may act on a resource
type PolicyRequest struct {
	SubjectRole            Role      `json:"subject_role"`
	SubjectClearance       Clearance `json:"subject_clearance"`
	ResourceClassification Clearance `json:"resource_classification"`
	Action                 Action    `json:"action"`
}

// PolicyDecision is the PDP verdict
type PolicyDecision struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Permitted reports whether the decision allows access
func (d PolicyDecision) Permitted() bool {
	return d.Decision == DecisionPermit
}

// ============================================================
// Audit
// ============================================================

// AuditEvent is one entry in an audit stream
type AuditEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Decision  Decision  `json:"decision"`
	Details   string    `json:"details"`
	Origin    string    `json:"ip,omitempty"`
	RiskScore int       `json:"risk_score"`
}

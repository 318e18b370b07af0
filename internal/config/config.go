package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"c5isr-identity/internal/core/domain"
)

// DevJWTSecret is the built-in development secret; prod refuses to start with it
const DevJWTSecret = "dev-only-insecure-secret"

// Lockout key scopes
const (
	LockoutScopeOriginIdentity = "origin_identity"
	LockoutScopeIdentity       = "identity"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
	PDPModeLocal  = "local"
	PDPModeRemote = "remote"
)

// Config holds all configuration for the application
type Config struct {
	AppMode     string
	Port        string
	Database    DatabaseConfig
	JWT         JWTConfig
	Lockout     LockoutConfig
	MFA         MFAConfig
	Trust       TrustConfig
	Audit       AuditConfig
	State       StateConfig
	Credentials CredentialConfig
	Policy      PolicyConfig
	RateLimit   RateLimitConfig
	Janitor     JanitorConfig
	Cookie      CookieConfig
	Proxy       ProxyConfig

	allowedOrigins string
}

type appEnv struct {
	AppMode        string `env:"APP_MODE" envDefault:"dev"`
	Port           string `env:"PORT" envDefault:"8000"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

// DatabaseConfig holds database configuration (read with the DEV_/PROD_ prefix)
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"3306"`
	User     string `env:"DB_USER" envDefault:"root"`
	Password string `env:"DB_PASS"`
	DBName   string `env:"DB_NAME" envDefault:"c5isr_identity"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

// JWTConfig holds access token configuration
type JWTConfig struct {
	Secret          string `env:"JWT_SECRET"`
	Issuer          string `env:"JWT_ISSUER" envDefault:"c5isr-identity"`
	AccessTokenMins int    `env:"ACCESS_TOKEN_MINUTES" envDefault:"30"`
}

// AccessTokenTTL returns the token lifetime
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.AccessTokenMins) * time.Minute
}

// LockoutConfig tunes brute-force protection.
// Scope origin_identity keys failures by (origin, identity) so one origin
// cannot lock an operator out everywhere; scope identity trades that
// availability for stronger protection against distributed guessing.
type LockoutConfig struct {
	MaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	Duration    time.Duration `env:"LOCKOUT_DURATION" envDefault:"300s"`
	Scope       string        `env:"LOCKOUT_SCOPE" envDefault:"origin_identity"`
}

// MFAConfig holds second-factor configuration
type MFAConfig struct {
	ChallengeTTL        time.Duration `env:"MFA_CHALLENGE_TTL" envDefault:"120s"`
	FailuresTripLockout bool          `env:"MFA_FAILURES_TRIP_LOCKOUT" envDefault:"false"`
	TOTPIssuer          string        `env:"TOTP_ISSUER" envDefault:"C5ISR Zero Trust"`
	TOTPSkew            uint          `env:"TOTP_SKEW" envDefault:"1"`
}

// TrustConfig feeds the device trust evaluator
type TrustConfig struct {
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:"," envDefault:"localhost,127.0.0.1"`
	KnownClients   []string `env:"KNOWN_CLIENTS" envSeparator:"," envDefault:"Chrome,Firefox,Safari"`
}

// AuditConfig sizes the audit streams
type AuditConfig struct {
	AccessCapacity int `env:"AUDIT_CAPACITY" envDefault:"500"`
	AuthCapacity   int `env:"AUTH_AUDIT_CAPACITY" envDefault:"200"`
}

// StateConfig selects where lockout, MFA and session state live
type StateConfig struct {
	Backend   string `env:"STATE_BACKEND" envDefault:"memory"`
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Namespace string `env:"REDIS_NAMESPACE" envDefault:"c5isr:"`
}

// CredentialConfig selects the identity store
type CredentialConfig struct {
	Backend    string `env:"CREDENTIAL_BACKEND" envDefault:"memory"`
	SeedOnBoot bool   `env:"SEED_IDENTITIES" envDefault:"true"`
}

// PolicyConfig controls the PDP and the enforcement point
type PolicyConfig struct {
	LegacyTokenEnabled bool          `env:"LEGACY_TOKEN_ENABLED" envDefault:"true"`
	PDPMode            string        `env:"PDP_MODE" envDefault:"local"`
	PDPURL             string        `env:"PDP_URL" envDefault:"http://localhost:8000"`
	PDPTimeout         time.Duration `env:"PDP_TIMEOUT" envDefault:"2s"`
	MFAStepUp          bool          `env:"POLICY_MFA_STEP_UP" envDefault:"true"`
	PEPClassification  string        `env:"PEP_CLASSIFICATION" envDefault:"CONFIDENTIAL"`
}

// Classification returns the resource classification guarded by the PEP
func (p PolicyConfig) Classification() domain.Clearance {
	c, err := domain.ParseClearance(p.PEPClassification)
	if err != nil {
		return domain.ClearanceTopSecret
	}
	return c
}

// RateLimitConfig holds request limits per IP per minute
type RateLimitConfig struct {
	Max       int `env:"RATE_LIMIT_MAX" envDefault:"100"`
	AuthMax   int `env:"AUTH_RATE_LIMIT_MAX" envDefault:"20"`
	PolicyMax int `env:"POLICY_RATE_LIMIT_MAX" envDefault:"60"`
}

// ProxyConfig controls which peers may set the client address.
// Header is only honoured on requests whose peer is in TrustedProxies.
type ProxyConfig struct {
	Header         string   `env:"PROXY_HEADER" envDefault:"X-Forwarded-For"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// JanitorConfig schedules expired-state sweeps
type JanitorConfig struct {
	Schedule string `env:"JANITOR_SCHEDULE" envDefault:"@every 1m"`
}

// CookieConfig holds access token cookie settings
type CookieConfig struct {
	Secure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	SameSite string `env:"COOKIE_SAMESITE" envDefault:"Strict"`
	Domain   string `env:"COOKIE_DOMAIN"`
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", cfg.AppMode)
	return cfg, nil
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	var app appEnv
	if err := env.Parse(&app); err != nil {
		return nil, fmt.Errorf("parse app config: %w", err)
	}

	// trim spaces for Windows compatibility
	appMode := strings.TrimSpace(app.AppMode)
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	cfg := &Config{
		AppMode:        appMode,
		Port:           app.Port,
		allowedOrigins: app.AllowedOrigins,
	}

	prefix := "DEV_"
	if appMode == "prod" {
		prefix = "PROD_"
	}

	sections := []struct {
		target interface{}
		prefix string
	}{
		{&cfg.Database, prefix},
		{&cfg.JWT, ""},
		{&cfg.Lockout, ""},
		{&cfg.MFA, ""},
		{&cfg.Trust, ""},
		{&cfg.Audit, ""},
		{&cfg.State, ""},
		{&cfg.Credentials, ""},
		{&cfg.Policy, ""},
		{&cfg.RateLimit, ""},
		{&cfg.Janitor, ""},
		{&cfg.Cookie, ""},
		{&cfg.Proxy, ""},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: s.prefix}); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// The signing secret is mode-scoped like the database block
	var secret struct {
		Secret string `env:"JWT_SECRET"`
	}
	if err := env.ParseWithOptions(&secret, env.Options{Prefix: prefix}); err != nil {
		return nil, fmt.Errorf("parse jwt secret: %w", err)
	}
	if secret.Secret != "" {
		cfg.JWT.Secret = secret.Secret
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = DevJWTSecret
	}

	if cfg.IsProd() {
		cfg.Cookie.Secure = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProd() && c.JWT.Secret == DevJWTSecret {
		return fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}
	if c.JWT.AccessTokenMins < 1 {
		return fmt.Errorf("ACCESS_TOKEN_MINUTES must be positive")
	}
	if c.Lockout.MaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}
	if c.MFA.ChallengeTTL <= 0 {
		return fmt.Errorf("MFA_CHALLENGE_TTL must be positive")
	}
	if c.Audit.AccessCapacity < 1 || c.Audit.AuthCapacity < 1 {
		return fmt.Errorf("audit capacities must be positive")
	}
	if c.RateLimit.Max < 1 || c.RateLimit.AuthMax < 1 || c.RateLimit.PolicyMax < 1 {
		return fmt.Errorf("rate limits must be positive")
	}

	checks := []struct {
		name, value string
		allowed     []string
	}{
		{"LOCKOUT_SCOPE", c.Lockout.Scope, []string{LockoutScopeOriginIdentity, LockoutScopeIdentity}},
		{"STATE_BACKEND", c.State.Backend, []string{BackendMemory, BackendRedis}},
		{"CREDENTIAL_BACKEND", c.Credentials.Backend, []string{BackendMemory, BackendMySQL}},
		{"PDP_MODE", c.Policy.PDPMode, []string{PDPModeLocal, PDPModeRemote}},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("invalid %s: '%s' (must be one of %s)", ch.name, ch.value, strings.Join(ch.allowed, ", "))
		}
	}

	if _, err := domain.ParseClearance(c.Policy.PEPClassification); err != nil {
		return fmt.Errorf("invalid PEP_CLASSIFICATION: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if c.allowedOrigins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return c.allowedOrigins
}

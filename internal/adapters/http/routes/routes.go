package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"c5isr-identity/internal/adapters/http/handlers"
	"c5isr-identity/internal/adapters/http/middleware"
	"c5isr-identity/internal/adapters/persistence/repositories"
	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/config"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/jwt"
	"c5isr-identity/internal/pkg/totp"
)

// Dependencies are the backends chosen at startup
type Dependencies struct {
	Identities repositories.IdentityRepository
	State      store.KV
	AuthLog    store.EventLog
	AccessLog  store.EventLog
	// Decider answers enforcement questions. Nil uses the in-process PDP.
	Decider      services.PolicyDecider
	Clock        clock.Clock
	HealthChecks map[string]handlers.HealthCheckFunc
}

// Setup configures all routes for the application
func Setup(app *fiber.App, cfg *config.Config, deps Dependencies) {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	// Initialize services
	verifier := totp.NewVerifier(cfg.MFA.TOTPIssuer, cfg.MFA.TOTPSkew)
	signer := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer, clk.Now)
	tokenService := services.NewTokenService(signer, cfg.JWT.AccessTokenTTL())
	auditService := services.NewAuditService(deps.AuthLog, deps.AccessLog, clk)
	sessionService := services.NewSessionService(deps.State, clk)
	policyService := services.NewPolicyService()

	authService := services.NewAuthService(services.AuthDeps{
		Identities: deps.Identities,
		Lockout:    services.NewLockoutService(deps.State, clk, cfg.Lockout),
		Trust:      services.NewDeviceTrustService(cfg.Trust),
		MFA:        services.NewMFAService(deps.State, clk, verifier, cfg.MFA.ChallengeTTL),
		Tokens:     tokenService,
		Sessions:   sessionService,
		Audit:      auditService,
		Verifier:   verifier,
		Clock:      clk,
	}, services.AuthOptions{
		LegacyEnabled:          cfg.Policy.LegacyTokenEnabled,
		MFAFailuresTripLockout: cfg.MFA.FailuresTripLockout,
	})

	var decider services.PolicyDecider = policyService
	if deps.Decider != nil {
		decider = deps.Decider
	}
	pep := services.NewEnforcementService(decider, auditService, cfg.Policy.MFAStepUp)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg, deps.HealthChecks)
	authHandler := handlers.NewAuthHandler(authService, clk, cfg)
	policyHandler := handlers.NewPolicyHandler(policyService, auditService, pep)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	auditHandler := handlers.NewAuditHandler(auditService)

	authLimiter := middleware.AuthRateLimiter(cfg.RateLimit.AuthMax)
	requireToken := middleware.AuthMiddleware(tokenService)
	guard := middleware.Enforce(pep, cfg.Policy.Classification(), domain.ActionRead)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Legacy OAuth2 password-grant endpoint
	app.Post("/token", authLimiter, middleware.NoCacheHeaders(), authHandler.LegacyToken)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, auditHandler, authLimiter, requireToken, guard)

	// Policy decision point (public, consumed by enforcement points)
	policyRoutes := apiV1.Group("/policy")
	policyRoutes.Post("/evaluate", middleware.PolicyRateLimiter(cfg.RateLimit.PolicyMax), policyHandler.Evaluate)
	policyRoutes.Get("/rules", policyHandler.Rules)

	// Enforcement check for the caller's own token
	apiV1.Post("/access/check", requireToken, policyHandler.AccessCheck)

	// Observability (guarded)
	apiV1.Get("/sessions", requireToken, guard, sessionHandler.List)
	apiV1.Get("/audit", requireToken, guard, auditHandler.Access)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(
	router fiber.Router,
	handler *handlers.AuthHandler,
	auditHandler *handlers.AuditHandler,
	limiter, requireToken, guard fiber.Handler,
) {
	noCache := middleware.NoCacheHeaders()

	// Public routes
	router.Post("/step1", limiter, noCache, handler.Step1)
	router.Post("/step2", limiter, noCache, handler.Step2)
	router.Post("/token", limiter, noCache, handler.LegacyToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", requireToken, noCache, handler.Me)
	router.Get("/totp/qr/:username", requireToken, middleware.SelfOnly("username"), middleware.StrictRateLimiter(), noCache, handler.TOTPQRCode)
	router.Get("/audit", requireToken, guard, auditHandler.Auth)
}

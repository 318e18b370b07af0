package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/config"
)

// healthTimeout bounds each dependency probe
const healthTimeout = 2 * time.Second

// HealthCheckFunc probes one backing dependency
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cfg    *config.Config
	checks map[string]HealthCheckFunc
}

// NewHealthHandler creates a new health handler. checks are keyed by the
// name reported in the response, e.g. "database" or "redis".
func NewHealthHandler(cfg *config.Config, checks map[string]HealthCheckFunc) *HealthHandler {
	return &HealthHandler{cfg: cfg, checks: checks}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "🔒 C5ISR Identity Provider API v1.0 is running",
		"mode":    h.cfg.AppMode,
		"docs":    "/swagger/index.html",
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Reports MFA method, lockout policy, backends and dependency health
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	status := "ok"
	checks := fiber.Map{"api": "healthy"}
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy"
			status = "degraded"
		} else {
			checks[name] = "healthy"
		}
		cancel()
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"mfa_method": "TOTP (RFC 6238)",
		"lockout_policy": fiber.Map{
			"max_attempts":     h.cfg.Lockout.MaxAttempts,
			"duration_seconds": int(h.cfg.Lockout.Duration.Seconds()),
			"scope":            h.cfg.Lockout.Scope,
		},
		"backends": fiber.Map{
			"state":       h.cfg.State.Backend,
			"credentials": h.cfg.Credentials.Backend,
			"pdp":         h.cfg.Policy.PDPMode,
		},
		"legacy_token": h.cfg.Policy.LegacyTokenEnabled,
		"checks":       checks,
	})
}

// APIInfo handles API v1 info
// @Summary API v1 Info
// @Description Returns API v1 information
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1 [get]
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "C5ISR Identity Provider API v1.0",
		"version": "1.0.0",
	})
}

package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/core/services"
)

// ClientIP returns the address lockout and rate limits are keyed on.
// Forwarded headers only count when the peer is a trusted proxy (see AppConfig).
func ClientIP(c *fiber.Ctx) string {
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// IsSecure reports whether the request reached us over TLS, directly or
// through a trusted terminating proxy
func IsSecure(c *fiber.Ctx) bool {
	return c.Protocol() == "https"
}

// TrustContext extracts the device trust inputs of the request
func TrustContext(c *fiber.Ctx, now time.Time) services.TrustContext {
	return services.TrustContext{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Origin:    c.Get(fiber.HeaderOrigin),
		Secure:    IsSecure(c),
		At:        now,
	}
}

package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/response"
)

// Locals keys
const (
	LocalsClaims   = "claims"
	LocalsDecision = "decision"
)

// bearerToken reads the access token from the cookie or the Authorization header
func bearerToken(c *fiber.Ctx) string {
	// 1. Try to get token from cookie first
	if token := c.Cookies("access_token"); token != "" {
		return token
	}

	// 2. Then the Authorization header
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// AuthMiddleware verifies the bearer token and stores its claims in Locals
func AuthMiddleware(tokens services.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := tokens.Verify(accessToken)
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals(LocalsClaims, claims)
		return c.Next()
	}
}

// Claims returns the verified claims of the request
func Claims(c *fiber.Ctx) (*domain.AccessClaims, bool) {
	claims, ok := c.Locals(LocalsClaims).(*domain.AccessClaims)
	return claims, ok && claims != nil
}

// SelfOnly allows the request only when the token subject matches the path parameter
func SelfOnly(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := Claims(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		if claims.Subject != c.Params(param) {
			return response.Forbidden(c, "Token subject does not match requested identity")
		}
		return c.Next()
	}
}

// Enforce guards a route with a policy decision for (classification, action).
// Must run after AuthMiddleware.
func Enforce(pep *services.EnforcementService, classification domain.Clearance, action domain.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := Claims(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		decision, err := pep.Authorize(c.UserContext(), services.AccessRequest{
			Claims:         claims,
			Resource:       c.Path(),
			Classification: classification,
			Action:         action,
			Origin:         ClientIP(c),
		})
		if err != nil {
			return WriteAccessError(c, decision, err)
		}

		c.Locals(LocalsDecision, decision)
		return c.Next()
	}
}

// WriteAccessError maps an enforcement failure onto the response envelope
func WriteAccessError(c *fiber.Ctx, decision domain.PolicyDecision, err error) error {
	switch {
	case errors.Is(err, domain.ErrMFARequired):
		return response.ErrorWithData(c, fiber.StatusForbidden, "MFA verified token required", decision)
	case errors.Is(err, domain.ErrPolicyDenied):
		return response.ErrorWithData(c, fiber.StatusForbidden, "Access denied", decision)
	case errors.Is(err, domain.ErrIdentityProviderUnavailable):
		return response.ErrorWithData(c, fiber.StatusServiceUnavailable, "Policy decision unavailable, access denied", decision)
	}
	return response.InternalServerError(c, "Access check failed")
}

package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/adapters/http/middleware"
	"c5isr-identity/internal/config"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/response"
)

// qrSize is the edge length of enrollment QR images in pixels
const qrSize = 256

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	clock       clock.Clock
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, clk clock.Clock, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		clock:       clk,
		cfg:         cfg,
	}
}

// CredentialsRequest represents the step 1 and legacy token body (JSON or form)
type CredentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// MFARequest represents the step 2 body
type MFARequest struct {
	Username     string `json:"username" form:"username"`
	MFACode      string `json:"mfa_code" form:"mfa_code"`
	SessionToken string `json:"session_token" form:"session_token"`
}

// Step1 verifies credentials and opens an MFA challenge
// @Summary Authentication step 1
// @Description Verify username and password, returns a challenge token for step 2
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param body body CredentialsRequest true "Credentials"
// @Success 200 {object} response.Response{data=services.Step1Result}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/step1 [post]
func (h *AuthHandler) Step1(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.authService.Step1(c.UserContext(), services.Step1Input{
		Username: req.Username,
		Password: req.Password,
		ClientIP: middleware.ClientIP(c),
		Device:   middleware.TrustContext(c, h.clock.Now()),
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	return response.Success(c, "Credentials verified, MFA required", result)
}

// Step2 verifies the TOTP code and issues an access token
// @Summary Authentication step 2
// @Description Verify the TOTP code against the pending challenge, returns an mfa-level access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body MFARequest true "Second factor"
// @Success 200 {object} response.Response{data=services.Step2Result}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/step2 [post]
func (h *AuthHandler) Step2(c *fiber.Ctx) error {
	var req MFARequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.MFACode == "" || req.SessionToken == "" {
		return response.BadRequest(c, "username, mfa_code and session_token are required")
	}

	result, err := h.authService.Step2(c.UserContext(), services.Step2Input{
		Username:  req.Username,
		Code:      strings.TrimSpace(req.MFACode),
		Challenge: req.SessionToken,
		ClientIP:  middleware.ClientIP(c),
		Device:    middleware.TrustContext(c, h.clock.Now()),
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setAuthCookie(c, result.AccessToken, result.ExpiresIn)
	return response.Success(c, "Authenticated", result)
}

// LegacyToken exchanges credentials for a password-level token
// @Summary Legacy single-step token
// @Description OAuth2 password-style exchange kept for old clients. The token is not MFA verified.
// @Tags Auth
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param body body CredentialsRequest true "Credentials"
// @Success 200 {object} services.IssuedToken
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /token [post]
func (h *AuthHandler) LegacyToken(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	token, err := h.authService.LegacyToken(c.UserContext(), services.LegacyInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: middleware.ClientIP(c),
		Device:   middleware.TrustContext(c, h.clock.Now()),
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	// bare body for OAuth2 password-grant clients
	return c.JSON(token)
}

// Me returns the current identity
// @Summary Current identity
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=domain.UserSummary}
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	summary, err := h.authService.Me(c.UserContext(), claims)
	if err != nil {
		return writeAuthError(c, err)
	}

	return response.Success(c, "Identity retrieved", fiber.Map{
		"user":       summary,
		"auth_level": claims.AuthLevel,
		"expires_at": claims.ExpiresAt,
	})
}

// Logout clears the access token cookie. Issued tokens stay valid until expiry.
// @Summary Logout
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.clearAuthCookie(c)
	return response.Success(c, "Logged out", nil)
}

// TOTPQRCode renders the enrollment QR for the caller's own identity
// @Summary TOTP enrollment QR
// @Description PNG QR of the otpauth provisioning URI. Once enrolled, only an mfa-level token may fetch it again.
// @Tags Auth
// @Produce png
// @Security BearerAuth
// @Param username path string true "Username (must match the token subject)"
// @Success 200 {file} binary
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /auth/totp/qr/{username} [get]
func (h *AuthHandler) TOTPQRCode(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	enrollment, err := h.authService.Enroll(c.UserContext(), c.Params("username"), claims.AuthLevel, middleware.ClientIP(c), qrSize)
	if err != nil {
		return writeAuthError(c, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, enrollment.QR); err != nil {
		return response.InternalServerError(c, "Failed to render QR code")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%s_totp_qr.png", enrollment.Username))
	return c.Send(buf.Bytes())
}

func parseCredentials(c *fiber.Ctx) (*CredentialsRequest, error) {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, errors.New("Username is required")
	}
	if req.Password == "" {
		return nil, errors.New("Password is required")
	}
	return &req, nil
}

// writeAuthError maps auth failures onto status codes
func writeAuthError(c *fiber.Ctx, err error) error {
	var locked *domain.AccountLockedError
	var invalid *domain.InvalidCredentialsError

	switch {
	case errors.As(err, &locked):
		return response.TooManyRequests(c,
			fmt.Sprintf("Account locked due to %d failed attempts. Try again in %d seconds.", locked.Attempts, locked.RemainingSeconds),
			fiber.Map{"remaining_seconds": locked.RemainingSeconds, "attempts": locked.Attempts},
		)
	case errors.As(err, &invalid):
		return response.Unauthorized(c,
			fmt.Sprintf("Invalid credentials. %d attempt(s) remaining before lockout.", invalid.AttemptsRemaining))
	case errors.Is(err, domain.ErrNoPendingMFASession):
		return response.Unauthorized(c, "No pending MFA session. Start over.")
	case errors.Is(err, domain.ErrMFASessionExpired):
		return response.Unauthorized(c, "MFA session expired. Start over.")
	case errors.Is(err, domain.ErrInvalidMFAChallenge):
		return response.Unauthorized(c, "Invalid session. Start over.")
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		return response.Unauthorized(c, "Invalid TOTP code. Check your authenticator app.")
	case errors.Is(err, domain.ErrTOTPNotConfigured):
		return response.InternalServerError(c, "TOTP not configured for this user")
	case errors.Is(err, domain.ErrMFARequired):
		return response.Forbidden(c, "MFA verified token required")
	case errors.Is(err, domain.ErrLegacyDisabled):
		return response.Forbidden(c, "Legacy token exchange is disabled, use /api/v1/auth/step1")
	case errors.Is(err, domain.ErrIdentityNotFound):
		return response.NotFound(c, "User not found")
	}
	return response.InternalServerError(c, "Authentication failed")
}

func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, accessToken string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}

func (h *AuthHandler) clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  h.clock.Now().Add(-1 * time.Hour),
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/pagination"
	"c5isr-identity/internal/pkg/response"
)

// SessionHandler exposes the session registry
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// List returns live sessions ordered by username
// @Summary Active sessions
// @Description Latest issued token per identity. Guarded by the enforcement point.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param page query int false "Page number" default(1)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /sessions [get]
func (h *SessionHandler) List(c *fiber.Ctx) error {
	sessions, err := h.sessionService.List(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to list sessions")
	}

	params := pagination.GetParams(c, 0)
	start, end := params.Window(len(sessions))

	return response.Success(c, "Sessions retrieved", fiber.Map{
		"sessions": sessions[start:end],
		"total":    len(sessions),
		"meta":     pagination.GetMeta(params, len(sessions)),
	})
}

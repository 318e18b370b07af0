package handlers

import (
	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/pagination"
	"c5isr-identity/internal/pkg/response"
)

// AuditHandler exposes the audit streams
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// Access returns the newest access stream events
// @Summary Access audit log
// @Description Policy evaluations and enforcement decisions, newest first
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param page query int false "Page number" default(1)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /audit [get]
func (h *AuditHandler) Access(c *fiber.Ctx) error {
	return h.list(c, services.StreamAccess)
}

// Auth returns the newest auth stream events
// @Summary Auth audit log
// @Description Step 1, step 2, legacy token and enrollment events, newest first
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param page query int false "Page number" default(1)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /auth/audit [get]
func (h *AuditHandler) Auth(c *fiber.Ctx) error {
	return h.list(c, services.StreamAuth)
}

func (h *AuditHandler) list(c *fiber.Ctx, stream services.Stream) error {
	capacity := h.auditService.Capacity(stream)
	params := pagination.GetParams(c, capacity)

	events, total, err := h.auditService.Recent(c.UserContext(), stream, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to read audit log")
	}

	return response.Success(c, "Audit events retrieved", fiber.Map{
		"events":   events,
		"meta":     pagination.GetMeta(params, total),
		"capacity": capacity,
	})
}

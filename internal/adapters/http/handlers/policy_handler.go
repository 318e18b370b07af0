package handlers

import (
	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/adapters/http/middleware"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/response"
)

// PolicyHandler exposes the policy decision point
type PolicyHandler struct {
	policyService *services.PolicyService
	auditService  *services.AuditService
	pep           *services.EnforcementService
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(policyService *services.PolicyService, auditService *services.AuditService, pep *services.EnforcementService) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
		auditService:  auditService,
		pep:           pep,
	}
}

// EvaluateRequest represents a policy evaluation body
type EvaluateRequest struct {
	SubjectRole            string `json:"subject_role"`
	SubjectClearance       string `json:"subject_clearance"`
	ResourceClassification string `json:"resource_classification"`
	Action                 string `json:"action"`
}

func (r EvaluateRequest) toDomain() (domain.PolicyRequest, error) {
	role, err := domain.ParseRole(r.SubjectRole)
	if err != nil {
		return domain.PolicyRequest{}, err
	}
	clearance, err := domain.ParseClearance(r.SubjectClearance)
	if err != nil {
		return domain.PolicyRequest{}, err
	}
	classification, err := domain.ParseClearance(r.ResourceClassification)
	if err != nil {
		return domain.PolicyRequest{}, err
	}
	action, err := domain.ParseAction(r.Action)
	if err != nil {
		return domain.PolicyRequest{}, err
	}
	return domain.PolicyRequest{
		SubjectRole:            role,
		SubjectClearance:       clearance,
		ResourceClassification: classification,
		Action:                 action,
	}, nil
}

// AccessCheckRequest asks the enforcement point about the caller's own token
type AccessCheckRequest struct {
	Resource               string `json:"resource"`
	ResourceClassification string `json:"resource_classification"`
	Action                 string `json:"action"`
}

// Evaluate decides a policy request
// @Summary Evaluate policy
// @Description Zero-trust decision: clearance must dominate classification, execute needs COMMANDER or RED_TEAM
// @Tags Policy
// @Accept json
// @Produce json
// @Param body body EvaluateRequest true "Policy request"
// @Success 200 {object} response.Response{data=domain.PolicyDecision}
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /policy/evaluate [post]
func (h *PolicyHandler) Evaluate(c *fiber.Ctx) error {
	var body EvaluateRequest
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req, err := body.toDomain()
	if err != nil {
		h.auditService.Record(c.UserContext(), services.StreamAccess, services.AuditEntry{
			Actor:    body.SubjectRole,
			Action:   services.ActionPolicyEval,
			Resource: body.ResourceClassification,
			Decision: domain.DecisionDeny,
			Details:  services.ReasonMalformedRequest,
			Origin:   middleware.ClientIP(c),
		})
		return response.BadRequest(c, err.Error())
	}

	decision := h.policyService.Evaluate(req)
	h.auditService.Record(c.UserContext(), services.StreamAccess, services.AuditEntry{
		Actor:    string(req.SubjectRole),
		Action:   services.ActionPolicyEval,
		Resource: req.ResourceClassification.String(),
		Decision: decision.Decision,
		Details:  decision.Reason,
		Origin:   middleware.ClientIP(c),
	})

	return response.Success(c, "Policy evaluated", decision)
}

// Rules lists the active policy rules with decision totals
// @Summary Policy rules
// @Tags Policy
// @Produce json
// @Success 200 {object} response.Response
// @Router /policy/rules [get]
func (h *PolicyHandler) Rules(c *fiber.Ctx) error {
	return response.Success(c, "Policy rules retrieved", fiber.Map{
		"rules": h.policyService.Rules(),
		"stats": h.auditService.Stats(),
	})
}

// AccessCheck runs the enforcement point for the caller's token
// @Summary Check access
// @Description Enforcement decision for the bearer token against a resource classification and action
// @Tags Policy
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AccessCheckRequest true "Access request"
// @Success 200 {object} response.Response{data=domain.PolicyDecision}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /access/check [post]
func (h *PolicyHandler) AccessCheck(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body AccessCheckRequest
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	classification, err := domain.ParseClearance(body.ResourceClassification)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	action, err := domain.ParseAction(body.Action)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	resource := body.Resource
	if resource == "" {
		resource = c.Path()
	}

	decision, err := h.pep.Authorize(c.UserContext(), services.AccessRequest{
		Claims:         claims,
		Resource:       resource,
		Classification: classification,
		Action:         action,
		Origin:         middleware.ClientIP(c),
	})
	if err != nil {
		return middleware.WriteAccessError(c, decision, err)
	}

	return response.Success(c, "Access permitted", decision)
}

package handlers

import (
	"net/http"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"

	"github.com/gofiber/fiber/v3"
)

type PolicyHandler struct {
	core          *services.Core
	policyService *services.PolicyService
}

func NewPolicyHandler(core *services.Core, policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{
		core:          core,
		policyService: policyService,
	}
}

func (h *PolicyHandler) Register(app *fiber.App) {
	policyGroup := app.Group(apiPrefix + "/policies")

	policyGroup.Post("/enroll", h.Enroll)               // POST /policies/enroll
	policyGroup.Post("/batch-expire", h.BatchExpire)    // POST /policies/batch-expire
	policyGroup.Get("/owner/:owner", h.ListByOwner)     // GET /policies/owner/:owner
	policyGroup.Get("/:id", h.GetPolicy)                // GET /policies/:id
	policyGroup.Get("/:id/refund-quote", h.QuoteRefund) // GET /policies/:id/refund-quote
	policyGroup.Post("/:id/renew", h.Renew)             // POST /policies/:id/renew
	policyGroup.Post("/:id/extend", h.Extend)           // POST /policies/:id/extend
	policyGroup.Post("/:id/upgrade", h.UpgradeCoverage) // POST /policies/:id/upgrade
	policyGroup.Post("/:id/cancel", h.Cancel)           // POST /policies/:id/cancel
}

// ============================================================================
// POLICYHOLDER OPERATIONS
// ============================================================================

func (h *PolicyHandler) Enroll(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.EnrollRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	policy, err := h.policyService.Enroll(ctx, req)
	if err != nil {
		return respondError(c, "enroll", err)
	}
	return respondOK(c, http.StatusCreated, policy.EffectiveTick, policy)
}

func (h *PolicyHandler) Renew(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	var req models.RenewRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	req.PolicyID = id

	policy, err := h.policyService.Renew(ctx, req)
	if err != nil {
		return respondError(c, "renew", err)
	}
	return respondOK(c, http.StatusCreated, policy.EffectiveTick, policy)
}

func (h *PolicyHandler) Extend(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	var req models.ExtendRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	req.PolicyID = id

	policy, err := h.policyService.Extend(ctx, req)
	if err != nil {
		return respondError(c, "extend", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), policy)
}

func (h *PolicyHandler) UpgradeCoverage(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	var req models.UpgradeCoverageRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	req.PolicyID = id

	result, err := h.policyService.UpgradeCoverage(ctx, req)
	if err != nil {
		return respondError(c, "upgrade_coverage", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), result)
}

func (h *PolicyHandler) Cancel(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}

	result, err := h.policyService.Cancel(ctx, id)
	if err != nil {
		return respondError(c, "cancel", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), result)
}

func (h *PolicyHandler) BatchExpire(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.BatchExpireRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	result, err := h.policyService.BatchExpire(ctx, req.PolicyIDs)
	if err != nil {
		return respondError(c, "batch_expire", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), result)
}

// ============================================================================
// READ-ONLY
// ============================================================================

func (h *PolicyHandler) GetPolicy(c fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	policy, err := h.policyService.GetPolicy(id)
	if err != nil {
		return respondError(c, "get_policy", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), policy)
}

func (h *PolicyHandler) ListByOwner(c fiber.Ctx) error {
	owner := c.Params("owner")
	policies := h.policyService.PoliciesByOwner(owner)
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]any{
		"owner":    owner,
		"policies": policies,
		"count":    len(policies),
	})
}

func (h *PolicyHandler) QuoteRefund(c fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	refund, err := h.policyService.QuoteRefund(id)
	if err != nil {
		return respondError(c, "quote_refund", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), models.CancellationResult{PolicyID: id, Refund: refund})
}

package handlers

import (
	"net/http"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"

	"github.com/gofiber/fiber/v3"
)

type ClaimHandler struct {
	core         *services.Core
	claimService *services.ClaimService
}

func NewClaimHandler(core *services.Core, claimService *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{
		core:         core,
		claimService: claimService,
	}
}

func (h *ClaimHandler) Register(app *fiber.App) {
	claimGroup := app.Group(apiPrefix + "/claims")

	claimGroup.Post("/submit", h.SubmitClaim)                 // POST /claims/submit
	claimGroup.Get("/by-policy/:policy_id", h.ClaimsByPolicy) // GET /claims/by-policy/:policy_id
	claimGroup.Get("/:id", h.GetClaim)                        // GET /claims/:id

	adminGroup := claimGroup.Group("/admin")
	adminGroup.Post("/:id/adjudicate", h.AdjudicateClaim) // POST /claims/admin/:id/adjudicate
	adminGroup.Post("/:id/override", h.OverrideClaim)     // POST /claims/admin/:id/override
	adminGroup.Post("/:id/report", h.GenerateReport)      // POST /claims/admin/:id/report
}

func (h *ClaimHandler) SubmitClaim(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.SubmitClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	claim, err := h.claimService.SubmitClaim(ctx, req)
	if err != nil {
		return respondError(c, "submit_claim", err)
	}
	return respondOK(c, http.StatusCreated, claim.FiledTick, claim)
}

func (h *ClaimHandler) AdjudicateClaim(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid claim ID format")
	}
	var req models.AdjudicateClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	claim, err := h.claimService.AdjudicateClaim(ctx, id, req)
	if err != nil {
		return respondError(c, "adjudicate_claim", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), claim)
}

func (h *ClaimHandler) OverrideClaim(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid claim ID format")
	}
	var req models.OverrideClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	claim, err := h.claimService.OverrideClaimStatus(ctx, id, req.Status)
	if err != nil {
		return respondError(c, "override_claim", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), claim)
}

func (h *ClaimHandler) GenerateReport(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid claim ID format")
	}

	report, err := h.claimService.GenerateClaimReport(ctx, id)
	if err != nil {
		return respondError(c, "generate_claim_report", err)
	}
	return respondOK(c, http.StatusOK, report.GeneratedAtTick, report)
}

func (h *ClaimHandler) GetClaim(c fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid claim ID format")
	}
	claim, err := h.claimService.GetClaim(id)
	if err != nil {
		return respondError(c, "get_claim", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), claim)
}

func (h *ClaimHandler) ClaimsByPolicy(c fiber.Ctx) error {
	policyID, err := parseUintParam(c, "policy_id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid policy ID format")
	}
	claims, err := h.claimService.ClaimsByPolicy(policyID)
	if err != nil {
		return respondError(c, "claims_by_policy", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]any{
		"policy_id": policyID,
		"claims":    claims,
		"count":     len(claims),
	})
}

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"

	"github.com/gofiber/fiber/v3"
)

type TreasuryHandler struct {
	core            *services.Core
	treasuryService *services.TreasuryService
	discountService *services.DiscountService
}

func NewTreasuryHandler(core *services.Core, treasuryService *services.TreasuryService, discountService *services.DiscountService) *TreasuryHandler {
	return &TreasuryHandler{
		core:            core,
		treasuryService: treasuryService,
		discountService: discountService,
	}
}

func (h *TreasuryHandler) Register(app *fiber.App) {
	treasuryGroup := app.Group(apiPrefix + "/treasury")
	treasuryGroup.Get("/reserves", h.GetReserves)
	treasuryGroup.Post("/deposit", h.DepositToReserves)
	treasuryGroup.Post("/withdraw", h.WithdrawFunds)
	treasuryGroup.Post("/catastrophe/deposit", h.DepositToCatastropheFund)
	treasuryGroup.Post("/catastrophe/release", h.ReleaseCatastropheFund)

	discountGroup := app.Group(apiPrefix + "/discount")
	discountGroup.Put("/rate", h.UpdateDiscountRate)
	discountGroup.Put("/eligibility", h.SetDiscountEligibility)
	discountGroup.Get("/quote", h.QuoteDiscountedPremium)
	discountGroup.Get("/holders/:account", h.GetHolder)
}

// ============================================================================
// TREASURY
// ============================================================================

func (h *TreasuryHandler) GetReserves(c fiber.Ctx) error {
	return respondOK(c, http.StatusOK, h.core.Now(), h.treasuryService.GetReserves())
}

func (h *TreasuryHandler) DepositToReserves(c fiber.Ctx) error {
	return h.moveAmount(c, "deposit_reserves", h.treasuryService.DepositToReserves)
}

func (h *TreasuryHandler) DepositToCatastropheFund(c fiber.Ctx) error {
	return h.moveAmount(c, "deposit_catastrophe", h.treasuryService.DepositToCatastropheFund)
}

func (h *TreasuryHandler) ReleaseCatastropheFund(c fiber.Ctx) error {
	return h.moveAmount(c, "release_catastrophe", h.treasuryService.ReleaseCatastropheFund)
}

func (h *TreasuryHandler) moveAmount(c fiber.Ctx, op string, fn func(ctx context.Context, amount uint64) (models.Reserves, error)) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.AmountRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	reserves, err := fn(ctx, req.Amount)
	if err != nil {
		return respondError(c, op, err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), reserves)
}

func (h *TreasuryHandler) WithdrawFunds(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.WithdrawRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	reserves, err := h.treasuryService.WithdrawFunds(ctx, req)
	if err != nil {
		return respondError(c, "withdraw_funds", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), reserves)
}

// ============================================================================
// DISCOUNT
// ============================================================================

func (h *TreasuryHandler) UpdateDiscountRate(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.DiscountRateRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	if err := h.discountService.UpdateDiscountRate(ctx, req.Rate); err != nil {
		return respondError(c, "update_discount_rate", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), req)
}

func (h *TreasuryHandler) SetDiscountEligibility(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.DiscountEligibilityRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	holder, err := h.discountService.SetDiscountEligibility(ctx, req)
	if err != nil {
		return respondError(c, "set_discount_eligibility", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), holder)
}

func (h *TreasuryHandler) QuoteDiscountedPremium(c fiber.Ctx) error {
	base, err := strconv.ParseUint(c.Query("base_premium"), 10, 64)
	if err != nil {
		return badRequest(c, "INVALID_PARAMETERS", "base_premium must be a non-negative integer")
	}
	account := c.Query("account")
	if account == "" {
		account = c.Get("X-User-ID")
	}
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]any{
		"account":      account,
		"base_premium": base,
		"premium":      h.discountService.DiscountedPremium(base, account),
	})
}

func (h *TreasuryHandler) GetHolder(c fiber.Ctx) error {
	return respondOK(c, http.StatusOK, h.core.Now(), h.discountService.GetHolder(c.Params("account")))
}

package handlers

import (
	"net/http"
	"strconv"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"

	"github.com/gofiber/fiber/v3"
)

const defaultEventPage = 100

type AdminHandler struct {
	core         *services.Core
	adminService *services.AdminService
}

func NewAdminHandler(core *services.Core, adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		core:         core,
		adminService: adminService,
	}
}

func (h *AdminHandler) Register(app *fiber.App) {
	adminGroup := app.Group(apiPrefix + "/admin")
	adminGroup.Post("/initialize", h.Initialize)
	adminGroup.Put("/administrators", h.SetAdministrator)
	adminGroup.Post("/transfer-ownership", h.TransferOwnership)
	adminGroup.Post("/pause", h.TogglePause)
	adminGroup.Get("/parameters", h.GetParameters)
	adminGroup.Put("/parameters", h.UpdateParameters)
	adminGroup.Get("/roles/:account", h.GetRoles)

	ledgerGroup := app.Group(apiPrefix + "/ledger")
	ledgerGroup.Get("/settings", h.GetSettings)
	ledgerGroup.Get("/counters", h.GetCounters)
	ledgerGroup.Get("/events", h.ListEvents)
	ledgerGroup.Get("/events/:id", h.GetEvent)
}

func (h *AdminHandler) Initialize(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	req := models.InitializeRequest{Parameters: models.DefaultParameters()}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	settings, err := h.adminService.Initialize(ctx, req)
	if err != nil {
		return respondError(c, "initialize", err)
	}
	return respondOK(c, http.StatusCreated, h.core.Now(), settings)
}

func (h *AdminHandler) SetAdministrator(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.AdministratorRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	if err := h.adminService.SetAdministrator(ctx, req); err != nil {
		return respondError(c, "set_administrator", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), req)
}

func (h *AdminHandler) TransferOwnership(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.TransferOwnershipRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	if err := h.adminService.TransferOwnership(ctx, req.NewOwner); err != nil {
		return respondError(c, "transfer_ownership", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), req)
}

func (h *AdminHandler) TogglePause(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	paused, err := h.adminService.TogglePause(ctx)
	if err != nil {
		return respondError(c, "toggle_pause", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]bool{"paused": paused})
}

func (h *AdminHandler) GetParameters(c fiber.Ctx) error {
	return respondOK(c, http.StatusOK, h.core.Now(), h.adminService.GetParameters())
}

func (h *AdminHandler) UpdateParameters(c fiber.Ctx) error {
	ctx, err := callerContext(c)
	if err != nil {
		return unauthorized(c)
	}
	var req models.Parameters
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}

	params, err := h.adminService.UpdateParameters(ctx, req)
	if err != nil {
		return respondError(c, "update_parameters", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), params)
}

func (h *AdminHandler) GetRoles(c fiber.Ctx) error {
	account := c.Params("account")
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]any{
		"account":          account,
		"is_owner":         h.core.IsOwner(account),
		"is_administrator": h.core.IsAdministrator(account),
	})
}

// ============================================================================
// LEDGER QUERIES
// ============================================================================

func (h *AdminHandler) GetSettings(c fiber.Ctx) error {
	return respondOK(c, http.StatusOK, h.core.Now(), h.core.Settings())
}

func (h *AdminHandler) GetCounters(c fiber.Ctx) error {
	return respondOK(c, http.StatusOK, h.core.Now(), h.core.Counters())
}

func (h *AdminHandler) ListEvents(c fiber.Ctx) error {
	from, err := strconv.ParseUint(c.Query("from", "0"), 10, 64)
	if err != nil {
		return badRequest(c, "INVALID_PARAMETERS", "from must be a non-negative integer")
	}
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultEventPage)))
	if err != nil || limit <= 0 {
		return badRequest(c, "INVALID_PARAMETERS", "limit must be a positive integer")
	}

	events := h.core.Events(from, min(limit, defaultEventPage))
	return respondOK(c, http.StatusOK, h.core.Now(), map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *AdminHandler) GetEvent(c fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid event ID format")
	}
	event, err := h.core.GetEvent(id)
	if err != nil {
		return respondError(c, "get_event", err)
	}
	return respondOK(c, http.StatusOK, h.core.Now(), event)
}

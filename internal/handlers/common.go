package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"insurance-ledger/internal/services"
	"insurance-ledger/internal/utils"

	"github.com/gofiber/fiber/v3"
	fiberutils "github.com/gofiber/utils/v2"
)

const apiPrefix = "ledger/protected/api/v1"

var errMissingCaller = errors.New("missing caller")

// callerContext binds the X-User-ID header to the request context. The header
// value aliases the pooled request buffer, so it is copied before the ledger
// stores it as an owner, claimant or holder key.
func callerContext(c fiber.Ctx) (context.Context, error) {
	userID := fiberutils.CopyString(c.Get("X-User-ID"))
	if userID == "" {
		return nil, errMissingCaller
	}
	return services.WithCaller(c.Context(), userID), nil
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(
		utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
}

func badRequest(c fiber.Ctx, code, message string) error {
	return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse(code, message))
}

func parseUintParam(c fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Params(name), 10, 64)
}

// statusFor maps a ledger error kind to its HTTP status and response code.
func statusFor(err error) (int, string) {
	switch services.KindOf(err) {
	case services.ErrUnauthorized:
		return http.StatusForbidden, "FORBIDDEN"
	case services.ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case services.ErrInvalidParameters:
		return http.StatusBadRequest, "INVALID_PARAMETERS"
	case services.ErrInvalidState:
		return http.StatusConflict, "INVALID_STATE_TRANSITION"
	case services.ErrLapsed:
		return http.StatusConflict, "POLICY_LAPSED"
	case services.ErrCoverageExceeded:
		return http.StatusUnprocessableEntity, "COVERAGE_EXCEEDED"
	case services.ErrInsufficientFunds:
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"
	case services.ErrPaused:
		return http.StatusServiceUnavailable, "LEDGER_PAUSED"
	case services.ErrAlreadyInitialized:
		return http.StatusConflict, "ALREADY_INITIALIZED"
	case services.ErrSelfTransfer:
		return http.StatusBadRequest, "SELF_TRANSFER"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondError(c fiber.Ctx, op string, err error) error {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Ledger request failed", "op", op, "error", err)
		return c.Status(status).JSON(utils.CreateErrorResponse(code, "Internal error while processing "+op))
	}
	return c.Status(status).JSON(utils.CreateErrorResponse(code, err.Error()))
}

func respondOK(c fiber.Ctx, status int, tick uint64, data any) error {
	return c.Status(status).JSON(utils.CreateSuccessResponse(data, tick))
}

package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, unknown_variant, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// writeDomainError maps use case errors onto HTTP responses.
func writeDomainError(c *fiber.Ctx, err error) error {
	var unknown *domain.UnknownVariantError
	switch {
	case errors.As(err, &unknown):
		return newError(c, 400, "unknown_variant", unknown.Error())
	case errors.Is(err, domain.ErrMalformedOperation):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrBufferRequired):
		return newError(c, 400, "buffer_required", err.Error())
	case errors.Is(err, domain.ErrInvalidAnalysis):
		return newError(c, 400, "invalid_analysis", err.Error())
	case errors.Is(err, domain.ErrLayerNotFound), errors.Is(err, presets.ErrPresetNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, 504, "timeout", "analysis timed out")
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}

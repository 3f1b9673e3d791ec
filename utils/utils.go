package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(scope, ip, path string) string {
	return fmt.Sprintf("rl:%s:%s:%s", scope, ip, path)
}

// ErrorResponse writes the standard failure envelope.
func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// RespondError maps err onto the failure envelope. Internal failures are
// logged and reported but never echoed to the client.
func RespondError(c *fiber.Ctx, op string, err error) error {
	appErr := AsAppError(err, "Server error")
	if appErr.Kind == KindInternal {
		LogError(op, appErr, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error")
	}
	return ErrorResponse(c, appErr.Kind.HTTPStatus(), appErr.Message)
}

// SuccessResponse writes the standard success envelope.
func SuccessResponse(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ListResponse writes a success envelope with a count.
func ListResponse(c *fiber.Ctx, data interface{}, count int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"count":   count,
		"data":    data,
	})
}

// FiberErrorHandler keeps framework errors (404 routes, body limits) in the
// same envelope as handler errors.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ErrorResponse(c, fe.Code, fe.Message)
	}
	return RespondError(c, "fiber.ErrorHandler", err)
}

// ParseID parses a positive numeric path or query id.
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, InvalidArgument("Invalid id")
	}
	return uint(id), nil
}

// ParamID reads the :id route parameter.
func ParamID(c *fiber.Ctx) (uint, error) {
	return ParseID(c.Params("id"))
}

// QueryList returns the values of a repeated and/or comma-separated query
// parameter (?skills=a&skills=b,c).
func QueryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, part := range strings.Split(string(raw), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, InvalidArgument("invalid date format (use RFC3339 or YYYY-MM-DD)")
	}
	return t, nil
}

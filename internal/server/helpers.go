package server

import (
	"strings"
	"unicode"

	"directchat/internal/middleware"
	"directchat/internal/models"
	"directchat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parsePage extracts the 1-based page and limit query parameters. Missing,
// malformed or out-of-range values are normalized the same way the services
// normalize them.
func parsePage(c *fiber.Ctx) (int, int) {
	return service.NormalizePage(c.QueryInt("page", 1), c.QueryInt("limit", service.DefaultPageSize))
}

// requireUser returns the authenticated user id or writes a 401.
// Callers should check: if !ok { return nil }
func requireUser(c *fiber.Ctx) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		_ = models.RespondWithError(c, models.NewUnauthorizedError("authentication required"))
		return "", false
	}
	return userID, true
}

// parseBody decodes the request body into dest. On failure it writes a 400
// naming the payload and returns false.
func parseBody(c *fiber.Ctx, dest any) bool {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, &models.AppError{
			Code:    models.CodeValidation,
			Message: "invalid request body",
			Err:     err,
		})
		return false
	}
	return true
}

// requireParam returns a trimmed route or query value, writing a 400 when it is blank.
// The error message is derived from the parameter name (e.g. "id" -> "chat ID is required",
// "recipientId" -> "recipient ID is required").
func requireParam(c *fiber.Ctx, param, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		_ = models.RespondWithError(c, models.NewValidationError(humanizeParam(param)+" is required"))
		return "", false
	}
	return value, true
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "chat ID", "recipientId" -> "recipient ID", "q" -> "q".
func humanizeParam(param string) string {
	if param == "id" {
		return "chat ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

package server

import (
	"directchat/internal/middleware"
	"directchat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if s.featureFlags == nil {
		return c.JSON(models.Success("", fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		}))
	}

	return c.JSON(models.Success("", fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	}))
}

package server

import (
	"strings"

	"directchat/internal/middleware"
	"directchat/internal/models"
	"directchat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CheckUsername handles GET /api/users/check-username
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	availability, err := s.accountService.CheckUsername(c.UserContext(), c.Query("username"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", availability))
}

// CreateAccount handles POST /api/account
// The account id is the authenticated subject. The email defaults to the
// token's email claim.
func (s *Server) CreateAccount(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if len(c.Body()) > 0 && !parseBody(c, &req) {
		return nil
	}
	if strings.TrimSpace(req.Email) == "" {
		req.Email = middleware.Email(c)
	}

	res, err := s.accountService.CreateAccount(c.UserContext(), service.CreateAccountInput{
		ID:       userID,
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	switch {
	case res.Partial:
		return c.Status(fiber.StatusCreated).JSON(models.PartialSuccess(res.Message, res.User))
	case res.Created:
		return c.Status(fiber.StatusCreated).JSON(models.Success(res.Message, res.User))
	default:
		return c.JSON(models.Success(res.Message, res.User))
	}
}

// UpdateUsername handles PUT /api/account/username
func (s *Server) UpdateUsername(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Username string `json:"username"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	user, err := s.accountService.UpdateUsername(c.UserContext(), userID, req.Username)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("username updated", user))
}

// FinalizeAccountSetup handles POST /api/account/setup
func (s *Server) FinalizeAccountSetup(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		RequestType       string `json:"request_type"`
		DisplayName       string `json:"display_name"`
		ProfilePictureURL string `json:"profile_picture_url"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	user, err := s.accountService.FinalizeAccountSetup(c.UserContext(), userID, service.SetupInput{
		RequestType:       req.RequestType,
		DisplayName:       req.DisplayName,
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("account setup complete", user))
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	user, err := s.accountService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", user))
}

// SearchUsers handles GET /api/users/search
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	users, err := s.accountService.SearchUsers(c.UserContext(), userID, c.Query("q"), c.QueryInt("limit", service.DefaultSearchLimit))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", users))
}

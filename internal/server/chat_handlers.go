package server

import (
	"directchat/internal/models"
	"directchat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ResolvePrivateChat handles POST /api/chats/private
// The recipient comes from the JSON body or the recipientId query parameter.
func (s *Server) ResolvePrivateChat(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		RecipientID string `json:"recipient_id"`
	}
	if len(c.Body()) > 0 && !parseBody(c, &req) {
		return nil
	}
	if req.RecipientID == "" {
		req.RecipientID = c.Query("recipientId")
	}
	recipientID, ok := requireParam(c, "recipientId", req.RecipientID)
	if !ok {
		return nil
	}

	resolved, err := s.chatService.ResolvePrivateChat(c.UserContext(), userID, recipientID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if resolved.Created {
		return c.Status(fiber.StatusCreated).JSON(models.Success("chat created", resolved))
	}
	return c.JSON(models.Success("chat already exists", resolved))
}

// ListChats handles GET /api/chats
func (s *Server) ListChats(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}
	page, limit := parsePage(c)

	chats, err := s.chatService.ListChats(c.UserContext(), userID, page, limit)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", chats))
}

// AppendMessage handles POST /api/chats/:id/messages
func (s *Server) AppendMessage(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}
	chatID, ok := requireParam(c, "id", c.Params("id"))
	if !ok {
		return nil
	}

	var req struct {
		Content         string             `json:"content"`
		Type            models.MessageType `json:"type"`
		MediaURL        string             `json:"media_url"`
		ClientMessageID string             `json:"client_message_id"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	msg, err := s.chatService.AppendMessage(c.UserContext(), service.AppendMessageInput{
		ChatID:          chatID,
		SenderID:        userID,
		Content:         req.Content,
		Type:            req.Type,
		MediaURL:        req.MediaURL,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.Success("message sent", msg))
}

// ListMessages handles GET /api/chats/:id/messages
func (s *Server) ListMessages(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}
	chatID, ok := requireParam(c, "id", c.Params("id"))
	if !ok {
		return nil
	}
	page, limit := parsePage(c)

	messages, err := s.chatService.ListMessages(c.UserContext(), chatID, userID, page, limit)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", messages))
}

// MarkChatRead handles POST /api/chats/:id/read
func (s *Server) MarkChatRead(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}
	chatID, ok := requireParam(c, "id", c.Params("id"))
	if !ok {
		return nil
	}

	marked, err := s.chatService.MarkChatRead(c.UserContext(), chatID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(models.Success("", fiber.Map{"marked": marked}))
}

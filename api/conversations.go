package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/validate"
)

const defaultConversationTitle = "New Conversation"

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title   string  `json:"title" validate:"max=200"`
	ModelID *string `json:"model_id" validate:"omitempty,uuid"`
}

// UpdateConversationRequest is the body of PATCH /api/conversations/:id.
type UpdateConversationRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	ModelID *string `json:"model_id" validate:"omitempty,uuid"`
}

// pathID returns the named path parameter when it is a well-formed ID.
// Malformed IDs cannot name any row, so they are reported as not found.
func pathID(c *fiber.Ctx, name, resource string) (string, bool) {
	id := c.Params(name)
	if validate.Var(id, "required,uuid") != nil {
		_ = notFound(c, resource)
		return "", false
	}
	return id, true
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req CreateConversationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
		}
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}
	if req.Title == "" {
		req.Title = defaultConversationTitle
	}

	conv, err := s.driver.CreateConversation(c.UserContext(), auth.UserFrom(c).ID, req.Title, req.ModelID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to create conversation", err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.driver.ListConversations(c.UserContext(), auth.UserFrom(c).ID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch conversations", err)
	}
	return c.JSON(convs)
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "conversation")
	if !ok {
		return nil
	}

	conv, err := s.driver.GetConversation(c.UserContext(), auth.UserFrom(c).ID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch conversation", err)
	}
	return c.JSON(conv)
}

func (s *Server) handleUpdateConversation(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "conversation")
	if !ok {
		return nil
	}

	var req UpdateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	conv, err := s.driver.UpdateConversation(c.UserContext(), auth.UserFrom(c).ID, id, storage.ConversationUpdate{
		Title:   req.Title,
		ModelID: req.ModelID,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to update conversation", err)
	}
	return c.JSON(conv)
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "conversation")
	if !ok {
		return nil
	}

	if err := s.driver.DeleteConversation(c.UserContext(), auth.UserFrom(c).ID, id); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to delete conversation", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleListMessages returns a conversation's messages oldest first, after
// checking the caller owns it.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "conversation")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	if _, err := s.driver.GetConversation(ctx, auth.UserFrom(c).ID, id); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch messages", err)
	}

	msgs, err := s.driver.ListMessages(ctx, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch messages", err)
	}
	return c.JSON(msgs)
}

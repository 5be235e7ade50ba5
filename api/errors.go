package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// fail logs err and answers with status and message. Storage not-found
// errors become 404 whatever status was asked for.
func (s *Server) fail(c *fiber.Ctx, status int, message string, err error) error {
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return notFound(c, nf.Resource)
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error(message, "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
}

// notFound answers 404 with "<Resource> not found".
func notFound(c *fiber.Ctx, resource string) error {
	if resource == "" {
		resource = "record"
	}
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error: strings.ToUpper(resource[:1]) + resource[1:] + " not found",
	})
}

package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	userUsageLimit = 100
	allUsageLimit  = 1000
)

func (s *Server) handleUserUsage(c *fiber.Ctx) error {
	logs, err := s.driver.ListUsageLogs(c.UserContext(), storage.UsageQuery{
		UserID: auth.UserFrom(c).ID,
		Limit:  userUsageLimit,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch usage metrics", err)
	}
	return c.JSON(logs)
}

func (s *Server) handleAllUsage(c *fiber.Ctx) error {
	logs, err := s.driver.ListUsageLogs(c.UserContext(), storage.UsageQuery{Limit: allUsageLimit})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch usage metrics", err)
	}
	return c.JSON(logs)
}

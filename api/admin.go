package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const auditLogLimit = 100

// SyncModelsResponse is returned by POST /api/admin/sync-models/:endpointId.
type SyncModelsResponse struct {
	Message string           `json:"message"`
	Count   int              `json:"count"`
	Models  []*storage.Model `json:"models"`
}

// HealthResponse is returned by POST /api/endpoints/:id/health.
type HealthResponse struct {
	EndpointID string               `json:"endpoint_id"`
	Status     storage.HealthStatus `json:"health_status"`
	CheckedAt  time.Time            `json:"last_health_check"`
}

func upstreamEndpoint(ep *storage.Endpoint) ollama.Endpoint {
	return ollama.Endpoint{BaseURL: ep.BaseURL, APIKey: ep.APIKey}
}

func (s *Server) handleCheckEndpointHealth(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "endpoint")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	ep, err := s.driver.GetEndpoint(ctx, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to check endpoint health", err)
	}

	status := storage.HealthUnhealthy
	if s.config.Upstream.Health(ctx, upstreamEndpoint(ep)) {
		status = storage.HealthHealthy
	}

	checkedAt := time.Now().UTC()
	if err := s.driver.UpdateEndpointHealth(ctx, id, status, checkedAt); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to check endpoint health", err)
	}

	s.audit(ctx, c, "endpoint_health_checked", "endpoint", id, map[string]any{
		"health_status": string(status),
	})
	return c.JSON(HealthResponse{EndpointID: id, Status: status, CheckedAt: checkedAt})
}

func (s *Server) handleListUpstreamModels(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "endpoint")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	ep, err := s.driver.GetEndpoint(ctx, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch upstream models", err)
	}

	models, err := s.config.Upstream.ListModels(ctx, upstreamEndpoint(ep))
	if err != nil {
		return s.fail(c, fiber.StatusBadGateway, "Failed to fetch upstream models", err)
	}
	if models == nil {
		models = []ollama.Model{}
	}
	return c.JSON(models)
}

func (s *Server) handleSyncModels(c *fiber.Ctx) error {
	id, ok := pathID(c, "endpointId", "endpoint")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	ep, err := s.driver.GetEndpoint(ctx, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to sync models", err)
	}

	upstream, err := s.config.Upstream.ListModels(ctx, upstreamEndpoint(ep))
	if err != nil {
		return s.fail(c, fiber.StatusBadGateway, "Failed to sync models", err)
	}

	models := make([]*storage.Model, 0, len(upstream))
	for _, m := range upstream {
		modelID := m.Model
		if modelID == "" {
			modelID = m.Name
		}

		var modifiedAt *time.Time
		if !m.ModifiedAt.IsZero() {
			t := m.ModifiedAt
			modifiedAt = &t
		}

		models = append(models, &storage.Model{
			EndpointID: id,
			Name:       m.Name,
			ModelID:    modelID,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: modifiedAt,
			IsEnabled:  true,
		})
	}

	stored, err := s.driver.UpsertModels(ctx, id, models)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to sync models", err)
	}

	s.audit(ctx, c, "models_synced", "endpoint", id, map[string]any{
		"count": len(stored),
	})
	return c.JSON(SyncModelsResponse{
		Message: "Models synced successfully",
		Count:   len(stored),
		Models:  stored,
	})
}

// handleClearCache drops cached model listings for ?endpoint=<base url>,
// or for every endpoint when the parameter is absent.
func (s *Server) handleClearCache(c *fiber.Ctx) error {
	baseURL := c.Query("endpoint")
	s.config.Upstream.ClearCache(c.UserContext(), baseURL)

	s.audit(c.UserContext(), c, "cache_cleared", "cache", baseURL, nil)
	return c.JSON(fiber.Map{"message": "Cache cleared successfully"})
}

func (s *Server) handleListAuditLogs(c *fiber.Ctx) error {
	logs, err := s.driver.ListAuditLogs(c.UserContext(), auditLogLimit)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch audit logs", err)
	}
	return c.JSON(logs)
}

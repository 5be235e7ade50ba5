package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/validate"
)

// CreateModelRequest is the body of POST /api/models.
type CreateModelRequest struct {
	EndpointID string         `json:"endpoint_id" validate:"required,uuid"`
	Name       string         `json:"name" validate:"required,max=200"`
	ModelID    string         `json:"model_id" validate:"required,max=200"`
	Parameters map[string]any `json:"parameters"`
	IsEnabled  *bool          `json:"is_enabled"`
}

// UpdateModelRequest is the body of PATCH /api/models/:id.
type UpdateModelRequest struct {
	Name       *string        `json:"name" validate:"omitempty,min=1,max=200"`
	ModelID    *string        `json:"model_id" validate:"omitempty,min=1,max=200"`
	Parameters map[string]any `json:"parameters"`
	IsEnabled  *bool          `json:"is_enabled"`
}

// CreateEndpointRequest is the body of POST /api/endpoints.
type CreateEndpointRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	BaseURL string `json:"base_url" validate:"required,http_url"`
	IsLocal bool   `json:"is_local"`
	APIKey  string `json:"api_key"`
}

// UpdateEndpointRequest is the body of PATCH /api/endpoints/:id.
type UpdateEndpointRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=200"`
	BaseURL   *string `json:"base_url" validate:"omitempty,http_url"`
	IsLocal   *bool   `json:"is_local"`
	APIKey    *string `json:"api_key"`
	IsEnabled *bool   `json:"is_enabled"`
}

// Models

func (s *Server) handleListModels(c *fiber.Ctx) error {
	models, err := s.driver.ListModels(c.UserContext(), true)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch models", err)
	}
	return c.JSON(models)
}

func (s *Server) handleGetModel(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "model")
	if !ok {
		return nil
	}

	model, err := s.driver.GetModelWithEndpoint(c.UserContext(), id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch model", err)
	}
	return c.JSON(model)
}

func (s *Server) handleCreateModel(c *fiber.Ctx) error {
	var req CreateModelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	ctx := c.UserContext()
	model, err := s.driver.CreateModel(ctx, &storage.Model{
		EndpointID: req.EndpointID,
		Name:       req.Name,
		ModelID:    req.ModelID,
		Parameters: req.Parameters,
		IsEnabled:  enabled,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to create model", err)
	}

	s.audit(ctx, c, "model_created", "model", model.ID, map[string]any{
		"name":     req.Name,
		"model_id": req.ModelID,
	})
	return c.Status(fiber.StatusCreated).JSON(model)
}

func (s *Server) handleUpdateModel(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "model")
	if !ok {
		return nil
	}

	var req UpdateModelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	ctx := c.UserContext()
	model, err := s.driver.UpdateModel(ctx, id, storage.ModelUpdate{
		Name:       req.Name,
		ModelID:    req.ModelID,
		Parameters: req.Parameters,
		IsEnabled:  req.IsEnabled,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to update model", err)
	}

	s.audit(ctx, c, "model_updated", "model", id, modelChanges(req))
	return c.JSON(model)
}

func (s *Server) handleDeleteModel(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "model")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	if err := s.driver.DeleteModel(ctx, id); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to delete model", err)
	}

	s.audit(ctx, c, "model_deleted", "model", id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// Endpoints

func (s *Server) handleListEndpoints(c *fiber.Ctx) error {
	endpoints, err := s.driver.ListEndpoints(c.UserContext(), true)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch endpoints", err)
	}
	return c.JSON(endpoints)
}

func (s *Server) handleGetEndpoint(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "endpoint")
	if !ok {
		return nil
	}

	ep, err := s.driver.GetEndpoint(c.UserContext(), id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to fetch endpoint", err)
	}
	return c.JSON(ep)
}

func (s *Server) handleCreateEndpoint(c *fiber.Ctx) error {
	var req CreateEndpointRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	ctx := c.UserContext()
	ep, err := s.driver.CreateEndpoint(ctx, &storage.Endpoint{
		Name:         req.Name,
		BaseURL:      req.BaseURL,
		IsLocal:      req.IsLocal,
		APIKey:       req.APIKey,
		IsEnabled:    true,
		HealthStatus: storage.HealthUnknown,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to create endpoint", err)
	}

	s.audit(ctx, c, "endpoint_created", "endpoint", ep.ID, map[string]any{
		"name":     req.Name,
		"base_url": req.BaseURL,
	})
	return c.Status(fiber.StatusCreated).JSON(ep)
}

func (s *Server) handleUpdateEndpoint(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "endpoint")
	if !ok {
		return nil
	}

	var req UpdateEndpointRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	ctx := c.UserContext()
	before, err := s.driver.GetEndpoint(ctx, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to update endpoint", err)
	}

	ep, err := s.driver.UpdateEndpoint(ctx, id, storage.EndpointUpdate{
		Name:      req.Name,
		BaseURL:   req.BaseURL,
		IsLocal:   req.IsLocal,
		APIKey:    req.APIKey,
		IsEnabled: req.IsEnabled,
	})
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to update endpoint", err)
	}

	// Listings cached under the old address are stale now.
	if req.BaseURL != nil && *req.BaseURL != before.BaseURL {
		s.config.Upstream.ClearCache(ctx, before.BaseURL)
	}

	s.audit(ctx, c, "endpoint_updated", "endpoint", id, endpointChanges(req))
	return c.JSON(ep)
}

func (s *Server) handleDeleteEndpoint(c *fiber.Ctx) error {
	id, ok := pathID(c, "id", "endpoint")
	if !ok {
		return nil
	}

	ctx := c.UserContext()
	if err := s.driver.DeleteEndpoint(ctx, id); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "Failed to delete endpoint", err)
	}

	s.audit(ctx, c, "endpoint_deleted", "endpoint", id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// audit records an administrative change. Failures are logged only.
func (s *Server) audit(ctx context.Context, c *fiber.Ctx, action, resourceType, resourceID string, details map[string]any) {
	err := s.driver.InsertAuditLog(ctx, &storage.AuditLog{
		UserID:       auth.UserFrom(c).ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	})
	if err != nil {
		s.logger.Error("failed to write audit log", "action", action, "resource_id", resourceID, "error", err)
	}
}

func modelChanges(req UpdateModelRequest) map[string]any {
	d := map[string]any{}
	if req.Name != nil {
		d["name"] = *req.Name
	}
	if req.ModelID != nil {
		d["model_id"] = *req.ModelID
	}
	if req.Parameters != nil {
		d["parameters"] = req.Parameters
	}
	if req.IsEnabled != nil {
		d["is_enabled"] = *req.IsEnabled
	}
	return d
}

// endpointChanges lists changed fields. The API key itself is never logged.
func endpointChanges(req UpdateEndpointRequest) map[string]any {
	d := map[string]any{}
	if req.Name != nil {
		d["name"] = *req.Name
	}
	if req.BaseURL != nil {
		d["base_url"] = *req.BaseURL
	}
	if req.IsLocal != nil {
		d["is_local"] = *req.IsLocal
	}
	if req.APIKey != nil {
		d["api_key_changed"] = true
	}
	if req.IsEnabled != nil {
		d["is_enabled"] = *req.IsEnabled
	}
	return d
}

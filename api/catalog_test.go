package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var _ = Describe("Catalogue", func() {
	var (
		h  *harness
		ep *storage.Endpoint
	)

	BeforeEach(func() {
		h = newHarness()
		ep = h.endpoint("http://ollama.internal:11434")
	})

	Describe("models", func() {
		It("lists enabled models joined with their endpoint", func() {
			h.model(ep.ID, "Mistral", true)
			h.model(ep.ID, "Hidden", false)
			h.model(ep.ID, "Llama3", true)

			var models []storage.ModelWithEndpoint
			resp := h.do(http.MethodGet, "/api/models", h.user.ID, nil, &models)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(models).To(HaveLen(2))
			Expect(models[0].Name).To(Equal("Llama3"))
			Expect(models[1].Name).To(Equal("Mistral"))
			Expect(models[0].Endpoint.BaseURL).To(Equal(ep.BaseURL))
		})

		It("never exposes endpoint api keys", func() {
			_, err := h.driver.UpdateEndpoint(context.Background(), ep.ID, storage.EndpointUpdate{APIKey: ptr("sekret")})
			Expect(err).NotTo(HaveOccurred())
			h.model(ep.ID, "Llama3", true)

			resp := h.do(http.MethodGet, "/api/models", h.user.ID, nil, nil)
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("sekret"))
			Expect(string(raw)).To(ContainSubstring(`"ollama_endpoints"`))
		})

		It("gets a single model", func() {
			m := h.model(ep.ID, "Llama3", true)

			var got storage.ModelWithEndpoint
			resp := h.do(http.MethodGet, "/api/models/"+m.ID, h.user.ID, nil, &got)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(got.ModelID).To(Equal("llama3"))
		})

		It("answers 404 for an unknown model", func() {
			var body ErrorResponse
			resp := h.do(http.MethodGet, "/api/models/"+uuid.NewString(), h.user.ID, nil, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body.Error).To(Equal("Model not found"))
		})

		It("restricts writes to admins", func() {
			resp := h.do(http.MethodPost, "/api/models", h.user.ID, map[string]any{
				"endpoint_id": ep.ID, "name": "Llama3", "model_id": "llama3",
			}, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("creates, updates and deletes a model with audit entries", func() {
			var created storage.Model
			resp := h.do(http.MethodPost, "/api/models", h.admin.ID, map[string]any{
				"endpoint_id": ep.ID,
				"name":        "Llama3",
				"model_id":    "llama3",
				"parameters":  map[string]any{"temperature": 0.5},
			}, &created)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(created.IsEnabled).To(BeTrue())
			Expect(created.Parameters).To(HaveKeyWithValue("temperature", 0.5))

			var updated storage.Model
			resp = h.do(http.MethodPatch, "/api/models/"+created.ID, h.admin.ID, map[string]any{"is_enabled": false}, &updated)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(updated.IsEnabled).To(BeFalse())
			Expect(updated.Name).To(Equal("Llama3"))

			resp = h.do(http.MethodDelete, "/api/models/"+created.ID, h.admin.ID, nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			Expect(h.auditActions()).To(Equal([]string{"model_deleted", "model_updated", "model_created"}))

			logs, err := h.driver.ListAuditLogs(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs[1].UserID).To(Equal(h.admin.ID))
			Expect(logs[1].Details).To(HaveKeyWithValue("is_enabled", false))
		})

		It("validates the create body", func() {
			var body ErrorResponse
			resp := h.do(http.MethodPost, "/api/models", h.admin.ID, map[string]any{"name": "x"}, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body.Error).To(ContainSubstring("endpoint_id"))
			Expect(h.auditActions()).To(BeEmpty())
		})

		It("rejects a model for an unknown endpoint", func() {
			resp := h.do(http.MethodPost, "/api/models", h.admin.ID, map[string]any{
				"endpoint_id": uuid.NewString(), "name": "Llama3", "model_id": "llama3",
			}, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("endpoints", func() {
		It("creates an endpoint enabled with unknown health", func() {
			var created storage.Endpoint
			resp := h.do(http.MethodPost, "/api/endpoints", h.admin.ID, map[string]any{
				"name":     "gpu box",
				"base_url": "http://10.0.0.5:11434",
				"api_key":  "sekret",
			}, &created)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(created.IsEnabled).To(BeTrue())
			Expect(created.IsLocal).To(BeFalse())
			Expect(created.HealthStatus).To(Equal(storage.HealthUnknown))

			stored, err := h.driver.GetEndpoint(context.Background(), created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.APIKey).To(Equal("sekret"))

			logs, err := h.driver.ListAuditLogs(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Action).To(Equal("endpoint_created"))
			Expect(logs[0].Details).To(Equal(map[string]any{
				"name":     "gpu box",
				"base_url": "http://10.0.0.5:11434",
			}))
		})

		It("rejects a malformed base url", func() {
			var body ErrorResponse
			resp := h.do(http.MethodPost, "/api/endpoints", h.admin.ID, map[string]any{
				"name": "bad", "base_url": "not a url",
			}, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body.Error).To(Equal("base_url must be a valid URL"))
		})

		It("clears cached listings when the base url moves", func() {
			var updated storage.Endpoint
			resp := h.do(http.MethodPatch, "/api/endpoints/"+ep.ID, h.admin.ID, map[string]any{
				"base_url": "http://ollama.moved:11434",
				"api_key":  "rotated",
			}, &updated)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(updated.BaseURL).To(Equal("http://ollama.moved:11434"))
			Expect(h.upstream.clearedURLs()).To(ConsistOf("http://ollama.internal:11434"))

			logs, err := h.driver.ListAuditLogs(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs[0].Action).To(Equal("endpoint_updated"))
			Expect(logs[0].Details).To(HaveKeyWithValue("api_key_changed", true))
			Expect(logs[0].Details).NotTo(HaveKey("api_key"))
		})

		It("deletes an endpoint together with its models", func() {
			m := h.model(ep.ID, "Llama3", true)

			resp := h.do(http.MethodDelete, "/api/endpoints/"+ep.ID, h.admin.ID, nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp = h.do(http.MethodGet, "/api/models/"+m.ID, h.user.ID, nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(h.auditActions()).To(Equal([]string{"endpoint_deleted"}))
		})

		It("lets users list endpoints without credentials", func() {
			resp := h.do(http.MethodGet, "/api/endpoints", h.user.ID, nil, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var endpoints []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&endpoints)).To(Succeed())
			Expect(endpoints).To(HaveLen(1))
			Expect(endpoints[0]).NotTo(HaveKey("api_key"))
		})
	})
})

func ptr[T any](v T) *T {
	return &v
}

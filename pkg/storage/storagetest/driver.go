// Package storagetest holds the behavioural specs every storage.Driver must
// pass. Driver test suites call DescribeDriver with a constructor.
package storagetest

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// DescribeDriver registers the shared driver tests. newDriver is called
// before every test and must return an empty store; the returned driver is
// closed after the test.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver contract", func() {
		var (
			ctx    context.Context
			driver storage.Driver
			userID string
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
			userID = uuid.NewString()
			DeferCleanup(driver.Close)
		})

		seedEndpoint := func(name string, enabled bool) *storage.Endpoint {
			e, err := driver.CreateEndpoint(ctx, &storage.Endpoint{
				Name:      name,
				BaseURL:   "http://" + name + ":11434",
				IsEnabled: enabled,
			})
			Expect(err).NotTo(HaveOccurred())
			return e
		}

		seedModel := func(endpointID, name string, enabled bool) *storage.Model {
			m, err := driver.CreateModel(ctx, &storage.Model{
				EndpointID: endpointID,
				Name:       name,
				ModelID:    name + ":latest",
				Parameters: map[string]any{"temperature": 0.7},
				IsEnabled:  enabled,
			})
			Expect(err).NotTo(HaveOccurred())
			return m
		}

		Describe("profiles", func() {
			It("upserts and reads a profile", func() {
				_, err := driver.UpsertProfile(ctx, &storage.Profile{ID: userID, Email: "a@example.com", IsActive: true})
				Expect(err).NotTo(HaveOccurred())

				p, err := driver.GetProfile(ctx, userID)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.Email).To(Equal("a@example.com"))
				Expect(p.Role).To(Equal(storage.RoleUser))
				Expect(p.IsActive).To(BeTrue())

				_, err = driver.UpsertProfile(ctx, &storage.Profile{ID: userID, Email: "a@example.com", Role: storage.RoleAdmin, IsActive: false})
				Expect(err).NotTo(HaveOccurred())

				p, err = driver.GetProfile(ctx, userID)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.IsAdmin()).To(BeTrue())
				Expect(p.IsActive).To(BeFalse())
			})

			It("returns NotFoundError for a missing profile", func() {
				_, err := driver.GetProfile(ctx, uuid.NewString())
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("conversations", func() {
			It("creates, reads and scopes conversations to their owner", func() {
				c, err := driver.CreateConversation(ctx, userID, "First", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(c.ID).NotTo(BeEmpty())
				Expect(c.ModelID).To(BeNil())

				got, err := driver.GetConversation(ctx, userID, c.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Title).To(Equal("First"))

				_, err = driver.GetConversation(ctx, uuid.NewString(), c.ID)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists conversations most recently updated first", func() {
				older, err := driver.CreateConversation(ctx, userID, "older", nil)
				Expect(err).NotTo(HaveOccurred())
				time.Sleep(2 * time.Millisecond)
				newer, err := driver.CreateConversation(ctx, userID, "newer", nil)
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateConversation(ctx, uuid.NewString(), "someone else", nil)
				Expect(err).NotTo(HaveOccurred())

				list, err := driver.ListConversations(ctx, userID)
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
				Expect(list[0].ID).To(Equal(newer.ID))

				time.Sleep(2 * time.Millisecond)
				Expect(driver.TouchConversation(ctx, older.ID)).To(Succeed())

				list, err = driver.ListConversations(ctx, userID)
				Expect(err).NotTo(HaveOccurred())
				Expect(list[0].ID).To(Equal(older.ID))
			})

			It("updates title and model", func() {
				c, err := driver.CreateConversation(ctx, userID, "old", nil)
				Expect(err).NotTo(HaveOccurred())

				e := seedEndpoint("local", true)
				m := seedModel(e.ID, "llama3", true)

				title := "new"
				updated, err := driver.UpdateConversation(ctx, userID, c.ID, storage.ConversationUpdate{Title: &title, ModelID: &m.ID})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Title).To(Equal("new"))
				Expect(updated.ModelID).NotTo(BeNil())
				Expect(*updated.ModelID).To(Equal(m.ID))
				Expect(updated.UpdatedAt).NotTo(BeTemporally("<", c.UpdatedAt))

				_, err = driver.UpdateConversation(ctx, uuid.NewString(), c.ID, storage.ConversationUpdate{Title: &title})
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("deletes a conversation with its messages", func() {
				c, err := driver.CreateConversation(ctx, userID, "doomed", nil)
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.InsertMessage(ctx, c.ID, storage.MessageRoleUser, "hi", nil)
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.DeleteConversation(ctx, uuid.NewString(), c.ID)).To(Satisfy(storage.IsNotFound))
				Expect(driver.DeleteConversation(ctx, userID, c.ID)).To(Succeed())

				_, err = driver.GetConversation(ctx, userID, c.ID)
				Expect(storage.IsNotFound(err)).To(BeTrue())

				msgs, err := driver.ListMessages(ctx, c.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(BeEmpty())
			})

			It("reports NotFoundError when touching a missing conversation", func() {
				Expect(driver.TouchConversation(ctx, uuid.NewString())).To(Satisfy(storage.IsNotFound))
			})
		})

		Describe("messages", func() {
			It("appends messages and lists them oldest first", func() {
				c, err := driver.CreateConversation(ctx, userID, "chat", nil)
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.InsertMessage(ctx, c.ID, storage.MessageRoleUser, "Hi", nil)
				Expect(err).NotTo(HaveOccurred())
				time.Sleep(2 * time.Millisecond)
				tokens := 2
				a, err := driver.InsertMessage(ctx, c.ID, storage.MessageRoleAssistant, "Hello", &tokens)
				Expect(err).NotTo(HaveOccurred())
				Expect(a.ID).NotTo(BeEmpty())

				msgs, err := driver.ListMessages(ctx, c.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(2))
				Expect(msgs[0].Role).To(Equal(storage.MessageRoleUser))
				Expect(msgs[0].Tokens).To(BeNil())
				Expect(msgs[1].Content).To(Equal("Hello"))
				Expect(*msgs[1].Tokens).To(Equal(2))
			})

			It("rejects messages for a missing conversation", func() {
				_, err := driver.InsertMessage(ctx, uuid.NewString(), storage.MessageRoleUser, "Hi", nil)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("endpoints", func() {
			It("creates endpoints with unknown health and lists enabled ones by name", func() {
				b := seedEndpoint("bravo", true)
				seedEndpoint("alpha", true)
				seedEndpoint("charlie", false)
				Expect(b.HealthStatus).To(Equal(storage.HealthUnknown))

				enabled, err := driver.ListEndpoints(ctx, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(enabled).To(HaveLen(2))
				Expect(enabled[0].Name).To(Equal("alpha"))

				all, err := driver.ListEndpoints(ctx, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))
			})

			It("keeps the api key but updates partially", func() {
				e, err := driver.CreateEndpoint(ctx, &storage.Endpoint{Name: "remote", BaseURL: "https://llm.example.com", APIKey: "k1", IsEnabled: true})
				Expect(err).NotTo(HaveOccurred())

				name := "renamed"
				disabled := false
				updated, err := driver.UpdateEndpoint(ctx, e.ID, storage.EndpointUpdate{Name: &name, IsEnabled: &disabled})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Name).To(Equal("renamed"))
				Expect(updated.IsEnabled).To(BeFalse())
				Expect(updated.BaseURL).To(Equal("https://llm.example.com"))
				Expect(updated.APIKey).To(Equal("k1"))
			})

			It("records health checks", func() {
				e := seedEndpoint("local", true)
				at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

				Expect(driver.UpdateEndpointHealth(ctx, e.ID, storage.HealthHealthy, at)).To(Succeed())

				got, err := driver.GetEndpoint(ctx, e.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.HealthStatus).To(Equal(storage.HealthHealthy))
				Expect(got.LastHealthCheck).NotTo(BeNil())
				Expect(got.LastHealthCheck.Equal(at)).To(BeTrue())
			})

			It("deletes an endpoint with its models", func() {
				e := seedEndpoint("local", true)
				m := seedModel(e.ID, "llama3", true)

				Expect(driver.DeleteEndpoint(ctx, e.ID)).To(Succeed())

				_, err := driver.GetModelWithEndpoint(ctx, m.ID)
				Expect(storage.IsNotFound(err)).To(BeTrue())
				Expect(driver.DeleteEndpoint(ctx, e.ID)).To(Satisfy(storage.IsNotFound))
			})
		})

		Describe("models", func() {
			It("joins a model with its endpoint", func() {
				e := seedEndpoint("local", true)
				m := seedModel(e.ID, "llama3", true)

				got, err := driver.GetModelWithEndpoint(ctx, m.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ModelID).To(Equal("llama3:latest"))
				Expect(got.Parameters).To(HaveKeyWithValue("temperature", 0.7))
				Expect(got.Endpoint.BaseURL).To(Equal("http://local:11434"))
			})

			It("returns NotFoundError for a missing model", func() {
				_, err := driver.GetModelWithEndpoint(ctx, uuid.NewString())
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("rejects models for a missing endpoint", func() {
				_, err := driver.CreateModel(ctx, &storage.Model{EndpointID: uuid.NewString(), Name: "x", ModelID: "x"})
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists enabled models by name", func() {
				e := seedEndpoint("local", true)
				seedModel(e.ID, "mistral", true)
				seedModel(e.ID, "llama3", true)
				seedModel(e.ID, "phi", false)

				enabled, err := driver.ListModels(ctx, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(enabled).To(HaveLen(2))
				Expect(enabled[0].Name).To(Equal("llama3"))
				Expect(enabled[1].Name).To(Equal("mistral"))
			})

			It("updates and deletes models", func() {
				e := seedEndpoint("local", true)
				m := seedModel(e.ID, "llama3", true)

				off := false
				updated, err := driver.UpdateModel(ctx, m.ID, storage.ModelUpdate{
					IsEnabled:  &off,
					Parameters: map[string]any{"num_predict": float64(256)},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.IsEnabled).To(BeFalse())
				Expect(updated.Parameters).To(HaveKeyWithValue("num_predict", float64(256)))

				Expect(driver.DeleteModel(ctx, m.ID)).To(Succeed())
				Expect(driver.DeleteModel(ctx, m.ID)).To(Satisfy(storage.IsNotFound))
			})

			It("upserts on endpoint and model id", func() {
				e := seedEndpoint("local", true)
				modified := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

				first, err := driver.UpsertModels(ctx, e.ID, []*storage.Model{
					{Name: "llama3:latest", ModelID: "llama3:latest", Size: 1, Digest: "a", ModifiedAt: &modified, IsEnabled: true},
					{Name: "phi:latest", ModelID: "phi:latest", Size: 2, Digest: "b", IsEnabled: true},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(first).To(HaveLen(2))

				second, err := driver.UpsertModels(ctx, e.ID, []*storage.Model{
					{Name: "llama3:latest", ModelID: "llama3:latest", Size: 10, Digest: "c", IsEnabled: true},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(HaveLen(1))
				Expect(second[0].ID).To(Equal(first[0].ID))
				Expect(second[0].Size).To(Equal(int64(10)))
				Expect(second[0].Digest).To(Equal("c"))

				all, err := driver.ListModels(ctx, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(2))
			})
		})

		Describe("usage logs", func() {
			It("lists newest first with user filter and limit", func() {
				other := uuid.NewString()
				modelID, endpointID := uuid.NewString(), uuid.NewString()
				for i := range 3 {
					Expect(driver.InsertUsageLog(ctx, &storage.UsageLog{
						UserID: userID, ModelID: modelID, EndpointID: endpointID,
						TokensUsed: i + 1, ResponseTimeMs: 10,
					})).To(Succeed())
					time.Sleep(2 * time.Millisecond)
				}
				Expect(driver.InsertUsageLog(ctx, &storage.UsageLog{UserID: other, ModelID: modelID, EndpointID: endpointID})).To(Succeed())

				mine, err := driver.ListUsageLogs(ctx, storage.UsageQuery{UserID: userID, Limit: 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(mine).To(HaveLen(2))
				Expect(mine[0].TokensUsed).To(Equal(3))
				Expect(mine[1].TokensUsed).To(Equal(2))

				all, err := driver.ListUsageLogs(ctx, storage.UsageQuery{})
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(4))
			})
		})

		Describe("audit logs", func() {
			It("records details", func() {
				Expect(driver.InsertAuditLog(ctx, &storage.AuditLog{
					UserID:       userID,
					Action:       "model_created",
					ResourceType: "model",
					ResourceID:   "m-1",
					Details:      map[string]any{"name": "llama3"},
				})).To(Succeed())

				logs, err := driver.ListAuditLogs(ctx, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(logs).To(HaveLen(1))
				Expect(logs[0].Action).To(Equal("model_created"))
				Expect(logs[0].Details).To(HaveKeyWithValue("name", "llama3"))
			})
		})
	})
}

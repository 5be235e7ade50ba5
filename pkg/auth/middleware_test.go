package auth_test

import (
	"context"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

var _ = Describe("Middleware", func() {
	var app *fiber.App

	BeforeEach(func() {
		ctx := context.Background()
		store := inmemory.NewDriver()
		_, _ = store.UpsertProfile(ctx, &storage.Profile{ID: "alice", IsActive: true})
		_, _ = store.UpsertProfile(ctx, &storage.Profile{ID: "root", Role: storage.RoleAdmin, IsActive: true})

		verifier := auth.VerifierFunc(func(_ context.Context, token string) (*auth.Claims, error) {
			if token == "bad" {
				return nil, auth.ErrInvalidToken
			}
			c := &auth.Claims{}
			c.Subject = token
			return c, nil
		})
		a := auth.NewAuthenticator(verifier, store, logger.Nop())

		app = fiber.New()
		app.Get("/me", auth.Middleware(a, auth.MiddlewareConfig{}), func(c *fiber.Ctx) error {
			return c.SendString(auth.UserFrom(c).ID)
		})
		app.Get("/stream", auth.Middleware(a, auth.MiddlewareConfig{AllowQueryToken: true}), func(c *fiber.Ctx) error {
			return c.SendString(auth.UserFrom(c).ID)
		})
		app.Get("/admin", auth.Middleware(a, auth.MiddlewareConfig{}), auth.RequireAdmin(), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNoContent)
		})
	})

	request := func(path, token string) int {
		req := httptest.NewRequest("GET", path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode
	}

	It("passes authenticated users through", func() {
		Expect(request("/me", "alice")).To(Equal(fiber.StatusOK))
	})

	It("returns 401 without a token", func() {
		Expect(request("/me", "")).To(Equal(fiber.StatusUnauthorized))
	})

	It("returns 401 for an invalid token", func() {
		Expect(request("/me", "bad")).To(Equal(fiber.StatusUnauthorized))
	})

	It("returns 403 for unknown profiles", func() {
		Expect(request("/me", "mallory")).To(Equal(fiber.StatusForbidden))
	})

	It("ignores the query token unless allowed", func() {
		Expect(request("/me?token=alice", "")).To(Equal(fiber.StatusUnauthorized))
		Expect(request("/stream?token=alice", "")).To(Equal(fiber.StatusOK))
	})

	It("enforces the admin role", func() {
		Expect(request("/admin", "alice")).To(Equal(fiber.StatusForbidden))
		Expect(request("/admin", "root")).To(Equal(fiber.StatusNoContent))
	})
})

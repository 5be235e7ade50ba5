package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const userKey = "chatrelay.user"

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// AllowQueryToken accepts a "token" query parameter when no
	// Authorization header is present. Browser EventSource cannot set
	// headers, so the streaming chat route needs this.
	AllowQueryToken bool
}

// Middleware authenticates every request and stores the User for handlers.
// Failures end the request with a JSON error: 401 for missing or invalid
// tokens, 403 for inactive accounts, 500 otherwise.
func Middleware(a *Authenticator, cfg MiddlewareConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && cfg.AllowQueryToken {
			token = c.Query("token")
		}

		user, err := a.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(StatusFor(err)).JSON(fiber.Map{"error": message(err)})
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireAdmin rejects non-admin users with 403. It must run after
// Middleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !UserFrom(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": ErrForbidden.Error()})
		}
		return c.Next()
	}
}

// UserFrom returns the authenticated user, or nil outside Middleware.
func UserFrom(c *fiber.Ctx) *User {
	u, _ := c.Locals(userKey).(*User)
	return u
}

// StatusFor maps an Authenticate error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrInactive), errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func message(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return ErrMissingToken.Error()
	case errors.Is(err, ErrInvalidToken):
		return ErrInvalidToken.Error()
	case errors.Is(err, ErrInactive):
		return ErrInactive.Error()
	default:
		return "internal server error"
	}
}

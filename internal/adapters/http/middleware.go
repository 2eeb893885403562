package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/craftplane/craftplane/internal/core/ports"
)

// RequireAuth resolves the request's API token to a tenant and stores the
// tenant id in locals. Everything behind it can assume an authenticated
// tenant; unauthenticated requests never reach an ownership check. The
// token rides the Authorization header, or the "token" query parameter for
// WebSocket clients that cannot set headers.
func RequireAuth(auth ports.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		tenant, err := auth.TenantForToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		c.Locals("tenantID", tenant)
		return c.Next()
	}
}

// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Capabilities granted per gateway role. Admin endpoints check capabilities,
// never raw role names, so role taxonomy changes stay confined to this table.
var roleCapabilities = map[string][]string{
	"admin":      {"manage_games", "manage_rounds", "manage_prizes"},
	"game_admin": {"manage_games", "manage_rounds"},
	"fulfiller":  {"manage_prizes"},
}

// UserContextMiddleware extracts user identity and roles set by Gateway.
// It is applied only to routes under /s/ or /s/admin/ — but for safety, we guard.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		userEmail := c.Get("X-User-Email")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/") || strings.HasPrefix(path, "/s/admin/")
		if isSecured && userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		capabilities := map[string]bool{}
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r == "" {
					continue
				}
				roles = append(roles, r)
				for _, capability := range roleCapabilities[r] {
					capabilities[capability] = true
				}
			}
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_email", userEmail)
		c.Locals("user_roles", roles)
		c.Locals("user_capabilities", capabilities)

		return c.Next()
	}
}

// RequireCapability rejects requests whose gateway roles do not grant the
// named capability. Must run after UserContextMiddleware.
func RequireCapability(capability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caps, _ := c.Locals("user_capabilities").(map[string]bool)
		if caps == nil || !caps[capability] {
			log.Printf("🚫 [USER_CTX] User %v lacks capability %q for %s", c.Locals("user_id"), capability, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}
		return c.Next()
	}
}

package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

// IdentityHeader carries the caller's email for support operations.
const IdentityHeader = "X-User-Email"

// IdentityFromHeader extracts the out-of-band identity claim.
func IdentityFromHeader(c *fiber.Ctx) string {
	return c.Get(IdentityHeader)
}

// RequireSupport gates staff-only routes on allow-list membership.
func RequireSupport(guard *Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !guard.IsSupport(IdentityFromHeader(c)) {
			return apperrors.NewForbidden("support access required")
		}
		return c.Next()
	}
}

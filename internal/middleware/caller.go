package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/auth"
)

const (
	callerHeader = "X-Caller"
	callerLocal  = "caller"
)

// CallerOptions configures how the calling account is resolved.
type CallerOptions struct {
	Tokens *auth.Tokens
	// AllowHeader lets X-Caller name the account directly. Development only.
	AllowHeader bool
}

// Caller resolves the calling account from a bearer token, or from the
// X-Caller header when allowed, and stores it in the request locals.
// Anonymous requests pass through; RequireCaller rejects them where needed.
func Caller(opts CallerOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authz := c.Get(fiber.HeaderAuthorization); authz != "" {
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") || opts.Tokens == nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid authorization header")
			}
			id, err := opts.Tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			c.Locals(callerLocal, id)
			return c.Next()
		}

		if raw := strings.TrimSpace(c.Get(callerHeader)); raw != "" {
			if !opts.AllowHeader {
				return fiber.NewError(http.StatusUnauthorized, "caller header not accepted")
			}
			id, err := account.Parse(raw)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid caller address")
			}
			c.Locals(callerLocal, id)
		}
		return c.Next()
	}
}

// RequireCaller rejects requests without a resolved caller.
func RequireCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CallerFrom(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, "caller identity required")
		}
		return c.Next()
	}
}

// CallerFrom returns the caller resolved for the request, if any.
func CallerFrom(c *fiber.Ctx) (account.ID, bool) {
	id, ok := c.Locals(callerLocal).(account.ID)
	return id, ok
}

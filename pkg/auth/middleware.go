package auth

import (
	"strings"

	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

const localsKey = "auth"

type TokenValidator interface {
	ValidateAccessToken(token string) (*kernel.AuthContext, error)
}

// Middleware guards routes with bearer tokens. Errors are returned to
// the app's error handler.
type Middleware struct {
	tokens TokenValidator
}

func NewMiddleware(tokens TokenValidator) *Middleware {
	return &Middleware{tokens: tokens}
}

// Authenticate reads "Authorization: Bearer <token>", falling back to the
// access_token cookie, and stores the AuthContext in both the fiber locals
// and the request's user context.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			return ErrUnauthorized()
		}

		ac, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			return err
		}

		c.Locals(localsKey, ac)
		c.SetUserContext(kernel.WithAuth(c.UserContext(), ac))
		return c.Next()
	}
}

// RequireScope rejects requests whose token lacks scope. It must run after
// Authenticate.
func (m *Middleware) RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := FromCtx(c)
		if !ok {
			return ErrUnauthorized()
		}
		if !ac.HasScope(scope) {
			return ErrForbidden(scope)
		}
		return c.Next()
	}
}

func FromCtx(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(localsKey).(*kernel.AuthContext)
	return ac, ok && ac != nil
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fisioflow/scheduler-api/internal/handler"
	"github.com/fisioflow/scheduler-api/pkg/auth"
	"github.com/fisioflow/scheduler-api/pkg/tenant"
)

type AuthMiddleware struct {
	verifier *auth.Verifier
}

func NewAuthMiddleware(verifier *auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and installs the tenant scope
// on the request context. Every handler below this middleware resolves
// the organization from the scope, never from client input.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		scope, err := m.verifier.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// RequireWriter rejects requests from roles that cannot modify the schedule.
func (m *AuthMiddleware) RequireWriter() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := tenant.FromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing tenant scope"))
			c.Abort()
			return
		}

		if !scope.Role.CanWrite() {
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("role cannot modify appointments"))
			c.Abort()
			return
		}

		c.Next()
	}
}

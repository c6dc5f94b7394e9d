package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/obralens/obralens/internal/model"
)

// contextUserKey is where the middleware stores the authenticated user on the
// Echo context.
const contextUserKey = "auth.user"

// Middleware returns Echo middleware that requires a valid Bearer token and
// resolves it to a live user record. The user is attached to the context for
// handlers to pick up with UserFrom.
func (s *Service) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := s.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			// Resolve to the stored record so role changes and deletions
			// take effect before the token expires.
			user, err := s.store.GetUserByID(claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown account")
			}

			c.Set(contextUserKey, user)
			return next(c)
		}
	}
}

// RequireRole returns middleware that rejects authenticated users whose role
// does not match. It must run after Middleware.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFrom(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if user.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// UserFrom returns the authenticated user set by Middleware, or nil.
func UserFrom(c echo.Context) *model.User {
	user, _ := c.Get(contextUserKey).(*model.User)
	return user
}

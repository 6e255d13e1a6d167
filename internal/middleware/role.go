package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole lets the request through only when JWTAuth stored one of
// roles in the context.  A request without any role never passed JWTAuth
// and gets 401; a known role that is not allowed gets 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get(CtxRole).(string)
            switch {
            case role == "":
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            case !allowed[role]:
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "role_not_allowed"})
            }
            return next(c)
        }
    }
}

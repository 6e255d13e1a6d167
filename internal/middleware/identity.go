package middleware

// identity.go defines helper functions shared across middleware files.  It
// turns the client id stored by JWTAuth into the string used in Redis keys.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID returns the authenticated client id as a decimal string, or
// "guest" when the request is anonymous.
func userID(c echo.Context) string {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        if v != 0 {
            return strconv.FormatUint(v, 10)
        }
    case string:
        if v != "" {
            return v
        }
    }
    return "guest"
}

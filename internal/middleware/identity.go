package middleware

// identity.go holds helpers shared across middleware files for reading the
// caller identity that JWTAuth stored in the Echo context.

import (
    "github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated subject, or "anon" when the
// request did not pass through JWTAuth.
func currentUserID(c echo.Context) string {
    if s, ok := c.Get(KeyUserID).(string); ok && s != "" {
        return s
    }
    return "anon"
}

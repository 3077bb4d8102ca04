package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// SessionCounter reports how many booking sessions are open.
type SessionCounter interface {
    Len() int
}

// Health is a health-check endpoint used by load balancers and monitoring
// systems.  It returns 200 with the number of open sessions.
func Health(sessions SessionCounter) echo.HandlerFunc {
    return func(c echo.Context) error {
        body := echo.Map{"status": "ok"}
        if sessions != nil {
            body["sessions"] = sessions.Len()
        }
        return c.JSON(http.StatusOK, body)
    }
}

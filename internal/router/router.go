package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-booking-client/internal/handler"    // handlers that drive booking sessions
	"github.com/iliyamo/cinema-booking-client/internal/middleware" // JWT authentication, rate limiting and caching
)

// Middlewares groups the per-route middleware built from configuration.
// Nil entries are skipped.
type Middlewares struct {
	RateLimit       echo.MiddlewareFunc // every authenticated route
	SubmitRateLimit echo.MiddlewareFunc // submit and retry only
	ResponseCache   echo.MiddlewareFunc // availability preview only
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, sessions handler.SessionCounter) {
	e.GET("/healthz", handler.Health(sessions))
}

// RegisterBooking registers the session and booking routes under /v1.  All
// of them require a valid access token.
func RegisterBooking(e *echo.Echo, s *handler.SessionHandler, b *handler.BookingHandler, jwtSecret string, mw Middlewares) {
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	if mw.RateLimit != nil {
		auth.Use(mw.RateLimit)
	}
	submit := only(mw.SubmitRateLimit)

	// session lifecycle
	auth.POST("/sessions", s.Create)
	auth.GET("/sessions/:id", s.Get)
	auth.DELETE("/sessions/:id", s.Delete)
	auth.POST("/sessions/:id/load", s.Load)
	auth.POST("/sessions/:id/reset", s.Reset)

	// seat selection and payment
	auth.POST("/sessions/:id/seats/:seat", s.ToggleSeat)
	auth.PUT("/sessions/:id/payment", s.SelectPayment)
	auth.PUT("/sessions/:id/payment/fields", s.SetPaymentFields)
	auth.POST("/sessions/:id/back", s.Back)
	auth.POST("/sessions/:id/submit", s.Submit, submit...)
	auth.POST("/sessions/:id/retry", s.Retry, submit...)

	// bookings made outside or after a session
	auth.GET("/availability", b.Availability, only(mw.ResponseCache)...)
	auth.GET("/bookings", b.ListBookings)
	auth.POST("/bookings/:id/cancel", b.Cancel)
	auth.GET("/receipts", b.ListReceipts)
}

func only(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}

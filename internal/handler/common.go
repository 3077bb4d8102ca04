package handler // handler defines http handlers

import (
    "errors"   // errors provides sentinel values and matching helpers
    "net/http" // net/http provides status codes
    "strings"
    "time"

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/cinema-booking-client/internal/booking"
    "github.com/iliyamo/cinema-booking-client/internal/middleware"
    "github.com/iliyamo/cinema-booking-client/internal/registry"
)

var errUnauthorized = errors.New("invalid user_id in context")

// getUserID extracts the authenticated subject stored by JWTAuth.
func getUserID(c echo.Context) (string, error) {
    switch t := c.Get(middleware.KeyUserID).(type) {
    case string:
        if t = strings.TrimSpace(t); t != "" {
            return t, nil
        }
    }
    return "", errUnauthorized
}

// getToken returns the caller's raw bearer token, forwarded to the
// booking API on their behalf.
func getToken(c echo.Context) string {
    s, _ := c.Get(middleware.KeyToken).(string)
    return s
}

// showDateLayouts are accepted for the showDate field, most specific first.
// Instants are kept as sent; a bare date means midnight UTC.
var showDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", dateOnly}

const dateOnly = "2006-01-02"

// parseShowKey validates the three fields that identify a screening.
func parseShowKey(movieID, showDate, showtime string) (booking.ShowKey, error) {
    movieID = strings.TrimSpace(movieID)
    showtime = strings.TrimSpace(showtime)
    if movieID == "" || showtime == "" || strings.TrimSpace(showDate) == "" {
        return booking.ShowKey{}, errors.New("movieId, showDate and showtime are required")
    }
    for _, layout := range showDateLayouts {
        if d, err := time.Parse(layout, strings.TrimSpace(showDate)); err == nil {
            return booking.ShowKey{ShowID: movieID, ShowDate: d.UTC(), Showtime: showtime}, nil
        }
    }
    return booking.ShowKey{}, errors.New("invalid showDate")
}

// statusFor maps a session or registry error to an HTTP status.
func statusFor(err error) int {
    var invalid *booking.InvalidSubmissionError
    switch {
    case errors.As(err, &invalid):
        return http.StatusUnprocessableEntity
    case errors.Is(err, booking.ErrConflict),
        errors.Is(err, booking.ErrSubmissionInProgress),
        errors.Is(err, booking.ErrLoadInProgress),
        errors.Is(err, booking.ErrSeatsLocked),
        errors.Is(err, booking.ErrSeatBooked),
        errors.Is(err, booking.ErrInvalidTransition),
        errors.Is(err, booking.ErrSessionComplete):
        return http.StatusConflict
    case errors.Is(err, booking.ErrService):
        return http.StatusBadGateway
    case errors.Is(err, booking.ErrAvailabilityUnavailable):
        return http.StatusServiceUnavailable
    case errors.Is(err, booking.ErrInvalidSeat),
        errors.Is(err, booking.ErrInvalidRow),
        errors.Is(err, booking.ErrUnknownPaymentMethod),
        errors.Is(err, booking.ErrNoPaymentMethod),
        errors.Is(err, booking.ErrUnknownField),
        errors.Is(err, booking.ErrSeatLimitReached):
        return http.StatusBadRequest
    case errors.Is(err, registry.ErrNotFound), errors.Is(err, booking.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, booking.ErrSessionClosed):
        return http.StatusGone
    case errors.Is(err, registry.ErrTooManySessions):
        return http.StatusTooManyRequests
    case errors.Is(err, booking.ErrAlreadyCancelled):
        return http.StatusConflict
    }
    return http.StatusInternalServerError
}

// errorBody is the JSON error payload.  Validation failures list the
// offending fields and conflicts list the seats that were taken.
func errorBody(err error) echo.Map {
    body := echo.Map{"error": err.Error()}
    var invalid *booking.InvalidSubmissionError
    if errors.As(err, &invalid) {
        body["reason"] = string(invalid.Reason)
        switch {
        case len(invalid.Fields) == 0:
        case invalid.Reason == booking.ReasonMissingFields:
            body["missingFields"] = invalid.Fields
        default:
            body["fields"] = invalid.Fields
        }
    }
    var conflict *booking.ConflictError
    if errors.As(err, &conflict) && len(conflict.Seats) > 0 {
        body["conflictSeats"] = conflict.Seats
    }
    return body
}

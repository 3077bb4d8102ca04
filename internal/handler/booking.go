package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-booking-client/internal/api"
    "github.com/iliyamo/cinema-booking-client/internal/booking"
    "github.com/iliyamo/cinema-booking-client/internal/repository"
)

// BookingAPI is the part of the booking API used outside of sessions.
type BookingAPI interface {
    CancelReservation(ctx context.Context, bookingID string) error
    ListBookings(ctx context.Context) ([]api.Booking, error)
}

// BookingHandler serves the caller's bookings, receipts and the seat
// availability preview.
type BookingHandler struct {
    API        func(token string) BookingAPI
    NewService ServiceFactory
    Receipts   ReceiptStore // nil when the ledger is disabled
    Pricing    *booking.PricingPolicy
    Now        func() time.Time
}

// NewBookingHandler panics on missing dependencies.  receipts may be nil.
func NewBookingHandler(apiFor func(token string) BookingAPI, newService ServiceFactory, receipts ReceiptStore, pricing *booking.PricingPolicy) *BookingHandler {
    if apiFor == nil || newService == nil || pricing == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{API: apiFor, NewService: newService, Receipts: receipts, Pricing: pricing, Now: time.Now}
}

// ListBookings handles GET /v1/bookings by proxying the caller's bookings
// from the booking API.
func (h *BookingHandler) ListBookings(c echo.Context) error {
    if _, err := getUserID(c); err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    list, err := h.API(getToken(c)).ListBookings(c.Request().Context())
    if err != nil {
        log.Printf("booking-handler: list bookings: %v", err)
        return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// ListReceipts handles GET /v1/receipts?limit=N.
func (h *BookingHandler) ListReceipts(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if h.Receipts == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "receipt ledger disabled"})
    }
    limit := 50
    if s := c.QueryParam("limit"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = n
    }
    list, err := h.Receipts.ListByUser(c.Request().Context(), userID, limit)
    if err != nil {
        log.Printf("booking-handler: list receipts for %s: %v", userID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"receipts": list})
}

// Cancel handles POST /v1/bookings/:id/cancel.  The cancellation is sent
// to the booking API and then mirrored onto the local receipt, if any.
func (h *BookingHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id := strings.TrimSpace(c.Param("id"))
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()
    err = h.API(getToken(c)).CancelReservation(ctx, id)
    if err != nil && !errors.Is(err, booking.ErrAlreadyCancelled) {
        return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
    }
    h.markCancelled(ctx, userID, id)
    if err != nil {
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusOK, echo.Map{"bookingId": id, "status": "cancelled"})
}

func (h *BookingHandler) markCancelled(ctx context.Context, userID, bookingID string) {
    if h.Receipts == nil {
        return
    }
    err := h.Receipts.MarkCancelled(context.WithoutCancel(ctx), userID, bookingID, h.Now())
    switch {
    case err == nil, errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrConflict):
    default:
        log.Printf("booking-handler: mark receipt %s cancelled: %v", bookingID, err)
    }
}

type priceLine struct {
    Tier  booking.Tier `json:"tier"`
    Price int          `json:"price"`
}

// Availability handles GET /v1/availability?movieId=&showDate=&showtime=,
// a read-only view of the seat map used before opening a session.
func (h *BookingHandler) Availability(c echo.Context) error {
    show, err := parseShowKey(c.QueryParam("movieId"), c.QueryParam("showDate"), c.QueryParam("showtime"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    booked, err := h.NewService(getToken(c)).QueryAvailability(c.Request().Context(), show)
    if err != nil {
        log.Printf("booking-handler: availability for %s: %v", show, err)
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": booking.ErrAvailabilityUnavailable.Error()})
    }
    prices := make([]priceLine, 0, len(booking.Tiers))
    for _, t := range booking.Tiers {
        prices = append(prices, priceLine{Tier: t, Price: h.Pricing.UnitPrice(t)})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "show":        show,
        "layout":      booking.Layout(),
        "prices":      prices,
        "bookedSeats": booked.Slice(),
        "available":   booking.NewSeatMap(booked).Available(),
    })
}

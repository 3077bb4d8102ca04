package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "sort"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-booking-client/internal/booking"
    "github.com/iliyamo/cinema-booking-client/internal/registry"
)

// ServiceFactory returns the booking service used by a session, acting as
// the holder of token.
type ServiceFactory func(token string) booking.Service

// SessionHandler exposes booking sessions over HTTP.  Every route expects
// JWTAuth to have run; a session is only visible to the user who opened it.
type SessionHandler struct {
    Sessions   *registry.Registry
    NewService ServiceFactory
    Options    booking.Options // template copied into every new session
    Confirmed  *ConfirmationSink
}

// NewSessionHandler panics on missing dependencies.  sink may be nil.
func NewSessionHandler(sessions *registry.Registry, newService ServiceFactory, opts booking.Options, sink *ConfirmationSink) *SessionHandler {
    if sessions == nil || newService == nil {
        panic("nil dependency passed to NewSessionHandler")
    }
    return &SessionHandler{Sessions: sessions, NewService: newService, Options: opts, Confirmed: sink}
}

// sessionView is the response body of every session route.
type sessionView struct {
    ID string `json:"id"`
    booking.Snapshot
}

func view(id string, s *booking.Session) sessionView {
    return sessionView{ID: id, Snapshot: s.Snapshot()}
}

// respond writes the snapshot with status, or the error merged with the
// snapshot when err is set.
func respond(c echo.Context, status int, id string, s *booking.Session, err error) error {
    if err == nil {
        return c.JSON(status, view(id, s))
    }
    body := errorBody(err)
    body["session"] = view(id, s)
    return c.JSON(statusFor(err), body)
}

// lookup resolves the :id session of the caller.
func (h *SessionHandler) lookup(c echo.Context) (string, *booking.Session, error) {
    userID, err := getUserID(c)
    if err != nil {
        return "", nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id := c.Param("id")
    s, err := h.Sessions.Get(userID, id)
    if err != nil {
        return "", nil, c.JSON(statusFor(err), echo.Map{"error": err.Error()})
    }
    return id, s, nil
}

// Create handles POST /v1/sessions.  The body names the screening:
// {"movieId": "...", "showDate": "2026-10-20", "showtime": "7:30 PM"}.
// The session is registered before availability is loaded, so a failed
// load answers 503 with the session id and can be retried via
// POST /v1/sessions/:id/load.
func (h *SessionHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        MovieID  string `json:"movieId"`
        ShowDate string `json:"showDate"`
        Showtime string `json:"showtime"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    show, err := parseShowKey(body.MovieID, body.ShowDate, body.Showtime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    token := getToken(c)
    id, s, err := h.Sessions.Create(userID, func(id string) (*booking.Session, error) {
        opts := h.Options
        if h.Confirmed != nil {
            opts.Notifier = h.Confirmed.For(userID, id)
        }
        return booking.NewSession(show, h.NewService(token), opts)
    })
    if err != nil {
        if errors.Is(err, registry.ErrTooManySessions) {
            return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
        }
        log.Printf("session-handler: create session for %s: %v", userID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create session"})
    }
    c.Response().Header().Set(echo.HeaderLocation, "/v1/sessions/"+id)
    err = s.Load(c.Request().Context())
    return respond(c, http.StatusCreated, id, s, err)
}

// Get handles GET /v1/sessions/:id.
func (h *SessionHandler) Get(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    return c.JSON(http.StatusOK, view(id, s))
}

// Delete handles DELETE /v1/sessions/:id.  A pending submission is
// abandoned and its result ignored.
func (h *SessionHandler) Delete(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Sessions.Remove(userID, c.Param("id")); err != nil {
        return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
    }
    return c.NoContent(http.StatusNoContent)
}

// Load handles POST /v1/sessions/:id/load, retrying a failed availability load.
func (h *SessionHandler) Load(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    return respond(c, http.StatusOK, id, s, s.Load(c.Request().Context()))
}

// ToggleSeat handles POST /v1/sessions/:id/seats/:seat.
func (h *SessionHandler) ToggleSeat(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    seat, err := booking.ParseSeatID(c.Param("seat"))
    if err == nil {
        _, err = s.ToggleSeat(seat)
    }
    return respond(c, http.StatusOK, id, s, err)
}

// SelectPayment handles PUT /v1/sessions/:id/payment with {"method": "UPI"}.
// Choosing a method clears previously entered payment fields.
func (h *SessionHandler) SelectPayment(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    var body struct {
        Method string `json:"method"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    m, err := booking.ParsePaymentMethod(body.Method)
    if err == nil {
        err = s.SelectPaymentMethod(m)
    }
    return respond(c, http.StatusOK, id, s, err)
}

// SetPaymentFields handles PUT /v1/sessions/:id/payment/fields with a flat
// object of field names to values.  Fields are applied in name order and
// the first failure stops the update.
func (h *SessionHandler) SetPaymentFields(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    // body only: Bind would copy path params into the map
    var fields map[string]string
    if err := (&echo.DefaultBinder{}).BindBody(c, &fields); err != nil || len(fields) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment fields are required"})
    }
    for _, name := range sortedKeys(fields) {
        if err := s.SetPaymentField(name, fields[name]); err != nil {
            return respond(c, http.StatusOK, id, s, err)
        }
    }
    return c.JSON(http.StatusOK, view(id, s))
}

// Back handles POST /v1/sessions/:id/back.
func (h *SessionHandler) Back(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    return respond(c, http.StatusOK, id, s, s.BackToSeats())
}

// Submit handles POST /v1/sessions/:id/submit.
func (h *SessionHandler) Submit(c echo.Context) error {
    return h.send(c, (*booking.Session).Submit)
}

// Retry handles POST /v1/sessions/:id/retry after a failed submission.
func (h *SessionHandler) Retry(c echo.Context) error {
    return h.send(c, (*booking.Session).Retry)
}

func (h *SessionHandler) send(c echo.Context, call func(*booking.Session, context.Context) (*booking.Confirmation, error)) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    // the booking call outlives a dropped client; DELETE cancels it
    _, err = call(s, context.WithoutCancel(c.Request().Context()))
    return respond(c, http.StatusOK, id, s, err)
}

// Reset handles POST /v1/sessions/:id/reset, starting a new flow on the
// same screening.
func (h *SessionHandler) Reset(c echo.Context) error {
    id, s, err := h.lookup(c)
    if s == nil {
        return err
    }
    return respond(c, http.StatusOK, id, s, s.Reset(c.Request().Context()))
}

func sortedKeys(m map[string]string) []string {
    keys := make([]string, 0, len(m))
    for k := range m {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    return keys
}

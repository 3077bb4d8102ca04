package handler

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/cinema-booking-client/internal/api"
    "github.com/iliyamo/cinema-booking-client/internal/booking"
    "github.com/iliyamo/cinema-booking-client/internal/middleware"
    "github.com/iliyamo/cinema-booking-client/internal/queue"
    "github.com/iliyamo/cinema-booking-client/internal/registry"
    "github.com/iliyamo/cinema-booking-client/internal/repository"
    "github.com/iliyamo/cinema-booking-client/internal/utils"
)

const secret = "test-secret"

// fakeService plays the booking API.  Submit results are consumed in order.
type fakeService struct {
    mu        sync.Mutex
    booked    []booking.SeatID
    loadErr   error
    results   []error
    requests  []booking.ReservationRequest
    tokens    []string
    bookingNo int
}

func (f *fakeService) forToken(token string) booking.Service {
    f.mu.Lock()
    f.tokens = append(f.tokens, token)
    f.mu.Unlock()
    return f
}

func (f *fakeService) QueryAvailability(context.Context, booking.ShowKey) (booking.BookedSeatSet, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.loadErr != nil {
        return nil, f.loadErr
    }
    return booking.NewBookedSeatSet(f.booked...), nil
}

func (f *fakeService) SubmitReservation(_ context.Context, req booking.ReservationRequest) (*booking.Confirmation, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.requests = append(f.requests, req)
    if len(f.results) > 0 {
        err := f.results[0]
        f.results = f.results[1:]
        if err != nil {
            return nil, err
        }
    }
    f.bookingNo++
    return &booking.Confirmation{BookingID: "bk-" + string(rune('0'+f.bookingNo)), Status: "confirmed"}, nil
}

func (f *fakeService) CancelReservation(context.Context, string) error { return nil }

type fakeAPI struct {
    cancelErr error
    cancelled []string
    bookings  []api.Booking
}

func (f *fakeAPI) CancelReservation(_ context.Context, id string) error {
    f.cancelled = append(f.cancelled, id)
    return f.cancelErr
}

func (f *fakeAPI) ListBookings(context.Context) ([]api.Booking, error) { return f.bookings, nil }

type fakeReceipts struct {
    mu        sync.Mutex
    created   []repository.Receipt
    cancelled []string
    cancelErr error
}

func (f *fakeReceipts) Create(_ context.Context, rec *repository.Receipt) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.created = append(f.created, *rec)
    return nil
}

func (f *fakeReceipts) ListByUser(_ context.Context, userID string, _ int) ([]repository.Receipt, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := []repository.Receipt{}
    for _, r := range f.created {
        if r.UserID == userID {
            out = append(out, r)
        }
    }
    return out, nil
}

func (f *fakeReceipts) MarkCancelled(_ context.Context, _, bookingID string, _ time.Time) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.cancelled = append(f.cancelled, bookingID)
    return f.cancelErr
}

type fakePublisher struct {
    mu     sync.Mutex
    events []queue.BookingConfirmedEvent
}

func (f *fakePublisher) PublishBookingConfirmed(_ context.Context, e queue.BookingConfirmedEvent) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.events = append(f.events, e)
    return nil
}

type fixture struct {
    e        *echo.Echo
    svc      *fakeService
    api      *fakeAPI
    receipts *fakeReceipts
    events   *fakePublisher
    sessions *registry.Registry
    tokens   map[string]string
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    f := &fixture{
        svc:      &fakeService{booked: []booking.SeatID{"A1"}},
        api:      &fakeAPI{},
        receipts: &fakeReceipts{},
        events:   &fakePublisher{},
        sessions: registry.New(time.Minute, 2),
        tokens:   map[string]string{},
    }
    t.Cleanup(f.sessions.Close)

    pricing, err := booking.NewPricingPolicy(nil)
    require.NoError(t, err)
    sink := &ConfirmationSink{Receipts: f.receipts, Publisher: f.events}
    sh := NewSessionHandler(f.sessions, f.svc.forToken, booking.Options{MaxSeatsPerBooking: 3}, sink)
    bh := NewBookingHandler(func(string) BookingAPI { return f.api }, f.svc.forToken, f.receipts, pricing)

    e := echo.New()
    g := e.Group("/v1", middleware.JWTAuth(secret))
    g.POST("/sessions", sh.Create)
    g.GET("/sessions/:id", sh.Get)
    g.DELETE("/sessions/:id", sh.Delete)
    g.POST("/sessions/:id/load", sh.Load)
    g.POST("/sessions/:id/reset", sh.Reset)
    g.POST("/sessions/:id/seats/:seat", sh.ToggleSeat)
    g.PUT("/sessions/:id/payment", sh.SelectPayment)
    g.PUT("/sessions/:id/payment/fields", sh.SetPaymentFields)
    g.POST("/sessions/:id/back", sh.Back)
    g.POST("/sessions/:id/submit", sh.Submit)
    g.POST("/sessions/:id/retry", sh.Retry)
    g.GET("/availability", bh.Availability)
    g.GET("/bookings", bh.ListBookings)
    g.POST("/bookings/:id/cancel", bh.Cancel)
    g.GET("/receipts", bh.ListReceipts)
    f.e = e
    return f
}

func token(t *testing.T, user string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, user, "", 5)
    require.NoError(t, err)
    return tok.Token
}

// tokenFor mints one token per user and reuses it.
func (f *fixture) tokenFor(t *testing.T, user string) string {
    if tok, ok := f.tokens[user]; ok {
        return tok
    }
    f.tokens[user] = token(t, user)
    return f.tokens[user]
}

func (f *fixture) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
    t.Helper()
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    if user != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.tokenFor(t, user))
    }
    rec := httptest.NewRecorder()
    f.e.ServeHTTP(rec, req)
    return rec
}

type sessionBody struct {
    ID            string            `json:"id"`
    State         string            `json:"state"`
    Total         int               `json:"total"`
    BookedSeats   []string          `json:"bookedSeats"`
    PaymentMethod string            `json:"paymentMethod"`
    PaymentFields map[string]string `json:"paymentFields"`
    MissingFields []string          `json:"missingFields"`
    Notice        string            `json:"notice"`
    ConflictSeats []string          `json:"conflictSeats"`
    Tentative     bool              `json:"tentative"`
    Confirmation  *struct {
        BookingID string `json:"bookingId"`
        Total     int    `json:"total"`
    } `json:"confirmation"`
}

type errorResp struct {
    Error         string      `json:"error"`
    Reason        string      `json:"reason"`
    MissingFields []string    `json:"missingFields"`
    ConflictSeats []string    `json:"conflictSeats"`
    Session       sessionBody `json:"session"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var out T
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
    return out
}

const createBody = `{"movieId":"m1","showDate":"2026-10-20","showtime":"7:30 PM"}`

func (f *fixture) create(t *testing.T, user string) string {
    t.Helper()
    rec := f.do(t, user, http.MethodPost, "/v1/sessions", createBody)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    return decode[sessionBody](t, rec).ID
}

func TestSessionFlow_UPI(t *testing.T) {
    f := newFixture(t)

    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions", createBody)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    s := decode[sessionBody](t, rec)
    assert.NotEmpty(t, s.ID)
    assert.Equal(t, "/v1/sessions/"+s.ID, rec.Header().Get(echo.HeaderLocation))
    assert.Equal(t, "selecting", s.State)
    assert.Equal(t, []string{"A1"}, s.BookedSeats)
    base := "/v1/sessions/" + s.ID

    rec = f.do(t, "u-1", http.MethodPost, base+"/seats/A1", "")
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, 0, decode[errorResp](t, rec).Session.Total)

    rec = f.do(t, "u-1", http.MethodPost, base+"/seats/d3", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, 200, decode[sessionBody](t, rec).Total)
    rec = f.do(t, "u-1", http.MethodPost, base+"/seats/A2", "")
    assert.Equal(t, 500, decode[sessionBody](t, rec).Total)

    rec = f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"upi"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    s = decode[sessionBody](t, rec)
    assert.Equal(t, "payment_pending", s.State)
    assert.Equal(t, "UPI", s.PaymentMethod)

    rec = f.do(t, "u-1", http.MethodPost, base+"/submit", "")
    require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    er := decode[errorResp](t, rec)
    assert.Equal(t, []string{"upiId"}, er.MissingFields)
    assert.Equal(t, "payment_pending", er.Session.State)
    assert.Empty(t, f.svc.requests)

    rec = f.do(t, "u-1", http.MethodPut, base+"/payment/fields", `{"upiId":"me@upi"}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = f.do(t, "u-1", http.MethodPost, base+"/submit", "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    s = decode[sessionBody](t, rec)
    assert.Equal(t, "confirmed", s.State)
    require.NotNil(t, s.Confirmation)
    assert.Equal(t, "bk-1", s.Confirmation.BookingID)
    assert.Equal(t, 500, s.Confirmation.Total)

    require.Len(t, f.svc.requests, 1)
    assert.Equal(t, booking.UPI, f.svc.requests[0].PaymentMethod)
    assert.Equal(t, 500, f.svc.requests[0].Total)

    require.Len(t, f.receipts.created, 1)
    assert.Equal(t, "u-1", f.receipts.created[0].UserID)
    assert.Equal(t, []string{"A2", "D3"}, sortedCopy(f.receipts.created[0].Seats))
    require.Len(t, f.events.events, 1)
    assert.Equal(t, s.ID, f.events.events[0].SessionID)
    assert.Equal(t, "bk-1", f.events.events[0].BookingID)

    // the booking API saw the caller's own token
    require.NotEmpty(t, f.svc.tokens)
    assert.Equal(t, f.tokenFor(t, "u-1"), f.svc.tokens[0])

    rec = f.do(t, "u-1", http.MethodPost, base+"/seats/B1", "")
    assert.Equal(t, http.StatusConflict, rec.Code, "confirmed sessions are read-only until reset")

    rec = f.do(t, "u-1", http.MethodPost, base+"/reset", "")
    require.Equal(t, http.StatusOK, rec.Code)
    s = decode[sessionBody](t, rec)
    assert.Equal(t, "selecting", s.State)
    assert.Nil(t, s.Confirmation)
}

func sortedCopy(in []string) []string {
    out := append([]string(nil), in...)
    for i := 1; i < len(out); i++ {
        for j := i; j > 0 && out[j] < out[j-1]; j-- {
            out[j], out[j-1] = out[j-1], out[j]
        }
    }
    return out
}

func prepareUPI(t *testing.T, f *fixture, id string) {
    t.Helper()
    base := "/v1/sessions/" + id
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPost, base+"/seats/D3", "").Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"UPI"}`).Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, base+"/payment/fields", `{"upiId":"me@upi"}`).Code)
}

func TestSessionSubmit_Conflict(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")
    prepareUPI(t, f, id)
    f.svc.results = []error{&booking.ConflictError{Seats: []booking.SeatID{"D3"}}}

    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/submit", "")
    require.Equal(t, http.StatusConflict, rec.Code)
    er := decode[errorResp](t, rec)
    assert.Equal(t, []string{"D3"}, er.ConflictSeats)
    assert.Equal(t, "selecting", er.Session.State)
    assert.Equal(t, booking.NoticeSeatsTaken, er.Session.Notice)
    assert.Equal(t, 0, er.Session.Total)
    assert.ElementsMatch(t, []string{"A1", "D3"}, er.Session.BookedSeats)
    assert.Empty(t, f.receipts.created)
}

func TestSessionSubmit_ServiceErrorThenRetry(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")
    prepareUPI(t, f, id)
    f.svc.results = []error{&booking.ServiceError{Op: "submit reservation", StatusCode: 500, Err: errors.New("boom")}}

    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/submit", "")
    require.Equal(t, http.StatusBadGateway, rec.Code)
    er := decode[errorResp](t, rec)
    assert.Equal(t, "failed", er.Session.State)
    assert.Equal(t, 200, er.Session.Total)
    assert.Equal(t, "me@upi", er.Session.PaymentFields["upiId"])

    rec = f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/retry", "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "confirmed", decode[sessionBody](t, rec).State)

    require.Len(t, f.svc.requests, 2)
    assert.Equal(t, f.svc.requests[0].IdempotencyKey, f.svc.requests[1].IdempotencyKey)
}

func TestSession_RetryOutsideFailed(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")
    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/retry", "")
    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSession_OwnershipAndDelete(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")

    assert.Equal(t, http.StatusUnauthorized, f.do(t, "", http.MethodGet, "/v1/sessions/"+id, "").Code)
    assert.Equal(t, http.StatusNotFound, f.do(t, "u-2", http.MethodGet, "/v1/sessions/"+id, "").Code)
    assert.Equal(t, http.StatusNotFound, f.do(t, "u-2", http.MethodDelete, "/v1/sessions/"+id, "").Code)

    assert.Equal(t, http.StatusNoContent, f.do(t, "u-1", http.MethodDelete, "/v1/sessions/"+id, "").Code)
    assert.Equal(t, http.StatusNotFound, f.do(t, "u-1", http.MethodGet, "/v1/sessions/"+id, "").Code)
}

func TestSession_PerUserLimit(t *testing.T) {
    f := newFixture(t)
    f.create(t, "u-1")
    f.create(t, "u-1")
    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions", createBody)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSessionCreate_Validation(t *testing.T) {
    f := newFixture(t)
    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions", `{"movieId":"m1","showtime":"7:30 PM"}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    rec = f.do(t, "u-1", http.MethodPost, "/v1/sessions", `{"movieId":"m1","showDate":"20/10/2026","showtime":"7:30 PM"}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Contains(t, rec.Body.String(), "invalid showDate")
    assert.Equal(t, 0, f.sessions.Len())
}

func TestSessionCreate_LoadFailureThenLoad(t *testing.T) {
    f := newFixture(t)
    f.svc.loadErr = errors.New("connection refused")

    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions", createBody)
    require.Equal(t, http.StatusServiceUnavailable, rec.Code)
    er := decode[errorResp](t, rec)
    require.NotEmpty(t, er.Session.ID)
    assert.Equal(t, "loading", er.Session.State)

    rec = f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+er.Session.ID+"/seats/B2", "")
    assert.Equal(t, http.StatusConflict, rec.Code)

    f.svc.mu.Lock()
    f.svc.loadErr = nil
    f.svc.mu.Unlock()
    rec = f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+er.Session.ID+"/load", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "selecting", decode[sessionBody](t, rec).State)
}

func TestSession_BadInput(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")
    base := "/v1/sessions/" + id

    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodPost, base+"/seats/Z9", "").Code)
    rec := f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"UPI"}`)
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "payment needs seats")

    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPost, base+"/seats/B2", "").Code)
    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"cash"}`).Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"Wallet"}`).Code)
    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodPut, base+"/payment/fields", `{"upiId":"x"}`).Code)
    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodPut, base+"/payment/fields", `{}`).Code)

    rec = f.do(t, "u-1", http.MethodPost, base+"/back", "")
    require.Equal(t, http.StatusOK, rec.Code)
    s := decode[sessionBody](t, rec)
    assert.Equal(t, "selecting", s.State)
    assert.Equal(t, 300, s.Total)
    assert.Equal(t, "Wallet", s.PaymentMethod)
}

func TestSession_CardFieldsMasked(t *testing.T) {
    f := newFixture(t)
    id := f.create(t, "u-1")
    base := "/v1/sessions/" + id
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPost, base+"/seats/H12", "").Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, base+"/payment", `{"method":"credit_card"}`).Code)

    rec := f.do(t, "u-1", http.MethodPut, base+"/payment/fields", `{"cardNumber":"4111111111111111","cvv":"123"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    s := decode[sessionBody](t, rec)
    assert.NotContains(t, rec.Body.String(), "4111111111111111")
    assert.NotContains(t, s.PaymentFields["cvv"], "123")
    assert.ElementsMatch(t, []string{"expiryDate", "cardholderName"}, s.MissingFields)
}

func TestBookings_Cancel(t *testing.T) {
    f := newFixture(t)

    rec := f.do(t, "u-1", http.MethodPost, "/v1/bookings/bk-9/cancel", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, []string{"bk-9"}, f.api.cancelled)
    assert.Equal(t, []string{"bk-9"}, f.receipts.cancelled)

    f.api.cancelErr = booking.ErrAlreadyCancelled
    rec = f.do(t, "u-1", http.MethodPost, "/v1/bookings/bk-9/cancel", "")
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Len(t, f.receipts.cancelled, 2)

    f.api.cancelErr = booking.ErrNotFound
    rec = f.do(t, "u-1", http.MethodPost, "/v1/bookings/nope/cancel", "")
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Len(t, f.receipts.cancelled, 2)

    f.api.cancelErr = &booking.ServiceError{Op: "cancel reservation", StatusCode: 500}
    rec = f.do(t, "u-1", http.MethodPost, "/v1/bookings/bk-9/cancel", "")
    assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBookings_ListAndReceipts(t *testing.T) {
    f := newFixture(t)
    f.api.bookings = []api.Booking{{ID: "bk-1", BookingStatus: "confirmed", TotalAmount: 300}}
    f.receipts.created = []repository.Receipt{{BookingID: "bk-1", UserID: "u-1"}, {BookingID: "bk-2", UserID: "u-2"}}

    rec := f.do(t, "u-1", http.MethodGet, "/v1/bookings", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), `"_id":"bk-1"`)

    rec = f.do(t, "u-1", http.MethodGet, "/v1/receipts?limit=10", "")
    require.Equal(t, http.StatusOK, rec.Code)
    body := decode[struct {
        Receipts []repository.Receipt `json:"receipts"`
    }](t, rec)
    require.Len(t, body.Receipts, 1)
    assert.Equal(t, "bk-1", body.Receipts[0].BookingID)

    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodGet, "/v1/receipts?limit=x", "").Code)
}

func TestReceipts_LedgerDisabled(t *testing.T) {
    pricing, _ := booking.NewPricingPolicy(nil)
    bh := NewBookingHandler(func(string) BookingAPI { return &fakeAPI{} }, func(string) booking.Service { return &fakeService{} }, nil, pricing)
    e := echo.New()
    e.GET("/receipts", bh.ListReceipts, middleware.JWTAuth(secret))

    req := httptest.NewRequest(http.MethodGet, "/receipts", nil)
    req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "u-1"))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAvailabilityPreview(t *testing.T) {
    f := newFixture(t)
    f.svc.booked = []booking.SeatID{"A1", "C4"}

    rec := f.do(t, "u-1", http.MethodGet, "/v1/availability?movieId=m1&showDate=2026-10-20&showtime=7:30%20PM", "")
    require.Equal(t, http.StatusOK, rec.Code)
    body := decode[struct {
        BookedSeats []string `json:"bookedSeats"`
        Available   int      `json:"available"`
        Prices      []struct {
            Tier  string `json:"tier"`
            Price int    `json:"price"`
        } `json:"prices"`
        Layout []booking.RowLayout `json:"layout"`
    }](t, rec)
    assert.Equal(t, []string{"A1", "C4"}, body.BookedSeats)
    assert.Equal(t, 94, body.Available)
    assert.Len(t, body.Layout, 8)
    require.Len(t, body.Prices, 3)
    assert.Equal(t, "vip", body.Prices[0].Tier)
    assert.Equal(t, 300, body.Prices[0].Price)

    assert.Equal(t, http.StatusBadRequest, f.do(t, "u-1", http.MethodGet, "/v1/availability?movieId=m1", "").Code)

    f.svc.loadErr = errors.New("down")
    rec = f.do(t, "u-1", http.MethodGet, "/v1/availability?movieId=m1&showDate=2026-10-20&showtime=7:30%20PM", "")
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionForwardsShowInstant(t *testing.T) {
    var mu sync.Mutex
    var queried, posted string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        mu.Lock()
        defer mu.Unlock()
        switch {
        case r.Method == http.MethodGet && r.URL.Path == "/api/bookings/booked-seats":
            queried = r.URL.Query().Get("showDate")
            _, _ = w.Write([]byte(`{"bookedSeats":[]}`))
        case r.Method == http.MethodPost && r.URL.Path == "/api/bookings":
            var in struct {
                ShowDate string `json:"showDate"`
            }
            _ = json.NewDecoder(r.Body).Decode(&in)
            posted = in.ShowDate
            w.WriteHeader(http.StatusCreated)
            _, _ = w.Write([]byte(`{"_id":"bk-9","bookingStatus":"confirmed","totalAmount":200}`))
        default:
            w.WriteHeader(http.StatusNotFound)
        }
    }))
    defer srv.Close()

    client := api.New(srv.URL, time.Second)
    sessions := registry.New(time.Minute, 0)
    t.Cleanup(sessions.Close)
    sh := NewSessionHandler(sessions, func(tok string) booking.Service { return client.WithToken(tok) }, booking.Options{}, nil)
    e := echo.New()
    g := e.Group("/v1", middleware.JWTAuth(secret))
    g.POST("/sessions", sh.Create)
    g.POST("/sessions/:id/seats/:seat", sh.ToggleSeat)
    g.PUT("/sessions/:id/payment", sh.SelectPayment)
    g.PUT("/sessions/:id/payment/fields", sh.SetPaymentFields)
    g.POST("/sessions/:id/submit", sh.Submit)
    f := &fixture{e: e, tokens: map[string]string{}}

    rec := f.do(t, "u-1", http.MethodPost, "/v1/sessions", `{"movieId":"m1","showDate":"2026-10-20T18:30:00.000Z","showtime":"7:30 PM"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    id := decode[sessionBody](t, rec).ID

    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/seats/D3", "").Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, "/v1/sessions/"+id+"/payment", `{"method":"UPI"}`).Code)
    require.Equal(t, http.StatusOK, f.do(t, "u-1", http.MethodPut, "/v1/sessions/"+id+"/payment/fields", `{"upiId":"me@upi"}`).Code)
    rec = f.do(t, "u-1", http.MethodPost, "/v1/sessions/"+id+"/submit", "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    mu.Lock()
    defer mu.Unlock()
    assert.Equal(t, "2026-10-20T18:30:00.000Z", queried)
    assert.Equal(t, "2026-10-20T18:30:00.000Z", posted)
}

func TestParseShowKey(t *testing.T) {
    k, err := parseShowKey(" m1 ", "2026-10-20T00:00:00.000Z", "7:30 PM")
    require.NoError(t, err)
    assert.Equal(t, "m1|2026-10-20T00:00:00.000Z|7:30 PM", k.String())

    k, err = parseShowKey("m1", "2026-10-20", "9:00 PM")
    require.NoError(t, err)
    assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), k.ShowDate)

    // IST midnight is 18:30Z the day before and must not collapse to midnight UTC
    k, err = parseShowKey("m1", "2026-10-20T18:30:00.000Z", "7:30 PM")
    require.NoError(t, err)
    assert.Equal(t, time.Date(2026, 10, 20, 18, 30, 0, 0, time.UTC), k.ShowDate)

    k, err = parseShowKey("m1", "2026-10-21T00:00:00+05:30", "7:30 PM")
    require.NoError(t, err)
    assert.Equal(t, "m1|2026-10-20T18:30:00.000Z|7:30 PM", k.String())
}

func TestStatusFor(t *testing.T) {
    cases := []struct {
        err  error
        want int
    }{
        {&booking.InvalidSubmissionError{Reason: booking.ReasonNoSeats}, http.StatusUnprocessableEntity},
        {&booking.ConflictError{Seats: []booking.SeatID{"A1"}}, http.StatusConflict},
        {booking.ErrSubmissionInProgress, http.StatusConflict},
        {&booking.ServiceError{Op: "x"}, http.StatusBadGateway},
        {booking.ErrSessionClosed, http.StatusGone},
        {registry.ErrNotFound, http.StatusNotFound},
        {booking.ErrSeatLimitReached, http.StatusBadRequest},
        {errors.New("other"), http.StatusInternalServerError},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
    }
}

// Package api implements booking.Service against the cinema booking REST
// API.  Requests carry the caller's bearer token; the API identifies the
// customer from it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking-client/internal/booking"
)

// showDateLayout matches what browsers send for Date.toISOString().
const showDateLayout = "2006-01-02T15:04:05.000Z"

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 4096

// Client talks to the booking API.  The zero value is not usable; build
// one with New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL.  A zero timeout
// leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of c that authenticates as the holder of token.
// The underlying http.Client is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// QueryAvailability fetches the booked seats of one show.
func (c *Client) QueryAvailability(ctx context.Context, show booking.ShowKey) (booking.BookedSeatSet, error) {
	q := url.Values{}
	q.Set("movieId", show.ShowID)
	q.Set("showDate", show.ShowDate.UTC().Format(showDateLayout))
	q.Set("showtime", show.Showtime)

	var out struct {
		BookedSeats []string `json:"bookedSeats"`
	}
	status, body, err := c.do(ctx, http.MethodGet, "/api/bookings/booked-seats?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", booking.ErrAvailabilityUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", booking.ErrAvailabilityUnavailable, statusError("query availability", status, body))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode booked seats: %w", booking.ErrAvailabilityUnavailable, err)
	}

	set := make(booking.BookedSeatSet, len(out.BookedSeats))
	for _, raw := range out.BookedSeats {
		id, err := booking.ParseSeatID(raw)
		if err != nil {
			// Seats outside the layout cannot be selected anyway.
			continue
		}
		set[id] = struct{}{}
	}
	return set, nil
}

type reservationBody struct {
	MovieID        string                 `json:"movieId"`
	ShowDate       string                 `json:"showDate"`
	Showtime       string                 `json:"showtime"`
	Seats          []booking.SelectedSeat `json:"seats"`
	PaymentMethod  booking.PaymentMethod  `json:"paymentMethod"`
	PaymentDetails map[string]string      `json:"paymentDetails,omitempty"`
	TotalAmount    int                    `json:"totalAmount"`
}

// Booking is a booking record as the API returns it.
type Booking struct {
	ID            string                 `json:"_id"`
	BookingID     string                 `json:"bookingId,omitempty"`
	Movie         MovieRef               `json:"movie"`
	ShowDate      time.Time              `json:"showDate"`
	Showtime      string                 `json:"showtime"`
	Seats         []booking.SelectedSeat `json:"seats"`
	TotalAmount   int                    `json:"totalAmount"`
	PaymentMethod booking.PaymentMethod  `json:"paymentMethod,omitempty"`
	BookingStatus string                 `json:"bookingStatus"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// MovieRef is either a bare movie id or a populated movie object.
type MovieRef struct {
	ID    string `json:"_id"`
	Title string `json:"title,omitempty"`
}

func (m *MovieRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &m.ID)
	}
	type plain MovieRef
	return json.Unmarshal(b, (*plain)(m))
}

// SubmitReservation creates a booking.  A 409 answer becomes a
// *booking.ConflictError; the colliding seats are taken from the body
// when the API lists them.
func (c *Client) SubmitReservation(ctx context.Context, req booking.ReservationRequest) (*booking.Confirmation, error) {
	const op = "create booking"
	in := reservationBody{
		MovieID:       req.Show.ShowID,
		ShowDate:      req.Show.ShowDate.UTC().Format(showDateLayout),
		Showtime:      req.Show.Showtime,
		Seats:         req.Seats,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.Total,
	}
	if req.PaymentDetails != nil {
		in.PaymentDetails = req.PaymentDetails.Fields()
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, &booking.ServiceError{Op: op, Err: err}
	}
	hdr := http.Header{}
	if req.IdempotencyKey != "" {
		hdr.Set("Idempotency-Key", req.IdempotencyKey)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/bookings", payload, hdr)
	if err != nil {
		return nil, &booking.ServiceError{Op: op, Err: err}
	}
	switch {
	case status == http.StatusConflict:
		return nil, conflictFrom(body)
	case status != http.StatusOK && status != http.StatusCreated:
		return nil, statusError(op, status, body)
	}

	var b Booking
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, &booking.ServiceError{Op: op, StatusCode: status, Err: fmt.Errorf("decode booking: %w", err)}
		}
	}
	conf := &booking.Confirmation{
		BookingID:     b.ID,
		Status:        b.BookingStatus,
		Seats:         b.Seats,
		Total:         b.TotalAmount,
		PaymentMethod: b.PaymentMethod,
		ConfirmedAt:   b.CreatedAt,
	}
	if conf.BookingID == "" {
		conf.BookingID = b.BookingID
	}
	return conf, nil
}

// CancelReservation cancels a booking owned by the token holder.
func (c *Client) CancelReservation(ctx context.Context, bookingID string) error {
	const op = "cancel booking"
	status, body, err := c.do(ctx, http.MethodPut, "/api/bookings/"+url.PathEscape(bookingID)+"/cancel", nil, nil)
	if err != nil {
		return &booking.ServiceError{Op: op, Err: err}
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", booking.ErrNotFound, bookingID)
	case http.StatusConflict, http.StatusBadRequest:
		if strings.Contains(strings.ToLower(errorMessage(body)), "already cancel") {
			return fmt.Errorf("%w: %s", booking.ErrAlreadyCancelled, bookingID)
		}
	}
	return statusError(op, status, body)
}

// ListBookings returns the token holder's bookings, newest first as the
// API orders them.
func (c *Client) ListBookings(ctx context.Context) ([]Booking, error) {
	const op = "list bookings"
	status, body, err := c.do(ctx, http.MethodGet, "/api/bookings/my-bookings", nil, nil)
	if err != nil {
		return nil, &booking.ServiceError{Op: op, Err: err}
	}
	if status != http.StatusOK {
		return nil, statusError(op, status, body)
	}
	var out []Booking
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &booking.ServiceError{Op: op, StatusCode: status, Err: fmt.Errorf("decode bookings: %w", err)}
	}
	return out, nil
}

// do sends one request and reads the whole response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, hdr http.Header) (int, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func conflictFrom(body []byte) *booking.ConflictError {
	var out struct {
		Seats       []string `json:"seats"`
		BookedSeats []string `json:"bookedSeats"`
	}
	_ = json.Unmarshal(body, &out)
	raw := out.Seats
	if len(raw) == 0 {
		raw = out.BookedSeats
	}
	ce := &booking.ConflictError{}
	for _, s := range raw {
		if id, err := booking.ParseSeatID(s); err == nil {
			ce.Seats = append(ce.Seats, id)
		}
	}
	return ce
}

func statusError(op string, status int, body []byte) *booking.ServiceError {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &booking.ServiceError{Op: op, StatusCode: status, Err: errors.New(msg)}
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error
// body, falling back to the raw text.
func errorMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var out struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err == nil {
		if out.Message != "" {
			return out.Message
		}
		if out.Error != "" {
			return out.Error
		}
	}
	return strings.TrimSpace(string(body))
}

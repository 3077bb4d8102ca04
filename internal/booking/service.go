package booking

import (
	"context"
	"time"
)

// ShowKey identifies one screening: the movie, the show date and the
// showtime label ("7:30 PM").
type ShowKey struct {
	ShowID   string    `json:"movieId"`
	ShowDate time.Time `json:"showDate"`
	Showtime string    `json:"showtime"`
}

// String returns a stable representation usable as a cache key.
func (k ShowKey) String() string {
	return k.ShowID + "|" + k.ShowDate.UTC().Format("2006-01-02T15:04:05.000Z") + "|" + k.Showtime
}

// ReservationRequest is what the session submits to the booking service.
// IdempotencyKey is kept across a Retry of the same request.
type ReservationRequest struct {
	Show           ShowKey
	Seats          []SelectedSeat
	PaymentMethod  PaymentMethod
	PaymentDetails PaymentDetails
	Total          int
	IdempotencyKey string
}

// Confirmation is the booking service's acknowledgement of a reservation.
type Confirmation struct {
	BookingID     string         `json:"bookingId"`
	Status        string         `json:"status"`
	Seats         []SelectedSeat `json:"seats"`
	Total         int            `json:"total"`
	PaymentMethod PaymentMethod  `json:"paymentMethod"`
	ConfirmedAt   time.Time      `json:"confirmedAt"`
}

// Service is the external booking service as seen by a session.
//
// QueryAvailability returns ErrAvailabilityUnavailable (possibly
// wrapped) when the booked set cannot be fetched.  SubmitReservation
// returns *ConflictError when seats were taken and *ServiceError for any
// other failure.  CancelReservation returns ErrNotFound or
// ErrAlreadyCancelled.
type Service interface {
	QueryAvailability(ctx context.Context, show ShowKey) (BookedSeatSet, error)
	SubmitReservation(ctx context.Context, req ReservationRequest) (*Confirmation, error)
	CancelReservation(ctx context.Context, bookingID string) error
}

// AvailabilityRefresher is implemented by services that can bypass a
// local cache.  Sessions use it after a conflict.
type AvailabilityRefresher interface {
	RefreshAvailability(ctx context.Context, show ShowKey) (BookedSeatSet, error)
}

// Notifier is told about every confirmed booking.  Errors are logged and
// never change the session state.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, show ShowKey, c Confirmation) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, show ShowKey, c Confirmation) error

func (f NotifierFunc) NotifyConfirmed(ctx context.Context, show ShowKey, c Confirmation) error {
	return f(ctx, show, c)
}

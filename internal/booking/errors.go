package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the session, its components and the adapters
// that talk to the booking service.  Callers should match them with
// errors.Is; the typed errors below also match their sentinel.
var (
	// ErrInvalidRow is returned for a row index outside the fixed layout.
	// It signals a programming error and should not be shown to users.
	ErrInvalidRow = errors.New("invalid row")
	// ErrInvalidSeat is returned when a seat identifier is not part of the layout.
	ErrInvalidSeat = errors.New("invalid seat")
	// ErrSeatBooked is returned when toggling a seat that is already booked.
	// The cart is left untouched.
	ErrSeatBooked = errors.New("seat already booked")
	// ErrSeatLimitReached is returned when the cart already holds the
	// configured maximum number of seats.
	ErrSeatLimitReached = errors.New("seat limit reached")
	// ErrAvailabilityUnavailable is returned when the booked seat set cannot
	// be fetched.  It is transient; reloading may succeed.
	ErrAvailabilityUnavailable = errors.New("seat availability unavailable")
	// ErrInvalidSubmission is matched by *InvalidSubmissionError.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrConflict is matched by *ConflictError.
	ErrConflict = errors.New("seats no longer available")
	// ErrService is matched by *ServiceError.
	ErrService = errors.New("booking service error")
	// ErrSubmissionInProgress is returned for a second submission while one
	// is still pending.
	ErrSubmissionInProgress = errors.New("submission in progress")
	// ErrLoadInProgress is returned when availability is already being loaded.
	ErrLoadInProgress = errors.New("availability load in progress")
	// ErrSeatsLocked is returned for seat interaction while the cart cannot
	// change (submission in flight or conflict refresh running).
	ErrSeatsLocked = errors.New("seat selection is locked")
	// ErrInvalidTransition is returned when a mutator is not valid in the
	// current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSessionComplete is returned for mutators called after a confirmed
	// booking.  Reset starts a new flow.
	ErrSessionComplete = errors.New("session already confirmed")
	// ErrSessionClosed is returned by every mutator after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownPaymentMethod is returned for a method outside the enumeration.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrNoPaymentMethod is returned when a payment field is set before a
	// method has been chosen.
	ErrNoPaymentMethod = errors.New("no payment method selected")
	// ErrUnknownField is returned when a field does not belong to the
	// active payment method.
	ErrUnknownField = errors.New("unknown payment field")
	// ErrNotFound is returned by CancelReservation for an unknown booking.
	ErrNotFound = errors.New("booking not found")
	// ErrAlreadyCancelled is returned by CancelReservation for a booking
	// that was cancelled before.
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

// SubmissionReason names the requirement an invalid submission failed.
type SubmissionReason string

const (
	ReasonNoSeats         SubmissionReason = "no seats selected"
	ReasonNoPaymentMethod SubmissionReason = "no payment method selected"
	ReasonMissingFields   SubmissionReason = "missing payment fields"
	ReasonInvalidField    SubmissionReason = "invalid payment field"
)

// InvalidSubmissionError reports a local validation failure.  It never
// reaches the booking service.
type InvalidSubmissionError struct {
	Reason SubmissionReason
	Fields []string // offending payment fields, sorted
	Err    error    // validator error for ReasonInvalidField
}

func (e *InvalidSubmissionError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidSubmission.Error())
	b.WriteString(": ")
	b.WriteString(string(e.Reason))
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InvalidSubmissionError) Unwrap() error { return e.Err }

func (e *InvalidSubmissionError) Is(target error) bool { return target == ErrInvalidSubmission }

// ConflictError is returned by the booking service when some requested
// seats were booked by someone else first.  Seats may be empty when the
// service does not say which seats collided.
type ConflictError struct {
	Seats []SeatID
}

func (e *ConflictError) Error() string {
	if len(e.Seats) == 0 {
		return ErrConflict.Error()
	}
	ids := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		ids[i] = s.String()
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(ids, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ServiceError wraps a non-conflict failure reported by (or while talking
// to) the booking service.  StatusCode is zero for transport failures.
type ServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	msg := ErrService.Error() + ": " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// unavailable makes sure err matches ErrAvailabilityUnavailable.
func unavailable(err error) error {
	if errors.Is(err, ErrAvailabilityUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAvailabilityUnavailable, err)
}

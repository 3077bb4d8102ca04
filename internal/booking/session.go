package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the position of a Session in the booking flow.
type State string

const (
	StateLoading        State = "loading"
	StateSelecting      State = "selecting"
	StatePaymentPending State = "payment_pending"
	StateSubmitting     State = "submitting"
	StateConflict       State = "conflict"
	StateConfirmed      State = "confirmed"
	StateFailed         State = "failed"
	StateClosed         State = "closed"
)

// User-facing notices carried in snapshots.
const (
	NoticeSeatsTaken = "Some seats were just booked by someone else. The seat map has been refreshed, please select your seats again."
	NoticeTentative  = "Seat availability could not be loaded. All seats are shown as available and will be checked when you pay."
)

// Options configures a Session.  The zero value is usable.
type Options struct {
	// Prices overrides the default price table.
	Prices PriceTable
	// MaxSeatsPerBooking caps the cart; zero means unlimited.
	MaxSeatsPerBooking int
	// DegradeOnUnavailable lets a session start with every seat shown as
	// available when the booked set cannot be loaded.
	DegradeOnUnavailable bool
	// Validators adds per-method format checks on top of presence checks.
	Validators map[PaymentMethod]FieldValidator
	// Notifier is called after every confirmed booking.
	Notifier Notifier
	// NewIdempotencyKey generates the key sent with a reservation request.
	NewIdempotencyKey func() string
	Now               func() time.Time
}

// Session is one seat-selection-through-confirmation flow for a single
// show.  It owns its seat map, cart and payment form; nothing is shared
// with other sessions.
//
// Calls that reach the booking service (Load, Submit, Retry, Reset)
// block the calling goroutine only.  Snapshot and the other mutators stay
// responsive while a call is in flight, and at most one call is in flight
// at a time.  After Close, results of pending calls are discarded.
type Session struct {
	mu   sync.Mutex
	show ShowKey
	svc  Service
	opts Options

	pricing *PricingPolicy
	seatMap *SeatMap
	cart    *Cart
	payment *PaymentForm

	state        State
	closed       bool
	callID       uint64
	cancel       context.CancelFunc // set while a service call is in flight
	idemKey      string
	confirmation *Confirmation
	notice       string
	conflict     []SeatID
	lastErr      error
}

// NewSession returns a session in StateLoading.  Call Load to fetch the
// booked seats.
func NewSession(show ShowKey, svc Service, opts Options) (*Session, error) {
	if svc == nil {
		return nil, errors.New("booking: nil service")
	}
	pricing, err := NewPricingPolicy(opts.Prices)
	if err != nil {
		return nil, err
	}
	if opts.NewIdempotencyKey == nil {
		opts.NewIdempotencyKey = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seatMap := NewSeatMap(nil)
	return &Session{
		show:    show,
		svc:     svc,
		opts:    opts,
		pricing: pricing,
		seatMap: seatMap,
		cart:    NewCart(seatMap, opts.MaxSeatsPerBooking),
		payment: NewPaymentForm(opts.Validators),
		state:   StateLoading,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error behind the current state, if any: the
// availability failure, the conflict or the service error.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load fetches the booked seats and moves the session to StateSelecting.
// On failure the session stays in StateLoading and Load may be called
// again, unless Options.DegradeOnUnavailable is set.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateLoading {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: load in %s", ErrInvalidTransition, st)
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	callCtx, id := s.startCall(ctx)
	s.mu.Unlock()

	booked, err := s.svc.QueryAvailability(callCtx, s.show)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endCall(id) {
		return ErrSessionClosed
	}
	if err != nil {
		err = unavailable(err)
		s.lastErr = err
		if !s.opts.DegradeOnUnavailable {
			return err
		}
		log.Printf("booking-session: availability for %s unavailable, continuing tentatively: %v", s.show, err)
		s.seatMap.Refresh(nil)
		s.seatMap.tentative = true
		s.notice = NoticeTentative
		s.state = StateSelecting
		return nil
	}
	s.seatMap.Refresh(booked)
	s.lastErr = nil
	s.state = StateSelecting
	return nil
}

// ToggleSeat selects or deselects id.  The tier is derived from the
// seat's row.  The boolean reports whether the seat is selected after
// the call.
func (s *Session) ToggleSeat(id SeatID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return false, err
	}
	switch s.state {
	case StateSelecting, StatePaymentPending:
	case StateSubmitting, StateConflict:
		return false, ErrSeatsLocked
	default:
		return false, fmt.Errorf("%w: toggle seat in %s", ErrInvalidTransition, s.state)
	}
	if !id.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidSeat, id)
	}
	tier, err := TierForRow(id.Row())
	if err != nil {
		return false, err
	}
	selected, err := s.cart.Toggle(id, tier)
	if err != nil {
		return false, err
	}
	s.notice = ""
	s.idemKey = ""
	if s.state == StatePaymentPending && s.cart.Len() == 0 {
		s.state = StateSelecting
	}
	return selected, nil
}

// SelectPaymentMethod chooses m, discarding every payment field entered
// so far, and moves the session to StatePaymentPending.  The cart must
// not be empty.
func (s *Session) SelectPaymentMethod(m PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	switch s.state {
	case StateSelecting, StatePaymentPending, StateFailed:
	case StateSubmitting, StateConflict:
		return ErrSubmissionInProgress
	default:
		return fmt.Errorf("%w: select payment method in %s", ErrInvalidTransition, s.state)
	}
	if s.cart.Len() == 0 {
		return &InvalidSubmissionError{Reason: ReasonNoSeats}
	}
	if err := s.payment.SelectMethod(m); err != nil {
		return err
	}
	s.idemKey = ""
	s.lastErr = nil
	s.state = StatePaymentPending
	return nil
}

// SetPaymentField stores a value for a field of the chosen method.
func (s *Session) SetPaymentField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	switch s.state {
	case StatePaymentPending, StateFailed:
	case StateSubmitting, StateConflict:
		return ErrSubmissionInProgress
	default:
		return fmt.Errorf("%w: set payment field in %s", ErrInvalidTransition, s.state)
	}
	if err := s.payment.SetField(name, value); err != nil {
		return err
	}
	s.idemKey = ""
	return nil
}

// BackToSeats returns to seat selection.  The cart and the payment
// selection are kept.
func (s *Session) BackToSeats() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	switch s.state {
	case StateSelecting:
		return nil
	case StatePaymentPending, StateFailed:
		s.state = StateSelecting
		s.lastErr = nil
		return nil
	case StateSubmitting, StateConflict:
		return ErrSubmissionInProgress
	default:
		return fmt.Errorf("%w: back to seats in %s", ErrInvalidTransition, s.state)
	}
}

// Submit sends the cart and payment details to the booking service.
//
// It fails locally with *InvalidSubmissionError when the cart is empty
// or the payment form is incomplete.  On a seat conflict the booked set
// is refreshed, the cart is cleared, the session returns to
// StateSelecting and the *ConflictError is returned.  Any other service
// failure moves the session to StateFailed with the cart and payment
// data intact and returns a *ServiceError.
func (s *Session) Submit(ctx context.Context) (*Confirmation, error) {
	return s.submit(ctx, false)
}

// Retry re-submits after a failure, reusing the previous request's
// idempotency key when nothing changed in between.
func (s *Session) Retry(ctx context.Context) (*Confirmation, error) {
	return s.submit(ctx, true)
}

func (s *Session) submit(ctx context.Context, retry bool) (*Confirmation, error) {
	s.mu.Lock()
	if err := s.mutable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	switch {
	case s.state == StateSubmitting || s.state == StateConflict:
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case retry && s.state != StateFailed:
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: retry in %s", ErrInvalidTransition, st)
	case s.state == StateLoading:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, s.state)
	}
	req, err := s.buildRequest()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	s.lastErr = nil
	s.notice = ""
	callCtx, id := s.startCall(ctx)
	s.mu.Unlock()

	conf, err := s.svc.SubmitReservation(callCtx, req)

	s.mu.Lock()
	if !s.endCall(id) {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		err = s.recoverConflict(ctx, conflict)
		s.mu.Unlock()
		return nil, err
	}
	if err != nil {
		se := asServiceError("submit reservation", err)
		s.state = StateFailed
		s.lastErr = se
		s.mu.Unlock()
		return nil, se
	}
	c := s.confirm(req, conf)
	notifier := s.opts.Notifier
	s.mu.Unlock()

	if notifier != nil {
		if err := notifier.NotifyConfirmed(context.WithoutCancel(ctx), s.show, c); err != nil {
			log.Printf("booking-session: notify confirmation %s failed: %v", c.BookingID, err)
		}
	}
	return &c, nil
}

// buildRequest must be called with s.mu held.  The total is computed
// from the cart as it is now.
func (s *Session) buildRequest() (ReservationRequest, error) {
	if s.cart.Len() == 0 {
		return ReservationRequest{}, &InvalidSubmissionError{Reason: ReasonNoSeats}
	}
	details, err := s.payment.Details()
	if err != nil {
		return ReservationRequest{}, err
	}
	if s.idemKey == "" {
		s.idemKey = s.opts.NewIdempotencyKey()
	}
	return ReservationRequest{
		Show:           s.show,
		Seats:          s.cart.Seats(),
		PaymentMethod:  details.Method(),
		PaymentDetails: details,
		Total:          s.pricing.CartTotal(s.cart),
		IdempotencyKey: s.idemKey,
	}, nil
}

// confirm must be called with s.mu held.
func (s *Session) confirm(req ReservationRequest, conf *Confirmation) Confirmation {
	var c Confirmation
	if conf != nil {
		c = *conf
	}
	if len(c.Seats) == 0 {
		c.Seats = req.Seats
	}
	if c.Total == 0 {
		c.Total = req.Total
	}
	if c.PaymentMethod == "" {
		c.PaymentMethod = req.PaymentMethod
	}
	if c.Status == "" {
		c.Status = "confirmed"
	}
	if c.ConfirmedAt.IsZero() {
		c.ConfirmedAt = s.opts.Now().UTC()
	}
	s.confirmation = &c
	s.cart.Clear()
	s.payment.Reset()
	s.idemKey = ""
	s.state = StateConfirmed
	return c
}

// recoverConflict must be called with s.mu held; it releases the lock
// while availability is re-fetched.  Every selected seat is dropped,
// even those that did not collide.
func (s *Session) recoverConflict(ctx context.Context, conflict *ConflictError) error {
	s.state = StateConflict
	s.conflict = append([]SeatID(nil), conflict.Seats...)
	s.cart.Clear()
	s.idemKey = ""
	s.seatMap.markBooked(conflict.Seats)
	callCtx, id := s.startCall(ctx)
	s.mu.Unlock()

	booked, err := s.refreshAvailability(callCtx)

	s.mu.Lock()
	if !s.endCall(id) {
		return ErrSessionClosed
	}
	if err != nil {
		log.Printf("booking-session: refresh after conflict on %s failed: %v", s.show, err)
		s.seatMap.tentative = true
	} else {
		s.seatMap.Refresh(booked)
		s.seatMap.markBooked(conflict.Seats)
	}
	s.state = StateSelecting
	s.notice = NoticeSeatsTaken
	s.lastErr = conflict
	return conflict
}

func (s *Session) refreshAvailability(ctx context.Context) (BookedSeatSet, error) {
	if r, ok := s.svc.(AvailabilityRefresher); ok {
		return r.RefreshAvailability(ctx, s.show)
	}
	return s.svc.QueryAvailability(ctx, s.show)
}

// Reset discards the cart, the payment selection and any confirmation,
// then reloads availability.  It is how a confirmed session is reused.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.cancel != nil {
		st := s.state
		s.mu.Unlock()
		if st == StateLoading {
			return ErrLoadInProgress
		}
		return ErrSubmissionInProgress
	}
	s.cart.Clear()
	s.payment.Reset()
	s.confirmation = nil
	s.conflict = nil
	s.notice = ""
	s.lastErr = nil
	s.idemKey = ""
	s.state = StateLoading
	s.mu.Unlock()
	return s.Load(ctx)
}

// Close disposes the session.  A pending service call is cancelled and
// its result ignored; every later mutator returns ErrSessionClosed.
// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cart.Clear()
	s.payment.Reset()
	s.state = StateClosed
}

// startCall must be called with s.mu held.
func (s *Session) startCall(ctx context.Context) (context.Context, uint64) {
	callCtx, cancel := context.WithCancel(ctx)
	s.callID++
	s.cancel = cancel
	return callCtx, s.callID
}

// endCall must be called with s.mu held.  It reports whether the result
// of call id may still be applied.
func (s *Session) endCall(id uint64) bool {
	if s.callID != id {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return !s.closed
}

// mutable must be called with s.mu held.
func (s *Session) mutable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state == StateConfirmed {
		return ErrSessionComplete
	}
	return nil
}

func asServiceError(op string, err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{Op: op, Err: err}
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	Show          ShowKey           `json:"show"`
	State         State             `json:"state"`
	Layout        []RowLayout       `json:"layout"`
	Seats         []SelectedSeat    `json:"seats"`
	Breakdown     []TierLine        `json:"breakdown"`
	Total         int               `json:"total"`
	PaymentMethod PaymentMethod     `json:"paymentMethod,omitempty"`
	PaymentFields map[string]string `json:"paymentFields,omitempty"`
	MissingFields []string          `json:"missingFields,omitempty"`
	BookedSeats   []SeatID          `json:"bookedSeats"`
	Available     int               `json:"available"`
	Tentative     bool              `json:"tentative,omitempty"`
	Notice        string            `json:"notice,omitempty"`
	ConflictSeats []SeatID          `json:"conflictSeats,omitempty"`
	Confirmation  *Confirmation     `json:"confirmation,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Snapshot returns the current view.  Card number and CVV are masked.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Show:          s.show,
		State:         s.state,
		Layout:        Layout(),
		Seats:         s.cart.Seats(),
		Breakdown:     s.pricing.Breakdown(s.cart),
		Total:         s.pricing.CartTotal(s.cart),
		PaymentMethod: s.payment.Method(),
		BookedSeats:   s.seatMap.Booked(),
		Available:     s.seatMap.Available(),
		Tentative:     s.seatMap.Tentative(),
		Notice:        s.notice,
		ConflictSeats: append([]SeatID(nil), s.conflict...),
	}
	if snap.PaymentMethod != "" {
		snap.PaymentFields = map[string]string{}
		for k, v := range s.payment.Values() {
			snap.PaymentFields[k] = maskField(k, v)
		}
		snap.MissingFields = s.payment.Missing()
	}
	if s.confirmation != nil {
		c := *s.confirmation
		c.Seats = append([]SelectedSeat(nil), c.Seats...)
		snap.Confirmation = &c
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// IsBooked reports whether id is booked in the session's seat map.
func (s *Session) IsBooked(id SeatID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatMap.IsBooked(id)
}

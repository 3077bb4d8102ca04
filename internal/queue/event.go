// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the booking log.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-booking-client/internal/booking"
)

// BookingConfirmedQueue is the durable queue confirmations are published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published after the booking service confirms a
// reservation made through a session.  It carries what downstream
// consumers need to log or notify without calling the booking API.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	UserID        string   `json:"user_id"`
	SessionID     string   `json:"session_id,omitempty"`
	MovieID       string   `json:"movie_id"`
	ShowDate      string   `json:"show_date"`
	Showtime      string   `json:"showtime"`
	Seats         []string `json:"seats"`
	TotalAmount   int      `json:"total_amount"`
	PaymentMethod string   `json:"payment_method"`
	Status        string   `json:"status"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for one confirmation.
func NewBookingConfirmedEvent(userID, sessionID string, show booking.ShowKey, c booking.Confirmation) BookingConfirmedEvent {
	seats := make([]string, len(c.Seats))
	for i, s := range c.Seats {
		seats[i] = s.ID.String()
	}
	return BookingConfirmedEvent{
		BookingID:     c.BookingID,
		UserID:        userID,
		SessionID:     sessionID,
		MovieID:       show.ShowID,
		ShowDate:      show.ShowDate.UTC().Format("2006-01-02"),
		Showtime:      show.Showtime,
		Seats:         seats,
		TotalAmount:   c.Total,
		PaymentMethod: string(c.PaymentMethod),
		Status:        c.Status,
		ConfirmedAt:   c.ConfirmedAt.UTC().Format(time.RFC3339),
	}
}

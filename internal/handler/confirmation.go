package handler

import (
    "context"
    "log"
    "time"

    "github.com/iliyamo/cinema-booking-client/internal/booking"
    "github.com/iliyamo/cinema-booking-client/internal/queue"
    "github.com/iliyamo/cinema-booking-client/internal/repository"
)

// EventPublisher publishes confirmed bookings to the message broker.
type EventPublisher interface {
    PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// ReceiptStore is the local ledger of confirmed bookings.
type ReceiptStore interface {
    Create(ctx context.Context, rec *repository.Receipt) error
    ListByUser(ctx context.Context, userID string, limit int) ([]repository.Receipt, error)
    MarkCancelled(ctx context.Context, userID, bookingID string, at time.Time) error
}

// ConfirmationSink fans a confirmed booking out to the ledger and the
// broker.  Either may be nil.
type ConfirmationSink struct {
    Receipts  ReceiptStore
    Publisher EventPublisher
}

// For returns the notifier of one session.
func (k *ConfirmationSink) For(userID, sessionID string) booking.Notifier {
    return booking.NotifierFunc(func(ctx context.Context, show booking.ShowKey, c booking.Confirmation) error {
        return k.record(ctx, userID, sessionID, show, c)
    })
}

// record writes the receipt first; a ledger failure does not stop the
// event.  The first error is returned.
func (k *ConfirmationSink) record(ctx context.Context, userID, sessionID string, show booking.ShowKey, c booking.Confirmation) error {
    var first error
    if k.Receipts != nil {
        if err := k.Receipts.Create(ctx, receiptFrom(userID, show, c)); err != nil {
            log.Printf("confirmation: store receipt %s: %v", c.BookingID, err)
            first = err
        }
    }
    if k.Publisher != nil {
        event := queue.NewBookingConfirmedEvent(userID, sessionID, show, c)
        if err := k.Publisher.PublishBookingConfirmed(ctx, event); err != nil {
            log.Printf("confirmation: publish %s: %v", c.BookingID, err)
            if first == nil {
                first = err
            }
        }
    }
    return first
}

func receiptFrom(userID string, show booking.ShowKey, c booking.Confirmation) *repository.Receipt {
    seats := make([]string, len(c.Seats))
    for i, s := range c.Seats {
        seats[i] = s.ID.String()
    }
    return &repository.Receipt{
        BookingID:     c.BookingID,
        UserID:        userID,
        MovieID:       show.ShowID,
        ShowDate:      show.ShowDate,
        Showtime:      show.Showtime,
        Seats:         seats,
        TotalAmount:   c.Total,
        PaymentMethod: string(c.PaymentMethod),
        Status:        repository.ReceiptConfirmed,
        ConfirmedAt:   c.ConfirmedAt,
    }
}

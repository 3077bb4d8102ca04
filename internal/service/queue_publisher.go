// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers may ignore them without interrupting the
// booking flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/cinema-booking-client/internal/queue"
)

// Publisher sends confirmation events to the booking.confirmed queue,
// opening one broker connection per event.
type Publisher struct {
	url string
	now func() time.Time
}

// New returns a publisher for the broker at url.  An empty url returns
// nil; a nil *Publisher drops every event.
func New(url string) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url, now: time.Now}
}

// PublishBookingConfirmed publishes event as a persistent message.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event q.BookingConfirmedEvent) error {
	if p == nil {
		return nil
	}
	pub, err := p.publishing(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(q.BookingConfirmedQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",                      // default exchange
		q.BookingConfirmedQueue, // routing key = queue name
		false,                   // mandatory
		false,                   // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

func (p *Publisher) publishing(event q.BookingConfirmedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.BookingID,
		Timestamp:    p.now().UTC(),
		Type:         q.BookingConfirmedQueue,
		Body:         body,
	}, nil
}

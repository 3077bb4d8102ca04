// Package cache keeps recently fetched seat availability in Redis so that
// many sessions opening the same show do not each hit the booking API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-client/internal/booking"
	"github.com/iliyamo/cinema-booking-client/internal/config"
)

// Availability decorates a booking.Service with a read-through cache of
// booked seat sets.  Entries are dropped after every submission that
// changes (or reveals a change in) the booked set.
type Availability struct {
	next   booking.Service
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewAvailability wraps next.  When caching is disabled or Redis is not
// available it returns next unchanged.
func NewAvailability(next booking.Service, rdb *redis.Client, cfg config.CacheConfig) booking.Service {
	if !cfg.Enabled || rdb == nil || cfg.AvailabilityTTL <= 0 {
		return next
	}
	return &Availability{next: next, rdb: rdb, ttl: cfg.AvailabilityTTL, prefix: cfg.Prefix}
}

// Key returns the Redis key holding the booked seats of show.
func (a *Availability) Key(show booking.ShowKey) string {
	return fmt.Sprintf("%s:seats:%s", a.prefix, show)
}

// QueryAvailability serves from Redis when possible.  Redis errors are
// logged and the booking service is asked directly.
func (a *Availability) QueryAvailability(ctx context.Context, show booking.ShowKey) (booking.BookedSeatSet, error) {
	key := a.Key(show)
	raw, err := a.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var ids []booking.SeatID
		if jerr := json.Unmarshal([]byte(raw), &ids); jerr == nil {
			return booking.NewBookedSeatSet(ids...), nil
		}
		log.Printf("availability-cache: dropping corrupt entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("availability-cache: get %s failed: %v", key, err)
		return a.next.QueryAvailability(ctx, show)
	}
	return a.fetch(ctx, show, key)
}

// RefreshAvailability bypasses the cached entry and stores the fresh one.
func (a *Availability) RefreshAvailability(ctx context.Context, show booking.ShowKey) (booking.BookedSeatSet, error) {
	key := a.Key(show)
	a.invalidate(ctx, key)
	return a.fetch(ctx, show, key)
}

func (a *Availability) fetch(ctx context.Context, show booking.ShowKey, key string) (booking.BookedSeatSet, error) {
	set, err := a.next.QueryAvailability(ctx, show)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(set.Slice())
	if err != nil {
		return set, nil
	}
	if err := a.rdb.Set(ctx, key, string(b), a.ttl).Err(); err != nil {
		log.Printf("availability-cache: set %s failed: %v", key, err)
	}
	return set, nil
}

// SubmitReservation forwards to the booking service and invalidates the
// show's entry on success and on conflict.
func (a *Availability) SubmitReservation(ctx context.Context, req booking.ReservationRequest) (*booking.Confirmation, error) {
	conf, err := a.next.SubmitReservation(ctx, req)
	if err == nil || errors.Is(err, booking.ErrConflict) {
		a.invalidate(context.WithoutCancel(ctx), a.Key(req.Show))
	}
	return conf, err
}

// CancelReservation forwards to the booking service.  The show of a
// booking is not known here, so cached entries simply expire.
func (a *Availability) CancelReservation(ctx context.Context, bookingID string) error {
	return a.next.CancelReservation(ctx, bookingID)
}

func (a *Availability) invalidate(ctx context.Context, key string) {
	if err := a.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("availability-cache: del %s failed: %v", key, err)
	}
}

// Package registry keeps the live booking sessions of the host, keyed by
// an opaque id and owned by the authenticated user that created them.
package registry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-client/internal/booking"
)

// ErrNotFound is returned for unknown ids and for sessions owned by
// someone else.
var ErrNotFound = errors.New("session not found")

// ErrTooManySessions is returned when an owner already holds the maximum
// number of open sessions.
var ErrTooManySessions = errors.New("too many open sessions")

type entry struct {
	owner    string
	session  *booking.Session
	lastUsed time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	idleTTL  time.Duration
	maxOwned int
	now      func() time.Time
}

// New returns an empty registry.  Sessions unused for idleTTL are closed
// by Sweep; maxPerOwner of zero means unlimited.
func New(idleTTL time.Duration, maxPerOwner int) *Registry {
	return &Registry{
		entries:  map[string]*entry{},
		idleTTL:  idleTTL,
		maxOwned: maxPerOwner,
		now:      time.Now,
	}
}

// Create allocates an id, builds the session for it and registers the
// result for owner.  build runs with the registry locked and must not
// call back into it.
func (r *Registry) Create(owner string, build func(id string) (*booking.Session, error)) (string, *booking.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxOwned > 0 && r.countLocked(owner) >= r.maxOwned {
		return "", nil, ErrTooManySessions
	}
	id := uuid.NewString()
	s, err := build(id)
	if err != nil {
		return "", nil, err
	}
	r.entries[id] = &entry{owner: owner, session: s, lastUsed: r.now()}
	return id, s, nil
}

// Get returns the session id of owner and marks it used.
func (r *Registry) Get(owner, id string) (*booking.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.owner != owner {
		return nil, ErrNotFound
	}
	e.lastUsed = r.now()
	return e.session, nil
}

// Remove closes and forgets the session.
func (r *Registry) Remove(owner, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.owner != owner {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.entries, id)
	r.mu.Unlock()

	e.session.Close()
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many were closed.  Sessions with a submission in flight are skipped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	var stale []*booking.Session
	r.mu.Lock()
	for id, e := range r.entries {
		if !e.lastUsed.Before(cutoff) {
			continue
		}
		if st := e.session.State(); st == booking.StateSubmitting || st == booking.StateConflict {
			continue
		}
		stale = append(stale, e.session)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("session-registry: closed %d idle sessions", n)
			}
		}
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range entries {
		e.session.Close()
	}
}

func (r *Registry) countLocked(owner string) int {
	n := 0
	for _, e := range r.entries {
		if e.owner == owner {
			n++
		}
	}
	return n
}

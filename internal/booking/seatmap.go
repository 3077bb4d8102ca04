package booking

import "sort"

// BookedSeatSet is the set of seats unavailable for one show.
type BookedSeatSet map[SeatID]struct{}

// NewBookedSeatSet returns a set holding ids.
func NewBookedSeatSet(ids ...SeatID) BookedSeatSet {
	s := make(BookedSeatSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is booked.
func (s BookedSeatSet) Has(id SeatID) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of s.
func (s BookedSeatSet) Clone() BookedSeatSet {
	out := make(BookedSeatSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Slice returns the booked seats in layout order.
func (s BookedSeatSet) Slice() []SeatID {
	out := make([]SeatID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// SeatMap holds the fixed layout and the booked seats of one show as
// last seen by the session.  Tentative is set when the booked set could
// not be fetched and every seat is assumed free until submission.
type SeatMap struct {
	booked    BookedSeatSet
	tentative bool
}

// NewSeatMap returns a map with a private copy of booked.  Ids outside
// the layout are dropped.
func NewSeatMap(booked BookedSeatSet) *SeatMap {
	m := &SeatMap{}
	m.Refresh(booked)
	return m
}

// Layout returns the auditorium rows.
func (m *SeatMap) Layout() []RowLayout { return Layout() }

// IsBooked reports whether id is in the loaded booked set.
func (m *SeatMap) IsBooked(id SeatID) bool { return m.booked.Has(id) }

// Refresh replaces the booked set wholesale and clears the tentative
// flag.  Selected seats that are now booked are not touched here; the
// session clears the cart.
func (m *SeatMap) Refresh(booked BookedSeatSet) {
	next := make(BookedSeatSet, len(booked))
	for id := range booked {
		if id.Valid() {
			next[id] = struct{}{}
		}
	}
	m.booked = next
	m.tentative = false
}

// markBooked adds ids to the booked set without replacing it.
func (m *SeatMap) markBooked(ids []SeatID) {
	for _, id := range ids {
		if id.Valid() {
			m.booked[id] = struct{}{}
		}
	}
}

// Booked returns the booked seats in layout order.
func (m *SeatMap) Booked() []SeatID { return m.booked.Slice() }

// Available returns the number of seats not booked.
func (m *SeatMap) Available() int { return RowCount*SeatsPerRow - len(m.booked) }

// Tentative reports whether availability is unknown.
func (m *SeatMap) Tentative() bool { return m.tentative }

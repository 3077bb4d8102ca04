package booking

import "fmt"

// SelectedSeat is a seat in the cart along with its tier.  JSON names
// follow the booking API's seat objects.
type SelectedSeat struct {
	ID   SeatID `json:"seatNumber"`
	Tier Tier   `json:"type"`
}

// Cart is the set of seats chosen in the current session.  Seats keep
// the order in which they were added.
type Cart struct {
	seatMap *SeatMap
	seats   []SelectedSeat
	limit   int // 0 means unlimited
}

// NewCart returns an empty cart that consults seatMap for booked seats.
// maxSeats caps the cart size; zero or a negative value means no cap.
func NewCart(seatMap *SeatMap, maxSeats int) *Cart {
	if maxSeats < 0 {
		maxSeats = 0
	}
	return &Cart{seatMap: seatMap, limit: maxSeats}
}

// Toggle removes id if it is selected and adds it otherwise.  Adding a
// booked seat leaves the cart unchanged and returns ErrSeatBooked.  The
// boolean reports whether id is selected after the call.
func (c *Cart) Toggle(id SeatID, tier Tier) (bool, error) {
	if i := c.indexOf(id); i >= 0 {
		c.seats = append(c.seats[:i], c.seats[i+1:]...)
		return false, nil
	}
	if c.seatMap != nil && c.seatMap.IsBooked(id) {
		return false, fmt.Errorf("%w: %s", ErrSeatBooked, id)
	}
	if c.limit > 0 && len(c.seats) >= c.limit {
		return false, fmt.Errorf("%w: at most %d seats per booking", ErrSeatLimitReached, c.limit)
	}
	c.seats = append(c.seats, SelectedSeat{ID: id, Tier: tier})
	return true, nil
}

func (c *Cart) indexOf(id SeatID) int {
	for i, s := range c.seats {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Clear empties the cart.
func (c *Cart) Clear() { c.seats = nil }

// Len returns the number of selected seats.
func (c *Cart) Len() int { return len(c.seats) }

// Seats returns a copy of the selected seats in insertion order.
func (c *Cart) Seats() []SelectedSeat {
	out := make([]SelectedSeat, len(c.seats))
	copy(out, c.seats)
	return out
}

// Total prices the cart with p.
func (c *Cart) Total(p *PricingPolicy) int { return p.CartTotal(c) }

// BreakdownByTier counts selected seats per tier.
func (c *Cart) BreakdownByTier() map[Tier]int {
	out := make(map[Tier]int, len(Tiers))
	for _, s := range c.seats {
		out[s.Tier]++
	}
	return out
}

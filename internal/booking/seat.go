package booking

import (
	"fmt"
	"strconv"
	"strings"
)

// The auditorium layout is fixed and shared by every show: eight rows
// lettered from the screen backwards, twelve seats per row.
const (
	RowCount    = 8
	SeatsPerRow = 12
	rowLetters  = "ABCDEFGH"
)

// SeatID identifies a seat by row letter and 1-based column, e.g. "A1"
// or "H12".  Values produced by ParseSeatID and NewSeatID are always
// part of the layout.
type SeatID string

// NewSeatID builds the identifier for a zero-based row index and a
// 1-based column.
func NewSeatID(rowIndex, column int) (SeatID, error) {
	if rowIndex < 0 || rowIndex >= RowCount {
		return "", fmt.Errorf("%w: %d", ErrInvalidRow, rowIndex)
	}
	if column < 1 || column > SeatsPerRow {
		return "", fmt.Errorf("%w: column %d", ErrInvalidSeat, column)
	}
	return SeatID(rowLetters[rowIndex:rowIndex+1] + strconv.Itoa(column)), nil
}

// ParseSeatID validates s and returns it as a SeatID.  The row letter is
// case-insensitive; the column must not carry leading zeros.
func ParseSeatID(s string) (SeatID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || len(s) > 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeat, s)
	}
	row := strings.IndexByte(rowLetters, s[0])
	if row < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeat, s)
	}
	if s[1] == '0' {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeat, s)
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidSeat, s)
		}
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeat, s)
	}
	return NewSeatID(row, col)
}

// Valid reports whether id names a seat of the layout.
func (id SeatID) Valid() bool {
	p, err := ParseSeatID(string(id))
	return err == nil && p == id
}

// Row returns the zero-based row index, or -1 for an invalid id.
func (id SeatID) Row() int {
	if len(id) == 0 {
		return -1
	}
	return strings.IndexByte(rowLetters, id[0])
}

// Column returns the 1-based column, or 0 for an invalid id.
func (id SeatID) Column() int {
	if len(id) < 2 {
		return 0
	}
	n, err := strconv.Atoi(string(id[1:]))
	if err != nil {
		return 0
	}
	return n
}

func (id SeatID) String() string { return string(id) }

// before orders seats front row first, then by column.
func (id SeatID) before(other SeatID) bool {
	if id.Row() != other.Row() {
		return id.Row() < other.Row()
	}
	return id.Column() < other.Column()
}

// RowLayout describes one row of the auditorium.
type RowLayout struct {
	Row   string `json:"row"`
	Seats int    `json:"seats"`
	Tier  Tier   `json:"tier"`
}

// Layout returns the rows of the auditorium, front to back.
func Layout() []RowLayout {
	out := make([]RowLayout, RowCount)
	for i := range out {
		tier, _ := TierForRow(i)
		out[i] = RowLayout{Row: rowLetters[i : i+1], Seats: SeatsPerRow, Tier: tier}
	}
	return out
}

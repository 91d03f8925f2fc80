package model

import "fmt"

// SeatStatus enumerates the lifecycle of a seat within one show's seat
// map.  The set is closed and the normal progression is monotonic:
// available → locked → sold.  The only backward edge is locked →
// available, taken when a pending order expires or is cancelled.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatSold      SeatStatus = "sold"
)

// ValidSeatTransition reports whether a seat may move from one status to
// another.  Sold is terminal.
func ValidSeatTransition(from, to SeatStatus) bool {
	switch from {
	case SeatAvailable:
		return to == SeatLocked
	case SeatLocked:
		return to == SeatSold || to == SeatAvailable
	default:
		return false
	}
}

// SeatCategory enumerates the pricing categories a seat can carry.  The
// set is closed; the category never changes after the seat map is built.
type SeatCategory string

const (
	SeatRegular  SeatCategory = "regular"
	SeatVIP      SeatCategory = "vip"
	SeatDiscount SeatCategory = "discount"
)

// Seat is one entry of a show's seat map as served by the backend.
//
// Fields:
//  ID       – row-column composite, unique within the show (e.g. "1-1").
//  Row      – 1-based row index.
//  Col      – 1-based column index.
//  Category – pricing category (regular, vip, discount).
//  Status   – current availability status.
//  Price    – price for this seat at this show.
type Seat struct {
	ID       string       `json:"id"`
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	Category SeatCategory `json:"type"`
	Status   SeatStatus   `json:"status"`
	Price    float64      `json:"price"`
}

// Available reports whether the seat can still be locked.
func (s Seat) Available() bool { return s.Status == SeatAvailable }

// SeatID builds the row-column composite identifier used on the wire.
func SeatID(row, col int) string {
	return fmt.Sprintf("%d-%d", row, col)
}

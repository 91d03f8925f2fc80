package model

// OrderStatus enumerates the lifecycle of an order.  PENDING orders hold
// their seats locked; payment must arrive within the server-defined
// window or the order expires and the seats return to available.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
	OrderExpired   OrderStatus = "EXPIRED"
)

// Payable reports whether a payment attempt can still succeed.  A client
// holding an order in any other status must re-fetch state instead of
// retrying the payment.
func (s OrderStatus) Payable() bool { return s == OrderPending }

// Refundable reports whether the order qualifies for a refund.
func (s OrderStatus) Refundable() bool { return s == OrderPaid }

// Order is a booking order as listed by the backend.  The seat set is
// non-empty and every seat belongs to the same show.  TotalAmount is the
// sum of the locked seats' prices, computed server-side.
//
// Fields mirror the my-orders listing; UserID and ShowID are only
// present in the admin listing.
type Order struct {
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId,omitempty"`
	ShowID      string      `json:"showId,omitempty"`
	MovieTitle  string      `json:"movieTitle,omitempty"`
	RoomName    string      `json:"roomName,omitempty"`
	StartTime   string      `json:"startTime,omitempty"`
	Seats       []string    `json:"seats"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	CreateTime  string      `json:"createTime,omitempty"`
}

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// CreateOrderRequest asks the backend to lock a set of seats under a
// user and show.  All three fields are mandatory and the seat set must
// be non-empty; validation runs before any network call.
type CreateOrderRequest struct {
	UserID  string   `json:"userId" validate:"required"`
	ShowID  string   `json:"showId" validate:"required"`
	SeatIDs []string `json:"seatIds" validate:"required,min=1,dive,required"`
}

// CreateOrderResult is the lock step's response: the pending order id
// and the server-computed total.
type CreateOrderResult struct {
	OrderID     string  `json:"orderId"`
	TotalAmount float64 `json:"totalAmount"`
	CreateTime  string  `json:"createTime,omitempty"`
}

type payRequest struct {
	OrderID string `json:"orderId"`
}

type refundRequest struct {
	OrderID string `json:"orderId"`
}

// GetShowSeats returns the current seat map for a show.  The result must
// not be cached by callers: seat status changes between views, and a
// fresh fetch is required before every lock attempt.
func (c *Client) GetShowSeats(ctx context.Context, showID string) ([]model.Seat, error) {
	if showID == "" {
		return nil, apierr.Validation("show id required")
	}
	var seats []model.Seat
	if err := c.t.Do(ctx, http.MethodGet, "/api/shows/"+showID+"/seats", nil, nil, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

// CreateOrder locks the requested seats and returns the pending order.
// The backend check is all-or-nothing: if any seat is not available the
// whole request fails and no order exists.  A failure means the
// selection is stale: re-fetch the seat map, never retry blindly.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	if err := c.checkRequest(req); err != nil {
		return CreateOrderResult{}, err
	}
	var res CreateOrderResult
	err := c.t.Do(ctx, http.MethodPost, "/api/booking/create", nil, req, &res)
	if err != nil {
		return CreateOrderResult{}, asStale("createOrder", err)
	}
	return res, nil
}

// PayOrder finalizes a pending order.  It fails when the order is no
// longer in pending-payment state (paid, expired, refunded); callers
// surface that as "order no longer payable" rather than retrying.
func (c *Client) PayOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apierr.Validation("order id required")
	}
	err := c.t.Do(ctx, http.MethodPost, "/api/booking/pay", nil, payRequest{OrderID: orderID}, nil)
	return asStale("payOrder", err)
}

// GetUserOrders lists the orders owned by a user, newest first.
func (c *Client) GetUserOrders(ctx context.Context, userID string) ([]model.Order, error) {
	if userID == "" {
		return nil, apierr.Validation("user id required")
	}
	q := url.Values{"userId": {userID}}
	var orders []model.Order
	if err := c.t.Do(ctx, http.MethodGet, "/api/booking/my-orders", q, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// RefundOrder cancels a paid order and releases its seats.  Fails when
// the order is not refund-eligible.
func (c *Client) RefundOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apierr.Validation("order id required")
	}
	err := c.t.Do(ctx, http.MethodPost, "/api/booking/refund", nil, refundRequest{OrderID: orderID}, nil)
	return asStale("refundOrder", err)
}

// AllOrders is the admin listing of every order in the system.
func (c *Client) AllOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.t.Do(ctx, http.MethodGet, "/api/booking/all", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Package booking drives one end-to-end booking attempt: seat selection,
// lock, payment.  The backend arbitrates seat availability; this
// package's job is ordering (lock completes before pay is possible) and
// debouncing (one in-flight request per flow instance, ever).
package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-client/internal/api"
	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// State is the phase a flow instance is in.
type State string

const (
	// SelectingSeats accepts selection changes and a confirm.
	SelectingSeats State = "selecting"
	// Locking has a createOrder call in flight; further confirms are
	// ignored until it resolves.
	Locking State = "locking"
	// AwaitingPayment holds a pending order; only payment may follow.
	AwaitingPayment State = "awaiting_payment"
	// Paid is the terminal success state.
	Paid State = "paid"
	// SelectionStale means the lock was refused or the selection was
	// invalidated; re-fetch the seat map to return to SelectingSeats.
	SelectionStale State = "selection_stale"
	// PaymentFailed permits a payment retry, never a re-lock.
	PaymentFailed State = "payment_failed"
)

// ErrRequestInFlight is returned when a confirm or pay arrives while the
// previous one is still on the wire.  Callers treat it as a no-op; a
// duplicate network request is never issued.
var ErrRequestInFlight = errors.New("booking: request already in flight")

// ErrInvalidTransition is returned for an operation the current state
// does not permit (e.g. paying before a lock succeeded).
var ErrInvalidTransition = errors.New("booking: operation not valid in current state")

// BookingAPI is the slice of the facade a flow needs.
type BookingAPI interface {
	GetShowSeats(ctx context.Context, showID string) ([]model.Seat, error)
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (api.CreateOrderResult, error)
	PayOrder(ctx context.Context, orderID string) error
}

// Flow is one user's attempt to book seats for a single show.  All
// methods are safe for concurrent use; the mutex is what turns a double
// click into a no-op instead of a double booking.
type Flow struct {
	id     string
	api    BookingAPI
	userID string
	showID string

	mu       sync.Mutex
	state    State
	inflight bool
	seats    map[string]model.Seat
	selected []string
	orderID  string
	total    float64
}

// NewFlow starts a flow instance in SelectingSeats.
func NewFlow(a BookingAPI, userID, showID string) *Flow {
	return &Flow{
		id:     uuid.NewString(),
		api:    a,
		userID: userID,
		showID: showID,
		state:  SelectingSeats,
		seats:  make(map[string]model.Seat),
	}
}

// ID returns the flow instance identifier.
func (f *Flow) ID() string { return f.id }

// State returns the current phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OrderID returns the pending or paid order id, empty before a
// successful lock.
func (f *Flow) OrderID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderID
}

// TotalAmount returns the server-computed total held since the lock.
func (f *Flow) TotalAmount() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Selection returns the currently selected seat ids in selection order.
func (f *Flow) Selection() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.selected))
	copy(out, f.selected)
	return out
}

// Seats returns the last fetched seat map keyed by seat id.
func (f *Flow) Seats() map[string]model.Seat {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.Seat, len(f.seats))
	for k, v := range f.seats {
		out[k] = v
	}
	return out
}

// RefreshSeats re-fetches the seat map.  It is the only way out of
// SelectionStale: a fresh fetch prunes dead selections and returns the
// flow to SelectingSeats.  Never served from a cache.
func (f *Flow) RefreshSeats(ctx context.Context) ([]model.Seat, error) {
	f.mu.Lock()
	if f.state != SelectingSeats && f.state != SelectionStale {
		f.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	f.mu.Unlock()

	seats, err := f.api.GetShowSeats(ctx, f.showID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// A confirm may have raced the fetch; once the flow moved past
	// selection the stale result must not clobber the held order.
	if f.state != SelectingSeats && f.state != SelectionStale {
		return nil, ErrInvalidTransition
	}
	f.seats = make(map[string]model.Seat, len(seats))
	for _, s := range seats {
		f.seats[s.ID] = s
	}
	kept := f.selected[:0]
	for _, id := range f.selected {
		if s, ok := f.seats[id]; ok && s.Available() {
			kept = append(kept, id)
		}
	}
	f.selected = kept
	if f.state == SelectionStale {
		f.state = SelectingSeats
	}
	return seats, nil
}

// Select adds a seat to the selection.  Only known, available seats may
// be selected; duplicates are ignored.
func (f *Flow) Select(seatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != SelectingSeats {
		return ErrInvalidTransition
	}
	s, ok := f.seats[seatID]
	if !ok {
		return apierr.Validation("unknown seat %q", seatID)
	}
	if !s.Available() {
		return apierr.Validation("seat %q is not available", seatID)
	}
	for _, id := range f.selected {
		if id == seatID {
			return nil
		}
	}
	f.selected = append(f.selected, seatID)
	return nil
}

// Deselect removes a seat from the selection.
func (f *Flow) Deselect(seatID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != SelectingSeats {
		return
	}
	for i, id := range f.selected {
		if id == seatID {
			f.selected = append(f.selected[:i], f.selected[i+1:]...)
			return
		}
	}
}

// ConfirmSelection locks the selected seats by creating an order.  An
// empty selection is rejected before any network call.  While the lock
// is in flight further confirms return ErrRequestInFlight and no second
// request is issued.  On success the flow holds the order id and total
// and moves to AwaitingPayment; no further seat mutation is permitted
// for this instance.  On rejection the selection is stale.
func (f *Flow) ConfirmSelection(ctx context.Context) error {
	f.mu.Lock()
	if f.state == Locking {
		f.mu.Unlock()
		return ErrRequestInFlight
	}
	if f.state != SelectingSeats {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	if len(f.selected) == 0 {
		f.mu.Unlock()
		return apierr.Validation("no seats selected")
	}
	if f.userID == "" {
		f.mu.Unlock()
		return apierr.Validation("no authenticated user for booking")
	}
	seatIDs := make([]string, len(f.selected))
	copy(seatIDs, f.selected)
	f.state = Locking
	f.inflight = true
	f.mu.Unlock()

	res, err := f.api.CreateOrder(ctx, api.CreateOrderRequest{
		UserID:  f.userID,
		ShowID:  f.showID,
		SeatIDs: seatIDs,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight = false
	if err != nil {
		// Validation never left the client; the selection itself is
		// fine.  Anything else means the server-side picture moved on
		// (or is unknown, after a transport failure); either way the
		// seat map must be re-fetched before another attempt.
		var verr *apierr.ValidationError
		if errors.As(err, &verr) {
			f.state = SelectingSeats
		} else {
			f.state = SelectionStale
		}
		return err
	}
	f.state = AwaitingPayment
	f.orderID = res.OrderID
	f.total = res.TotalAmount
	return nil
}

// Pay finalizes the held pending order.  Only reachable once a lock
// succeeded, which is how createOrder-before-payOrder ordering is
// enforced.  A failed payment moves to PaymentFailed, from which Pay may
// be retried by the user; the flow never re-locks.
func (f *Flow) Pay(ctx context.Context) error {
	f.mu.Lock()
	if f.inflight {
		f.mu.Unlock()
		return ErrRequestInFlight
	}
	if f.state != AwaitingPayment && f.state != PaymentFailed {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	orderID := f.orderID
	f.inflight = true
	f.mu.Unlock()

	err := f.api.PayOrder(ctx, orderID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight = false
	if err != nil {
		f.state = PaymentFailed
		return err
	}
	f.state = Paid
	return nil
}

// ApplySeatUpdate merges pushed seat updates (from the live feed) into
// the local seat map.  When a selected seat stops being available while
// the flow is still selecting, the flow turns stale immediately instead
// of waiting for the lock to be refused.  Returns the resulting state.
func (f *Flow) ApplySeatUpdate(seats ...model.Seat) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range seats {
		f.seats[s.ID] = s
	}
	if f.state == SelectingSeats {
		for _, id := range f.selected {
			if s, ok := f.seats[id]; ok && !s.Available() {
				f.state = SelectionStale
				break
			}
		}
	}
	return f.state
}

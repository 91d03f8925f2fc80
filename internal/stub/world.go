// Package stub is an in-memory cinema backend implementing the wire
// contract the client speaks: seat maps, all-or-nothing seat locking,
// payment with a pending-order expiry window, refunds, and the session
// endpoints.  It exists as a faithful opponent for integration tests and
// as a local development backend; it holds no durable state.
package stub

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// Business errors surfaced to handlers; each becomes a success=false
// envelope with the message verbatim.
var (
	ErrUnknownUser     = errors.New("unknown user id")
	ErrUnknownShow     = errors.New("unknown show id")
	ErrUnknownOrder    = errors.New("order does not exist")
	ErrUserExists      = errors.New("user id already exists")
	ErrBadCredentials  = errors.New("invalid username or password")
	ErrEmptySeatSet    = errors.New("seat set must not be empty")
	ErrOrderNotPending = errors.New("order is not awaiting payment")
	ErrOrderNotPaid    = errors.New("order is not refund-eligible")
)

// SeatUnavailableError names the first seat that blocked a lock attempt.
type SeatUnavailableError struct {
	SeatID string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s is not available", e.SeatID)
}

// Options tune the world.  Zero values get sensible defaults.
type Options struct {
	PendingTTL time.Duration // how long a pending order holds its seats
	BcryptCost int
	Now        func() time.Time // test hook
}

type user struct {
	id           string
	nickname     string
	phone        string
	email        string
	passwordHash []byte
	admin        bool
}

type show struct {
	info  model.Show
	seats map[string]*model.Seat
}

type order struct {
	id        string
	userID    string
	showID    string
	seatIDs   []string
	total     float64
	status    model.OrderStatus
	createdAt time.Time
}

type refreshRecord struct {
	userID  string
	expires time.Time
}

// World is the whole in-memory backend state.  One mutex guards it all;
// seat-availability arbitration lives here and nowhere else.
type World struct {
	mu      sync.Mutex
	opts    Options
	users   map[string]*user
	movies  []model.Movie
	rooms   []model.Room
	shows   map[string]*show
	orders  map[string]*order
	refresh map[string]refreshRecord // keyed by token hash

	// onSeatChange is invoked (outside the lock) after seats of a show
	// change status; the websocket hub subscribes here.
	onSeatChange func(showID string, seats []model.Seat)
}

// NewWorld builds an empty world.
func NewWorld(opts Options) *World {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 15 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &World{
		opts:    opts,
		users:   make(map[string]*user),
		shows:   make(map[string]*show),
		orders:  make(map[string]*order),
		refresh: make(map[string]refreshRecord),
	}
}

// SetSeatChangeFunc registers the seat broadcast hook.
func (w *World) SetSeatChangeFunc(fn func(showID string, seats []model.Seat)) {
	w.onSeatChange = fn
}

// seatPrice derives a seat's price from the show base price and the
// seat category: vip doubles, discount takes 20% off.
func seatPrice(base float64, cat model.SeatCategory) float64 {
	switch cat {
	case model.SeatVIP:
		return base * 2.0
	case model.SeatDiscount:
		return base * 0.8
	default:
		return base
	}
}

// AddShow creates a show with a rows×cols seat map.  The first row is
// vip, the last row discount, everything between regular.
func (w *World) AddShow(info model.Show, rows, cols int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &show{info: info, seats: make(map[string]*model.Seat, rows*cols)}
	for r := 1; r <= rows; r++ {
		cat := model.SeatRegular
		switch {
		case r == 1:
			cat = model.SeatVIP
		case r == rows && rows > 1:
			cat = model.SeatDiscount
		}
		for c := 1; c <= cols; c++ {
			id := model.SeatID(r, c)
			s.seats[id] = &model.Seat{
				ID:       id,
				Row:      r,
				Col:      c,
				Category: cat,
				Status:   model.SeatAvailable,
				Price:    seatPrice(info.BasePrice, cat),
			}
		}
	}
	s.info.TotalSeats = rows * cols
	s.info.AvailableSeats = rows * cols
	w.shows[info.ID] = s
}

// AddUser registers a user directly (seed path, no validation).
func (w *World) AddUser(id, password, nickname string, admin bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), w.opts.BcryptCost)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.users[id]; ok {
		return ErrUserExists
	}
	w.users[id] = &user{id: id, nickname: nickname, passwordHash: hash, admin: admin}
	return nil
}

// Seed loads the demo catalog: two movies, two rooms, two shows and a
// pair of users ("u1"/"123456" and "admin"/"admin123").
func (w *World) Seed() {
	_ = w.AddUser("u1", "123456", "Alice", false)
	_ = w.AddUser("admin", "admin123", "Administrator", true)

	w.mu.Lock()
	w.movies = []model.Movie{
		{ID: "m1", Title: "Interstellar", Director: "Christopher Nolan", Duration: 169, Genre: "scifi", Rating: 9.3},
		{ID: "m2", Title: "Spirited Away", Director: "Hayao Miyazaki", Duration: 125, Genre: "animation", Rating: 9.4},
	}
	w.rooms = []model.Room{
		{ID: "r1", Name: "Room 1", Rows: 5, Cols: 6},
		{ID: "r2", Name: "Room 2", Rows: 5, Cols: 6},
	}
	w.mu.Unlock()

	start := w.opts.Now().Add(2 * time.Hour).Format("2006-01-02 15:04")
	w.AddShow(model.Show{ID: "S1", MovieID: "m1", MovieTitle: "Interstellar", RoomID: "r1", RoomName: "Room 1", StartTime: start, BasePrice: 30}, 5, 6)
	w.AddShow(model.Show{ID: "S2", MovieID: "m2", MovieTitle: "Spirited Away", RoomID: "r2", RoomName: "Room 2", StartTime: start, BasePrice: 30}, 5, 6)
}

// SeatMap returns the show's seats ordered by row then column, after
// releasing any expired pending orders so the caller sees fresh status.
func (w *World) SeatMap(showID string) ([]model.Seat, error) {
	w.mu.Lock()
	released := w.expireOrdersLocked()
	s, ok := w.shows[showID]
	if !ok {
		w.mu.Unlock()
		w.notify(released)
		return nil, ErrUnknownShow
	}
	seats := s.sortedSeatsLocked()
	w.mu.Unlock()
	w.notify(released)
	return seats, nil
}

// CreateOrder locks the requested seats under a pending order.  The
// check is all-or-nothing: the first unavailable seat aborts the whole
// request and no order or partial lock is left behind.
func (w *World) CreateOrder(userID, showID string, seatIDs []string) (model.Order, error) {
	w.mu.Lock()
	released := w.expireOrdersLocked()

	ord, changed, err := w.createOrderLocked(userID, showID, seatIDs)
	w.mu.Unlock()
	w.notify(released)
	w.notify(changed)
	return ord, err
}

func (w *World) createOrderLocked(userID, showID string, seatIDs []string) (model.Order, []seatChange, error) {
	if _, ok := w.users[userID]; !ok {
		return model.Order{}, nil, ErrUnknownUser
	}
	s, ok := w.shows[showID]
	if !ok {
		return model.Order{}, nil, ErrUnknownShow
	}
	if len(seatIDs) == 0 {
		return model.Order{}, nil, ErrEmptySeatSet
	}

	// Validate the whole set before mutating anything.
	var total float64
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || !seat.Available() {
			return model.Order{}, nil, &SeatUnavailableError{SeatID: id}
		}
		total += seat.Price
	}

	for _, id := range seatIDs {
		s.seats[id].Status = model.SeatLocked
	}
	s.info.AvailableSeats -= len(seatIDs)

	ord := &order{
		id:        uuid.NewString(),
		userID:    userID,
		showID:    showID,
		seatIDs:   append([]string(nil), seatIDs...),
		total:     total,
		status:    model.OrderPending,
		createdAt: w.opts.Now(),
	}
	w.orders[ord.id] = ord
	return w.orderViewLocked(ord), []seatChange{{showID, s.seatViewLocked(seatIDs)}}, nil
}

// PayOrder moves a pending order to paid and its seats to sold.  Orders
// past the pending window have already expired and are no longer
// payable.
func (w *World) PayOrder(orderID string) error {
	w.mu.Lock()
	released := w.expireOrdersLocked()

	var changed []seatChange
	ord, ok := w.orders[orderID]
	var err error
	switch {
	case !ok:
		err = ErrUnknownOrder
	case !ord.status.Payable():
		err = ErrOrderNotPending
	default:
		s := w.shows[ord.showID]
		for _, id := range ord.seatIDs {
			if seat, ok := s.seats[id]; ok && model.ValidSeatTransition(seat.Status, model.SeatSold) {
				seat.Status = model.SeatSold
			}
		}
		ord.status = model.OrderPaid
		changed = []seatChange{{ord.showID, s.seatViewLocked(ord.seatIDs)}}
	}
	w.mu.Unlock()
	w.notify(released)
	w.notify(changed)
	return err
}

// RefundOrder cancels a paid order and returns its seats to available.
func (w *World) RefundOrder(orderID string) error {
	w.mu.Lock()
	released := w.expireOrdersLocked()

	var changed []seatChange
	ord, ok := w.orders[orderID]
	var err error
	switch {
	case !ok:
		err = ErrUnknownOrder
	case !ord.status.Refundable():
		err = ErrOrderNotPaid
	default:
		s := w.shows[ord.showID]
		for _, id := range ord.seatIDs {
			if seat, ok := s.seats[id]; ok {
				seat.Status = model.SeatAvailable
			}
		}
		s.info.AvailableSeats += len(ord.seatIDs)
		ord.status = model.OrderRefunded
		changed = []seatChange{{ord.showID, s.seatViewLocked(ord.seatIDs)}}
	}
	w.mu.Unlock()
	w.notify(released)
	w.notify(changed)
	return err
}

// OrdersByUser lists a user's orders, newest first.
func (w *World) OrdersByUser(userID string) ([]model.Order, error) {
	w.mu.Lock()
	released := w.expireOrdersLocked()
	defer w.notify(released)
	defer w.mu.Unlock()

	if _, ok := w.users[userID]; !ok {
		return nil, ErrUnknownUser
	}
	var out []model.Order
	for _, ord := range w.orders {
		if ord.userID == userID {
			out = append(out, w.orderViewLocked(ord))
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

// AllOrders lists every order in the system (admin view).
func (w *World) AllOrders() []model.Order {
	w.mu.Lock()
	released := w.expireOrdersLocked()
	defer w.notify(released)
	defer w.mu.Unlock()

	out := make([]model.Order, 0, len(w.orders))
	for _, ord := range w.orders {
		out = append(out, w.orderViewLocked(ord))
	}
	sortOrdersNewestFirst(out)
	return out
}

// Movies, Shows and Rooms serve the catalog pass-throughs.

func (w *World) Movies() []model.Movie {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Movie(nil), w.movies...)
}

func (w *World) Shows(movieID string) []model.Show {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []model.Show
	for _, s := range w.shows {
		if movieID == "" || s.info.MovieID == movieID {
			out = append(out, s.info)
		}
	}
	return out
}

func (w *World) Rooms() []model.Room {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Room(nil), w.rooms...)
}

// seatChange pairs a show with the seats whose status just changed.
type seatChange struct {
	showID string
	seats  []model.Seat
}

// expireOrdersLocked releases seats of pending orders whose payment
// window lapsed.  Caller holds the lock; returned changes must be
// notified after it is released.
func (w *World) expireOrdersLocked() []seatChange {
	now := w.opts.Now()
	var changes []seatChange
	for _, ord := range w.orders {
		if ord.status != model.OrderPending || now.Sub(ord.createdAt) < w.opts.PendingTTL {
			continue
		}
		ord.status = model.OrderExpired
		s := w.shows[ord.showID]
		if s == nil {
			continue
		}
		for _, id := range ord.seatIDs {
			if seat, ok := s.seats[id]; ok && model.ValidSeatTransition(seat.Status, model.SeatAvailable) {
				seat.Status = model.SeatAvailable
			}
		}
		s.info.AvailableSeats += len(ord.seatIDs)
		changes = append(changes, seatChange{ord.showID, s.seatViewLocked(ord.seatIDs)})
	}
	return changes
}

// notify fires the seat-change hook outside the world lock.
func (w *World) notify(changes []seatChange) {
	if w.onSeatChange == nil {
		return
	}
	for _, ch := range changes {
		w.onSeatChange(ch.showID, ch.seats)
	}
}

func (w *World) orderViewLocked(ord *order) model.Order {
	s := w.shows[ord.showID]
	view := model.Order{
		OrderID:     ord.id,
		UserID:      ord.userID,
		ShowID:      ord.showID,
		Seats:       append([]string(nil), ord.seatIDs...),
		TotalAmount: ord.total,
		Status:      ord.status,
		CreateTime:  ord.createdAt.Format(time.RFC3339),
	}
	if s != nil {
		view.MovieTitle = s.info.MovieTitle
		view.RoomName = s.info.RoomName
		view.StartTime = s.info.StartTime
	}
	return view
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		return seats[i].Col < seats[j].Col
	})
}

func sortOrdersNewestFirst(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreateTime > orders[j].CreateTime
	})
}

func (s *show) sortedSeatsLocked() []model.Seat {
	out := make([]model.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		out = append(out, *seat)
	}
	sortSeats(out)
	return out
}

func (s *show) seatViewLocked(ids []string) []model.Seat {
	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		if seat, ok := s.seats[id]; ok {
			out = append(out, *seat)
		}
	}
	return out
}

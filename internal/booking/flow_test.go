package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/cinema-booking-client/internal/api"
	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// fakeBooking scripts the backend's booking responses.  Optional hooks
// let tests block a call mid-flight.
type fakeBooking struct {
	seats []model.Seat

	createErr   error
	createRes   api.CreateOrderResult
	createCalls atomic.Int32
	createHook  func() // runs inside CreateOrder, before returning

	payErr   error
	payCalls atomic.Int32

	fetchCalls atomic.Int32
	fetchHook  func() // runs inside GetShowSeats, before returning
}

func (f *fakeBooking) GetShowSeats(ctx context.Context, showID string) ([]model.Seat, error) {
	f.fetchCalls.Add(1)
	if f.fetchHook != nil {
		f.fetchHook()
	}
	out := make([]model.Seat, len(f.seats))
	copy(out, f.seats)
	return out, nil
}

func (f *fakeBooking) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (api.CreateOrderResult, error) {
	f.createCalls.Add(1)
	if f.createHook != nil {
		f.createHook()
	}
	if f.createErr != nil {
		return api.CreateOrderResult{}, f.createErr
	}
	return f.createRes, nil
}

func (f *fakeBooking) PayOrder(ctx context.Context, orderID string) error {
	f.payCalls.Add(1)
	return f.payErr
}

func seatMap() []model.Seat {
	return []model.Seat{
		{ID: "1-1", Row: 1, Col: 1, Category: model.SeatVIP, Status: model.SeatAvailable, Price: 60},
		{ID: "1-2", Row: 1, Col: 2, Category: model.SeatVIP, Status: model.SeatAvailable, Price: 60},
		{ID: "2-1", Row: 2, Col: 1, Category: model.SeatRegular, Status: model.SeatLocked, Price: 30},
	}
}

// readyFlow returns a flow that has fetched the seat map.
func readyFlow(t *testing.T, fake *fakeBooking) *Flow {
	t.Helper()
	f := NewFlow(fake, "u1", "S1")
	if _, err := f.RefreshSeats(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return f
}

func TestSelectOnlyKnownAvailableSeats(t *testing.T) {
	t.Parallel()
	f := readyFlow(t, &fakeBooking{seats: seatMap()})

	if err := f.Select("1-1"); err != nil {
		t.Fatalf("select available: %v", err)
	}
	if err := f.Select("1-1"); err != nil {
		t.Fatalf("duplicate select: %v", err)
	}
	if got := f.Selection(); len(got) != 1 {
		t.Fatalf("selection = %v, want one seat", got)
	}

	var verr *apierr.ValidationError
	if err := f.Select("2-1"); !errors.As(err, &verr) {
		t.Fatalf("select locked seat err = %v, want ValidationError", err)
	}
	if err := f.Select("9-9"); !errors.As(err, &verr) {
		t.Fatalf("select unknown seat err = %v, want ValidationError", err)
	}
}

func TestConfirmEmptySelectionStaysLocal(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{seats: seatMap()}
	f := readyFlow(t, fake)

	err := f.ConfirmSelection(context.Background())
	var verr *apierr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if fake.createCalls.Load() != 0 {
		t.Fatal("createOrder was called for an empty selection")
	}
	if got := f.State(); got != SelectingSeats {
		t.Fatalf("state = %v, want SelectingSeats", got)
	}
}

func TestConfirmThenPayHappyPath(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 120},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.Select("1-2"); err != nil {
		t.Fatal(err)
	}

	if err := f.ConfirmSelection(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := f.State(); got != AwaitingPayment {
		t.Fatalf("state = %v, want AwaitingPayment", got)
	}
	if f.OrderID() != "ord-1" || f.TotalAmount() != 120 {
		t.Fatalf("order = %q total = %v", f.OrderID(), f.TotalAmount())
	}

	if err := f.Pay(context.Background()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if got := f.State(); got != Paid {
		t.Fatalf("state = %v, want Paid", got)
	}
}

func TestConfirmWhileLockingIsDebounced(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 60},
		createHook: func() {
			close(entered)
			<-release
		},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.ConfirmSelection(context.Background()); err != nil {
			t.Errorf("first confirm: %v", err)
		}
	}()

	<-entered
	if err := f.ConfirmSelection(context.Background()); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("second confirm err = %v, want ErrRequestInFlight", err)
	}
	close(release)
	wg.Wait()

	if got := fake.createCalls.Load(); got != 1 {
		t.Fatalf("createOrder called %d times, want 1", got)
	}
}

func TestPayBeforeLockIsInvalid(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{seats: seatMap()}
	f := readyFlow(t, fake)

	if err := f.Pay(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if fake.payCalls.Load() != 0 {
		t.Fatal("payOrder was called before a lock")
	}
}

func TestPayAfterPaidIsInvalid(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 60},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSelection(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.Pay(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := f.Pay(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second pay err = %v, want ErrInvalidTransition", err)
	}
	if got := fake.payCalls.Load(); got != 1 {
		t.Fatalf("payOrder called %d times, want 1", got)
	}
}

func TestLockRejectionGoesStaleAndRecovers(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{
		seats:     seatMap(),
		createErr: &apierr.StaleStateError{Op: "createOrder", Msg: "seat 1-1 is not available"},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}

	if err := f.ConfirmSelection(context.Background()); err == nil {
		t.Fatal("confirm succeeded, want stale rejection")
	}
	if got := f.State(); got != SelectionStale {
		t.Fatalf("state = %v, want SelectionStale", got)
	}

	// Stale permits neither selection changes nor another confirm.
	if err := f.Select("1-2"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("select while stale err = %v", err)
	}
	if err := f.ConfirmSelection(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm while stale err = %v", err)
	}

	// A fresh fetch is the only way back; the dead seat is pruned.
	fake.seats[0].Status = model.SeatSold
	if _, err := f.RefreshSeats(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := f.State(); got != SelectingSeats {
		t.Fatalf("state after refresh = %v, want SelectingSeats", got)
	}
	if got := f.Selection(); len(got) != 0 {
		t.Fatalf("selection after refresh = %v, want pruned", got)
	}
}

func TestPaymentFailureAllowsRetryOnly(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 60},
		payErr:    &apierr.TransportError{Op: "payOrder", Err: errors.New("connection reset")},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSelection(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := f.Pay(context.Background()); err == nil {
		t.Fatal("pay succeeded, want scripted failure")
	}
	if got := f.State(); got != PaymentFailed {
		t.Fatalf("state = %v, want PaymentFailed", got)
	}

	// Re-locking is off the table after a failed payment.
	if err := f.ConfirmSelection(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm after failed pay err = %v", err)
	}
	if got := fake.createCalls.Load(); got != 1 {
		t.Fatalf("createOrder called %d times, want 1", got)
	}

	// The payment itself may be retried.
	fake.payErr = nil
	if err := f.Pay(context.Background()); err != nil {
		t.Fatalf("retry pay: %v", err)
	}
	if got := f.State(); got != Paid {
		t.Fatalf("state = %v, want Paid", got)
	}
}

func TestApplySeatUpdateTurnsSelectionStale(t *testing.T) {
	t.Parallel()
	f := readyFlow(t, &fakeBooking{seats: seatMap()})
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}

	// Update touching an unselected seat changes nothing.
	st := f.ApplySeatUpdate(model.Seat{ID: "1-2", Row: 1, Col: 2, Status: model.SeatLocked})
	if st != SelectingSeats {
		t.Fatalf("state = %v after unrelated update", st)
	}

	// Update stealing the selected seat flips to stale immediately.
	st = f.ApplySeatUpdate(model.Seat{ID: "1-1", Row: 1, Col: 1, Status: model.SeatLocked})
	if st != SelectionStale {
		t.Fatalf("state = %v, want SelectionStale", st)
	}
}

func TestApplySeatUpdateIgnoredAfterLock(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 60},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.ConfirmSelection(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Once the order is held the seat is ours; a push cannot derail it.
	st := f.ApplySeatUpdate(model.Seat{ID: "1-1", Row: 1, Col: 1, Status: model.SeatLocked})
	if st != AwaitingPayment {
		t.Fatalf("state = %v, want AwaitingPayment", st)
	}
}

func TestRefreshSeatsRacedByConfirmIsDiscarded(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeBooking{
		seats:     seatMap(),
		createRes: api.CreateOrderResult{OrderID: "ord-1", TotalAmount: 60},
	}
	f := readyFlow(t, fake)
	if err := f.Select("1-1"); err != nil {
		t.Fatal(err)
	}

	// Park the second fetch mid-flight, then confirm past it.
	fake.fetchHook = func() {
		close(entered)
		<-release
	}
	var wg sync.WaitGroup
	wg.Add(1)
	var refreshErr error
	go func() {
		defer wg.Done()
		_, refreshErr = f.RefreshSeats(context.Background())
	}()

	<-entered
	if err := f.ConfirmSelection(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	close(release)
	wg.Wait()

	if !errors.Is(refreshErr, ErrInvalidTransition) {
		t.Fatalf("refresh err = %v, want ErrInvalidTransition", refreshErr)
	}
	// The held order and its seat selection survived intact.
	if got := f.State(); got != AwaitingPayment {
		t.Fatalf("state = %v, want AwaitingPayment", got)
	}
	if f.OrderID() != "ord-1" {
		t.Fatalf("order id = %q", f.OrderID())
	}
	if got := f.Selection(); len(got) != 1 || got[0] != "1-1" {
		t.Fatalf("selection = %v, want [1-1]", got)
	}
}

func TestRefreshSeatsNotServedFromCache(t *testing.T) {
	t.Parallel()
	fake := &fakeBooking{seats: seatMap()}
	f := readyFlow(t, fake)
	if _, err := f.RefreshSeats(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := fake.fetchCalls.Load(); got != 2 {
		t.Fatalf("seat map fetched %d times, want 2", got)
	}
}

package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// floodServer pushes count updates at the subscriber as fast as it can.
func floodServer(t *testing.T, count int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		u := Update{ShowID: "S1", Seats: []model.Seat{{ID: "1-1", Row: 1, Col: 1, Status: model.SeatLocked}}}
		for i := 0; i < count; i++ {
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		}
		// Keep the connection open so the client read loop stays parked.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFeedDeliversUpdates(t *testing.T) {
	srv := floodServer(t, 3)
	feed, err := Dial(context.Background(), srv.URL, "S1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { feed.Close() })

	for i := 0; i < 3; i++ {
		select {
		case u, ok := <-feed.Updates():
			if !ok {
				t.Fatalf("feed closed early: %v", feed.Err())
			}
			if u.ShowID != "S1" || len(u.Seats) != 1 {
				t.Fatalf("update = %+v", u)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("no update within 3s")
		}
	}
}

// A subscriber that stops draining must not pin the read loop forever:
// once the buffer fills the loop parks on the send, and Close has to
// release it.  Goroutine accounting keeps this test serial.
func TestCloseReleasesUndrainedReadLoop(t *testing.T) {
	srv := floodServer(t, 64)
	base := runtime.NumGoroutine()

	feed, err := Dial(context.Background(), srv.URL, "S1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Nothing drains Updates; wait until the buffer is full so the read
	// loop is parked on the send.
	waitFor(t, "full update buffer", func() bool {
		return len(feed.updates) == cap(feed.updates)
	})

	if err := feed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitFor(t, "read loop exit", func() bool {
		return runtime.NumGoroutine() <= base
	})
}

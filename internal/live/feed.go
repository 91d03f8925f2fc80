// Package live subscribes to the backend's per-show seat update feed.
// Updates let a flow notice a stale selection before the lock attempt is
// refused, instead of after.
package live

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// Update is one pushed seat-state change for a show.
type Update struct {
	ShowID string       `json:"showId"`
	Seats  []model.Seat `json:"seats"`
}

// Feed is an open subscription to one show's seat updates.  Read from
// Updates until it closes, then check Err.
type Feed struct {
	conn    *websocket.Conn
	updates chan Update
	done    chan struct{}
	log     *slog.Logger

	once sync.Once

	mu  sync.Mutex
	err error
}

// Dial opens the feed for a show.  baseURL is the backend's HTTP base
// URL; the websocket scheme is derived from it.
func Dial(ctx context.Context, baseURL, showID string, log *slog.Logger) (*Feed, error) {
	if log == nil {
		log = slog.Default()
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, apierr.Validation("invalid base URL %q: %v", baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/seats/" + showID

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, &apierr.TransportError{Op: "seat feed dial", Err: err}
	}

	f := &Feed{
		conn:    conn,
		updates: make(chan Update, 16),
		done:    make(chan struct{}),
		log:     log,
	}
	go f.readLoop()
	return f, nil
}

// Updates delivers pushed seat changes.  The channel closes when the
// connection drops or Close is called.
func (f *Feed) Updates() <-chan Update { return f.updates }

// Err reports why the feed ended; nil after a deliberate Close.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close tears the subscription down.  It also releases the read loop if
// the caller stopped draining Updates and the buffer filled up.
func (f *Feed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}

func (f *Feed) readLoop() {
	defer close(f.updates)
	for {
		var u Update
		if err := f.conn.ReadJSON(&u); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.mu.Lock()
				f.err = &apierr.TransportError{Op: "seat feed", Err: err}
				f.mu.Unlock()
				f.log.Debug("seat feed closed", "error", err)
			}
			return
		}
		select {
		case f.updates <- u:
		case <-f.done:
			return
		}
	}
}

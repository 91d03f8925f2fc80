package stub

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-client/internal/live"
	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// Hub fans seat-status changes out to websocket subscribers, one
// subscriber set per show.  The payload is the same live.Update the
// client-side feed decodes.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Local development tool; origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[string]map[*websocket.Conn]bool),
	}
}

// Handle upgrades the request and parks the connection in the show's
// subscriber set until the peer goes away.  Inbound messages are
// discarded; the feed is one-way.
func (h *Hub) Handle(c echo.Context) error {
	showID := c.Param("showId")
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.conns[showID] == nil {
		h.conns[showID] = make(map[*websocket.Conn]bool)
	}
	h.conns[showID][conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns[showID], conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Broadcast pushes a seat update to every subscriber of the show.  A
// failed write drops the subscriber; the read loop in Handle notices the
// closed connection and cleans up.
func (h *Hub) Broadcast(showID string, seats []model.Seat) {
	update := live.Update{ShowID: showID, Seats: seats}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[showID] {
		if err := conn.WriteJSON(update); err != nil {
			h.log.Debug("dropping seat feed subscriber", "show", showID, "error", err)
			conn.Close()
			delete(h.conns[showID], conn)
		}
	}
}

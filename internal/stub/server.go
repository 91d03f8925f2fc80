package stub

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// envelope is the uniform response shape, identical to what the client's
// transport package decodes.
type envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server glues the world, token issuance and the seat-update hub behind
// an Echo route table.
type Server struct {
	world  *World
	tokens TokenConfig
	hub    *Hub
	log    *slog.Logger
}

// NewServer wires a server over the given world.
func NewServer(world *World, tokens TokenConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		world:  world,
		tokens: tokens,
		hub:    NewHub(log),
		log:    log,
	}
	world.SetSeatChangeFunc(s.hub.Broadcast)
	return s
}

// RegisterRoutes attaches every endpoint to the Echo instance.  Booking
// endpoints sit behind bearer-token auth; browsing and session
// lifecycle are open.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/login", s.handleLogin)
	e.POST("/api/register", s.handleRegister)
	e.POST("/refreshToken", s.handleRefreshToken)

	e.GET("/api/movies", s.handleMovies)
	e.GET("/api/rooms", s.handleRooms)
	e.GET("/api/shows", s.handleShows)
	e.GET("/api/shows/:showId/seats", s.handleShowSeats)

	booking := e.Group("/api/booking", s.requireAuth)
	booking.POST("/create", s.handleCreateOrder)
	booking.POST("/pay", s.handlePayOrder)
	booking.GET("/my-orders", s.handleMyOrders)
	booking.POST("/refund", s.handleRefundOrder)
	booking.GET("/all", s.handleAllOrders)

	e.GET("/ws/seats/:showId", s.hub.Handle)
}

// requireAuth validates the bearer token.  A missing or invalid token
// answers HTTP 401, which is what drives the client's single
// refresh-and-retry.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: "missing bearer token"})
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, echo.ErrUnauthorized
			}
			return []byte(s.tokens.Secret), nil
		})
		if err != nil || !tok.Valid {
			return c.JSON(http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: "invalid token"})
		}
		if claims, ok := tok.Claims.(jwt.MapClaims); ok {
			if sub, _ := claims["sub"].(string); sub != "" {
				c.Set("user_id", sub)
			}
		}
		return next(c)
	}
}

// ----- response helpers -----

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Code: http.StatusOK, Data: data})
}

func okMsg(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Code: http.StatusOK, Message: message, Data: data})
}

// fail answers a business rejection.  The HTTP status stays 200 and the
// envelope carries the code, matching the production backend's habit of
// signalling failures in-band.
func fail(c echo.Context, code int, message string) error {
	return c.JSON(http.StatusOK, envelope{Code: code, Message: message})
}

// ----- session handlers -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	id, err := s.world.Login(strings.TrimSpace(req.Username), req.Password, s.tokens)
	if err != nil {
		return fail(c, http.StatusUnauthorized, err.Error())
	}
	return okMsg(c, "login ok", echo.Map{
		"userId":       id.UserID,
		"username":     id.Username,
		"nickname":     id.Nickname,
		"roles":        id.Roles,
		"accessToken":  id.AccessToken,
		"refreshToken": id.RefreshToken,
		"expires":      id.Expires.Format(time.RFC3339),
	})
}

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "username and password required")
	}
	if err := s.world.Register(req.Username, req.Password, req.Nickname, req.Phone, req.Email); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return okMsg(c, "registered, please log in", echo.Map{
		"username": req.Username,
		"name":     req.Nickname,
	})
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefreshToken(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refreshToken required")
	}
	id, err := s.world.RefreshTokens(strings.TrimSpace(req.RefreshToken), s.tokens)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}
	return ok(c, echo.Map{
		"accessToken":  id.AccessToken,
		"refreshToken": id.RefreshToken,
		"expires":      id.Expires.Format(time.RFC3339),
	})
}

// ----- catalog handlers -----

func (s *Server) handleMovies(c echo.Context) error {
	return ok(c, s.world.Movies())
}

func (s *Server) handleRooms(c echo.Context) error {
	return ok(c, s.world.Rooms())
}

func (s *Server) handleShows(c echo.Context) error {
	return ok(c, s.world.Shows(c.QueryParam("movieId")))
}

func (s *Server) handleShowSeats(c echo.Context) error {
	seats, err := s.world.SeatMap(c.Param("showId"))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, seats)
}

// ----- booking handlers -----

type createOrderReq struct {
	UserID  string   `json:"userId"`
	ShowID  string   `json:"showId"`
	SeatIDs []string `json:"seatIds"`
}

func (s *Server) handleCreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ord, err := s.world.CreateOrder(req.UserID, req.ShowID, req.SeatIDs)
	if err != nil {
		return fail(c, http.StatusBadRequest, "order failed: "+err.Error())
	}
	return okMsg(c, "order created, seats locked, pay within the pending window", echo.Map{
		"orderId":     ord.OrderID,
		"totalAmount": ord.TotalAmount,
		"createTime":  ord.CreateTime,
	})
}

type payReq struct {
	OrderID string `json:"orderId"`
}

func (s *Server) handlePayOrder(c echo.Context) error {
	var req payReq
	if err := c.Bind(&req); err != nil || req.OrderID == "" {
		return fail(c, http.StatusBadRequest, "orderId required")
	}
	if err := s.world.PayOrder(req.OrderID); err != nil {
		return fail(c, http.StatusBadRequest, "payment failed: "+err.Error())
	}
	return okMsg(c, "payment ok", nil)
}

func (s *Server) handleMyOrders(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return fail(c, http.StatusBadRequest, "userId required")
	}
	orders, err := s.world.OrdersByUser(userID)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return ok(c, orders)
}

type refundReq struct {
	OrderID string `json:"orderId"`
}

func (s *Server) handleRefundOrder(c echo.Context) error {
	var req refundReq
	if err := c.Bind(&req); err != nil || req.OrderID == "" {
		return fail(c, http.StatusBadRequest, "orderId required")
	}
	if err := s.world.RefundOrder(req.OrderID); err != nil {
		return fail(c, http.StatusBadRequest, "refund failed: "+err.Error())
	}
	return okMsg(c, "refund ok", nil)
}

func (s *Server) handleAllOrders(c echo.Context) error {
	return ok(c, s.world.AllOrders())
}

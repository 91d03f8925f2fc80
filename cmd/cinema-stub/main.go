package main // Entry point for the in-memory stub backend

import (
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinema-booking-client/internal/config"
	"github.com/iliyamo/cinema-booking-client/internal/logger"
	"github.com/iliyamo/cinema-booking-client/internal/stub"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	world := stub.NewWorld(stub.Options{
		PendingTTL: time.Duration(cfg.PendingTTLMin) * time.Minute,
		BcryptCost: cfg.BcryptCost,
	})
	world.Seed()

	server := stub.NewServer(world, stub.TokenConfig{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
	}, log)

	e := echo.New()
	e.HideBanner = true
	server.RegisterRoutes(e)

	addr := ":" + cfg.StubPort
	log.Info("stub backend listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Error("server stopped", "error", err)
	}
}

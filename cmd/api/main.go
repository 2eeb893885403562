package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/craftplane/craftplane/internal/adapters/docker"
	apihttp "github.com/craftplane/craftplane/internal/adapters/http"
	"github.com/craftplane/craftplane/internal/adapters/properties"
	"github.com/craftplane/craftplane/internal/adapters/rcon"
	"github.com/craftplane/craftplane/internal/adapters/registry"
	"github.com/craftplane/craftplane/internal/adapters/ws"
	"github.com/craftplane/craftplane/internal/config"
	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/services"
)

func main() {
	// .env is optional; it carries CRAFTPLANE_* overrides in development.
	godotenv.Load()

	cfg, err := config.Load(os.Getenv("CRAFTPLANE_CONFIG_DIR"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Adapters (infrastructure).
	runtime, err := docker.NewAdapter(cfg.RuntimeTimeout)
	if err != nil {
		logger.Error("failed to initialize docker adapter", "err", err)
		os.Exit(1)
	}

	reg := registry.NewMemory()
	for _, t := range cfg.Tenants {
		reg.PutTenant(domain.Tenant{ID: t.ID, Email: t.Email, Quota: t.Quota, APIToken: t.APIToken})
	}

	store, err := properties.NewStore(cfg.DataRoot)
	if err != nil {
		logger.Error("invalid configuration field table", "err", err)
		os.Exit(1)
	}

	console := rcon.NewClient(cfg.ConsoleTimeout, cfg.ConsoleConcurrency)

	// Core services.
	lifecycle := services.NewLifecycle(runtime, reg, services.LifecycleConfig{
		Image:        cfg.Image,
		DataRoot:     cfg.DataRoot,
		RconPortBase: cfg.RconPortBase,
		RconPortMax:  cfg.RconPortMax,
		RconPassword: cfg.RconPassword,
	}, logger)
	gate := services.NewGate(reg, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := services.NewPool(cfg.Workers, cfg.TaskQueueDepth, logger)
	pool.Start(ctx)
	defer pool.Stop()

	hub := ws.NewHub(logger)
	bridge := services.NewBridge(runtime, reg, hub, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("status bridge stopped", "err", err)
		}
	}()

	// HTTP surface.
	handler := apihttp.NewServerHandler(lifecycle, gate, pool, store, console, reg,
		cfg.ConsoleAddr, cfg.RconPassword, logger)
	proxy := apihttp.NewProxyHandler(lifecycle, reg)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// The subdomain proxy runs first so game traffic never touches the API
	// routes.
	app.Use(proxy.ProxyRequest)

	api := app.Group("/api/v1", apihttp.RequireAuth(reg))
	handler.Register(api)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", apihttp.RequireAuth(reg), websocket.New(ws.Handler(hub)))

	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := app.Listen(cfg.ListenAddr); err != nil {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

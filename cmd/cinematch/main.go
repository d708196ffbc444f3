package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	fiberRecover "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/joshsmith8642/cinematch/internal/config"
	"github.com/joshsmith8642/cinematch/internal/database"
	"github.com/joshsmith8642/cinematch/internal/handler"
	"github.com/joshsmith8642/cinematch/internal/history"
	"github.com/joshsmith8642/cinematch/internal/middleware"
	"github.com/joshsmith8642/cinematch/internal/service"
	"github.com/joshsmith8642/cinematch/internal/tmdb"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Structured logging
	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	// Connect to Redis (non-fatal if unavailable)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running without cache", "error", err)
		rdb = nil
	}

	// History store backend
	store, err := newHistoryStore(cfg)
	if err != nil {
		slog.Error("failed to initialize history store", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}

	// Catalog client
	catalog := tmdb.NewClient(tmdb.Config{
		APIKey:            cfg.TMDB.APIKey,
		BaseURL:           cfg.TMDB.BaseURL,
		Region:            cfg.TMDB.Region,
		MinVoteCount:      cfg.TMDB.MinVoteCount,
		RequestsPerSecond: cfg.TMDB.RequestsPerSecond,
	})

	// Service and handlers
	svc := service.NewDashboard(store, catalog, rdb, cfg.Recommend, cfg.Stats)
	h := handler.NewDashboardHandler(svc)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Cinematch",
		ServerHeader: "Cinematch",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.ErrorResponse{Error: err.Error()})
		},
	})

	// Middleware
	app.Use(fiberRecover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New())

	rateLimiter := middleware.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.WindowSeconds)
	app.Use(rateLimiter.Handler())

	// Swagger docs
	swaggerYAML, err := os.ReadFile("docs/swagger.yaml")
	if err != nil {
		slog.Warn("swagger.yaml not found, swagger UI will be unavailable", "error", err)
	} else {
		handler.RegisterSwagger(app, swaggerYAML)
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/health", h.Health)
	api.Get("/genres", h.Genres)
	api.Get("/search", h.Search)
	api.Get("/titles/:id/providers", h.Providers)
	api.Post("/users", h.CreateProfile)
	api.Get("/users", h.Profiles)
	api.Get("/users/:name/discover", h.Discover)
	api.Post("/users/:name/discover/more", h.LoadMore)
	api.Post("/users/:name/log", h.Log)
	api.Post("/users/:name/hide", h.Hide)
	api.Get("/users/:name/history", h.History)
	api.Get("/users/:name/stats", h.Stats)
	api.Post("/admin/cache/flush", h.FlushCache)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down cinematch...")
		_ = app.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting cinematch", "addr", addr, "history_backend", cfg.History.Backend)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newHistoryStore builds the configured history store backend.
func newHistoryStore(cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "sheets":
		return history.NewSheetsStore(context.Background(), history.SheetsConfig{
			SpreadsheetID:   cfg.History.SpreadsheetID,
			CredentialsFile: cfg.History.CredentialsFile,
			CredentialsJSON: cfg.History.CredentialsJSON,
		})
	case "postgres":
		db, err := database.NewPostgres(cfg.DB)
		if err != nil {
			return nil, err
		}
		return history.NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
}

package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/stocksim/backend/config"
	"github.com/stocksim/backend/database"
	"github.com/stocksim/backend/handlers"
	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	store, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate("database/schema.sql"); err != nil {
		logrus.Warnf("Migration warning: %v", err)
	}

	// Services
	authService := services.NewAuthService(store.DB, cfg.JWTSecret, cfg.GetTokenTTL())
	userService := services.NewUserService(store.DB)
	stockService := services.NewStockService(store.DB)
	ipoService := services.NewIPOService(store.DB)
	portfolioService := services.NewPortfolioService(store.DB)
	watchlistService := services.NewWatchlistService(store.DB)
	newsService := services.NewNewsService(store.DB)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	stockHandler := handlers.NewStockHandler(stockService)
	ipoHandler := handlers.NewIPOHandler(ipoService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	transactionHandler := handlers.NewTransactionHandler(portfolioService)
	watchlistHandler := handlers.NewWatchlistHandler(watchlistService)
	newsHandler := handlers.NewNewsHandler(newsService)

	authGate := middleware.NewAuthMiddleware(cfg.JWTSecret)
	metrics := shared.NewRequestMetrics()

	app := fiber.New(fiber.Config{
		ErrorHandler: shared.NewErrorHandler(cfg.IsProduction()),
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New())
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		if err := store.HealthCheck(c.Context()); err != nil {
			status = "degraded"
		}
		stats := store.Stats()
		return c.JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().Unix(),
			"database": fiber.Map{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
			},
			"metrics": metrics.Snapshot(),
		})
	})

	api := app.Group("/api/v1")

	// Auth
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Public reads
	api.Get("/stocks", stockHandler.ListStocks)
	api.Get("/stocks/:symbol", stockHandler.GetStock)
	api.Get("/ipos", ipoHandler.ListIPOs)
	api.Get("/ipos/:symbol", ipoHandler.GetIPO)
	api.Get("/news", newsHandler.List)
	api.Get("/news/:id", newsHandler.Get)

	// Authenticated routes
	authed := api.Group("", authGate.Handler())
	authed.Post("/ipos/:symbol/apply", ipoHandler.Apply)
	authed.Get("/portfolio", portfolioHandler.GetPortfolio)
	authed.Post("/transactions/buy", transactionHandler.Buy)
	authed.Get("/transactions", transactionHandler.ListTransactions)
	authed.Get("/transactions/portfolio/summary", transactionHandler.PortfolioSummary)
	authed.Get("/watchlist", watchlistHandler.List)
	authed.Post("/watchlist", watchlistHandler.Add)
	authed.Delete("/watchlist/:symbol", watchlistHandler.Remove)

	// Admin routes
	admin := api.Group("/admin", authGate.Handler(), middleware.RequireRole(models.RoleAdmin))
	admin.Post("/stocks", stockHandler.CreateStock)
	admin.Put("/stocks/:symbol", stockHandler.UpdateStock)
	admin.Delete("/stocks/:symbol", stockHandler.DeleteStock)
	admin.Post("/ipos", ipoHandler.CreateIPO)
	admin.Patch("/ipos/:symbol/status", ipoHandler.UpdateStatus)
	admin.Patch("/ipos/:symbol/applications/:id", ipoHandler.UpdateAllotment)
	admin.Delete("/ipos/:symbol", ipoHandler.DeleteIPO)
	admin.Post("/news", newsHandler.Create)
	admin.Put("/news/:id", newsHandler.Update)
	admin.Delete("/news/:id", newsHandler.Delete)
	admin.Get("/users", userHandler.ListUsers)
	admin.Patch("/users/:id/role", userHandler.UpdateRole)
	admin.Delete("/users/:id", userHandler.DeleteUser)

	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}

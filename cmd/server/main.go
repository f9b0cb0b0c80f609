package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"libris/internal/adapters/http/middleware"
	"libris/internal/adapters/http/routes"
	"libris/internal/adapters/persistence/models"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/config"
	"libris/internal/core/services"

	"github.com/gofiber/fiber/v2"
)

// @title Libris API
// @version 1.0
// @description Library management REST API: catalog, users and loans.

// @host localhost:3001
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed initial data
	if err := config.SeedAdminUser(db, cfg); err != nil {
		log.Printf("⚠️ Warning: Failed to seed admin user: %v", err)
	}
	if cfg.IsDev() {
		if err := config.SeedCatalog(db); err != nil {
			log.Printf("⚠️ Warning: Failed to seed catalog: %v", err)
		}
	}

	// Scheduled jobs: overdue report + refresh token cleanup
	cronService := services.NewCronService(
		repositories.NewLoanRepository(db),
		repositories.NewRefreshTokenRepository(db),
	)
	if err := cronService.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron service: %v", err)
	}
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Libris API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}

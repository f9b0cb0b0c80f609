package routes

import (
	"time"

	"libris/internal/adapters/http/handlers"
	"libris/internal/adapters/http/middleware"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/config"
	"libris/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and wires the dependency
// graph: repositories -> services -> handlers.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Repositories
	tx := repositories.NewTransactor(db)
	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)

	// Services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo, loanRepo, refreshTokenRepo)
	bookService := services.NewBookService(tx, bookRepo, loanRepo)
	loanService := services.NewLoanService(tx, bookRepo, loanRepo)
	statsService := services.NewStatsService(db)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	bookHandler := handlers.NewBookHandler(bookService)
	loanHandler := handlers.NewLoanHandler(loanService)
	statsHandler := handlers.NewStatsHandler(statsService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")
	auth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.AdminOnly()

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.AuthRateLimiter(), authHandler.Register)
	authGroup.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", auth, authHandler.Logout)
	authGroup.Get("/profile", auth, middleware.NoCacheHeaders(), authHandler.Profile)

	// Books: catalog reads are public, mutations are admin only
	books := api.Group("/books")
	books.Get("/", bookHandler.List)
	books.Get("/genres/list", middleware.CacheControl(time.Hour), bookHandler.Genres)
	books.Get("/:id", bookHandler.Get)
	books.Post("/", auth, adminOnly, bookHandler.Create)
	books.Put("/:id", auth, adminOnly, bookHandler.Update)
	books.Delete("/:id", auth, adminOnly, bookHandler.Delete)

	// Loans: authenticated; listing everything is admin only
	loans := api.Group("/loans", auth)
	loans.Post("/", loanHandler.Borrow)
	loans.Get("/", adminOnly, loanHandler.List)
	loans.Get("/overdue", loanHandler.ListOverdue)
	loans.Get("/user/:userId", loanHandler.ListByUser)
	loans.Get("/:id", loanHandler.Get)
	loans.Put("/:id/return", loanHandler.Return)

	// Users
	users := api.Group("/users", auth)
	users.Get("/", adminOnly, userHandler.List)
	users.Get("/:id", userHandler.Get)
	users.Put("/:id", userHandler.Update)
	users.Put("/:id/password", userHandler.ChangePassword)
	users.Delete("/:id", adminOnly, userHandler.Delete)

	// Stats
	api.Get("/stats/overview", auth, adminOnly, statsHandler.Overview)
}

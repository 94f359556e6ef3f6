package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/uptrace/bun"

	"github.com/ffxxrr/orlamariecoach-sub000/config"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/handlers"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/middleware"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/services"
)

func SetupRoutes(app *fiber.App, cfg *config.Config, db *bun.DB, rateLimiter *middleware.RateLimiter) {
	// Initialize services
	jwtService := services.NewJWTService(cfg.JWTSecret, 24)
	authService := services.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, jwtService)
	ingestService := services.NewIngestService(db)
	consentService := services.NewConsentService(db)
	dataRightsService := services.NewDataRightsService(db)
	statsService := services.NewStatsService(db)

	// Initialize handlers
	trackHandler := handlers.NewTrackHandler(ingestService)
	consentHandler := handlers.NewConsentHandler(consentService, dataRightsService)
	authHandler := handlers.NewAuthHandler(authService, jwtService)
	statsHandler := handlers.NewStatsHandler(statsService)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Analytics API is running",
		})
	})

	// API group
	api := app.Group("/api")

	// ==================
	// Public ingestion routes
	// Rate limited per IP (sliding window)
	// ==================
	analytics := api.Group("/analytics", middleware.RateLimitMiddleware(rateLimiter))
	analytics.Post("/track", trackHandler.Track)
	analytics.Post("/consent", consentHandler.Record)
	analytics.Get("/consent", consentHandler.Get)
	analytics.Delete("/consent", consentHandler.DataRights)

	// ==================
	// Admin routes (JWT)
	// ==================
	api.Post("/admin/login", authHandler.Login)

	admin := api.Group("/admin", middleware.AuthMiddleware(jwtService))
	admin.Get("/stats/pages", statsHandler.Pages)
	admin.Get("/stats/overview", statsHandler.Overview)
	admin.Get("/stats/export", statsHandler.Export)
}

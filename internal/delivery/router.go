package delivery

import (
	"github.com/gofiber/fiber/v2"

	"signup-service/internal/observability"
)

// RegisterRoutes mounts the sign-up API on app.
func RegisterRoutes(app *fiber.App, signUp *SignUpHandler, oauth *OAuthHandler, metrics *observability.Metrics, limiter *IPRateLimiter) {
	if metrics != nil {
		app.Use(metrics.Middleware())
		app.Get("/metrics", metrics.Handler())
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/auth")
	if limiter != nil {
		api.Use(RateLimit(limiter))
	}

	// Email sign-up
	// 1. POST /signup             - create account, send code
	// 2. POST /signup/:id/verify  - verify code, activate session
	api.Post("/signup", signUp.SignUp)
	api.Get("/signup/:id", signUp.Status)
	api.Post("/signup/:id/verify", signUp.Verify)

	// Google SSO; the callback must precede /oauth/:id
	api.Post("/oauth/google", oauth.StartGoogle)
	api.Get("/oauth/callback", oauth.Callback)
	api.Get("/oauth/:id", oauth.Status)
}

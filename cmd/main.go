package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signup-service/internal/config"
	"signup-service/internal/delivery"
	"signup-service/internal/domain"
	"signup-service/internal/flow"
	"signup-service/internal/observability"
	"signup-service/internal/service"
)

const oauthCallbackPath = "/api/auth/oauth/callback"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:  "signup-service",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize tracer", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	sessions := service.NewSessionStore(ctx, cfg.SessionTTL)

	zitadelService, err := service.NewZitadelService(ctx, cfg.Zitadel(), sessions, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize zitadel service", zap.Error(err))
	}

	google, err := service.NewOIDCExchanger(ctx, cfg.Google(), cfg.CallbackURL(oauthCallbackPath), zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize google sign in", zap.Error(err))
	}

	ssoService := service.NewSSOService(zitadelService, cfg.SSOTimeout, zapLogger)
	ssoService.RegisterStrategy(domain.StrategyOAuthGoogle, google)

	deps := delivery.Deps{
		Provider:      service.NewIdentityProvider(zitadelService, ssoService),
		Registrar:     service.NewUserAPIClient(cfg.RegistrationAPIURL, cfg.RegistrationTimeout),
		Sessions:      sessions,
		RedirectURL:   cfg.AppRedirectURL(),
		SecureCookies: cfg.IsProduction(),
		Logger:        zapLogger,
		Metrics:       metrics,
	}

	signUpHandler := delivery.NewSignUpHandler(deps, service.NewFlowStore[*flow.SignUp](ctx, cfg.FlowTTL))
	oauthHandler := delivery.NewOAuthHandler(deps, service.NewFlowStore[*flow.OAuth](ctx, cfg.FlowTTL), ssoService, cfg.SSOTimeout)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowCredentials: true,
	}))

	limiter := delivery.NewIPRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	delivery.RegisterRoutes(app, signUpHandler, oauthHandler, metrics, limiter)

	go func() {
		<-ctx.Done()
		zapLogger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zapLogger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		zapLogger.Error("server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(shutdownCtx); err != nil {
		zapLogger.Error("tracer shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

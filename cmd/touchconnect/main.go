package main

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lionelbuh/touchconnectpro/app/controllers"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/billing"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/cache"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/database"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/env"
	applog "github.com/lionelbuh/touchconnectpro/internal/pkg/logger"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/mail"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/router"
)

// webhook payloads and API bodies are small; 1 MiB is plenty
const bodyLimit = 1 << 20

func main() {
	app, cfg := NewApplication()
	log.Infof("Listening on %s", cfg.ListenAddr())
	log.Fatal(app.Listen(cfg.ListenAddr()))
}

func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	applog.Setup(cfg.LogLevel)

	db, err := database.Setup(cfg)
	if err != nil {
		log.Fatalf("Record store unavailable: %v", err)
	}

	redisClient := cache.Setup(cfg)
	var locker billing.Locker = cache.NoopLocker{}
	var limiterStorage fiber.Storage
	if redisClient != nil {
		locker = cache.NewRedisLocker(redisClient)
		limiterStorage = cache.NewFiberStorage(redisClient)
	}

	templates, err := mail.LoadTemplates()
	if err != nil {
		log.Fatalf("Email templates: %v", err)
	}
	notifier := mail.NewNotifier(mail.NewGateway(cfg), templates, cfg.AppPublicURL)

	gateway := billing.NewStripeGateway(cfg, nil)
	if !gateway.Configured() {
		log.Warn("STRIPE_SECRET_KEY not set: checkout and portal requests will fail")
	}
	svc := billing.NewService(billing.NewRepository(db), notifier, locker, billing.OptionsFromConfig(cfg))

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
		AppName:   "touchconnectpro-billing",
	})

	// recovery and logging
	app.Use(recover.New(recover.Config{EnableStackTrace: env.IsDev()}), logger.New())

	// fiber metrics
	if cfg.MetricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.MetricsUser: cfg.MetricsPassword,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if specPath := findOpenAPISpec(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        controllers.NewBillingController(gateway, svc),
		LimiterStorage: limiterStorage,
		InternalAPIKey: cfg.InternalAPIKey,
	})

	return app, cfg
}

func findOpenAPISpec() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/touchconnect to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		candidate := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	log.Warn("OpenAPI document not found, /docs/api/v1 disabled")
	return ""
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"c5isr-identity/internal/adapters/http/handlers"
	"c5isr-identity/internal/adapters/http/middleware"
	"c5isr-identity/internal/adapters/http/routes"
	"c5isr-identity/internal/adapters/pdpclient"
	"c5isr-identity/internal/adapters/persistence/models"
	"c5isr-identity/internal/adapters/persistence/repositories"
	"c5isr-identity/internal/adapters/store"
	"c5isr-identity/internal/config"
	"c5isr-identity/internal/core/services"
	"c5isr-identity/internal/pkg/clock"
	"c5isr-identity/internal/pkg/password"

	_ "c5isr-identity/docs" // Swagger docs
)

// @title C5ISR Identity Provider API
// @version 1.0
// @description Two-step TOTP authentication and zero-trust policy decisions for C5ISR operators

// @contact.name Platform Security
// @contact.email security@c5isr.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	clk := clock.Real{}
	deps := routes.Dependencies{
		Clock:        clk,
		HealthChecks: map[string]handlers.HealthCheckFunc{},
	}

	// State backend (lockout, pending MFA, sessions, audit)
	var sweepers []store.Sweeper
	switch cfg.State.Backend {
	case config.BackendRedis:
		client, err := store.OpenRedis(ctx, cfg.State.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer client.Close()

		deps.State = store.NewRedisKV(client, cfg.State.Namespace)
		deps.AuthLog = store.NewRedisEventLog(client, cfg.State.Namespace, string(services.StreamAuth), cfg.Audit.AuthCapacity)
		deps.AccessLog = store.NewRedisEventLog(client, cfg.State.Namespace, string(services.StreamAccess), cfg.Audit.AccessCapacity)
		deps.HealthChecks["redis"] = redisPing(client)
		log.Println("✅ State backend: redis")
	default:
		kv := store.NewMemoryKV(clk)
		sweepers = append(sweepers, kv)

		deps.State = kv
		deps.AuthLog = store.NewMemoryEventLog(cfg.Audit.AuthCapacity)
		deps.AccessLog = store.NewMemoryEventLog(cfg.Audit.AccessCapacity)
		log.Println("✅ State backend: memory")
	}

	// Credential store
	switch cfg.Credentials.Backend {
	case config.BackendMySQL:
		db, err := config.ConnectDatabase(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer config.CloseDatabase(db)

		// Auto migrate (creates tables if not exist)
		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("❌ Failed to auto migrate: %v", err)
		}
		log.Println("✅ Database migration completed")

		deps.Identities = repositories.NewIdentityRepository(db)
		deps.HealthChecks["database"] = func(ctx context.Context) error { return config.HealthCheck(ctx, db) }
	default:
		deps.Identities = repositories.NewMemoryIdentityRepository()
		log.Println("✅ Credential backend: memory")
	}

	// Seed reference identities
	if cfg.Credentials.SeedOnBoot {
		if err := config.NewSeeder(deps.Identities, password.DefaultCost).Run(ctx); err != nil {
			log.Printf("⚠️ Warning: Failed to seed identities: %v", err)
		}
	}

	// Remote PDP
	if cfg.Policy.PDPMode == config.PDPModeRemote {
		deps.Decider = pdpclient.New(cfg.Policy.PDPURL, cfg.Policy.PDPTimeout)
		log.Printf("✅ Policy decisions delegated to %s", cfg.Policy.PDPURL)
	}

	// Expired state sweeper
	janitor, err := services.NewJanitorService(cfg.Janitor.Schedule, sweepers...)
	if err != nil {
		log.Fatalf("❌ Failed to schedule janitor: %v", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Create Fiber app
	app := fiber.New(middleware.AppConfig(cfg))

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, cfg, deps)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func redisPing(client *redis.Client) handlers.HealthCheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
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

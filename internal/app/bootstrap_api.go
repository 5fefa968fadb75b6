package app

import (
	"fmt"
	"time"
	"voyago/core-api/internal/infrastructure/config"
	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/middleware"
	"voyago/core-api/internal/infrastructure/telemetry/metrics"
	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/infrastructure/validator"
	"voyago/core-api/internal/modules/dlc"

	"github.com/gofiber/fiber/v2"
)

var domains = [1]string{
	"dlc",
}

// BootstrapHttpConfig wires global infrastructure (middleware, telemetry) and
// fans out per-domain config/logger/database/cache before registering each
// domain's HTTP routes.
type BootstrapHttpConfig struct {
	App     *fiber.App
	Val     validator.Validator
	Log     logger.Logger
	Tracer  tracer.Tracer
	Metrics metrics.Metrics

	configs map[string]*config.Config
	loggers map[string]logger.Logger
	dbs     map[string]database.Database
	caches  map[string]database.CacheDatabase
}

func (b *BootstrapHttpConfig) Run() {
	b.setupMiddleware()
	b.setupInfrastructureModules()
	b.setupModules()
	b.setupHealthRoute()
}

func (b *BootstrapHttpConfig) Stop() {
	for _, domain := range domains {
		log, okLog := b.loggers[domain]
		db, okDb := b.dbs[domain]

		if !okLog || log == nil {
			log = b.Log // Fallback to global logger
		}

		if !okDb || db == nil {
			log.WithFields(map[string]any{
				"domain":    domain,
				"component": "database",
			}).Warn("Database connection not found during shutdown")
			continue
		}

		if err := db.Close(); err != nil {
			log.WithFields(map[string]any{
				"domain":       domain,
				"component":    "database",
				"error_detail": err.Error(),
			}).Error("Failed to close database connection")
		} else {
			log.WithFields(map[string]any{
				"domain":    domain,
				"component": "database",
			}).Info("Database connection closed gracefully")
		}

		if cache, ok := b.caches[domain]; ok && cache != nil {
			if err := cache.Close(); err != nil {
				log.WithFields(map[string]any{
					"domain":       domain,
					"component":    "cache",
					"error_detail": err.Error(),
				}).Error("Failed to close cache connection")
			}
		}
	}
}

func (b *BootstrapHttpConfig) setupMiddleware() {
	t := middleware.NewTelemetrist(b.Log, b.Tracer, b.Metrics)

	b.App.Use(middleware.RequestID())
	b.App.Use(t.HandleMetrics())
	b.App.Use(t.HandleTrace())
	b.App.Use(t.HandleLog())
}

func (b *BootstrapHttpConfig) setupInfrastructureModules() {
	domainCount := len(domains)
	b.configs = make(map[string]*config.Config, domainCount)
	b.loggers = make(map[string]logger.Logger, domainCount)
	b.dbs = make(map[string]database.Database, domainCount)
	b.caches = make(map[string]database.CacheDatabase, domainCount)

	for _, domain := range domains {
		path := fmt.Sprintf("config/%s/config.yaml", domain)
		domainCfg := config.LoadDomainConfig(path)

		// 1. Logger
		domainLogger := logger.
			New(domainCfg, b.Tracer).
			WithFields(map[string]any{
				"service": domainCfg.App.Name,
				"version": domainCfg.App.Version,
				"env":     domainCfg.App.Env,
				"port":    domainCfg.Http.Port,
				"domain":  domain,
			})

		// 2. Database
		db := database.NewDatabase(&domainCfg.Database, domainLogger, b.Tracer)

		// 3. Cache (idempotency ledger; dlc's event sink consumes this)
		cache := database.NewRedisCache(&domainCfg.Redis, domainLogger)

		b.configs[domain] = domainCfg
		b.loggers[domain] = domainLogger
		b.dbs[domain] = db
		b.caches[domain] = cache
	}
}

func (b *BootstrapHttpConfig) setupModules() {
	var m string

	// --- Direct Load Control Module ---
	m = "dlc"
	if cfg, ok := b.configs[m]; ok {
		dlc.RegisterModule(dlc.ModuleConfig{
			Config: cfg,
			Server: b.App,
			DB:     b.dbs[m],
			Cache:  b.caches[m],
			Log:    b.loggers[m],
			Val:    b.Val,
			Tracer: b.Tracer,
		})
	}
}

func (b *BootstrapHttpConfig) setupHealthRoute() {
	h := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "UP",
			"time":   time.Now().Format(time.RFC3339),
		})
	}

	b.App.Get("/", h)
	b.App.Get("/health", h)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"smartplates/internal/backend"
	"smartplates/internal/cache"
	"smartplates/internal/calendar"
	"smartplates/internal/cli"
	"smartplates/internal/config"
	"smartplates/internal/grocery"
	apphttp "smartplates/internal/http"
	applog "smartplates/internal/log"
	"smartplates/internal/metrics"
	"smartplates/internal/recipes"
	"smartplates/internal/services"
	"smartplates/internal/sheets/google"
	"smartplates/internal/spoonacular"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	m := metrics.New()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	var checks []apphttp.ReadinessCheck
	if p, ok := result.Backend.(backend.Pinger); ok {
		checks = append(checks, apphttp.ReadinessCheck{Name: "storage", Check: p.Ping})
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory caches", applog.FieldError, err)
		} else {
			checks = append(checks, apphttp.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
		}
	}
	grids := newCache[calendar.Grid]("grid", cfg, redisClient, caches, m, logger)
	recipeCache := newCache[spoonacular.Recipe]("recipe", cfg, redisClient, caches, m, logger)
	caches.StartCleanup(5 * time.Minute)

	var sources []recipes.Source
	if cfg.SpoonacularAPIKey != "" {
		client := spoonacular.New(spoonacular.Config{
			BaseURL: cfg.SpoonacularBaseURL,
			APIKey:  cfg.SpoonacularAPIKey,
			Timeout: cfg.SpoonacularTimeout,
		}, spoonacular.WithCache(recipeCache), spoonacular.WithLogger(logger.WithComponent(applog.ComponentRecipes).Logger))
		sources = append(sources, recipes.NewExternalSource(client))
	} else {
		logger.Info("Spoonacular API key not set, external recipes disabled")
	}
	sources = append(sources, recipes.NewEditorialSource(result.Backend), recipes.NewUserSource(result.Backend))
	resolver := recipes.NewResolver(logger.WithComponent(applog.ComponentRecipes).Logger, sources...)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Error("Failed to load grocery catalog", applog.FieldError, err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	generator := grocery.NewGenerator(resolver, catalog,
		grocery.WithConcurrency(cfg.FetchConcurrency),
		grocery.WithLogger(logger.WithComponent(applog.ComponentGrocery).Logger))

	groceryOpts := []services.GroceryOption{services.WithGroceryMetrics(m)}
	if cfg.SheetsEnabled() {
		exporter, err := google.NewExporter(ctx, google.Credentials{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			JSON:          cfg.GoogleServiceAccountJSON,
			File:          cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
			os.Exit(1)
		}
		groceryOpts = append(groceryOpts, services.WithSheets(exporter))
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	loc := cfg.Location()
	plannerOpts := []services.PlannerOption{
		services.WithGridCache(grids),
		services.WithPlannerMetrics(m),
		services.WithLocation(loc),
	}
	if result.Publisher != nil {
		plannerOpts = append(plannerOpts, services.WithPublisher(result.Publisher))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Grocery:            services.NewGroceryService(result.Backend, result.Backend, generator, groceryOpts...),
		Planner:            services.NewPlannerService(result.Backend, plannerOpts...),
		Metrics:            m,
		Logger:             logger,
		DefaultUserID:      cfg.DefaultUserID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Checks:             checks,
		Now:                func() time.Time { return time.Now().In(loc) },
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	go func() {
		logger.Info("Starting smartplates server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", result.Publisher != nil,
			"redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newCache returns a Redis-backed cache when a client is available, else an
// LRU registered for periodic cleanup. Either way hits and misses are counted.
func newCache[T any](name string, cfg *config.Config, client *redis.Client, caches *cache.Manager, m *metrics.Metrics, logger *applog.Logger) cache.Cache[T] {
	var inner cache.Cache[T]
	if client != nil {
		inner = cache.NewRedisCache[T](client, "smartplates:"+name+":", cfg.CacheTTL, logger.WithComponent(applog.ComponentCache).Logger)
	} else {
		lru := cache.NewLRUCache[T](cfg.CacheSize, cfg.CacheTTL)
		caches.Register(lru)
		inner = lru
	}
	return cache.NewInstrumented(name, inner, m)
}

func loadCatalog(cfg *config.Config) (*grocery.Catalog, error) {
	if cfg.CatalogPath != "" {
		return grocery.LoadCatalog(cfg.CatalogPath)
	}
	return grocery.DefaultCatalog()
}

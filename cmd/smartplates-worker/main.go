package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"smartplates/internal/amqp"
	"smartplates/internal/backend"
	"smartplates/internal/cli"
	"smartplates/internal/grocery"
	applog "smartplates/internal/log"
	"smartplates/internal/metrics"
	"smartplates/internal/recipes"
	"smartplates/internal/services"
	"smartplates/internal/spoonacular"
	"smartplates/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting smartplates-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// the worker consumes, so the factory must not attach a publisher
	backendConfig.AMQPURL = ""
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	sources := []recipes.Source{}
	if cfg.SpoonacularAPIKey != "" {
		sources = append(sources, recipes.NewExternalSource(spoonacular.New(spoonacular.Config{
			BaseURL: cfg.SpoonacularBaseURL,
			APIKey:  cfg.SpoonacularAPIKey,
			Timeout: cfg.SpoonacularTimeout,
		}, spoonacular.WithLogger(logger.Logger))))
	}
	sources = append(sources, recipes.NewEditorialSource(result.Backend), recipes.NewUserSource(result.Backend))

	catalog, err := grocery.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = grocery.LoadCatalog(cfg.CatalogPath)
	}
	if err != nil {
		logger.Error("Failed to load grocery catalog", applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	generator := grocery.NewGenerator(recipes.NewResolver(logger.Logger, sources...), catalog,
		grocery.WithConcurrency(cfg.FetchConcurrency),
		grocery.WithLogger(logger.Logger))
	lists := services.NewGroceryService(result.Backend, result.Backend, generator, services.WithGroceryMetrics(m))
	groceryWorker := worker.NewGroceryWorker(lists, m, logger.Logger)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	go func() {
		err := client.ConsumeMealPlanChanged(ctx, groceryWorker.HandleMealPlanChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

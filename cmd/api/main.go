package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/siamgems/inventory-backend/api/routes"
	"github.com/siamgems/inventory-backend/internal/carts"
	"github.com/siamgems/inventory-backend/internal/codes"
	"github.com/siamgems/inventory-backend/internal/customers"
	"github.com/siamgems/inventory-backend/internal/images"
	"github.com/siamgems/inventory-backend/internal/pairing"
	"github.com/siamgems/inventory-backend/internal/products"
	"github.com/siamgems/inventory-backend/pkg/config"
	"github.com/siamgems/inventory-backend/pkg/db"
	"github.com/siamgems/inventory-backend/pkg/logger"
	"github.com/siamgems/inventory-backend/pkg/metrics"
	"github.com/siamgems/inventory-backend/pkg/migrate"
	"github.com/siamgems/inventory-backend/pkg/redis"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := local.NewClient(context.Background(), cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open media storage", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	importMetrics := metrics.NewImportJobMetrics(registry)

	codeGenerator, err := codes.NewGenerator(store)
	if err != nil {
		logg.Error(context.Background(), "failed to create code generator", err)
		os.Exit(1)
	}

	imageRepo := images.NewRepository(dbClient.DB())
	imageService, err := images.NewService(imageRepo, imageRepo, dbClient, store)
	if err != nil {
		logg.Error(context.Background(), "failed to create image service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(products.ServiceParams{
		Repo:          products.NewRepository(dbClient.DB()),
		LinkRestorer:  imageService,
		CodeGenerator: codeGenerator,
		BlobChecker:   store,
		TxRunner:      dbClient,
		Metrics:       importMetrics,
		MaxImportRows: cfg.Importer.MaxRows,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	customerRepo := customers.NewRepository(dbClient.DB())
	customerService, err := customers.NewService(customerRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}

	cartService, err := carts.NewService(
		carts.NewRepository(dbClient.DB()),
		customerRepo,
		products.NewRepository(dbClient.DB()),
		dbClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	pairingService, err := pairing.NewService(pairing.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create pairing set service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, store, registry,
			productService, imageService, customerService, cartService, pairingService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"arkstore/internal/config"
	"arkstore/internal/database"
	"arkstore/internal/database/migration"
	"arkstore/internal/gateway"
	handlers "arkstore/internal/http/handler"
	"arkstore/internal/http/middleware"
	"arkstore/internal/ledger"
	ledgerfile "arkstore/internal/ledger/jsonfile"
	ledgerpg "arkstore/internal/ledger/postgres"
	otelinit "arkstore/internal/otel"
	"arkstore/internal/ratelimit"
	"arkstore/internal/service"
	"arkstore/internal/tags"
	"arkstore/internal/validator"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.Local
	ctx := context.Background()

	shutdownTracing, err := otelinit.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Select the ledger backend. Postgres is the default; the flat-file
	// backend serves single-node deployments with no database.
	var (
		led    ledger.Ledger
		pinger handlers.Pinger
	)
	switch cfg.LedgerBackend {
	case "jsonfile":
		fl, err := ledgerfile.Open(cfg.LedgerFile)
		if err != nil {
			log.Fatalf("failed to open ledger file: %v", err)
		}
		led = fl
		pinger = handlers.PingerFunc(func(context.Context) error { return nil })
	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		led = ledgerpg.NewLedgerPostgres(db)
		pinger = db
	}

	// The rate-limit window store defaults to in-process memory; "redis"
	// shares the window across replicas, "ledger" persists it with the
	// ledger so counts survive restarts.
	var rateStore ratelimit.Store
	switch cfg.RateLimit.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		rateStore = ratelimit.NewRedisStore(client, cfg.RateLimit.Window)
	case "ledger":
		rateStore = led
	default:
		rateStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(rateStore, cfg.RateLimit.Ceiling, cfg.RateLimit.Window)

	factory, err := gateway.NewMinIOFactory(cfg.Gateway)
	if err != nil {
		log.Fatalf("failed to initialize gateway factory: %v", err)
	}
	pool := gateway.NewPool(factory, cfg.Upload.PoolMaxConnections)

	uploads := service.NewOrchestrator(
		validator.New(cfg.Upload),
		limiter,
		pool,
		tags.NewBuilder(),
		led,
		cfg.Gateway.PublicBaseURL,
		cfg.Upload.Timeout,
	)
	tokens := service.NewTokenPipeline(uploads, led, cfg.Upload.TempDir)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxSizeBytes) + 1<<20,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	// METRICS_ENABLED=false drops the Prometheus layer and the /metrics
	// endpoint; the slot is filled so the middleware order stays fixed.
	if cfg.MetricsEnabled {
		promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatalf("failed to register metrics: %v", err)
		}
		app.Use(promMW.Handler())
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	} else {
		app.Use(middleware.Noop())
	}

	handlers.RegisterRoutes(app, handlers.Deps{
		Pinger:  pinger,
		Uploads: uploads,
		Tokens:  tokens,
		Ledger:  led,
		TempDir: cfg.Upload.TempDir,
	})

	// Persistent window stores accumulate expired events; sweep them on
	// the window cadence.
	go func() {
		ticker := time.NewTicker(cfg.RateLimit.Window)
		defer ticker.Stop()
		for range ticker.C {
			if err := limiter.Sweep(context.Background()); err != nil {
				log.Printf("rate event sweep failed: %v", err)
			}
		}
	}()

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/lylaw27/glaze-store/internal/handlers"
	"github.com/lylaw27/glaze-store/internal/payments"
	"github.com/lylaw27/glaze-store/internal/platform/config"
	"github.com/lylaw27/glaze-store/internal/platform/events"
	"github.com/lylaw27/glaze-store/internal/platform/idempotency"
	"github.com/lylaw27/glaze-store/internal/platform/observability"
	"github.com/lylaw27/glaze-store/internal/platform/secrets"
	platformstorage "github.com/lylaw27/glaze-store/internal/platform/storage"
	"github.com/lylaw27/glaze-store/internal/repositories"
	"github.com/lylaw27/glaze-store/internal/repositories/postgres"
	"github.com/lylaw27/glaze-store/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Database.URL"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	imageStore, closeImages := newImageStore(ctx, logger, cfg.Storage)
	defer closeImages()

	idemStore, closeIdem := newIdempotencyStore(ctx, logger, cfg)
	defer closeIdem()

	publisher := newEventPublisher(ctx, logger, cfg.Events)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close error", zap.Error(err))
		}
	}()

	healthRepo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "database", Timeout: 2 * time.Second, Check: store.Ping},
	})
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}
	systemService, err := services.NewSystemService(healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	eventLogger := services.EventLogger(observability.NewEventLogger(logger.Named("services")))

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Products: store.Products(),
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     store.Orders(),
		Products:   store.Products(),
		Inventory:  store.Inventory(),
		UnitOfWork: store,
		Clock:      time.Now,
		Events:     publisher,
		Meter:      otel.Meter("glaze-store"),
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:      store.Products(),
		Categories:    store.Categories(),
		UnitOfWork:    store,
		Images:        imageStore,
		MaxImageBytes: cfg.Storage.MaxUploadBytes,
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	categoryService, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: store.Categories(),
		UnitOfWork: store,
		Clock:      time.Now,
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise category service", zap.Error(err))
	}

	var provider services.PaymentProvider
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		paymentsLogger := logger.Named("payments")
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: payments.StripeLogger(observability.NewEventLogger(paymentsLogger)),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		provider = stripeProvider
	} else {
		logger.Warn("stripe api key not configured; payment intents disabled")
	}
	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Cart:     cartService,
		Provider: provider,
		Currency: cfg.PSP.Currency,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	idempotencyMiddleware := idempotency.Middleware(
		idemStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithRequired(cfg.Idempotency.Required),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			idempotency.RunCleanup(cleanupCtx, idemStore, cfg.Idempotency.CleanupInterval,
				cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
		}()
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Secrets.DefaultProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			handlers.CORSMiddleware(cfg.CORS.AllowedOrigins),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(systemService)),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cartService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService, idempotencyMiddleware).Routes),
		handlers.WithProductRoutes(handlers.NewProductHandlers(catalogService).Routes),
		handlers.WithCategoryRoutes(handlers.NewCategoryHandlers(categoryService).Routes),
		handlers.WithPaymentRoutes(handlers.NewPaymentHandlers(paymentService, idempotencyMiddleware).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(catalogService, orderService,
			handlers.WithMaxUploadBytes(cfg.Storage.MaxUploadBytes)).Routes),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("environment", cfg.Security.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project := lookup("API_SECRET_DEFAULT_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newImageStore(ctx context.Context, logger *zap.Logger, cfg config.StorageConfig) (platformstorage.ImageStore, func()) {
	if cfg.Backend != config.StorageBackendGCS {
		logger.Info("image storage disabled", zap.String("backend", cfg.Backend))
		return platformstorage.DisabledStore{}, func() {}
	}
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	store, err := platformstorage.NewGCSImageStore(client, cfg.ImagesBucket, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to initialise image store", zap.Error(err))
	}
	return store, func() {
		if err := client.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}
}

func newIdempotencyStore(ctx context.Context, logger *zap.Logger, cfg config.Config) (idempotency.Store, func()) {
	switch cfg.Idempotency.Backend {
	case config.IdempotencyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Fatal("failed to reach redis", zap.Error(err))
		}
		return idempotency.NewRedisStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}
	case config.IdempotencyBackendFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			_ = os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost)
		}
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		return idempotency.NewFirestoreStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
	default:
		return idempotency.NewMemoryStore(), func() {}
	}
}

func newEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.EventsConfig) events.Publisher {
	switch cfg.Backend {
	case config.EventsBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.PubSubTopic))
		if err != nil {
			logger.Fatal("failed to initialise pubsub publisher", zap.Error(err))
		}
		return &closingPublisher{Publisher: publisher, closeFn: client.Close}
	case config.EventsBackendKafka:
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Fatal("failed to initialise kafka publisher", zap.Error(err))
		}
		return publisher
	default:
		return events.NewLogPublisher(logger.Named("events"))
	}
}

// closingPublisher also closes the client that owns the publisher's topic.
type closingPublisher struct {
	events.Publisher
	closeFn func() error
}

func (p *closingPublisher) Close() error {
	err := p.Publisher.Close()
	if closeErr := p.closeFn(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

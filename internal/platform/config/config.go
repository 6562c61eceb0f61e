package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultMaxOpenConns         = 20
	defaultMaxIdleConns         = 5
	defaultConnMaxLifetime      = 30 * time.Minute
	defaultMaxUploadBytes       = 10 << 20
	defaultCurrency             = "hkd"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultEventsTopic          = "orders"
	defaultSecretFallbackFile   = ".secrets.local"
	defaultSecurityEnvironment  = "local"
)

// Backend selectors.
const (
	StorageBackendNone = "none"
	StorageBackendGCS  = "gcs"

	IdempotencyBackendMemory    = "memory"
	IdempotencyBackendRedis     = "redis"
	IdempotencyBackendFirestore = "firestore"

	EventsBackendNone   = "none"
	EventsBackendPubSub = "pubsub"
	EventsBackendKafka  = "kafka"
)

// Config is the runtime configuration grouped by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	PSP         PSPConfig
	Idempotency IdempotencyConfig
	Redis       RedisConfig
	Firestore   FirestoreConfig
	Events      EventsConfig
	Secrets     SecretsConfig
	Security    SecurityConfig
	CORS        CORSConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// StorageConfig configures product image storage.
type StorageConfig struct {
	Backend        string
	ImagesBucket   string
	PublicBaseURL  string
	MaxUploadBytes int64
}

// PSPConfig holds payment provider settings.
type PSPConfig struct {
	StripeAPIKey string
	Currency     string
}

// IdempotencyConfig controls the idempotency middleware and its store.
type IdempotencyConfig struct {
	Backend          string
	Header           string
	TTL              time.Duration
	Required         bool
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// RedisConfig configures the redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FirestoreConfig configures the firestore client.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// EventsConfig selects the order event publisher.
type EventsConfig struct {
	Backend       string
	PubSubProject string
	PubSubTopic   string
	KafkaBrokers  []string
	KafkaTopic    string
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	DefaultProjectID string
	FallbackFile     string
}

// SecurityConfig carries the deployment environment name.
type SecurityConfig struct {
	Environment string
}

// CORSConfig lists allowed browser origins. Empty disables CORS headers.
type CORSConfig struct {
	AllowedOrigins []string
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the dotenv path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv stops Load from consulting the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks secret fields (e.g. "Database.URL", "PSP.StripeAPIKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the merged environment (dotenv < process env < explicit map) so callers can
// build dependencies such as the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotEnv))
	for k, v := range dotEnv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[key] = value
			}
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the configuration from defaults, dotenv, the environment, and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Database: DatabaseConfig{
			URL:             stringWithDefault(lookup, "API_DATABASE_URL", ""),
			MaxOpenConns:    intWithDefault(lookup, "API_DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
			MaxIdleConns:    intWithDefault(lookup, "API_DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
			ConnMaxLifetime: durationWithDefault(lookup, "API_DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
			AutoMigrate:     boolWithDefault(lookup, "API_DATABASE_AUTO_MIGRATE", true),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(stringWithDefault(lookup, "API_STORAGE_BACKEND", StorageBackendNone)),
			ImagesBucket:   stringWithDefault(lookup, "API_STORAGE_IMAGES_BUCKET", ""),
			PublicBaseURL:  strings.TrimRight(stringWithDefault(lookup, "API_STORAGE_PUBLIC_BASE_URL", ""), "/"),
			MaxUploadBytes: int64(intWithDefault(lookup, "API_STORAGE_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		},
		PSP: PSPConfig{
			StripeAPIKey: stringWithDefault(lookup, "API_PSP_STRIPE_API_KEY", ""),
			Currency:     strings.ToLower(stringWithDefault(lookup, "API_PSP_CURRENCY", defaultCurrency)),
		},
		Idempotency: IdempotencyConfig{
			Backend:          strings.ToLower(stringWithDefault(lookup, "API_IDEMPOTENCY_BACKEND", IdempotencyBackendMemory)),
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			Required:         boolWithDefault(lookup, "API_IDEMPOTENCY_REQUIRED", false),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Events: EventsConfig{
			Backend:       strings.ToLower(stringWithDefault(lookup, "API_EVENTS_BACKEND", EventsBackendNone)),
			PubSubProject: stringWithDefault(lookup, "API_EVENTS_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:   stringWithDefault(lookup, "API_EVENTS_PUBSUB_TOPIC", defaultEventsTopic),
			KafkaBrokers:  csvWithDefault(lookup, "API_EVENTS_KAFKA_BROKERS"),
			KafkaTopic:    stringWithDefault(lookup, "API_EVENTS_KAFKA_TOPIC", defaultEventsTopic),
		},
		Secrets: SecretsConfig{
			DefaultProjectID: stringWithDefault(lookup, "API_SECRET_DEFAULT_PROJECT_ID", ""),
			FallbackFile:     stringWithDefault(lookup, "API_SECRET_FALLBACK_FILE", defaultSecretFallbackFile),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "API_CORS_ALLOWED_ORIGINS"),
		},
	}

	if cfg.Events.PubSubProject == "" {
		cfg.Events.PubSubProject = cfg.Secrets.DefaultProjectID
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Secrets.DefaultProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Database.URL", &cfg.Database.URL},
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
		{"Redis.Password", &cfg.Redis.Password},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	add := func(field string) { invalid = append(invalid, field) }

	if cfg.Server.Port == "" {
		add("Server.Port")
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		add("Database.URL")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		add("Database.MaxOpenConns")
	}

	switch cfg.Storage.Backend {
	case StorageBackendNone:
	case StorageBackendGCS:
		if cfg.Storage.ImagesBucket == "" {
			add("Storage.ImagesBucket")
		}
	default:
		add("Storage.Backend")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		add("Storage.MaxUploadBytes")
	}
	if len(cfg.PSP.Currency) != 3 {
		add("PSP.Currency")
	}

	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		add("Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		add("Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		add("Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		add("Idempotency.CleanupBatchSize")
	}
	switch cfg.Idempotency.Backend {
	case IdempotencyBackendMemory:
	case IdempotencyBackendRedis:
		if cfg.Redis.Addr == "" {
			add("Redis.Addr")
		}
	case IdempotencyBackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			add("Firestore.ProjectID")
		}
	default:
		add("Idempotency.Backend")
	}

	switch cfg.Events.Backend {
	case EventsBackendNone:
	case EventsBackendPubSub:
		if cfg.Events.PubSubProject == "" {
			add("Events.PubSubProject")
		}
		if cfg.Events.PubSubTopic == "" {
			add("Events.PubSubTopic")
		}
	case EventsBackendKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			add("Events.KafkaBrokers")
		}
		if cfg.Events.KafkaTopic == "" {
			add("Events.KafkaTopic")
		}
	default:
		add("Events.Backend")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%s", strings.TrimPrefix(c.Port, ":"))
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cowork/pkg/client"
	"cowork/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StorageDriver  string
	NotifierDriver string

	LeaseTTL  time.Duration
	LeaseWait time.Duration

	MinSyncIntervalMinutes int
	FetchTimeout           time.Duration
	FetchMaxBytes          int
	ImportHorizon          time.Duration
	SchedulerReload        time.Duration
	SchedulerEnabled       bool

	SurvivorPolicy string
	PublicBaseURL  string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		StorageDriver:  strings.ToLower(getEnvStr(EnvStorageDriver, DefaultStorageDriver)),
		NotifierDriver: strings.ToLower(getEnvStr(EnvNotifierDriver, DefaultNotifierDriver)),

		LeaseTTL:  getEnvDuration(EnvLeaseTTL, DefaultLeaseTTL),
		LeaseWait: getEnvDuration(EnvLeaseWait, DefaultLeaseWait),

		MinSyncIntervalMinutes: getEnvNum(EnvMinSyncIntervalMinutes, DefaultMinSyncIntervalMinutes),
		FetchTimeout:           getEnvDuration(EnvFetchTimeout, DefaultFetchTimeout),
		FetchMaxBytes:          getEnvNum(EnvFetchMaxBytes, DefaultFetchMaxBytes),
		ImportHorizon:          getEnvDuration(EnvImportHorizon, DefaultImportHorizon),
		SchedulerReload:        getEnvDuration(EnvSchedulerReload, DefaultSchedulerReload),
		SchedulerEnabled:       getEnvBool(EnvSchedulerEnabled, DefaultSchedulerEnabled),

		SurvivorPolicy: strings.ToLower(getEnvStr(EnvSurvivorPolicy, DefaultSurvivorPolicy)),
		PublicBaseURL:  strings.TrimRight(getEnvStr(EnvPublicBaseURL, DefaultPublicBaseURL), "/"),

		OutboxPollInterval: getEnvDuration(EnvOutboxPollInterval, DefaultOutboxPollInterval),
		OutboxBatchSize:    getEnvNum(EnvOutboxBatchSize, DefaultOutboxBatchSize),
		OutboxMaxAttempts:  getEnvNum(EnvOutboxMaxAttempts, DefaultOutboxMaxAttempts),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// NewForTest returns a configuration with defaults and a silent logger,
// backed by the in-memory store.
func NewForTest() *Config {
	return &Config{
		MongoDatabaseName:      DefaultMongoDatabaseName,
		ReadTimeout:            DefaultReadTimeout,
		WriteTimeout:           DefaultWriteTimeout,
		StorageDriver:          StorageMemory,
		NotifierDriver:         NotifierLog,
		LeaseTTL:               DefaultLeaseTTL,
		LeaseWait:              200 * time.Millisecond,
		MinSyncIntervalMinutes: DefaultMinSyncIntervalMinutes,
		FetchTimeout:           2 * time.Second,
		FetchMaxBytes:          DefaultFetchMaxBytes,
		ImportHorizon:          DefaultImportHorizon,
		SchedulerReload:        DefaultSchedulerReload,
		SurvivorPolicy:         DefaultSurvivorPolicy,
		PublicBaseURL:          DefaultPublicBaseURL,
		OutboxBatchSize:        DefaultOutboxBatchSize,
		OutboxMaxAttempts:      DefaultOutboxMaxAttempts,
		OutboxPollInterval:     DefaultOutboxPollInterval,
		Log:                    logger.Discard(),
		Client:                 client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StorageDriver == StorageMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be '%s' or '%s', got: %s", StorageMongo, StorageMemory, cfg.StorageDriver))
	}

	if cfg.NotifierDriver != NotifierKafka && cfg.NotifierDriver != NotifierLog {
		errors = append(errors, fmt.Sprintf("NotifierDriver must be '%s' or '%s', got: %s", NotifierKafka, NotifierLog, cfg.NotifierDriver))
	}
	if cfg.SurvivorPolicy != SurvivorKeep && cfg.SurvivorPolicy != SurvivorConfirm {
		errors = append(errors, fmt.Sprintf("SurvivorPolicy must be '%s' or '%s', got: %s", SurvivorKeep, SurvivorConfirm, cfg.SurvivorPolicy))
	}
	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("PublicBaseURL must be an absolute http(s) URL, got: %s", cfg.PublicBaseURL))
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"LeaseTTL", cfg.LeaseTTL},
		{"FetchTimeout", cfg.FetchTimeout},
		{"ImportHorizon", cfg.ImportHorizon},
		{"SchedulerReload", cfg.SchedulerReload},
		{"OutboxPollInterval", cfg.OutboxPollInterval},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}
	if cfg.LeaseWait < 0 {
		errors = append(errors, fmt.Sprintf("LeaseWait cannot be negative, got: %s", cfg.LeaseWait))
	}

	positiveNums := []struct {
		name  string
		value int
	}{
		{"RateLimitRequests", cfg.RateLimitRequests},
		{"MaxRequestSize", cfg.MaxRequestSize},
		{"MinSyncIntervalMinutes", cfg.MinSyncIntervalMinutes},
		{"FetchMaxBytes", cfg.FetchMaxBytes},
		{"OutboxBatchSize", cfg.OutboxBatchSize},
		{"OutboxMaxAttempts", cfg.OutboxMaxAttempts},
	}
	for _, n := range positiveNums {
		if n.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", n.name, n.value))
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"notifier_driver", cfg.NotifierDriver,
		"lease_ttl", cfg.LeaseTTL,
		"lease_wait", cfg.LeaseWait,
		"min_sync_interval_minutes", cfg.MinSyncIntervalMinutes,
		"fetch_timeout", cfg.FetchTimeout,
		"fetch_max_bytes", cfg.FetchMaxBytes,
		"import_horizon", cfg.ImportHorizon,
		"scheduler_reload", cfg.SchedulerReload,
		"scheduler_enabled", cfg.SchedulerEnabled,
		"survivor_policy", cfg.SurvivorPolicy,
		"public_base_url", cfg.PublicBaseURL,
		"outbox_poll_interval", cfg.OutboxPollInterval,
		"outbox_batch_size", cfg.OutboxBatchSize,
		"outbox_max_attempts", cfg.OutboxMaxAttempts,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}

// ClampSyncInterval raises interval to the configured floor.
func (cfg *Config) ClampSyncInterval(minutes int) int {
	return max(minutes, cfg.MinSyncIntervalMinutes)
}
